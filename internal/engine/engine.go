package engine

import (
	"fmt"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/logger"
	"go.uber.org/zap"
)

// Engine classifies records as PII-bearing and produces redacted copies. It
// holds only immutable rule tables and is safe for concurrent use.
type Engine struct {
	rules   []StandaloneRule
	quasi   map[string]func(any) any
	enabled map[string]bool
	logger  *logger.Logger
	config  config.PrivacyConfig
}

// New creates a new PII engine instance
func New(cfg config.PrivacyConfig, log *logger.Logger) (*Engine, error) {
	eng := &Engine{
		rules:   GetStandaloneRules(),
		quasi:   quasiMasks(),
		enabled: make(map[string]bool),
		logger:  log,
		config:  cfg,
	}

	// Configure enabled detectors
	if err := eng.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("PII engine initialized",
		zap.Int("standalone_rules", len(eng.rules)),
		zap.Int("enabled_rules", eng.countEnabledRules()),
		zap.Int("quasi_identifiers", len(eng.quasi)),
	)

	return eng, nil
}

// configureDetectors enables/disables standalone detectors based on configuration
func (e *Engine) configureDetectors(detectors []string) error {
	// Disable all rules by default
	for _, rule := range e.rules {
		e.enabled[rule.Name] = false
	}

	// Enable specified detectors
	for _, detector := range detectors {
		if detector == "all" {
			for _, rule := range e.rules {
				e.enabled[rule.Name] = true
			}
			continue
		}

		found := false
		for _, rule := range e.rules {
			if rule.Name == detector {
				e.enabled[rule.Name] = true
				found = true
				break
			}
		}

		if !found {
			return fmt.Errorf("unknown detector: %s", detector)
		}
	}

	return nil
}

// Classify runs one record through the standalone and combinatorial rule sets
// and returns the classification with a redacted copy. It never fails: the
// input record is not validated, non-string values are never inspected, and
// unknown fields pass through unchanged.
func (e *Engine) Classify(record Record) DetectionResult {
	redacted := make(Record, len(record))
	for key, value := range record {
		redacted[key] = value
	}

	if !e.config.Enabled {
		return DetectionResult{IsPII: false, Redacted: redacted}
	}

	standaloneFound := false
	var quasiPresent []string
	var findings []Finding

	for key, value := range record {
		if s, ok := value.(string); ok {
			for _, rule := range e.rules {
				if rule.Name != key || !e.enabled[rule.Name] {
					continue
				}
				if rule.Pattern.MatchString(s) {
					standaloneFound = true
					redacted[key] = rule.Mask(s)
					findings = append(findings, Finding{
						Field:      key,
						EntityType: rule.Name,
						Rule:       RuleStandalone,
					})
				}
			}
		}

		// Quasi-identifier presence counts regardless of value type or content.
		if _, ok := e.quasi[key]; ok {
			quasiPresent = append(quasiPresent, key)
		}
	}

	// Two or more co-occurring quasi-identifiers raise re-identification risk
	// enough to redact every one of them.
	combinatorialFound := len(quasiPresent) >= 2
	if combinatorialFound {
		for _, key := range quasiPresent {
			redacted[key] = e.quasi[key](record[key])
			findings = append(findings, Finding{
				Field:      key,
				EntityType: key,
				Rule:       RuleCombinatorial,
			})
		}
	}

	isPII := standaloneFound || combinatorialFound
	if isPII {
		e.logger.Debug("PII detected",
			zap.Bool("standalone", standaloneFound),
			zap.Int("quasi_identifiers", len(quasiPresent)),
			zap.Int("findings", len(findings)),
		)
	}

	return DetectionResult{
		IsPII:    isPII,
		Redacted: redacted,
		Findings: findings,
	}
}

// countEnabledRules returns the number of enabled standalone rules
func (e *Engine) countEnabledRules() int {
	count := 0
	for _, enabled := range e.enabled {
		if enabled {
			count++
		}
	}
	return count
}

// GetEnabledRules returns a list of enabled standalone rule names
func (e *Engine) GetEnabledRules() []string {
	var enabled []string
	for ruleName, isEnabled := range e.enabled {
		if isEnabled {
			enabled = append(enabled, ruleName)
		}
	}
	return enabled
}

// QuasiIdentifiers returns the quasi-identifier field names
func (e *Engine) QuasiIdentifiers() []string {
	var fields []string
	for field := range e.quasi {
		fields = append(fields, field)
	}
	return fields
}
