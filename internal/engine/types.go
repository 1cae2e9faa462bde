package engine

import "regexp"

// Record is one semi-structured input row: string keys mapped to the scalar
// values produced by encoding/json (string, float64, bool, or nil). No schema
// is enforced; only string values are ever pattern-inspected.
type Record map[string]any

// Rule kinds attached to findings.
const (
	RuleStandalone    = "standalone"
	RuleCombinatorial = "combinatorial"
)

// Redaction markers. Downstream consumers match on these byte-for-byte.
const (
	maskedAddress  = "[REDACTED_ADDRESS]"
	maskedDeviceID = "[REDACTED_DEVICE_ID]"
	maskedIP       = "[REDACTED_IP]"
	maskedName     = "[REDACTED_NAME]"
	maskedEmail    = "[REDACTED_EMAIL]"
)

// Finding describes a single field that was flagged and masked.
type Finding struct {
	Field      string `json:"field"`
	EntityType string `json:"entityType"`
	Rule       string `json:"rule"`
}

// DetectionResult is the outcome of classifying one record. Redacted is
// always a full copy of the input with zero or more fields masked.
type DetectionResult struct {
	IsPII    bool      `json:"isPII"`
	Redacted Record    `json:"redactedRecord"`
	Findings []Finding `json:"findings,omitempty"`
}

// StandaloneRule flags a record when the field named Name carries a string
// value matching Pattern. Mask produces the redacted replacement.
type StandaloneRule struct {
	Name    string
	Pattern *regexp.Regexp
	Mask    func(string) string
}

// GetStandaloneRules returns the fixed standalone detection rules. Each rule
// only fires on its exact field name.
func GetStandaloneRules() []StandaloneRule {
	return []StandaloneRule{
		{
			Name:    "phone",
			Pattern: regexp.MustCompile(`\b\d{10}\b`),
			Mask:    maskPhone,
		},
		{
			Name:    "aadhar",
			Pattern: regexp.MustCompile(`\b\d{12}\b`),
			Mask:    maskAadhar,
		},
		{
			Name:    "passport",
			Pattern: regexp.MustCompile(`\b[A-Z]\d{7}\b`),
			Mask:    maskPassport,
		},
		{
			Name:    "upi_id",
			Pattern: regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b|\b[\w.-]+@\w+\b`),
			Mask:    maskUPI,
		},
	}
}

// quasiMasks returns the quasi-identifier field set with the mask applied to
// each field under combinatorial redaction. Key presence alone makes a field
// count toward the combination threshold, so the masks must be total over any
// value type: non-string name/email values are replaced wholesale.
func quasiMasks() map[string]func(any) any {
	return map[string]func(any) any{
		"name": func(v any) any {
			if s, ok := v.(string); ok {
				return maskName(s)
			}
			return maskedName
		},
		"email": func(v any) any {
			if s, ok := v.(string); ok {
				return maskEmail(s)
			}
			return maskedEmail
		},
		"address":    func(any) any { return maskedAddress },
		"device_id":  func(any) any { return maskedDeviceID },
		"ip_address": func(any) any { return maskedIP },
	}
}
