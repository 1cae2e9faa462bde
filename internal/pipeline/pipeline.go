package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/audit"
	"github.com/raaihank/pii-sentinel/internal/cache"
	"github.com/raaihank/pii-sentinel/internal/engine"
)

// Pipeline reads rows from an input file, classifies the record embedded in
// each row, and writes {record_id, redacted_data_json, is_pii} rows to the
// output file. Records are independent, so each batch is classified by a
// worker pool; outputs keep their input index, preserving record-to-result
// correspondence without any global ordering requirement.
type Pipeline struct {
	engine *engine.Engine
	store  *audit.Store       // optional
	cache  *cache.ResultCache // optional
	config *Config
	logger *zap.Logger
	start  time.Time
}

// rowOutcome carries one classified row plus the metadata the audit store and
// result cache need.
type rowOutcome struct {
	out      OutputRow
	hash     string
	findings []engine.Finding
	cacheKey string
	parsed   bool
}

// NewPipeline creates a new classification pipeline
func NewPipeline(
	eng *engine.Engine,
	store *audit.Store,
	resultCache *cache.ResultCache,
	config *Config,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		engine: eng,
		store:  store,
		cache:  resultCache,
		config: config,
		logger: logger,
	}
}

// ProcessFile processes one dataset file (CSV, JSON Lines, or Parquet) and
// writes the classified output in the format implied by the output path.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string) (*ProcessingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	p.logger.Info("Starting classification pipeline",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount),
		zap.Bool("dry_run", p.config.DryRun))

	start := time.Now()
	p.start = start
	result := &ProcessingResult{}

	inFormat := DetectFileFormat(inputPath)
	p.logger.Info("Detected input format", zap.String("format", string(inFormat)))

	in, err := os.Open(inputPath)
	if err != nil {
		return result, fmt.Errorf("failed to open input file: %w", err)
	}
	defer in.Close()

	readBatch, closeReader, err := p.newBatchReader(inFormat, in, result)
	if err != nil {
		return result, fmt.Errorf("failed to open %s reader: %w", inFormat, err)
	}
	defer closeReader()

	writer, err := p.newRowWriter(outputPath)
	if err != nil {
		return result, fmt.Errorf("failed to open output writer: %w", err)
	}

	if err := p.processBatches(ctx, readBatch, writer, result); err != nil {
		writer.Close()
		return result, err
	}

	if err := writer.Close(); err != nil {
		return result, fmt.Errorf("failed to finalize output: %w", err)
	}

	result.Duration = time.Since(start)

	p.logger.Info("Classification pipeline completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("pii_records", result.PIIRecords),
		zap.Int64("parse_failures", result.ParseFailures),
		zap.Int64("skipped_rows", result.SkippedRows),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("classify_time", result.ClassifyTime),
		zap.Duration("write_time", result.WriteTime),
		zap.Duration("database_time", result.DatabaseTime))

	return result, nil
}

// processBatches drains the reader batch by batch
func (p *Pipeline) processBatches(ctx context.Context, readBatch func() ([]Row, error), writer rowWriter, result *ProcessingResult) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}

		if len(batch) == 0 {
			break // End of file
		}

		if err := p.processBatch(ctx, batch, writer, result); err != nil {
			p.logger.Error("Batch processing failed", zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		result.TotalRecords += int64(len(batch))

		if p.config.ProgressReport > 0 && result.TotalRecords%int64(p.config.ProgressReport) == 0 {
			p.reportProgress(result)
		}
	}

	return nil
}

// processBatch classifies one batch with the worker pool, then writes the
// outputs and feeds the optional audit store and result cache.
func (p *Pipeline) processBatch(ctx context.Context, batch []Row, writer rowWriter, result *ProcessingResult) error {
	if len(batch) == 0 {
		return nil
	}

	classifyStart := time.Now()
	outcomes := p.classifyBatch(batch, result)
	result.ClassifyTime += time.Since(classifyStart)

	writeStart := time.Now()
	for i := range outcomes {
		if err := writer.Write(outcomes[i].out); err != nil {
			return fmt.Errorf("failed to write output row: %w", err)
		}
	}
	result.WriteTime += time.Since(writeStart)

	if p.store != nil && !p.config.DryRun {
		dbStart := time.Now()
		if err := p.auditBatch(ctx, outcomes); err != nil {
			p.logger.Warn("Failed to persist audit records", zap.Error(err))
		}
		result.DatabaseTime += time.Since(dbStart)
	}

	if p.cache != nil && p.config.UpdateCache && !p.config.DryRun {
		p.updateCache(ctx, outcomes)
	}

	return nil
}

// classifyBatch fans the batch out over the worker pool. Each worker writes
// only its own index, so no coordination beyond the WaitGroup is needed.
func (p *Pipeline) classifyBatch(batch []Row, result *ProcessingResult) []rowOutcome {
	outcomes := make([]rowOutcome, len(batch))

	workers := p.config.WorkerCount
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = p.classifyRow(batch[i], result)
			}
		}()
	}

	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// classifyRow classifies one row. A cell the source cannot turn into a record
// is passed through unchanged and reported as non-PII; that fallback belongs
// to the source, not the engine.
func (p *Pipeline) classifyRow(row Row, result *ProcessingResult) rowOutcome {
	record, err := ParseEmbedded(row.DataJSON)
	if err != nil {
		atomic.AddInt64(&result.ParseFailures, 1)
		p.logger.Debug("Unparsable data_json cell, passing through",
			zap.String("record_id", row.RecordID))
		return rowOutcome{
			out: OutputRow{
				RecordID:         row.RecordID,
				RedactedDataJSON: row.DataJSON,
				IsPII:            false,
			},
			hash: hashRaw(row.DataJSON),
		}
	}

	detection := p.engine.Classify(record)

	redactedJSON, err := json.Marshal(detection.Redacted)
	if err != nil {
		// A record built from JSON always serializes back; treat anything
		// else like an unparsable cell.
		atomic.AddInt64(&result.ParseFailures, 1)
		return rowOutcome{
			out: OutputRow{
				RecordID:         row.RecordID,
				RedactedDataJSON: row.DataJSON,
				IsPII:            false,
			},
			hash: hashRaw(row.DataJSON),
		}
	}

	if detection.IsPII {
		atomic.AddInt64(&result.PIIRecords, 1)
	}

	outcome := rowOutcome{
		out: OutputRow{
			RecordID:         row.RecordID,
			RedactedDataJSON: string(redactedJSON),
			IsPII:            detection.IsPII,
		},
		findings: detection.Findings,
		parsed:   true,
	}

	if key, err := p.recordKey(record); err == nil {
		outcome.cacheKey = key
		outcome.hash = key[strings.LastIndex(key, ":")+1:]
	} else {
		outcome.hash = hashRaw(row.DataJSON)
	}

	return outcome
}

// recordKey derives the cache/audit key for a record
func (p *Pipeline) recordKey(record engine.Record) (string, error) {
	if p.cache != nil {
		return p.cache.Key(record)
	}
	return cache.RecordKey("pii", record)
}

// auditBatch persists one batch of outcomes
func (p *Pipeline) auditBatch(ctx context.Context, outcomes []rowOutcome) error {
	records := make([]*audit.ClassificationRecord, 0, len(outcomes))
	for i := range outcomes {
		findings, err := json.Marshal(outcomes[i].findings)
		if err != nil {
			findings = []byte("[]")
		}
		records = append(records, &audit.ClassificationRecord{
			RecordID:   outcomes[i].out.RecordID,
			RecordHash: outcomes[i].hash,
			IsPII:      outcomes[i].out.IsPII,
			Findings:   string(findings),
		})
	}

	_, err := p.store.BatchInsert(ctx, records)
	return err
}

// updateCache stores classified results so the service path can skip
// re-classifying records it has already seen.
func (p *Pipeline) updateCache(ctx context.Context, outcomes []rowOutcome) {
	cached := 0
	for i := range outcomes {
		if !outcomes[i].parsed || outcomes[i].cacheKey == "" {
			continue
		}
		entry := &cache.CachedResult{
			IsPII:        outcomes[i].out.IsPII,
			RedactedJSON: outcomes[i].out.RedactedDataJSON,
			Findings:     outcomes[i].findings,
		}
		if err := p.cache.Set(ctx, outcomes[i].cacheKey, entry); err != nil {
			p.logger.Warn("Failed to update cache", zap.Error(err))
			continue
		}
		cached++
	}

	if cached > 0 {
		p.logger.Debug("Cache updated", zap.Int("cached_results", cached))
	}
}

// validateRow validates an input row before classification
func (p *Pipeline) validateRow(row *Row, result *ProcessingResult) bool {
	if !p.config.ValidateData {
		return true
	}

	if strings.TrimSpace(row.DataJSON) == "" {
		p.logger.Debug("Invalid row: empty data_json", zap.String("record_id", row.RecordID))
		result.SkippedRows++
		return false
	}

	// Guard against runaway cells
	if len(row.DataJSON) > 100000 {
		p.logger.Debug("Invalid row: data_json too long",
			zap.String("record_id", row.RecordID),
			zap.Int("length", len(row.DataJSON)))
		result.SkippedRows++
		return false
	}

	return true
}

// reportProgress reports current processing progress
func (p *Pipeline) reportProgress(result *ProcessingResult) {
	elapsed := time.Since(p.start)
	rate := float64(result.TotalRecords) / elapsed.Seconds()

	p.logger.Info("Processing progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("pii_records", result.PIIRecords),
		zap.Int64("parse_failures", result.ParseFailures),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))
}

// hashRaw hashes an unparsable cell so audit rows still dedupe
func hashRaw(cell string) string {
	sum := sha256.Sum256([]byte(cell))
	return hex.EncodeToString(sum[:])
}
