package pipeline

import (
	"strings"
	"time"
)

// Row is one input row from the record source: an opaque identifier plus an
// embedded object literal carrying the record fields.
type Row struct {
	RecordID string `parquet:"record_id" json:"record_id"`
	DataJSON string `parquet:"data_json" json:"data_json"`
}

// OutputRow is what the record sink persists per input row.
type OutputRow struct {
	RecordID         string `parquet:"record_id" json:"record_id"`
	RedactedDataJSON string `parquet:"redacted_data_json" json:"redacted_data_json"`
	IsPII            bool   `parquet:"is_pii" json:"is_pii"`
}

// Config contains batch pipeline configuration
type Config struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount    int  `yaml:"worker_count" mapstructure:"worker_count"`
	ValidateData   bool `yaml:"validate_data" mapstructure:"validate_data"`
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"`
	UpdateCache    bool `yaml:"update_cache" mapstructure:"update_cache"`
	DryRun         bool `yaml:"dry_run" mapstructure:"dry_run"`
}

// ProcessingResult represents the result of processing a dataset
type ProcessingResult struct {
	TotalRecords  int64         `json:"total_records"`
	PIIRecords    int64         `json:"pii_records"`
	ParseFailures int64         `json:"parse_failures"`
	SkippedRows   int64         `json:"skipped_rows"`
	Duration      time.Duration `json:"duration"`
	ClassifyTime  time.Duration `json:"classify_time"`
	WriteTime     time.Duration `json:"write_time"`
	DatabaseTime  time.Duration `json:"database_time"`
	Errors        []string      `json:"errors,omitempty"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json") || strings.HasSuffix(filename, ".jsonl"):
		return FormatJSON
	default:
		return FormatCSV
	}
}
