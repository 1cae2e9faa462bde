package audit

import (
	"time"
)

// ClassificationRecord is one persisted classification outcome. Findings is
// the JSON-encoded finding list; the original record is never stored.
type ClassificationRecord struct {
	ID         int64     `db:"id" json:"id"`
	RecordID   string    `db:"record_id" json:"record_id"`
	RecordHash string    `db:"record_hash" json:"record_hash"`
	IsPII      bool      `db:"is_pii" json:"is_pii"`
	Findings   string    `db:"findings" json:"findings"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// BatchInsertResult summarizes a batch insert operation
type BatchInsertResult struct {
	Inserted int64         `json:"inserted"`
	Failed   int64         `json:"failed"`
	Duration time.Duration `json:"duration"`
	Errors   []error       `json:"-"`
}

// Stats represents audit store statistics
type Stats struct {
	TotalRecords int64 `json:"total_records"`
	PIICount     int64 `json:"pii_count"`
	CleanCount   int64 `json:"clean_count"`
}

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}
