package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS classifications (
	id          BIGSERIAL PRIMARY KEY,
	record_id   TEXT NOT NULL,
	record_hash TEXT NOT NULL UNIQUE,
	is_pii      BOOLEAN NOT NULL,
	findings    JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store persists classification outcomes to PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore creates a new audit store instance
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Audit store initialized successfully",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

// initialize checks the database connection and ensures the schema exists
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	s.logger.Info("Database schema ensured")
	return nil
}

// Insert adds a single classification record
func (s *Store) Insert(ctx context.Context, record *ClassificationRecord) error {
	query := `
		INSERT INTO classifications (record_id, record_hash, is_pii, findings)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (record_hash) DO NOTHING
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		record.RecordID,
		record.RecordHash,
		record.IsPII,
		record.Findings,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		// ErrNoRows here means the hash already existed; not a failure.
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		s.logger.Error("Failed to insert classification",
			zap.Error(err),
			zap.String("record_id", record.RecordID))
		return fmt.Errorf("failed to insert classification: %w", err)
	}

	s.logger.Debug("Classification inserted",
		zap.Int64("id", record.ID),
		zap.String("record_id", record.RecordID),
		zap.Bool("is_pii", record.IsPII))

	return nil
}

// BatchInsert adds multiple classification records efficiently. Records whose
// hash is already present are skipped.
func (s *Store) BatchInsert(ctx context.Context, records []*ClassificationRecord) (*BatchInsertResult, error) {
	if len(records) == 0 {
		return &BatchInsertResult{}, nil
	}

	start := time.Now()
	result := &BatchInsertResult{}

	valueStrings := make([]string, 0, len(records))
	valueArgs := make([]interface{}, 0, len(records)*4)

	for i, record := range records {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4))
		valueArgs = append(valueArgs,
			record.RecordID,
			record.RecordHash,
			record.IsPII,
			record.Findings,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO classifications (record_id, record_hash, is_pii, findings)
		VALUES %s
		ON CONFLICT (record_hash) DO NOTHING`,
		strings.Join(valueStrings, ","))

	res, err := s.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		result.Failed = int64(len(records))
		result.Errors = []error{err}
		s.logger.Error("Batch insert failed", zap.Error(err))
		return result, fmt.Errorf("batch insert failed: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		s.logger.Warn("Could not get rows affected", zap.Error(err))
		inserted = int64(len(records)) // Assume all inserted
	}

	result.Inserted = inserted
	result.Duration = time.Since(start)
	duplicates := int64(len(records)) - inserted

	s.logger.Info("Batch insert completed",
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates_skipped", duplicates),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// GetStats returns audit store statistics
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	query := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN is_pii THEN 1 END) as pii,
			COUNT(CASE WHEN NOT is_pii THEN 1 END) as clean
		FROM classifications`

	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalRecords,
		&stats.PIICount,
		&stats.CleanCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get classification stats: %w", err)
	}

	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks sensitive information in database URL for logging
func maskDatabaseURL(url string) string {
	// Simple masking - replace password with ***
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
