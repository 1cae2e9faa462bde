package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raaihank/pii-sentinel/internal/engine"
)

// ParseEmbedded parses the object literal embedded in a data_json cell.
// Upstream exports often write Python-style single-quoted literals, so a
// failed parse is retried with quotes normalized.
func ParseEmbedded(cell string) (engine.Record, error) {
	var record engine.Record
	if err := json.Unmarshal([]byte(cell), &record); err == nil {
		return record, nil
	}

	normalized := strings.ReplaceAll(cell, "'", `"`)
	if err := json.Unmarshal([]byte(normalized), &record); err != nil {
		return nil, fmt.Errorf("failed to parse embedded record: %w", err)
	}
	return record, nil
}
