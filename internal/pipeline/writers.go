package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/segmentio/parquet-go"
)

// rowWriter persists classified output rows. Close flushes and finalizes the
// underlying file.
type rowWriter interface {
	Write(row OutputRow) error
	Close() error
}

// newRowWriter opens a writer in the format implied by the output path. Dry
// runs classify everything but persist nothing.
func (p *Pipeline) newRowWriter(outputPath string) (rowWriter, error) {
	if p.config.DryRun {
		return discardWriter{}, nil
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	switch DetectFileFormat(outputPath) {
	case FormatCSV:
		return newCSVWriter(out)
	case FormatJSON:
		return &jsonlWriter{file: out, encoder: json.NewEncoder(out)}, nil
	case FormatParquet:
		return &parquetWriter{
			file:   out,
			writer: parquet.NewWriter(out, parquet.SchemaOf(OutputRow{})),
		}, nil
	default:
		out.Close()
		return nil, fmt.Errorf("unsupported output format for %s", outputPath)
	}
}

type csvWriter struct {
	file   *os.File
	writer *csv.Writer
}

func newCSVWriter(out *os.File) (*csvWriter, error) {
	w := &csvWriter{
		file:   out,
		writer: csv.NewWriter(out),
	}
	if err := w.writer.Write([]string{"record_id", "redacted_data_json", "is_pii"}); err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return w, nil
}

func (w *csvWriter) Write(row OutputRow) error {
	return w.writer.Write([]string{
		row.RecordID,
		row.RedactedDataJSON,
		strconv.FormatBool(row.IsPII),
	})
}

func (w *csvWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush CSV output: %w", err)
	}
	return w.file.Close()
}

type jsonlWriter struct {
	file    *os.File
	encoder *json.Encoder
}

func (w *jsonlWriter) Write(row OutputRow) error {
	return w.encoder.Encode(row)
}

func (w *jsonlWriter) Close() error {
	return w.file.Close()
}

type parquetWriter struct {
	file   *os.File
	writer *parquet.Writer
}

func (w *parquetWriter) Write(row OutputRow) error {
	return w.writer.Write(row)
}

func (w *parquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize Parquet output: %w", err)
	}
	return w.file.Close()
}

type discardWriter struct{}

func (discardWriter) Write(OutputRow) error { return nil }
func (discardWriter) Close() error          { return nil }
