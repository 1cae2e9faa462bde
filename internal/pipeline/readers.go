package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// newBatchReader returns a function that reads up to BatchSize validated rows
// per call, plus a close function for any reader-held resources.
func (p *Pipeline) newBatchReader(format FileFormat, in *os.File, result *ProcessingResult) (func() ([]Row, error), func(), error) {
	switch format {
	case FormatCSV:
		read, err := p.newCSVReader(in, result)
		return read, func() {}, err
	case FormatJSON:
		return p.newJSONReader(in, result), func() {}, nil
	case FormatParquet:
		reader := parquet.NewReader(in)
		return p.newParquetReader(reader, result), func() { reader.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

// newCSVReader reads record_id/data_json rows from a CSV file. Column
// positions follow the header; files without the expected header fall back to
// the first two columns.
func (p *Pipeline) newCSVReader(in *os.File, result *ProcessingResult) (func() ([]Row, error), error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idCol, dataCol := 0, 1
	for i, name := range header {
		switch name {
		case "record_id":
			idCol = i
		case "data_json":
			dataCol = i
		}
	}

	p.logger.Info("CSV header detected",
		zap.Strings("columns", header),
		zap.Int("record_id_column", idCol),
		zap.Int("data_json_column", dataCol))

	return func() ([]Row, error) {
		var batch []Row

		for len(batch) < p.config.BatchSize {
			fields, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read CSV row", zap.Error(err))
				result.SkippedRows++
				continue
			}

			if len(fields) <= idCol || len(fields) <= dataCol {
				p.logger.Warn("Invalid CSV row length", zap.Int("length", len(fields)))
				result.SkippedRows++
				continue
			}

			row := Row{
				RecordID: fields[idCol],
				DataJSON: fields[dataCol],
			}

			if p.validateRow(&row, result) {
				batch = append(batch, row)
			}
		}

		return batch, nil
	}, nil
}

// newJSONReader reads one JSON object per line
func (p *Pipeline) newJSONReader(in *os.File, result *ProcessingResult) func() ([]Row, error) {
	decoder := json.NewDecoder(in)

	return func() ([]Row, error) {
		var batch []Row

		for len(batch) < p.config.BatchSize {
			var row Row
			err := decoder.Decode(&row)
			if err == io.EOF {
				break
			}
			if err != nil {
				return batch, fmt.Errorf("failed to read JSON row: %w", err)
			}

			if p.validateRow(&row, result) {
				batch = append(batch, row)
			}
		}

		return batch, nil
	}
}

// newParquetReader reads rows from a Parquet file
func (p *Pipeline) newParquetReader(reader *parquet.Reader, result *ProcessingResult) func() ([]Row, error) {
	return func() ([]Row, error) {
		var batch []Row

		for len(batch) < p.config.BatchSize {
			var row Row
			err := reader.Read(&row)
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read Parquet row", zap.Error(err))
				result.SkippedRows++
				continue
			}

			if p.validateRow(&row, result) {
				batch = append(batch, row)
			}
		}

		return batch, nil
	}
}
