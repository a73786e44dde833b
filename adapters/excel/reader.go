package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"extruder/domain/core"
	"extruder/domain/dataset"
	"extruder/domain/spc"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/floats"
)

const utf8BOM = "\ufeff"

// DataReader handles reading Excel and CSV measurement files
type DataReader struct {
	config ReaderConfig
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(config ReaderConfig) *DataReader {
	if config.Comma == 0 {
		config.Comma = ','
	}
	return &DataReader{config: config}
}

// Read parses src as the given format. The first row is the header; blank
// rows are skipped and the remainder is sampled down to about TargetRows.
// A file with a header but no data rows yields an empty dataset.
func (r *DataReader) Read(src io.Reader, format dataset.Format) (*ReadResult, error) {
	var (
		rows [][]string
		err  error
	)
	readStart := time.Now()
	switch format {
	case dataset.FormatCSV:
		rows, err = r.readCSVData(src)
	case dataset.FormatXLSX:
		rows, err = r.readExcelData(src)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)",
		strings.ToUpper(string(format)), float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) == 0 {
		return nil, core.ErrEmptyFile
	}
	return r.processRows(rows), nil
}

// readExcelData reads every row of the configured sheet
func (r *DataReader) readExcelData(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, core.ErrEmptyFile
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// readCSVData reads CSV data; short and long rows are tolerated
func (r *DataReader) readCSVData(src io.Reader) ([][]string, error) {
	reader := csv.NewReader(src)
	reader.Comma = r.config.Comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows converts raw string rows into a sampled dataset
func (r *DataReader) processRows(rows [][]string) *ReadResult {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	columns := make([]string, 0, len(headerRow))
	seen := make(map[string]bool, len(headerRow))
	for i, header := range headerRow {
		if i == 0 {
			header = strings.TrimPrefix(header, utf8BOM)
		}
		header = strings.TrimSpace(header)
		headers[i] = header
		if header != "" && !seen[header] {
			seen[header] = true
			columns = append(columns, header)
		}
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if !isBlankRow(row) {
			data = append(data, row)
		}
	}

	rate := SamplingRate(len(data), r.config.TargetRows)
	records := make([]spc.Record, 0, len(data)/rate+1)
	for i := 0; i < len(data); i += rate {
		record := make(spc.Record, len(headers))
		for j, cell := range data[i] {
			if j < len(headers) && headers[j] != "" {
				record[headers[j]] = strings.TrimSpace(cell)
			}
		}
		records = append(records, record)
	}

	log.Printf("[DataReader] processed %d columns, %d data rows, kept %d (every %d)",
		len(columns), len(data), len(records), rate)

	return &ReadResult{
		Dataset:      spc.Dataset{Columns: columns, Records: records},
		RawRows:      len(data),
		SamplingRate: rate,
	}
}

// SamplingRate is the load-time stride that brings n rows down to about
// target rows: max(1, floor(n/target)).
func SamplingRate(n, target int) int {
	if target <= 0 || n <= target {
		return 1
	}
	return n / target
}

// ProfileColumns classifies each column by how many of its cells parse as
// numbers, in header order.
func ProfileColumns(ds spc.Dataset) []ColumnProfile {
	profiles := make([]ColumnProfile, 0, len(ds.Columns))
	for _, column := range ds.Columns {
		p := ColumnProfile{Name: column, Total: ds.Len()}
		values := make([]float64, 0, ds.Len())
		for _, record := range ds.Records {
			if strings.TrimSpace(record[column]) == "" {
				p.Blank++
				continue
			}
			if v, ok := record.Float(column); ok {
				values = append(values, v)
			}
		}
		p.Numeric = len(values)
		if len(values) > 0 {
			p.Min = floats.Min(values)
			p.Max = floats.Max(values)
		}

		filled := p.Total - p.Blank
		switch {
		case filled == 0:
			p.Kind = KindEmpty
		case p.Numeric == filled:
			p.Kind = KindNumeric
		case p.Numeric == 0:
			p.Kind = KindText
		default:
			p.Kind = KindMixed
		}
		profiles = append(profiles, p)
	}
	return profiles
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ReadBytes is a convenience for callers that already hold the file content
func (r *DataReader) ReadBytes(content []byte, format dataset.Format) (*ReadResult, error) {
	return r.Read(bytes.NewReader(content), format)
}
