package session

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/itohio/gonibp/pkg/nibp"
)

const (
	// TimeLayout is the wall clock format of the Time column.
	TimeLayout = "15:04:05"
	// PressureColumn is the column offline analysis reads.
	PressureColumn = "mmHg"
)

// Header is the record header row.
var Header = []string{"Time", "RAW", PressureColumn}

// SchemaError reports tabular input without a required column.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("input has no %q column", e.Column)
}

// Row formats one sample as a record row.
func Row(s nibp.PressureSample) []string {
	return []string{
		s.Timestamp.Format(TimeLayout),
		strconv.Itoa(s.Raw),
		strconv.FormatFloat(s.MmHg, 'f', 2, 64),
	}
}

// CSVWriter writes session records. The header is written on the first
// Write; call Flush when done.
type CSVWriter struct {
	w      *csv.Writer
	header bool
}

// NewCSVWriter wraps w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write appends one sample row.
func (c *CSVWriter) Write(s nibp.PressureSample) error {
	if !c.header {
		if err := c.w.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		c.header = true
	}
	if err := c.w.Write(Row(s)); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	if !c.header {
		if err := c.w.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		c.header = true
	}
	c.w.Flush()
	return c.w.Error()
}

// WriteCSV writes a complete record file for samples.
func WriteCSV(w io.Writer, samples []nibp.PressureSample) error {
	cw := NewCSVWriter(w)
	for _, s := range samples {
		if err := cw.Write(s); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// ReadPressures reads the mmHg column of a CSV file with a header row.
// Header names are matched after trimming spaces. Input without the column
// fails with *SchemaError.
func ReadPressures(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Column: PressureColumn}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == PressureColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, &SchemaError{Column: PressureColumn}
	}

	var out []float64
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if col >= len(record) {
			return nil, fmt.Errorf("row %d: missing %s value", line, PressureColumn)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		out = append(out, v)
	}

	return out, nil
}
