// Package csvfile reads and writes the observation history as delimited text.
//
// The canonical format has a header row holding the field spec names in order
// and one row per observation, timestamps encoded as RFC 3339 UTC strings and
// null values as empty cells. Legacy files with epoch seconds or
// "YYYY-MM-DD HH:MM:SS" timestamps are accepted by ReadRecords in legacy mode.
package csvfile

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/wotstats/internal/domain/observation"
	"github.com/riskibarqy/wotstats/internal/platform/record"
)

const calendarLayout = "2006-01-02 15:04:05"

// TimestampMode selects which timestamp encodings the reader accepts.
type TimestampMode int

const (
	// Canonical accepts RFC 3339 only.
	Canonical TimestampMode = iota
	// Legacy also accepts epoch seconds and calendar strings (read as UTC).
	Legacy
)

// Writer encodes observations in canonical form.
type Writer struct {
	spec observation.FieldSpec
	csv  *csv.Writer
}

func NewWriter(w io.Writer, spec observation.FieldSpec) *Writer {
	return &Writer{spec: spec, csv: csv.NewWriter(w)}
}

func (w *Writer) WriteHeader() error {
	if err := w.csv.Write(w.spec.Names()); err != nil {
		return crerr.Wrap(err, "write csv header")
	}
	return nil
}

func (w *Writer) Write(item observation.Observation) error {
	row, err := EncodeRow(w.spec, item)
	if err != nil {
		return err
	}
	if err := w.csv.Write(row); err != nil {
		return crerr.Wrapf(err, "write csv row account_id=%d", item.SubjectID)
	}
	return nil
}

func (w *Writer) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return crerr.Wrap(err, "flush csv")
	}
	return nil
}

// Export writes a header followed by items.
func Export(w io.Writer, spec observation.FieldSpec, items []observation.Observation) error {
	writer := NewWriter(w, spec)
	if err := writer.WriteHeader(); err != nil {
		return err
	}
	for _, item := range items {
		if err := writer.Write(item); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// EncodeRow renders one observation in spec column order.
func EncodeRow(spec observation.FieldSpec, item observation.Observation) ([]string, error) {
	if len(item.Values) != len(spec.Columns) {
		return nil, crerr.Newf("observation account_id=%d has %d values for %d columns", item.SubjectID, len(item.Values), len(spec.Columns))
	}

	row := make([]string, len(spec.Columns))
	for i, col := range spec.Columns {
		cell, err := formatCell(col, item.Values[i])
		if err != nil {
			return nil, crerr.Wrapf(err, "encode account_id=%d", item.SubjectID)
		}
		row[i] = cell
	}
	return row, nil
}

func formatCell(col observation.Column, value any) (string, error) {
	if value == nil {
		return "", nil
	}
	switch v := value.(type) {
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case string:
		return v, nil
	default:
		return "", crerr.Newf("column %s holds unsupported %T", col.Name, value)
	}
}

// ReadRecords decodes every data row into a flat record keyed by the header.
// Empty cells become null. Timestamp columns of spec are decoded according to
// mode; every other cell stays a string for FieldSpec coercion.
func ReadRecords(r io.Reader, spec observation.FieldSpec, mode TimestampMode) ([]*record.Object, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, crerr.Wrap(err, "read csv header")
	}
	header = trimHeader(header)

	timeColumns := make(map[string]struct{})
	for _, name := range spec.TimeColumns() {
		timeColumns[name] = struct{}{}
	}

	out := make([]*record.Object, 0, 64)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, crerr.Wrapf(err, "read csv line %d", line)
		}
		if len(row) != len(header) {
			return nil, crerr.Newf("csv line %d has %d cells, header has %d", line, len(row), len(header))
		}

		flat := record.NewObject()
		for i, name := range header {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				flat.Set(name, nil)
				continue
			}
			if _, ok := timeColumns[name]; !ok {
				flat.Set(name, cell)
				continue
			}
			flat.Set(name, parseTimestamp(cell, mode))
		}
		out = append(out, flat)
	}
	return out, nil
}

func trimHeader(header []string) []string {
	out := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		out[i] = name
	}
	return out
}

// parseTimestamp returns a UTC time, or epoch seconds as int64 for legacy
// epoch cells. Unparseable cells are returned unchanged so timestamp
// normalization rejects that record only.
func parseTimestamp(cell string, mode TimestampMode) any {
	if ts, err := time.Parse(time.RFC3339, cell); err == nil {
		return ts.UTC()
	}
	if mode != Legacy {
		return cell
	}
	if epoch, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return epoch
	}
	if ts, err := time.ParseInLocation(calendarLayout, cell, time.UTC); err == nil {
		return ts
	}
	return cell
}
