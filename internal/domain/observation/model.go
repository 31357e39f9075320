package observation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidRecord = errors.New("invalid observation record")

type ColumnType int

const (
	ColumnInteger ColumnType = iota + 1
	ColumnFloat
	ColumnTimestamp
	ColumnText
)

func (t ColumnType) String() string {
	switch t {
	case ColumnInteger:
		return "integer"
	case ColumnFloat:
		return "float"
	case ColumnTimestamp:
		return "timestamp"
	case ColumnText:
		return "text"
	default:
		return "unknown"
	}
}

type Column struct {
	Name string
	Type ColumnType
}

// FieldSpec is the ordered column list of the history table. Column order is
// the tuple order used for insertion.
type FieldSpec struct {
	Table         string
	Columns       []Column
	SubjectColumn string
	TimeColumn    string

	index map[string]int
}

func NewFieldSpec(table, subjectColumn, timeColumn string, columns []Column) (FieldSpec, error) {
	spec := FieldSpec{
		Table:         strings.TrimSpace(table),
		Columns:       append([]Column(nil), columns...),
		SubjectColumn: subjectColumn,
		TimeColumn:    timeColumn,
		index:         make(map[string]int, len(columns)),
	}
	if spec.Table == "" {
		return FieldSpec{}, fmt.Errorf("field spec table is required")
	}
	for i, col := range spec.Columns {
		if strings.TrimSpace(col.Name) == "" {
			return FieldSpec{}, fmt.Errorf("column %d has empty name", i)
		}
		if _, dup := spec.index[col.Name]; dup {
			return FieldSpec{}, fmt.Errorf("duplicate column %q", col.Name)
		}
		spec.index[col.Name] = i
	}

	if idx, ok := spec.index[subjectColumn]; !ok || spec.Columns[idx].Type != ColumnInteger {
		return FieldSpec{}, fmt.Errorf("subject column %q must be an integer column", subjectColumn)
	}
	if idx, ok := spec.index[timeColumn]; !ok || spec.Columns[idx].Type != ColumnTimestamp {
		return FieldSpec{}, fmt.Errorf("time column %q must be a timestamp column", timeColumn)
	}

	return spec, nil
}

func (s FieldSpec) Names() []string {
	out := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		out = append(out, col.Name)
	}
	return out
}

func (s FieldSpec) Index(name string) (int, bool) {
	idx, ok := s.index[name]
	return idx, ok
}

// TimeColumns lists the timestamp columns in spec order.
func (s FieldSpec) TimeColumns() []string {
	out := make([]string, 0, 4)
	for _, col := range s.Columns {
		if col.Type == ColumnTimestamp {
			out = append(out, col.Name)
		}
	}
	return out
}

// Build coerces a projected tuple to the column types and extracts the key.
func (s FieldSpec) Build(values []any) (Observation, error) {
	if len(values) != len(s.Columns) {
		return Observation{}, fmt.Errorf("%w: got %d values for %d columns", ErrInvalidRecord, len(values), len(s.Columns))
	}

	out := make([]any, len(values))
	for i, col := range s.Columns {
		coerced, err := Coerce(col.Type, values[i])
		if err != nil {
			return Observation{}, fmt.Errorf("%w: column %s: %v", ErrInvalidRecord, col.Name, err)
		}
		out[i] = coerced
	}

	subjectID, _ := out[s.index[s.SubjectColumn]].(int64)
	observedAt, _ := out[s.index[s.TimeColumn]].(time.Time)
	if subjectID <= 0 {
		return Observation{}, fmt.Errorf("%w: %s is required", ErrInvalidRecord, s.SubjectColumn)
	}
	if observedAt.IsZero() {
		return Observation{}, fmt.Errorf("%w: %s is required", ErrInvalidRecord, s.TimeColumn)
	}

	return Observation{
		SubjectID:  subjectID,
		ObservedAt: observedAt,
		Values:     out,
	}, nil
}

// Value returns the value of the named column of obs.
func (s FieldSpec) Value(obs Observation, name string) (any, bool) {
	idx, ok := s.index[name]
	if !ok || idx >= len(obs.Values) {
		return nil, false
	}
	return obs.Values[idx], true
}

// Float returns the named numeric column as float64.
func (s FieldSpec) Float(obs Observation, name string) (float64, bool) {
	value, ok := s.Value(obs, name)
	if !ok || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func (s FieldSpec) Text(obs Observation, name string) string {
	value, _ := s.Value(obs, name)
	text, _ := value.(string)
	return text
}

// Observation is one persisted snapshot. Values follow FieldSpec order and
// include the key columns.
type Observation struct {
	SubjectID  int64
	ObservedAt time.Time
	Values     []any
}

type Key struct {
	SubjectID  int64
	ObservedAt int64
}

func (o Observation) Key() Key {
	return Key{SubjectID: o.SubjectID, ObservedAt: o.ObservedAt.UnixNano()}
}

// Coerce converts a decoded value to the Go type used for a column type.
// Nil stays nil.
func Coerce(typ ColumnType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch typ {
	case ColumnInteger:
		return toInt64(value)
	case ColumnFloat:
		return toFloat64(value)
	case ColumnTimestamp:
		return toTime(value)
	case ColumnText:
		return toText(value)
	default:
		return nil, fmt.Errorf("unknown column type %d", typ)
	}
}

func toInt64(value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) || v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return nil, fmt.Errorf("value %v is not an integer", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case []byte:
		return parseIntText(string(v))
	case string:
		return parseIntText(v)
	default:
		return nil, fmt.Errorf("cannot use %T as integer", value)
	}
}

// parseIntText also accepts integral decimals such as "1234.0".
func parseIntText(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("value %q is not an integer", raw)
	}
	return toInt64(f)
}

func toFloat64(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return nil, fmt.Errorf("cannot use %T as float", value)
	}
}

func toTime(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return nil, fmt.Errorf("cannot use %T as timestamp", value)
	}
}

func toText(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return nil, fmt.Errorf("cannot use %T as text", value)
	}
}
