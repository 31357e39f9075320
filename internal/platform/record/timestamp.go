package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrMalformedTimestamp = errors.New("malformed timestamp")

type MalformedTimestampError struct {
	Field string
	Value any
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("%s: field %q holds %T %v, expected epoch seconds", ErrMalformedTimestamp, e.Field, e.Value, e.Value)
}

func (e *MalformedTimestampError) Is(target error) bool {
	return target == ErrMalformedTimestamp
}

// NormalizeTimestamps returns a copy of flat where every field named in keys
// holding epoch seconds is replaced by a UTC time. Missing and null fields are
// left untouched; values that already are times are only moved to UTC.
func NormalizeTimestamps(flat *Object, keys []string) (*Object, error) {
	out := flat.Clone()
	for _, key := range keys {
		value, ok := out.Get(key)
		if !ok || value == nil {
			continue
		}
		ts, err := epochToTime(value)
		if err != nil {
			return nil, &MalformedTimestampError{Field: key, Value: value}
		}
		out.Set(key, ts)
	}
	return out, nil
}

func epochToTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case int32:
		return time.Unix(int64(v), 0).UTC(), nil
	case uint64:
		if v > math.MaxInt64 {
			return time.Time{}, fmt.Errorf("epoch %d overflows", v)
		}
		return time.Unix(int64(v), 0).UTC(), nil
	case float64:
		sec, err := integralSeconds(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(sec, 0).UTC(), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Unix(n, 0).UTC(), nil
		}
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, err
		}
		return epochToTime(f)
	default:
		return time.Time{}, fmt.Errorf("unsupported epoch type %T", value)
	}
}

// integralSeconds accepts only whole, in-range epoch seconds.
func integralSeconds(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("epoch is not finite")
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("epoch %v has a fractional part", v)
	}
	if v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, fmt.Errorf("epoch %v overflows", v)
	}
	return int64(v), nil
}
