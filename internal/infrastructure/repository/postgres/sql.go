package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/riskibarqy/wotstats/internal/domain/observation"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	return false
}

func isBindParameterMismatch(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "bind message supplies") && strings.Contains(msg, "requires")
}

func isUnnamedPreparedStatementMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unnamed prepared statement does not exist") ||
		(strings.Contains(msg, "prepared statement") && strings.Contains(msg, "26000"))
}

// scanTargets allocates one nullable destination per spec column.
func scanTargets(spec observation.FieldSpec) []any {
	out := make([]any, len(spec.Columns))
	for i, col := range spec.Columns {
		switch col.Type {
		case observation.ColumnInteger:
			out[i] = new(sql.NullInt64)
		case observation.ColumnFloat:
			out[i] = new(sql.NullFloat64)
		case observation.ColumnTimestamp:
			out[i] = new(sql.NullTime)
		default:
			out[i] = new(sql.NullString)
		}
	}
	return out
}

func scannedValues(targets []any) ([]any, error) {
	out := make([]any, len(targets))
	for i, target := range targets {
		switch v := target.(type) {
		case *sql.NullInt64:
			if v.Valid {
				out[i] = v.Int64
			}
		case *sql.NullFloat64:
			if v.Valid {
				out[i] = v.Float64
			}
		case *sql.NullTime:
			if v.Valid {
				out[i] = v.Time.UTC()
			}
		case *sql.NullString:
			if v.Valid {
				out[i] = v.String
			}
		default:
			return nil, fmt.Errorf("unsupported scan target %T", target)
		}
	}
	return out, nil
}

func bindValues(values []any) []any {
	out := make([]any, len(values))
	for i, value := range values {
		if t, ok := value.(time.Time); ok {
			out[i] = t.UTC()
			continue
		}
		out[i] = value
	}
	return out
}
