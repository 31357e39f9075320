// Package sqlite stores the observation history in a local SQLite file.
// Timestamps are stored as unix seconds.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/wotstats/internal/domain/observation"
	qb "github.com/riskibarqy/wotstats/internal/platform/querybuilder"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Open opens (and creates when missing) the database file at path. Extra
// options are passed to the otelsql instrumentation.
func Open(ctx context.Context, path string, opts ...otelsql.Option) (*sqlx.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	opts = append([]otelsql.Option{otelsql.WithDBSystem("sqlite")}, opts...)
	db, err := otelsqlx.Open(driverName, path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps :memory: databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return db, nil
}

type StatisticsRepository struct {
	db   *sqlx.DB
	spec observation.FieldSpec
}

func NewStatisticsRepository(db *sqlx.DB, spec observation.FieldSpec) *StatisticsRepository {
	return &StatisticsRepository{db: db, spec: spec}
}

// EnsureSchema creates the history table when it does not exist yet.
func (r *StatisticsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL(r.spec)); err != nil {
		return fmt.Errorf("create %s table: %w", r.spec.Table, err)
	}
	return nil
}

func (r *StatisticsRepository) Insert(ctx context.Context, item observation.Observation) (observation.InsertResult, error) {
	query, args, err := qb.InsertInto(r.spec.Table).
		Columns(r.spec.Names()...).
		Values(bindValues(item.Values)...).
		Suffix(fmt.Sprintf("ON CONFLICT (%s, %s) DO NOTHING", r.spec.SubjectColumn, r.spec.TimeColumn)).
		PlaceholderFormat(qb.Question).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert %s query: %w", r.spec.Table, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return observation.InsertResultDuplicate, nil
		}
		return 0, fmt.Errorf("insert %s account_id=%d: %w", r.spec.Table, item.SubjectID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read affected rows: %w", err)
	}
	if affected == 0 {
		return observation.InsertResultDuplicate, nil
	}
	return observation.InsertResultInserted, nil
}

func (r *StatisticsRepository) ListOrdered(ctx context.Context) ([]observation.Observation, error) {
	query, args, err := qb.Select(r.spec.Names()...).
		From(r.spec.Table).
		OrderBy(r.spec.TimeColumn, r.spec.SubjectColumn).
		PlaceholderFormat(qb.Question).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list %s query: %w", r.spec.Table, err)
	}

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.spec.Table, err)
	}
	defer rows.Close()

	out := make([]observation.Observation, 0, 64)
	for rows.Next() {
		targets := scanTargets(r.spec)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", r.spec.Table, err)
		}
		item, err := r.spec.Build(scannedValues(targets))
		if err != nil {
			return nil, fmt.Errorf("decode %s row: %w", r.spec.Table, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", r.spec.Table, err)
	}
	return out, nil
}

func createTableSQL(spec observation.FieldSpec) string {
	var buf strings.Builder
	buf.WriteString("CREATE TABLE IF NOT EXISTS ")
	buf.WriteString(spec.Table)
	buf.WriteString(" (")
	for i, col := range spec.Columns {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(col.Name)
		buf.WriteString(" ")
		buf.WriteString(columnSQLType(col.Type))
		if col.Name == spec.SubjectColumn || col.Name == spec.TimeColumn {
			buf.WriteString(" NOT NULL")
		}
	}
	fmt.Fprintf(&buf, ", PRIMARY KEY (%s, %s))", spec.SubjectColumn, spec.TimeColumn)
	return buf.String()
}

func columnSQLType(typ observation.ColumnType) string {
	switch typ {
	case observation.ColumnFloat:
		return "REAL"
	case observation.ColumnText:
		return "TEXT"
	default:
		return "INTEGER"
	}
}

func bindValues(values []any) []any {
	out := make([]any, len(values))
	for i, value := range values {
		if t, ok := value.(time.Time); ok {
			out[i] = t.Unix()
			continue
		}
		out[i] = value
	}
	return out
}

func scanTargets(spec observation.FieldSpec) []any {
	out := make([]any, len(spec.Columns))
	for i, col := range spec.Columns {
		switch col.Type {
		case observation.ColumnInteger, observation.ColumnTimestamp:
			out[i] = new(sql.NullInt64)
		case observation.ColumnFloat:
			out[i] = new(sql.NullFloat64)
		default:
			out[i] = new(sql.NullString)
		}
	}
	return out
}

// scannedValues leaves timestamp columns as unix seconds; FieldSpec.Build
// turns them back into UTC times.
func scannedValues(targets []any) []any {
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
		case *sql.NullString:
			if v.Valid {
				out[i] = v.String
			}
		}
	}
	return out
}
