package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/wotstats/internal/domain/observation"
	qb "github.com/riskibarqy/wotstats/internal/platform/querybuilder"
)

// execQueryer is the part of *sqlx.DB the repository uses.
type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

type StatisticsRepository struct {
	db   execQueryer
	spec observation.FieldSpec
}

func NewStatisticsRepository(db *sqlx.DB, spec observation.FieldSpec) *StatisticsRepository {
	return &StatisticsRepository{db: db, spec: spec}
}

func (r *StatisticsRepository) Insert(ctx context.Context, item observation.Observation) (observation.InsertResult, error) {
	query, args, err := qb.InsertInto(r.spec.Table).
		Columns(r.spec.Names()...).
		Values(bindValues(item.Values)...).
		Suffix(fmt.Sprintf("ON CONFLICT (%s, %s) DO NOTHING", r.spec.SubjectColumn, r.spec.TimeColumn)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert %s query: %w", r.spec.Table, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil && (isBindParameterMismatch(err) || isUnnamedPreparedStatementMissing(err)) {
		res, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		if isUniqueViolation(err) {
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
		values, err := scannedValues(targets)
		if err != nil {
			return nil, err
		}
		item, err := r.spec.Build(values)
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
