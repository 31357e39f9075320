package observation

import "context"

type InsertResult int

const (
	InsertResultInserted InsertResult = iota + 1
	InsertResultDuplicate
)

func (r InsertResult) String() string {
	switch r {
	case InsertResultInserted:
		return "inserted"
	case InsertResultDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Repository is the append-only history store. A duplicate key is reported
// through InsertResultDuplicate, never as an error; any returned error is a
// storage failure.
type Repository interface {
	Insert(ctx context.Context, item Observation) (InsertResult, error)
	ListOrdered(ctx context.Context) ([]Observation, error)
}
