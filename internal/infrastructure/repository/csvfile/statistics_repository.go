package csvfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/wotstats/internal/domain/observation"
)

// StatisticsRepository is an append-only canonical CSV file. The key index is
// loaded lazily on first use and kept in memory afterwards.
type StatisticsRepository struct {
	path string
	spec observation.FieldSpec

	mu     sync.Mutex
	keys   map[observation.Key]struct{}
	loaded bool
}

func NewStatisticsRepository(path string, spec observation.FieldSpec) (*StatisticsRepository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, crerr.New("csv history path is required")
	}
	return &StatisticsRepository{path: path, spec: spec}, nil
}

func (r *StatisticsRepository) Insert(ctx context.Context, item observation.Observation) (observation.InsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadKeys(ctx); err != nil {
		return 0, err
	}
	key := item.Key()
	if _, ok := r.keys[key]; ok {
		return observation.InsertResultDuplicate, nil
	}

	if err := r.appendRow(item); err != nil {
		return 0, err
	}
	r.keys[key] = struct{}{}
	return observation.InsertResultInserted, nil
}

func (r *StatisticsRepository) ListOrdered(ctx context.Context) ([]observation.Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.readAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].ObservedAt.Equal(items[j].ObservedAt) {
			return items[i].ObservedAt.Before(items[j].ObservedAt)
		}
		return items[i].SubjectID < items[j].SubjectID
	})
	return items, nil
}

func (r *StatisticsRepository) loadKeys(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	items, err := r.readAll(ctx)
	if err != nil {
		return err
	}
	r.keys = make(map[observation.Key]struct{}, len(items))
	for _, item := range items {
		r.keys[item.Key()] = struct{}{}
	}
	r.loaded = true
	return nil
}

func (r *StatisticsRepository) readAll(ctx context.Context) ([]observation.Observation, error) {
	file, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, crerr.Wrapf(err, "open csv history %s", r.path)
	}
	defer file.Close()

	flats, err := ReadRecords(file, r.spec, Canonical)
	if err != nil {
		return nil, crerr.Wrapf(err, "read csv history %s", r.path)
	}

	names := r.spec.Names()
	out := make([]observation.Observation, 0, len(flats))
	for idx, flat := range flats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := make([]any, len(names))
		for i, name := range names {
			values[i], _ = flat.Get(name)
		}
		item, err := r.spec.Build(values)
		if err != nil {
			return nil, crerr.Wrapf(err, "decode csv history %s row %d", r.path, idx+1)
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *StatisticsRepository) appendRow(item observation.Observation) error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return crerr.Wrapf(err, "create csv history directory %s", dir)
		}
	}

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return crerr.Wrapf(err, "open csv history %s", r.path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return crerr.Wrapf(err, "stat csv history %s", r.path)
	}

	writer := NewWriter(file, r.spec)
	if info.Size() == 0 {
		if err := writer.WriteHeader(); err != nil {
			return err
		}
	}
	if err := writer.Write(item); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return crerr.Wrapf(err, "sync csv history %s", r.path)
	}
	return nil
}
