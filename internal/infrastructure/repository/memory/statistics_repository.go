package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/wotstats/internal/domain/observation"
)

// StatisticsRepository keeps the history in process memory.
type StatisticsRepository struct {
	mu    sync.RWMutex
	items []observation.Observation
	keys  map[observation.Key]struct{}
}

func NewStatisticsRepository(items ...observation.Observation) *StatisticsRepository {
	repo := &StatisticsRepository{keys: make(map[observation.Key]struct{}, len(items))}
	for _, item := range items {
		_, _ = repo.Insert(context.Background(), item)
	}
	return repo
}

func (r *StatisticsRepository) Insert(_ context.Context, item observation.Observation) (observation.InsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := item.Key()
	if _, ok := r.keys[key]; ok {
		return observation.InsertResultDuplicate, nil
	}
	r.keys[key] = struct{}{}
	item.Values = append([]any(nil), item.Values...)
	r.items = append(r.items, item)

	return observation.InsertResultInserted, nil
}

func (r *StatisticsRepository) ListOrdered(_ context.Context) ([]observation.Observation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]observation.Observation, 0, len(r.items))
	out = append(out, r.items...)
	sortObservations(out)

	return out, nil
}

func (r *StatisticsRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func sortObservations(items []observation.Observation) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].ObservedAt.Equal(items[j].ObservedAt) {
			return items[i].ObservedAt.Before(items[j].ObservedAt)
		}
		return items[i].SubjectID < items[j].SubjectID
	})
}
