package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/riskibarqy/wotstats/internal/domain/observation"
	"github.com/riskibarqy/wotstats/internal/infrastructure/repository/memory"
	observationmock "github.com/riskibarqy/wotstats/internal/mocks/domain/observation"
	"github.com/stretchr/testify/mock"
)

func statisticsObservation(t *testing.T, accountID int64, at time.Time, fields map[string]any) observation.Observation {
	t.Helper()

	spec := observation.StatisticsSpec()
	values := make([]any, len(spec.Columns))
	idx, _ := spec.Index(observation.AccountIDColumn)
	values[idx] = accountID
	idx, _ = spec.Index(observation.UpdatedAtColumn)
	values[idx] = at
	for name, value := range fields {
		i, ok := spec.Index(name)
		if !ok {
			t.Fatalf("unknown column %s", name)
		}
		values[i] = value
	}

	item, err := spec.Build(values)
	if err != nil {
		t.Fatalf("build observation: %v", err)
	}
	return item
}

func TestReportService_Build(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := memory.NewStatisticsRepository(
		statisticsObservation(t, 1, base, map[string]any{"nickname": "old", "wins": int64(5), "battles": int64(10), "global_rating": int64(4000)}),
		statisticsObservation(t, 1, base.Add(24*time.Hour), map[string]any{"nickname": "new", "wins": int64(12), "battles": int64(20), "global_rating": int64(4100)}),
		statisticsObservation(t, 1, base.Add(48*time.Hour), map[string]any{"wins": int64(0), "battles": int64(0), "global_rating": int64(4050)}),
		statisticsObservation(t, 2, base.Add(time.Hour), map[string]any{"nickname": "solo", "wins": int64(1), "battles": int64(2)}),
	)

	service, err := NewReportService(repo, observation.StatisticsSpec(), nil, nil)
	if err != nil {
		t.Fatalf("new report service: %v", err)
	}

	report, err := service.Build(context.Background(), 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if report.Accounts != 2 {
		t.Fatalf("expected 2 accounts, got %d", report.Accounts)
	}
	if !report.Updated.Equal(base.Add(48 * time.Hour)) {
		t.Fatalf("unexpected updated %v", report.Updated)
	}
	if len(report.Panels) != len(DefaultPlots()) {
		t.Fatalf("unexpected panel count %d", len(report.Panels))
	}

	var victories Panel
	for _, panel := range report.Panels {
		if panel.Plot.Name == "Victories" {
			victories = panel
		}
	}
	if len(victories.Series) != 2 {
		t.Fatalf("expected 2 victory series, got %d", len(victories.Series))
	}

	first := victories.Series[0]
	if first.AccountID != 1 || first.Nickname != "new" {
		t.Fatalf("expected latest nickname, got %+v", first)
	}
	if len(first.Points) != 2 {
		t.Fatalf("zero divisor must be skipped, got %d points", len(first.Points))
	}
	if first.Current != 60 || !first.HasDelta || first.Delta != 10 || first.Max != 60 {
		t.Fatalf("unexpected victory stats: %+v", first)
	}

	second := victories.Series[1]
	if second.HasDelta || second.Current != 50 {
		t.Fatalf("single point series must have no delta: %+v", second)
	}

	for _, panel := range report.Panels {
		if panel.Plot.Name != "Personal Rating" {
			continue
		}
		if len(panel.Series) != 1 {
			t.Fatalf("null rating points must be skipped, got %d series", len(panel.Series))
		}
		s := panel.Series[0]
		if s.Current != 4050 || s.Delta != -50 || s.Max != 4100 || math.IsInf(s.Max, 0) {
			t.Fatalf("unexpected rating series %+v", s)
		}
	}
}

func TestReportService_BuildWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	repo := memory.NewStatisticsRepository(
		statisticsObservation(t, 1, now.Add(-40*24*time.Hour), map[string]any{"global_rating": int64(1)}),
		statisticsObservation(t, 1, now.Add(-24*time.Hour), map[string]any{"global_rating": int64(2)}),
	)
	service, err := NewReportService(repo, observation.StatisticsSpec(), []Plot{{Name: "Personal Rating", Column: "global_rating"}}, nil)
	if err != nil {
		t.Fatalf("new report service: %v", err)
	}
	service.now = func() time.Time { return now }

	report, err := service.Build(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	points := report.Panels[0].Series[0].Points
	if len(points) != 1 || points[0].Value != 2 {
		t.Fatalf("expected only the point inside the window, got %+v", points)
	}
	if !report.Since.Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Fatalf("unexpected since %v", report.Since)
	}
}

func TestReportService_StorageFailure(t *testing.T) {
	t.Parallel()

	repo := observationmock.NewRepository(t)
	repo.On("ListOrdered", mock.Anything).Return(nil, errors.New("disk gone")).Once()

	service, err := NewReportService(repo, observation.StatisticsSpec(), nil, nil)
	if err != nil {
		t.Fatalf("new report service: %v", err)
	}
	if _, err := service.Build(context.Background(), 0); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}
}

func TestNewReportService_UnknownColumn(t *testing.T) {
	t.Parallel()

	_, err := NewReportService(memory.NewStatisticsRepository(), observation.StatisticsSpec(), []Plot{{Name: "x", Column: "nope"}}, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
