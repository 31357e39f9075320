package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/riskibarqy/wotstats/internal/domain/observation"
	"github.com/riskibarqy/wotstats/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

// Plot describes one chart panel. With AvgColumn set the plotted value is
// Column / AvgColumn, scaled by 100 when Percent is set.
type Plot struct {
	Name      string
	Column    string
	AvgColumn string
	Percent   bool
}

func DefaultPlots() []Plot {
	return []Plot{
		{Name: "Personal Rating", Column: "global_rating"},
		{Name: "Average Assisted Damage", Column: "avg_damage_assisted"},
		{Name: "Average Blocked Damage", Column: "avg_damage_blocked"},
		{Name: "Average Damage", Column: "damage_dealt", AvgColumn: "battles"},
		{Name: "Average Experience", Column: "xp", AvgColumn: "battles"},
		{Name: "Victories", Column: "wins", AvgColumn: "battles", Percent: true},
		{Name: "Average Assisted Damage / Radio", Column: "avg_damage_assisted_radio"},
		{Name: "Average Assisted Damage / Stun", Column: "stun_assisted_damage", AvgColumn: "battles_on_stunning_vehicles"},
		{Name: "Average Assisted Damage / Track", Column: "avg_damage_assisted_track"},
		{Name: "Trees cut", Column: "trees_cut", AvgColumn: "battles"},
	}
}

type Point struct {
	At    time.Time
	Value float64
}

// Series is the step series of one account on one panel.
type Series struct {
	AccountID int64
	Nickname  string
	Points    []Point
	Current   float64
	Delta     float64
	HasDelta  bool
	Max       float64
}

type Panel struct {
	Plot   Plot
	Series []Series
}

type Report struct {
	Updated  time.Time
	Since    time.Time
	Accounts int
	Panels   []Panel
}

type ReportService struct {
	repo   observation.Repository
	spec   observation.FieldSpec
	plots  []Plot
	logger *logging.Logger
	now    func() time.Time
}

func NewReportService(repo observation.Repository, spec observation.FieldSpec, plots []Plot, logger *logging.Logger) (*ReportService, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if len(plots) == 0 {
		plots = DefaultPlots()
	}
	for _, plot := range plots {
		if _, ok := spec.Index(plot.Column); !ok {
			return nil, fmt.Errorf("%w: plot %q uses unknown column %q", ErrInvalidInput, plot.Name, plot.Column)
		}
		if plot.AvgColumn == "" {
			continue
		}
		if _, ok := spec.Index(plot.AvgColumn); !ok {
			return nil, fmt.Errorf("%w: plot %q uses unknown column %q", ErrInvalidInput, plot.Name, plot.AvgColumn)
		}
	}

	return &ReportService{
		repo:   repo,
		spec:   spec,
		plots:  append([]Plot(nil), plots...),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Build computes every panel over the observations of the last window. A
// zero window covers the whole history.
func (s *ReportService) Build(ctx context.Context, window time.Duration) (_ Report, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReportService.Build",
		attribute.String("wotstats.report.window", window.String()),
	)
	defer func() { endSpan(span, err) }()

	if window < 0 {
		return Report{}, fmt.Errorf("%w: report window must not be negative", ErrInvalidInput)
	}

	items, err := s.repo.ListOrdered(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%w: list history: %w", ErrStorageFailure, err)
	}

	report := Report{}
	if window > 0 {
		report.Since = s.now().UTC().Add(-window)
	}

	byAccount := make(map[int64][]observation.Observation)
	accountIDs := make([]int64, 0, 8)
	for _, item := range items {
		if !report.Since.IsZero() && item.ObservedAt.Before(report.Since) {
			continue
		}
		if _, ok := byAccount[item.SubjectID]; !ok {
			accountIDs = append(accountIDs, item.SubjectID)
		}
		byAccount[item.SubjectID] = append(byAccount[item.SubjectID], item)
		if item.ObservedAt.After(report.Updated) {
			report.Updated = item.ObservedAt
		}
	}
	sort.Slice(accountIDs, func(i, j int) bool { return accountIDs[i] < accountIDs[j] })
	report.Accounts = len(accountIDs)

	report.Panels = make([]Panel, 0, len(s.plots))
	for _, plot := range s.plots {
		panel := Panel{Plot: plot, Series: make([]Series, 0, len(accountIDs))}
		for _, accountID := range accountIDs {
			series := s.series(plot, accountID, byAccount[accountID])
			if len(series.Points) == 0 {
				continue
			}
			panel.Series = append(panel.Series, series)
		}
		report.Panels = append(report.Panels, panel)
	}

	s.logger.DebugContext(ctx, "report built", "accounts", report.Accounts, "observations", len(items), "panels", len(report.Panels))
	return report, nil
}

func (s *ReportService) series(plot Plot, accountID int64, items []observation.Observation) Series {
	out := Series{AccountID: accountID, Points: make([]Point, 0, len(items))}
	for _, item := range items {
		if nickname := s.spec.Text(item, observation.NicknameColumn); nickname != "" {
			out.Nickname = nickname
		}
		value, ok := s.plotValue(plot, item)
		if !ok {
			continue
		}
		out.Points = append(out.Points, Point{At: item.ObservedAt, Value: value})
	}
	if len(out.Points) == 0 {
		return out
	}

	last := len(out.Points) - 1
	out.Current = out.Points[last].Value
	if last > 0 {
		out.Delta = out.Current - out.Points[last-1].Value
		out.HasDelta = true
	}
	out.Max = math.Inf(-1)
	for _, p := range out.Points {
		out.Max = math.Max(out.Max, p.Value)
	}
	return out
}

func (s *ReportService) plotValue(plot Plot, item observation.Observation) (float64, bool) {
	value, ok := s.spec.Float(item, plot.Column)
	if !ok {
		return 0, false
	}
	if plot.AvgColumn == "" {
		return value, true
	}
	divisor, ok := s.spec.Float(item, plot.AvgColumn)
	if !ok || divisor == 0 {
		return 0, false
	}
	value /= divisor
	if plot.Percent {
		value *= 100
	}
	return value, true
}
