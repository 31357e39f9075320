package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/wotstats/internal/domain/observation"
	"github.com/riskibarqy/wotstats/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/wotstats/internal/platform/logging"
	"github.com/riskibarqy/wotstats/internal/usecase"
)

func TestPrintReport(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	report := usecase.Report{
		Updated:  at,
		Accounts: 1,
		Panels: []usecase.Panel{{
			Plot: usecase.Plot{Name: "Victories"},
			Series: []usecase.Series{{
				AccountID: 42,
				Nickname:  "tanker",
				Points:    []usecase.Point{{At: at.Add(-time.Hour), Value: 50}, {At: at, Value: 60}},
				Current:   60,
				Delta:     10,
				HasDelta:  true,
				Max:       60,
			}},
		}},
	}

	var buf bytes.Buffer
	if err := printReport(&buf, report); err != nil {
		t.Fatalf("print report: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Updated: 2024-03-01T12:00:00Z", "Victories", "tanker", "+10.00", "60.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report:\n%s", want, out)
		}
	}
}

func TestPrintReport_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := printReport(&buf, usecase.Report{}); err != nil {
		t.Fatalf("print report: %v", err)
	}
	if !strings.Contains(buf.String(), "no observations") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	if got := formatDelta(usecase.Series{}); got != "-" {
		t.Fatalf("expected dash without delta, got %q", got)
	}
	if got := formatDelta(usecase.Series{Delta: -1.5, HasDelta: true}); got != "-1.50" {
		t.Fatalf("unexpected negative delta %q", got)
	}
}

func TestWriteReport_FromStore(t *testing.T) {
	t.Parallel()

	spec := observation.StatisticsSpec()
	values := make([]any, len(spec.Columns))
	idx, _ := spec.Index(observation.AccountIDColumn)
	values[idx] = int64(42)
	idx, _ = spec.Index(observation.UpdatedAtColumn)
	values[idx] = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	idx, _ = spec.Index(observation.NicknameColumn)
	values[idx] = "tanker"
	idx, _ = spec.Index("global_rating")
	values[idx] = int64(5100)
	item, err := spec.Build(values)
	if err != nil {
		t.Fatalf("build observation: %v", err)
	}

	var buf bytes.Buffer
	repo := memory.NewStatisticsRepository(item)
	if err := writeReport(context.Background(), repo, spec, 0, &buf, logging.NewNop()); err != nil {
		t.Fatalf("write report: %v", err)
	}
	for _, want := range []string{"Updated: 2024-03-01T12:00:00Z", "Personal Rating", "tanker", "5100.00"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in report:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := writeReport(context.Background(), memory.NewStatisticsRepository(), spec, 0, &buf, logging.NewNop()); err != nil {
		t.Fatalf("write empty report: %v", err)
	}
	if !strings.Contains(buf.String(), "no observations") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
