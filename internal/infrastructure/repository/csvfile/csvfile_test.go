package csvfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/wotstats/internal/domain/observation"
	"github.com/riskibarqy/wotstats/internal/platform/record"
)

func testSpec(t *testing.T) observation.FieldSpec {
	t.Helper()

	spec, err := observation.NewFieldSpec("statistics", "account_id", "updated_at", []observation.Column{
		{Name: "account_id", Type: observation.ColumnInteger},
		{Name: "battles", Type: observation.ColumnInteger},
		{Name: "tanking_factor", Type: observation.ColumnFloat},
		{Name: "updated_at", Type: observation.ColumnTimestamp},
		{Name: "nickname", Type: observation.ColumnText},
		{Name: "logout_at", Type: observation.ColumnTimestamp},
	})
	if err != nil {
		t.Fatalf("field spec: %v", err)
	}
	return spec
}

func mustBuild(t *testing.T, spec observation.FieldSpec, values ...any) observation.Observation {
	t.Helper()

	item, err := spec.Build(values)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return item
}

func TestExport_CanonicalFormat(t *testing.T) {
	t.Parallel()

	spec := testSpec(t)
	at := time.Unix(1600000000, 0).UTC()
	items := []observation.Observation{
		mustBuild(t, spec, int64(42), int64(10), 0.25, at, "tanker", nil),
	}

	var buf bytes.Buffer
	if err := Export(&buf, spec, items); err != nil {
		t.Fatalf("export: %v", err)
	}

	want := "account_id,battles,tanking_factor,updated_at,nickname,logout_at\n" +
		"42,10,0.25,2020-09-13T12:26:40Z,tanker,\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}
}

func TestReadRecords_LegacyVariants(t *testing.T) {
	t.Parallel()

	spec := testSpec(t)
	input := strings.Join([]string{
		"nickname,account_id,updated_at,battles",
		"a,1,1600000000,5",
		"b,2,2020-09-13 12:26:40,6",
		"c,3,2020-09-13T12:26:40Z,7",
		"d,4,yesterday,8",
	}, "\n")

	flats, err := ReadRecords(strings.NewReader(input), spec, Legacy)
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	if len(flats) != 4 {
		t.Fatalf("expected 4 records, got %d", len(flats))
	}

	want := time.Unix(1600000000, 0).UTC()
	for i := 0; i < 3; i++ {
		normalized, err := record.NormalizeTimestamps(flats[i], spec.TimeColumns())
		if err != nil {
			t.Fatalf("row %d normalize: %v", i, err)
		}
		got, _ := normalized.Get("updated_at")
		if ts, ok := got.(time.Time); !ok || !ts.Equal(want) {
			t.Fatalf("row %d: expected %v, got %v", i, want, got)
		}
	}

	if _, err := record.NormalizeTimestamps(flats[3], spec.TimeColumns()); !errors.Is(err, record.ErrMalformedTimestamp) {
		t.Fatalf("expected malformed timestamp for row 4, got %v", err)
	}
}

func TestReadRecords_CanonicalRejectsEpoch(t *testing.T) {
	t.Parallel()

	spec := testSpec(t)
	flats, err := ReadRecords(strings.NewReader("account_id,updated_at\n1,1600000000\n"), spec, Canonical)
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	value, _ := flats[0].Get("updated_at")
	if _, ok := value.(string); !ok {
		t.Fatalf("expected epoch cell to stay raw in canonical mode, got %T", value)
	}
}

func TestReadRecords_RowWidthMismatch(t *testing.T) {
	t.Parallel()

	_, err := ReadRecords(strings.NewReader("account_id,updated_at\n1\n"), testSpec(t), Legacy)
	if err == nil {
		t.Fatalf("expected error for short row")
	}
}

func TestStatisticsRepository_AppendDedupAndOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	spec := testSpec(t)
	path := filepath.Join(t.TempDir(), "history", "statistics.csv")

	repo, err := NewStatisticsRepository(path, spec)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	base := time.Unix(1600000000, 0).UTC()
	later := mustBuild(t, spec, int64(1), int64(2), nil, base.Add(time.Hour), "a", nil)
	earlier := mustBuild(t, spec, int64(2), int64(1), 1.5, base, "b", base.Add(time.Minute))

	for _, item := range []observation.Observation{later, earlier} {
		result, err := repo.Insert(ctx, item)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if result != observation.InsertResultInserted {
			t.Fatalf("expected inserted, got %s", result)
		}
	}

	reopened, err := NewStatisticsRepository(path, spec)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	result, err := reopened.Insert(ctx, later)
	if err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}
	if result != observation.InsertResultDuplicate {
		t.Fatalf("expected duplicate after reopen, got %s", result)
	}

	items, err := reopened.ListOrdered(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(items))
	}
	if items[0].SubjectID != 2 || items[1].SubjectID != 1 {
		t.Fatalf("expected rows ordered by updated_at, got %d then %d", items[0].SubjectID, items[1].SubjectID)
	}
	if tf, ok := spec.Float(items[0], "tanking_factor"); !ok || tf != 1.5 {
		t.Fatalf("unexpected tanking_factor: %v %t", tf, ok)
	}
	if v, _ := spec.Value(items[1], "tanking_factor"); v != nil {
		t.Fatalf("expected null tanking_factor, got %v", v)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.Count(string(raw), "account_id,") != 1 {
		t.Fatalf("expected a single header row:\n%s", raw)
	}
}

func TestStatisticsRepository_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	repo, err := NewStatisticsRepository(filepath.Join(t.TempDir(), "none.csv"), testSpec(t))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	items, err := repo.ListOrdered(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty history, got %d", len(items))
	}
}
