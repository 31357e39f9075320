package record

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func nested() *Object {
	return NewObject(
		Field{Key: "a", Value: NewObject(
			Field{Key: "b", Value: int64(1)},
			Field{Key: "c", Value: int64(2)},
		)},
	)
}

func TestFlatten_PathMode(t *testing.T) {
	t.Parallel()

	got, err := Flatten(nested(), DefaultFlattenOptions())
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	want := []Field{{Key: "a.b", Value: int64(1)}, {Key: "a.c", Value: int64(2)}}
	if !reflect.DeepEqual(got.Fields(), want) {
		t.Fatalf("unexpected fields: got=%+v want=%+v", got.Fields(), want)
	}
}

func TestFlatten_StripMode(t *testing.T) {
	t.Parallel()

	opts := DefaultFlattenOptions()
	opts.Strip = true
	got, err := Flatten(nested(), opts)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	want := []Field{{Key: "b", Value: int64(1)}, {Key: "c", Value: int64(2)}}
	if !reflect.DeepEqual(got.Fields(), want) {
		t.Fatalf("unexpected fields: got=%+v want=%+v", got.Fields(), want)
	}
}

func TestFlatten_CustomSeparatorAndDepth(t *testing.T) {
	t.Parallel()

	src := NewObject(
		Field{Key: "nickname", Value: "tanker"},
		Field{Key: "statistics", Value: NewObject(
			Field{Key: "trees_cut", Value: int64(40)},
			Field{Key: "random", Value: NewObject(
				Field{Key: "wins", Value: int64(7)},
			)},
		)},
		Field{Key: "logout_at", Value: int64(1600000000)},
	)

	got, err := Flatten(src, FlattenOptions{Separator: "_"})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	wantKeys := []string{"nickname", "statistics_trees_cut", "statistics_random_wins", "logout_at"}
	if !reflect.DeepEqual(got.Keys(), wantKeys) {
		t.Fatalf("unexpected key order: got=%v want=%v", got.Keys(), wantKeys)
	}
}

func TestFlatten_Idempotent(t *testing.T) {
	t.Parallel()

	for _, strip := range []bool{false, true} {
		opts := DefaultFlattenOptions()
		opts.Strip = strip

		once, err := Flatten(nested(), opts)
		if err != nil {
			t.Fatalf("flatten once: %v", err)
		}
		twice, err := Flatten(once, opts)
		if err != nil {
			t.Fatalf("flatten twice: %v", err)
		}
		if !reflect.DeepEqual(once.Fields(), twice.Fields()) {
			t.Fatalf("flatten is not idempotent (strip=%t): once=%+v twice=%+v", strip, once.Fields(), twice.Fields())
		}
	}
}

func TestFlatten_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	src := nested()
	before := src.Fields()
	if _, err := Flatten(src, DefaultFlattenOptions()); err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if !reflect.DeepEqual(src.Fields(), before) {
		t.Fatalf("input was mutated")
	}
}

func TestFlatten_OpaqueValuesCopiedThrough(t *testing.T) {
	t.Parallel()

	list := []any{int64(1), int64(2)}
	src := NewObject(Field{Key: "a", Value: NewObject(Field{Key: "list", Value: list})})

	got, err := Flatten(src, DefaultFlattenOptions())
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	value, ok := got.Get("a.list")
	if !ok || !reflect.DeepEqual(value, list) {
		t.Fatalf("expected opaque list copied through, got=%v", value)
	}
}

func collidingPayload() *Object {
	return NewObject(
		Field{Key: "all", Value: NewObject(Field{Key: "wins", Value: int64(10)})},
		Field{Key: "random", Value: NewObject(Field{Key: "wins", Value: int64(3)})},
		Field{Key: "nickname", Value: "tanker"},
	)
}

func TestFlatten_StripCollisionPolicies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		policy   CollisionPolicy
		wantWins int64
	}{
		{policy: CollisionLastWins, wantWins: 3},
		{policy: CollisionFirstWins, wantWins: 10},
	}

	for _, tc := range cases {
		got, err := Flatten(collidingPayload(), FlattenOptions{Separator: ".", Strip: true, Collision: tc.policy})
		if err != nil {
			t.Fatalf("flatten policy=%s: %v", tc.policy, err)
		}
		wins, _ := got.Get("wins")
		if wins != tc.wantWins {
			t.Fatalf("policy=%s: expected wins=%d, got=%v", tc.policy, tc.wantWins, wins)
		}
		if keys := got.Keys(); !reflect.DeepEqual(keys, []string{"wins", "nickname"}) {
			t.Fatalf("policy=%s: unexpected keys %v", tc.policy, keys)
		}
	}
}

func TestFlatten_StripCollisionFail(t *testing.T) {
	t.Parallel()

	_, err := Flatten(collidingPayload(), FlattenOptions{Strip: true, Collision: CollisionFail})
	if !errors.Is(err, ErrKeyCollision) {
		t.Fatalf("expected ErrKeyCollision, got %v", err)
	}
}

func TestParseCollisionPolicy(t *testing.T) {
	t.Parallel()

	if policy, err := ParseCollisionPolicy(""); err != nil || policy != CollisionLastWins {
		t.Fatalf("expected default last-wins, got=%s err=%v", policy, err)
	}
	if policy, err := ParseCollisionPolicy(" FAIL "); err != nil || policy != CollisionFail {
		t.Fatalf("expected fail policy, got=%s err=%v", policy, err)
	}
	if _, err := ParseCollisionPolicy("random"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestNormalizeTimestamps(t *testing.T) {
	t.Parallel()

	flat := NewObject(
		Field{Key: "updated_at", Value: int64(1600000000)},
		Field{Key: "logout_at", Value: nil},
		Field{Key: "battles", Value: int64(12)},
	)

	got, err := NormalizeTimestamps(flat, []string{"updated_at", "logout_at", "last_battle_time"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	updatedAt, _ := got.Get("updated_at")
	want := time.Date(2020, 9, 13, 12, 26, 40, 0, time.UTC)
	ts, ok := updatedAt.(time.Time)
	if !ok || !ts.Equal(want) || ts.Location() != time.UTC {
		t.Fatalf("unexpected updated_at: %v", updatedAt)
	}
	if got.Has("last_battle_time") {
		t.Fatalf("missing field must not be created")
	}
	if v, _ := got.Get("logout_at"); v != nil {
		t.Fatalf("null field must stay null, got %v", v)
	}
	if v, _ := flat.Get("updated_at"); v != int64(1600000000) {
		t.Fatalf("input was mutated: %v", v)
	}
}

func TestNormalizeTimestamps_Malformed(t *testing.T) {
	t.Parallel()

	flat := NewObject(Field{Key: "updated_at", Value: "yesterday"})

	_, err := NormalizeTimestamps(flat, []string{"updated_at"})
	if !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("expected ErrMalformedTimestamp, got %v", err)
	}
	var malformed *MalformedTimestampError
	if !errors.As(err, &malformed) || malformed.Field != "updated_at" {
		t.Fatalf("expected error naming updated_at, got %v", err)
	}
}

func TestNormalizeTimestamps_RejectsNonIntegralEpochs(t *testing.T) {
	t.Parallel()

	values := []any{
		1600000000.2,
		json.Number("1600000000.7"),
		1e19,
		-1e30,
	}
	for _, value := range values {
		flat := NewObject(Field{Key: "updated_at", Value: value})
		if _, err := NormalizeTimestamps(flat, []string{"updated_at"}); !errors.Is(err, ErrMalformedTimestamp) {
			t.Fatalf("%v: expected ErrMalformedTimestamp, got %v", value, err)
		}
	}

	flat := NewObject(Field{Key: "updated_at", Value: 1600000000.0})
	got, err := NormalizeTimestamps(flat, []string{"updated_at"})
	if err != nil {
		t.Fatalf("whole float epoch: %v", err)
	}
	if v, _ := got.Get("updated_at"); !v.(time.Time).Equal(time.Unix(1600000000, 0)) {
		t.Fatalf("unexpected updated_at: %v", v)
	}
}

func TestProject(t *testing.T) {
	t.Parallel()

	flat := NewObject(
		Field{Key: "wins", Value: int64(5)},
		Field{Key: "extra", Value: "dropped"},
		Field{Key: "account_id", Value: int64(42)},
	)
	names := []string{"account_id", "nickname", "wins"}

	got := Project(flat, names)
	if len(got) != len(names) {
		t.Fatalf("expected %d values, got %d", len(names), len(got))
	}
	want := []any{int64(42), nil, int64(5)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected projection: got=%v want=%v", got, want)
	}
}

func TestParseObject_KeepsOrderAndTypes(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"z": 1, "a": {"y": 2.5, "b": null, "list": [1, 2]}, "name": "x", "ok": true}`)

	obj, err := ParseObject(raw)
	if err != nil {
		t.Fatalf("parse object: %v", err)
	}
	if keys := obj.Keys(); !reflect.DeepEqual(keys, []string{"z", "a", "name", "ok"}) {
		t.Fatalf("unexpected key order: %v", keys)
	}
	if v, _ := obj.Get("z"); v != int64(1) {
		t.Fatalf("expected int64 1, got %T %v", v, v)
	}

	flat, err := Flatten(obj, DefaultFlattenOptions())
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if keys := flat.Keys(); !reflect.DeepEqual(keys, []string{"z", "a.y", "a.b", "a.list", "name", "ok"}) {
		t.Fatalf("unexpected flattened keys: %v", keys)
	}
	if v, _ := flat.Get("a.y"); v != 2.5 {
		t.Fatalf("expected float 2.5, got %T %v", v, v)
	}
	if v, ok := flat.Get("a.b"); !ok || v != nil {
		t.Fatalf("expected explicit null, got %v ok=%t", v, ok)
	}
}

func TestParseObject_RejectsNonObject(t *testing.T) {
	t.Parallel()

	if _, err := ParseObject([]byte(`[1,2]`)); err == nil {
		t.Fatalf("expected error for json array")
	}
}
