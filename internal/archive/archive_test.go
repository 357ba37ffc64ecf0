package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveRun_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	started := time.UnixMilli(1_700_000_000_123)

	id, err := db.SaveRun(ctx, Run{
		StartedAt:   started,
		Seed:        42,
		Ticks:       3600,
		Agents:      300,
		Width:       640,
		Height:      360,
		Arrived:     120,
		Unreachable: 3,
		CacheHits:   80,
		FreshPlans:  20,
		PeakLeaders: 17,
		HitRate:     0.8,
		Events:      map[string]int{"role/promote": 40, "path/cache_hit": 80},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == uuid.Nil {
		t.Fatal("expected a generated run id")
	}

	got, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != id || got.Seed != 42 || got.Arrived != 120 || got.PeakLeaders != 17 {
		t.Fatalf("unexpected run %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("start time %v, want %v", got.StartedAt, started)
	}
	if got.HitRate != 0.8 {
		t.Fatalf("hit rate %v", got.HitRate)
	}
	if got.Events["role/promote"] != 40 || got.Events["path/cache_hit"] != 80 || len(got.Events) != 2 {
		t.Fatalf("unexpected event counts %v", got.Events)
	}
}

func TestSaveRun_KeepsExplicitID(t *testing.T) {
	db := openTestDB(t)
	want := uuid.New()
	id, err := db.SaveRun(context.Background(), Run{ID: want, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if id != want {
		t.Fatalf("expected id %s, got %s", want, id)
	}
	if _, err := db.SaveRun(context.Background(), Run{ID: want}); err == nil {
		t.Fatal("a duplicate id should be rejected")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetRun(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	for i := range 5 {
		if _, err := db.SaveRun(ctx, Run{Seed: int64(i), StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := db.ListRuns(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i, want := range []int64{4, 3, 2} {
		if runs[i].Seed != want {
			t.Fatalf("run %d has seed %d, want %d", i, runs[i].Seed, want)
		}
	}
}

func TestOpen_Reopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	id, err := db.SaveRun(context.Background(), Run{Seed: 9})
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if r, err := db.GetRun(context.Background(), id); err != nil || r.Seed != 9 {
		t.Fatalf("run should survive a reopen: %+v %v", r, err)
	}
}
