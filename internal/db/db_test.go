package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "nested", "jagprox.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestGoals(t *testing.T) {
	ctx := context.Background()
	goals := NewGoals(openTestDB(t))

	if _, err := goals.Get(ctx, "u1"); !errors.Is(err, ErrNoGoal) {
		t.Fatalf("Get on empty = %v", err)
	}

	set := time.UnixMilli(1_700_000_000_000)
	goal := Goal{PlayerUUID: "u1", Game: "bedwars", Stat: "fkdr", Name: "FKDR", Target: 5, Initial: 2.5, SetAt: set}
	if err := goals.Set(ctx, goal); err != nil {
		t.Fatal(err)
	}
	goal.Target = 6
	if err := goals.Set(ctx, goal); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := goals.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Target != 6 || got.Name != "FKDR" || !got.SetAt.Equal(set) {
		t.Errorf("goal = %+v", got)
	}

	if err := goals.Cancel(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := goals.Cancel(ctx, "u1"); !errors.Is(err, ErrNoGoal) {
		t.Errorf("second cancel = %v", err)
	}
}

func TestResultsSummary(t *testing.T) {
	ctx := context.Background()
	results := NewResults(openTestDB(t))

	now := time.Now()
	entries := []struct {
		game, outcome string
		at            time.Time
	}{
		{"bedwars", "win", now.Add(-time.Minute)},
		{"bedwars", "loss", now.Add(-2 * time.Minute)},
		{"bedwars", "win", now.Add(-3 * time.Minute)},
		{"duels", "loss", now.Add(-time.Minute)},
		{"skywars", "win", now.Add(-48 * time.Hour)},
	}
	for _, e := range entries {
		_, err := results.Record(ctx, GameResult{SessionID: "s", PlayerUUID: "u", PlayerName: "Alice", GameKey: e.game, Outcome: e.outcome, RecordedAt: e.at})
		if err != nil {
			t.Fatal(err)
		}
	}

	if _, err := results.Record(ctx, GameResult{GameKey: "bedwars", Outcome: "draw", RecordedAt: now}); err == nil {
		t.Errorf("invalid outcome accepted")
	}

	tally, err := results.Summary(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(tally) != 2 {
		t.Fatalf("tally = %+v", tally)
	}
	if tally[0].GameKey != "bedwars" || tally[0].Wins != 2 || tally[0].Losses != 1 {
		t.Errorf("bedwars tally = %+v", tally[0])
	}

	recent, err := results.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].RecordedAt.Before(recent[1].RecordedAt) {
		t.Errorf("recent not newest first: %+v", recent)
	}

	if err := results.StartGame(ctx, "s", "u", "bedwars", now); err != nil {
		t.Errorf("StartGame: %v", err)
	}
}

func TestStatCache(t *testing.T) {
	ctx := context.Background()
	cache := NewStatCache(openTestDB(t))

	old := time.Now().Add(-time.Hour)
	if err := cache.Put(ctx, "old", `{"a":1}`, old); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(ctx, "new", `{"b":2}`, time.Now()); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := cache.Get(ctx, "old", 5*time.Minute); ok {
		t.Errorf("stale entry served")
	}
	body, ok, err := cache.Get(ctx, "new", 5*time.Minute)
	if err != nil || !ok || body != `{"b":2}` {
		t.Errorf("Get(new) = %q %v %v", body, ok, err)
	}

	n, err := cache.Purge(ctx, time.Now().Add(-30*time.Minute))
	if err != nil || n != 1 {
		t.Errorf("Purge = %d, %v", n, err)
	}
}

func TestResultsPrune(t *testing.T) {
	ctx := context.Background()
	results := NewResults(openTestDB(t))

	now := time.Now()
	for _, at := range []time.Time{now.Add(-100 * 24 * time.Hour), now.Add(-95 * 24 * time.Hour), now} {
		if _, err := results.Record(ctx, GameResult{GameKey: "bedwars", Outcome: "win", RecordedAt: at}); err != nil {
			t.Fatal(err)
		}
		if err := results.StartGame(ctx, "s", "u", "bedwars", at); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := results.Prune(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	left, err := results.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 {
		t.Errorf("left = %+v", left)
	}
}
