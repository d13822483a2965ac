package storage

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestBucketRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := map[string]map[string]string{
		"g1": {"u1": "value"},
	}
	if err := store.SaveBucket(ctx, BucketTempBans, in); err != nil {
		t.Fatalf("save bucket: %v", err)
	}

	out := map[string]map[string]string{}
	if err := store.LoadBucket(ctx, BucketTempBans, &out); err != nil {
		t.Fatalf("load bucket: %v", err)
	}
	if out["g1"]["u1"] != "value" {
		t.Fatalf("expected round-tripped value, got %+v", out)
	}
}

func TestBucketOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveBucket(ctx, BucketMutes, map[string]int{"a": 1}); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveBucket(ctx, BucketMutes, map[string]int{"b": 2}); err != nil {
		t.Fatalf("save second: %v", err)
	}

	out := map[string]int{}
	if err := store.LoadBucket(ctx, BucketMutes, &out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, stale := out["a"]; stale || out["b"] != 2 {
		t.Fatalf("expected full replacement, got %+v", out)
	}
}

func TestAbsentBucketLeavesValueEmpty(t *testing.T) {
	store := newTestStore(t)

	out := map[string]string{"seed": "untouched"}
	if err := store.LoadBucket(context.Background(), "missing", &out); err != nil {
		t.Fatalf("load absent bucket: %v", err)
	}
	if out["seed"] != "untouched" {
		t.Fatalf("absent bucket must not modify the target, got %+v", out)
	}
}

func TestGuildSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get default settings: %v", err)
	}
	if got.MuteRole != "" || got.LogEnabled {
		t.Fatalf("expected zero settings for unknown guild, got %+v", got)
	}

	want := GuildSettings{MuteRole: "r1", LogEnabled: true, LogChannel: "c1"}
	if err := store.SetGuildSettings(ctx, "g1", want); err != nil {
		t.Fatalf("set settings: %v", err)
	}
	got, err = store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	// A second guild's settings must not clobber the first.
	if err := store.SetGuildSettings(ctx, "g2", GuildSettings{MuteRole: "r2"}); err != nil {
		t.Fatalf("set second guild: %v", err)
	}
	got, err = store.GetGuildSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("reget settings: %v", err)
	}
	if got != want {
		t.Fatalf("expected g1 settings preserved, got %+v", got)
	}
}
