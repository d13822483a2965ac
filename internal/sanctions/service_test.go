package sanctions

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *Store) {
	t.Helper()
	store := newTestStore(t)
	return NewService(store), store
}

func TestIssueWarnAssignsSequence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.IssueWarn(ctx, "g1", "u1", "mod", "days", 7, "spam")
	if err != nil {
		t.Fatalf("issue warn: %v", err)
	}
	second, err := svc.IssueWarn(ctx, "g1", "u1", "mod", "days", 7, "spam again")
	if err != nil {
		t.Fatalf("issue second warn: %v", err)
	}
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Fatalf("expected sequences 1 and 2, got %d and %d", first.Sequence, second.Sequence)
	}
}

func TestIssueRejectsInvalidUnit(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.IssueMute(context.Background(), "g1", "u1", "mod", "fortnight", 1, "")
	if !errors.Is(err, ErrInvalidUnit) {
		t.Fatalf("expected ErrInvalidUnit, got %v", err)
	}
}

func TestIssueRejectsNonPositiveLength(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, quantity := range []int{0, -5} {
		_, err := svc.IssueTempBan(ctx, "g1", "u1", "mod", "hours", quantity, "")
		if !errors.Is(err, ErrExpiryInPast) {
			t.Fatalf("quantity %d: expected ErrExpiryInPast, got %v", quantity, err)
		}
	}
}

func TestIssueTempBanExpiry(t *testing.T) {
	svc, _ := newTestService(t)

	before := time.Now().UTC()
	rec, err := svc.IssueTempBan(context.Background(), "g1", "u1", "mod", "hours", 2, "raiding")
	if err != nil {
		t.Fatalf("issue temp ban: %v", err)
	}
	got := rec.ExpiresAt.Sub(before)
	if got < 2*time.Hour || got > 2*time.Hour+time.Minute {
		t.Fatalf("expected expiry about two hours out, got %v", got)
	}
	if rec.IssuerID != "mod" || rec.Reason != "raiding" {
		t.Fatalf("record fields not carried: %+v", rec)
	}
}

func TestUnmuteNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Unmute(context.Background(), "g1", "u1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMuted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if svc.Muted("g1", "u1") {
		t.Fatalf("expected not muted")
	}
	if _, err := svc.IssueMute(ctx, "g1", "u1", "mod", "minutes", 10, "noise"); err != nil {
		t.Fatalf("issue mute: %v", err)
	}
	if !svc.Muted("g1", "u1") {
		t.Fatalf("expected muted")
	}
}
