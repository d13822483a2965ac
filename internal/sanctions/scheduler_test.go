package sanctions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakePlatform struct {
	mu          sync.Mutex
	unbans      int
	roleRemoves int
	dms         int

	unbanErr      error
	removeRoleErr error
	hasRole       bool
	hasRoleErr    error
}

func (f *fakePlatform) Unban(ctx context.Context, guildID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unbans++
	return f.unbanErr
}

func (f *fakePlatform) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleRemoves++
	return f.removeRoleErr
}

func (f *fakePlatform) MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	return f.hasRole, f.hasRoleErr
}

func (f *fakePlatform) DirectMessage(ctx context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms++
	return nil
}

type fakeSettings struct {
	muteRole string
}

func (f *fakeSettings) MuteRole(ctx context.Context, guildID string) (string, error) {
	return f.muteRole, nil
}

func newTestScheduler(t *testing.T, platform *fakePlatform, settings *fakeSettings) (*Scheduler, *Store) {
	t.Helper()
	store := newTestStore(t)
	sched := NewScheduler(store, settings, platform, zap.NewNop(), SchedulerConfig{
		Interval: time.Minute,
		Timeout:  time.Second,
		Notify:   true,
	})
	return sched, store
}

func seedMute(t *testing.T, store *Store, guild, subject string, expires time.Time) Record {
	t.Helper()
	rec, err := store.Put(context.Background(), Mute, Record{
		GuildID:   guild,
		SubjectID: subject,
		IssuerID:  "mod",
		Reason:    "testing",
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("seed mute: %v", err)
	}
	return rec
}

func TestTickLiftsExpiredMute(t *testing.T) {
	platform := &fakePlatform{hasRole: true}
	sched, store := newTestScheduler(t, platform, &fakeSettings{muteRole: "r1"})

	seedMute(t, store, "g1", "u1", time.Now().Add(time.Minute).UTC())
	sched.tick(time.Now().Add(time.Hour).UTC())

	if platform.roleRemoves != 1 {
		t.Fatalf("expected one role removal, got %d", platform.roleRemoves)
	}
	if platform.dms != 1 {
		t.Fatalf("expected one expiry notification, got %d", platform.dms)
	}
	if _, err := store.Get(Mute, "g1", "u1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record removed, got %v", err)
	}
}

func TestTickLeavesFutureMute(t *testing.T) {
	platform := &fakePlatform{hasRole: true}
	sched, store := newTestScheduler(t, platform, &fakeSettings{muteRole: "r1"})

	seedMute(t, store, "g1", "u1", time.Now().Add(time.Hour).UTC())
	sched.tick(time.Now().UTC())

	if platform.roleRemoves != 0 {
		t.Fatalf("expected no role removals, got %d", platform.roleRemoves)
	}
	if _, err := store.Get(Mute, "g1", "u1", 0); err != nil {
		t.Fatalf("expected record intact, got %v", err)
	}
}

func TestTickDropsMuteWithoutConfiguredRole(t *testing.T) {
	platform := &fakePlatform{hasRole: true}
	sched, store := newTestScheduler(t, platform, &fakeSettings{muteRole: ""})

	seedMute(t, store, "g1", "u1", time.Now().Add(time.Minute).UTC())
	later := time.Now().Add(time.Hour).UTC()
	sched.tick(later)

	if platform.roleRemoves != 0 {
		t.Fatalf("expected no role removals, got %d", platform.roleRemoves)
	}
	if _, err := store.Get(Mute, "g1", "u1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unenforceable record dropped, got %v", err)
	}

	// A second tick must find nothing to retry.
	sched.tick(later.Add(time.Minute))
	if platform.roleRemoves != 0 {
		t.Fatalf("expected no retries, got %d role removals", platform.roleRemoves)
	}
}

func TestTickDropsMuteWhenRoleDeleted(t *testing.T) {
	platform := &fakePlatform{hasRoleErr: ErrUnknownResource}
	sched, store := newTestScheduler(t, platform, &fakeSettings{muteRole: "r1"})

	seedMute(t, store, "g1", "u1", time.Now().Add(time.Minute).UTC())
	sched.tick(time.Now().Add(time.Hour).UTC())

	if platform.roleRemoves != 0 {
		t.Fatalf("expected no role removal for a deleted role, got %d", platform.roleRemoves)
	}
	if _, err := store.Get(Mute, "g1", "u1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record dropped, got %v", err)
	}
}

func TestTickDropsMuteWhenRoleAlreadyGoneFromMember(t *testing.T) {
	platform := &fakePlatform{hasRole: false}
	sched, store := newTestScheduler(t, platform, &fakeSettings{muteRole: "r1"})

	seedMute(t, store, "g1", "u1", time.Now().Add(time.Minute).UTC())
	sched.tick(time.Now().Add(time.Hour).UTC())

	if platform.roleRemoves != 0 {
		t.Fatalf("expected no role removal when member lacks the role, got %d", platform.roleRemoves)
	}
	if _, err := store.Get(Mute, "g1", "u1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record dropped, got %v", err)
	}
}

func TestTickRetainsRecordOnTransientFailure(t *testing.T) {
	platform := &fakePlatform{unbanErr: errors.New("rate limited")}
	sched, store := newTestScheduler(t, platform, &fakeSettings{})

	if _, err := store.Put(context.Background(), TempBan, Record{
		GuildID:   "g1",
		SubjectID: "u1",
		IssuerID:  "mod",
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
	}); err != nil {
		t.Fatalf("seed temp ban: %v", err)
	}

	sched.tick(time.Now().Add(time.Hour).UTC())
	if _, err := store.Get(TempBan, "g1", "u1", 0); err != nil {
		t.Fatalf("expected record retained for retry, got %v", err)
	}

	// The failure clears and the next tick lifts the ban.
	platform.unbanErr = nil
	sched.tick(time.Now().Add(2 * time.Hour).UTC())
	if _, err := store.Get(TempBan, "g1", "u1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record removed after retry, got %v", err)
	}
	if platform.unbans != 2 {
		t.Fatalf("expected two unban attempts, got %d", platform.unbans)
	}
}

func TestTickDropsTempBanAlreadyLiftedExternally(t *testing.T) {
	platform := &fakePlatform{unbanErr: ErrUnknownResource}
	sched, store := newTestScheduler(t, platform, &fakeSettings{})

	if _, err := store.Put(context.Background(), TempBan, Record{
		GuildID:   "g1",
		SubjectID: "u1",
		IssuerID:  "mod",
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
	}); err != nil {
		t.Fatalf("seed temp ban: %v", err)
	}

	sched.tick(time.Now().Add(time.Hour).UTC())
	if _, err := store.Get(TempBan, "g1", "u1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record dropped, got %v", err)
	}
}

func TestTickExpiresWarnsLocally(t *testing.T) {
	platform := &fakePlatform{}
	sched, store := newTestScheduler(t, platform, &fakeSettings{})

	rec, err := store.Put(context.Background(), Warn, Record{
		GuildID:   "g1",
		SubjectID: "u1",
		IssuerID:  "mod",
		Reason:    "spam",
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
	})
	if err != nil {
		t.Fatalf("seed warn: %v", err)
	}

	sched.tick(time.Now().Add(time.Hour).UTC())
	if _, err := store.Get(Warn, "g1", "u1", rec.Sequence); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected warn removed, got %v", err)
	}
	if platform.unbans != 0 || platform.roleRemoves != 0 {
		t.Fatalf("warn expiry must not call the platform")
	}
}

func TestSupersededRecordSurvivesStaleEnforcement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old, err := store.Put(ctx, TempBan, Record{
		GuildID:   "g1",
		SubjectID: "u1",
		IssuerID:  "mod-a",
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
	})
	if err != nil {
		t.Fatalf("seed old ban: %v", err)
	}

	// A fresh issuance lands between scan and enforcement.
	fresh, err := store.Put(ctx, TempBan, Record{
		GuildID:   "g1",
		SubjectID: "u1",
		IssuerID:  "mod-b",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	})
	if err != nil {
		t.Fatalf("seed fresh ban: %v", err)
	}

	removed, err := store.RemoveMatching(ctx, TempBan, old)
	if err != nil {
		t.Fatalf("remove matching: %v", err)
	}
	if removed {
		t.Fatalf("stale record removal must not delete the superseding record")
	}
	got, err := store.Get(TempBan, "g1", "u1", 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IssuerID != fresh.IssuerID {
		t.Fatalf("expected fresh record to survive, got issuer %q", got.IssuerID)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	platform := &fakePlatform{}
	sched, _ := newTestScheduler(t, platform, &fakeSettings{})

	sched.Start()
	sched.Stop()
}
