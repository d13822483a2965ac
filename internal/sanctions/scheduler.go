package sanctions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler periodically scans the store for expired sanctions and lifts
// them. It owns one background goroutine between Start and Stop; ticks
// never overlap, a slow tick simply delays the next one.
type Scheduler struct {
	store    *Store
	settings SettingsSource
	platform Platform
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration
	notify   bool

	now func() time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

type SchedulerConfig struct {
	// Interval between expiry scans. Defaults to one minute.
	Interval time.Duration
	// Timeout applied to each platform call so one stuck guild cannot
	// stall the rest of a tick. Defaults to ten seconds.
	Timeout time.Duration
	// Notify controls the best-effort DM sent when a mute expires.
	Notify bool
}

func NewScheduler(store *Store, settings SettingsSource, platform Platform, logger *zap.Logger, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Scheduler{
		store:    store,
		settings: settings,
		platform: platform,
		logger:   logger,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		notify:   cfg.Notify,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Scheduler) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.tick(s.now().UTC())
		}
	}
}

// tick runs one scan-and-enforce pass. The same now is used for all three
// kinds; a record expiring mid-tick waits for the next one.
func (s *Scheduler) tick(now time.Time) {
	for _, kind := range []Kind{TempBan, Warn, Mute} {
		for _, rec := range s.store.ScanExpired(kind, now) {
			s.process(kind, rec)
		}
	}
}

// process lifts one expired sanction. Failures are contained here so one
// bad record never aborts the remainder of the tick.
func (s *Scheduler) process(kind Kind, rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var result outcome
	var err error
	switch kind {
	case TempBan:
		result, err = s.liftTempBan(ctx, rec)
	case Warn:
		result, err = enforced, nil
	case Mute:
		result, err = s.liftMute(ctx, rec)
	}

	fields := []zap.Field{
		zap.String("kind", kind.String()),
		zap.String("guild", rec.GuildID),
		zap.String("subject", rec.SubjectID),
		zap.Int("sequence", rec.Sequence),
		zap.Time("expired_at", rec.ExpiresAt),
	}

	switch result {
	case transient:
		s.logger.Warn("sanction expiry deferred", append(fields, zap.Error(err))...)
		return
	case unenforceable:
		s.logger.Warn("sanction unenforceable, dropping", append(fields, zap.Error(err))...)
	default:
		s.logger.Info("sanction expired", append(fields, zap.String("outcome", result.String()))...)
	}

	removed, rmErr := s.store.RemoveMatching(ctx, kind, rec)
	if rmErr != nil {
		s.logger.Error("expired sanction removal failed", append(fields, zap.Error(rmErr))...)
		return
	}
	if !removed {
		s.logger.Info("expired sanction superseded, leaving new record", fields...)
	}
}

func (s *Scheduler) liftTempBan(ctx context.Context, rec Record) (outcome, error) {
	err := s.platform.Unban(ctx, rec.GuildID, rec.SubjectID)
	if errors.Is(err, ErrUnknownResource) {
		// Already unbanned externally, or the guild itself is gone.
		// Either way there is nothing left to lift.
		return skipped, nil
	}
	return classify(err), err
}

func (s *Scheduler) liftMute(ctx context.Context, rec Record) (outcome, error) {
	roleID, err := s.settings.MuteRole(ctx, rec.GuildID)
	if err != nil {
		return transient, fmt.Errorf("resolve mute role: %w", err)
	}
	if roleID == "" {
		return unenforceable, errors.New("no mute role configured")
	}

	has, err := s.platform.MemberHasRole(ctx, rec.GuildID, rec.SubjectID, roleID)
	if errors.Is(err, ErrUnknownResource) {
		return unenforceable, err
	}
	if err != nil {
		return transient, err
	}
	if !has {
		// The role was stripped by hand already, nothing to undo.
		return skipped, nil
	}

	if err := s.platform.RemoveRole(ctx, rec.GuildID, rec.SubjectID, roleID); err != nil {
		return classify(err), err
	}

	if s.notify {
		if err := s.platform.DirectMessage(ctx, rec.SubjectID, "Your mute has expired."); err != nil {
			s.logger.Debug("mute expiry notification failed",
				zap.String("subject", rec.SubjectID), zap.Error(err))
		}
	}
	return enforced, nil
}
