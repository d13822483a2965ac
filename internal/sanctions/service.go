package sanctions

import (
	"context"
	"time"
)

// Service is the command-facing mutation API over the store. Handlers
// validate and parse through it rather than touching the store directly.
type Service struct {
	store *Store
	now   func() time.Time
}

func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

// IssueTempBan records a temporary ban expiring quantity units from now,
// replacing any prior temp ban for the subject.
func (s *Service) IssueTempBan(ctx context.Context, guildID, subjectID, issuerID, unit string, quantity int, reason string) (Record, error) {
	return s.issue(ctx, TempBan, guildID, subjectID, issuerID, unit, quantity, reason)
}

// IssueWarn records a new warning under the subject's smallest free
// sequence number.
func (s *Service) IssueWarn(ctx context.Context, guildID, subjectID, issuerID, unit string, quantity int, reason string) (Record, error) {
	return s.issue(ctx, Warn, guildID, subjectID, issuerID, unit, quantity, reason)
}

// IssueMute records a mute, replacing any prior mute for the subject.
func (s *Service) IssueMute(ctx context.Context, guildID, subjectID, issuerID, unit string, quantity int, reason string) (Record, error) {
	return s.issue(ctx, Mute, guildID, subjectID, issuerID, unit, quantity, reason)
}

func (s *Service) issue(ctx context.Context, kind Kind, guildID, subjectID, issuerID, unit string, quantity int, reason string) (Record, error) {
	expires, err := ResolveFutureInstant(unit, quantity, s.now().UTC())
	if err != nil {
		return Record{}, err
	}
	return s.store.Put(ctx, kind, Record{
		GuildID:   guildID,
		SubjectID: subjectID,
		IssuerID:  issuerID,
		Reason:    reason,
		ExpiresAt: expires,
	})
}

// RemoveWarn deletes one warning by sequence. ErrNotFound is returned for
// an unknown sequence so the caller can report it to the moderator.
func (s *Service) RemoveWarn(ctx context.Context, guildID, subjectID string, sequence int) error {
	return s.store.Remove(ctx, Warn, guildID, subjectID, sequence)
}

// Unmute ends a mute early. ErrNotFound means the subject is not muted.
func (s *Service) Unmute(ctx context.Context, guildID, subjectID string) error {
	return s.store.Remove(ctx, Mute, guildID, subjectID, 0)
}

// Warnings lists the subject's active warnings ordered by sequence.
func (s *Service) Warnings(guildID, subjectID string) []Record {
	return s.store.Warnings(guildID, subjectID)
}

// Muted reports whether the subject currently has an active mute record.
func (s *Service) Muted(guildID, subjectID string) bool {
	_, err := s.store.Get(Mute, guildID, subjectID, 0)
	return err == nil
}
