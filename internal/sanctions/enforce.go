package sanctions

import (
	"context"
	"errors"
)

// ErrUnknownResource is returned by Platform implementations when the
// guild, member, role or ban backing an enforcement can no longer be
// resolved. The scheduler treats it as permanently unenforceable and drops
// the record instead of retrying.
var ErrUnknownResource = errors.New("unknown platform resource")

// Platform is the slice of the chat platform client the scheduler needs to
// lift sanctions. All calls are network-bound and fallible.
type Platform interface {
	Unban(ctx context.Context, guildID, userID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	DirectMessage(ctx context.Context, userID, content string) error
}

// SettingsSource resolves per-guild moderation configuration, in
// particular the configured mute role.
type SettingsSource interface {
	MuteRole(ctx context.Context, guildID string) (string, error)
}

// outcome is the scheduler's single retry-vs-drop decision point for one
// enforcement attempt.
type outcome int

const (
	// enforced: the platform action succeeded, remove the record.
	enforced outcome = iota
	// skipped: nothing to undo (already unbanned, role already gone),
	// remove the record.
	skipped
	// unenforceable: the backing resource is gone for good, remove the
	// record with a warning rather than retry forever.
	unenforceable
	// transient: a recoverable failure, keep the record for the next tick.
	transient
)

func (o outcome) removesRecord() bool {
	return o != transient
}

func (o outcome) String() string {
	switch o {
	case enforced:
		return "enforced"
	case skipped:
		return "skipped"
	case unenforceable:
		return "unenforceable"
	default:
		return "transient"
	}
}

func classify(err error) outcome {
	if err == nil {
		return enforced
	}
	if errors.Is(err, ErrUnknownResource) {
		return unenforceable
	}
	return transient
}
