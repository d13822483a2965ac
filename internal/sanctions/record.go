package sanctions

import (
	"errors"
	"time"
)

// Kind identifies one of the three tracked sanction types.
type Kind int

const (
	TempBan Kind = iota
	Warn
	Mute
)

func (k Kind) String() string {
	switch k {
	case TempBan:
		return "tempban"
	case Warn:
		return "warn"
	case Mute:
		return "mute"
	default:
		return "unknown"
	}
}

// Record is one active sanction. Guild, subject and sequence are carried by
// the store's map keys when persisted, so only issuer, reason and expiry
// appear in the JSON value.
type Record struct {
	GuildID   string    `json:"-"`
	SubjectID string    `json:"-"`
	Sequence  int       `json:"-"`
	IssuerID  string    `json:"issued_by"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expires"`
}

// Expired reports whether the record is eligible for removal at now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Matches reports whether other is the same sanction by value, used to
// detect a record superseded between an expiry scan and its enforcement.
func (r Record) Matches(other Record) bool {
	return r.IssuerID == other.IssuerID &&
		r.Reason == other.Reason &&
		r.ExpiresAt.Equal(other.ExpiresAt)
}

var (
	ErrNotFound     = errors.New("sanction not found")
	ErrInvalidUnit  = errors.New("invalid time unit")
	ErrExpiryInPast = errors.New("expiry is not in the future")
)
