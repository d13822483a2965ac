package sanctions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"warden/internal/storage"
)

// single holds at most one record per subject, for temp bans and mutes.
type single map[string]map[string]Record

// numbered holds multiple records per subject keyed by sequence, for warns.
type numbered map[string]map[string]map[int]Record

// Store is the authoritative in-memory sanction state. Every mutation is
// flushed to the backing kv store before it returns; a failed flush rolls
// the in-memory change back.
type Store struct {
	mu       sync.Mutex
	db       *storage.Store
	tempBans single
	mutes    single
	warns    numbered
}

// NewStore loads persisted sanction state from db. Absent buckets start
// empty.
func NewStore(ctx context.Context, db *storage.Store) (*Store, error) {
	s := &Store{
		db:       db,
		tempBans: single{},
		mutes:    single{},
		warns:    numbered{},
	}
	if err := db.LoadBucket(ctx, storage.BucketTempBans, &s.tempBans); err != nil {
		return nil, fmt.Errorf("load temp bans: %w", err)
	}
	if err := db.LoadBucket(ctx, storage.BucketMutes, &s.mutes); err != nil {
		return nil, fmt.Errorf("load mutes: %w", err)
	}
	if err := db.LoadBucket(ctx, storage.BucketWarns, &s.warns); err != nil {
		return nil, fmt.Errorf("load warns: %w", err)
	}
	return s, nil
}

// Put inserts rec under its kind. Temp bans and mutes overwrite any prior
// record for the subject; warns are assigned the smallest free positive
// sequence and never overwrite. The stored record is returned.
func (s *Store) Put(ctx context.Context, kind Kind, rec Record) (Record, error) {
	if !rec.ExpiresAt.After(time.Now()) {
		return Record{}, ErrExpiryInPast
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case Warn:
		guild, ok := s.warns[rec.GuildID]
		if !ok {
			guild = map[string]map[int]Record{}
			s.warns[rec.GuildID] = guild
		}
		subject, ok := guild[rec.SubjectID]
		if !ok {
			subject = map[int]Record{}
			guild[rec.SubjectID] = subject
		}
		rec.Sequence = nextSequence(subject)
		subject[rec.Sequence] = rec
		if err := s.flushWarnsLocked(ctx); err != nil {
			delete(subject, rec.Sequence)
			return Record{}, err
		}
		return rec, nil
	case TempBan, Mute:
		bucket := s.singleLocked(kind)
		guild, ok := bucket[rec.GuildID]
		if !ok {
			guild = map[string]Record{}
			bucket[rec.GuildID] = guild
		}
		prior, hadPrior := guild[rec.SubjectID]
		guild[rec.SubjectID] = rec
		if err := s.flushSingleLocked(ctx, kind); err != nil {
			if hadPrior {
				guild[rec.SubjectID] = prior
			} else {
				delete(guild, rec.SubjectID)
			}
			return Record{}, err
		}
		return rec, nil
	default:
		return Record{}, fmt.Errorf("put: unknown kind %d", kind)
	}
}

// Get returns the record for the subject, or ErrNotFound. The sequence
// argument is only consulted for warns.
func (s *Store) Get(kind Kind, guildID, subjectID string, sequence int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == Warn {
		rec, ok := s.warns[guildID][subjectID][sequence]
		if !ok {
			return Record{}, ErrNotFound
		}
		rec.GuildID, rec.SubjectID, rec.Sequence = guildID, subjectID, sequence
		return rec, nil
	}
	rec, ok := s.singleLocked(kind)[guildID][subjectID]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.GuildID, rec.SubjectID = guildID, subjectID
	return rec, nil
}

// Remove deletes the record, or returns ErrNotFound.
func (s *Store) Remove(ctx context.Context, kind Kind, guildID, subjectID string, sequence int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, kind, guildID, subjectID, sequence)
}

// RemoveMatching deletes the record only if the one on file still matches
// rec by value, reporting whether a delete happened. A record superseded
// since rec was observed is left alone.
func (s *Store) RemoveMatching(ctx context.Context, kind Kind, rec Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current Record
	var ok bool
	if kind == Warn {
		current, ok = s.warns[rec.GuildID][rec.SubjectID][rec.Sequence]
	} else {
		current, ok = s.singleLocked(kind)[rec.GuildID][rec.SubjectID]
	}
	if !ok || !current.Matches(rec) {
		return false, nil
	}
	if err := s.removeLocked(ctx, kind, rec.GuildID, rec.SubjectID, rec.Sequence); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) removeLocked(ctx context.Context, kind Kind, guildID, subjectID string, sequence int) error {
	if kind == Warn {
		subject, ok := s.warns[guildID][subjectID]
		if !ok {
			return ErrNotFound
		}
		rec, ok := subject[sequence]
		if !ok {
			return ErrNotFound
		}
		delete(subject, sequence)
		if len(subject) == 0 {
			delete(s.warns[guildID], subjectID)
		}
		if err := s.flushWarnsLocked(ctx); err != nil {
			if s.warns[guildID][subjectID] == nil {
				s.warns[guildID][subjectID] = map[int]Record{}
			}
			s.warns[guildID][subjectID][sequence] = rec
			return err
		}
		return nil
	}

	bucket := s.singleLocked(kind)
	guild, ok := bucket[guildID]
	if !ok {
		return ErrNotFound
	}
	rec, ok := guild[subjectID]
	if !ok {
		return ErrNotFound
	}
	delete(guild, subjectID)
	if err := s.flushSingleLocked(ctx, kind); err != nil {
		guild[subjectID] = rec
		return err
	}
	return nil
}

// ScanExpired returns every record of kind whose expiry is at or before
// now. The result is a snapshot: callers may mutate the store while
// ranging over it.
func (s *Store) ScanExpired(kind Kind, now time.Time) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []Record
	if kind == Warn {
		for guildID, subjects := range s.warns {
			for subjectID, seqs := range subjects {
				for seq, rec := range seqs {
					if rec.Expired(now) {
						rec.GuildID, rec.SubjectID, rec.Sequence = guildID, subjectID, seq
						expired = append(expired, rec)
					}
				}
			}
		}
	} else {
		for guildID, subjects := range s.singleLocked(kind) {
			for subjectID, rec := range subjects {
				if rec.Expired(now) {
					rec.GuildID, rec.SubjectID = guildID, subjectID
					expired = append(expired, rec)
				}
			}
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		a, b := expired[i], expired[j]
		if a.GuildID != b.GuildID {
			return a.GuildID < b.GuildID
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.Sequence < b.Sequence
	})
	return expired
}

// Warnings returns the subject's active warnings ordered by sequence.
func (s *Store) Warnings(guildID, subjectID string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject := s.warns[guildID][subjectID]
	warns := make([]Record, 0, len(subject))
	for seq, rec := range subject {
		rec.GuildID, rec.SubjectID, rec.Sequence = guildID, subjectID, seq
		warns = append(warns, rec)
	}
	sort.Slice(warns, func(i, j int) bool { return warns[i].Sequence < warns[j].Sequence })
	return warns
}

func (s *Store) singleLocked(kind Kind) single {
	if kind == TempBan {
		return s.tempBans
	}
	return s.mutes
}

func (s *Store) flushSingleLocked(ctx context.Context, kind Kind) error {
	key := storage.BucketTempBans
	bucket := s.tempBans
	if kind == Mute {
		key = storage.BucketMutes
		bucket = s.mutes
	}
	return s.db.SaveBucket(ctx, key, bucket)
}

func (s *Store) flushWarnsLocked(ctx context.Context) error {
	return s.db.SaveBucket(ctx, storage.BucketWarns, s.warns)
}

// nextSequence finds the smallest positive integer not in use by the
// subject's existing warnings. An iterative probe, not recursion: n+1
// candidates always contain a free slot.
func nextSequence(existing map[int]Record) int {
	for candidate := 1; ; candidate++ {
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}
