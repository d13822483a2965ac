package storage

import "context"

// GuildSettings is the per-guild moderation configuration held under the
// admin bucket, keyed by guild ID.
type GuildSettings struct {
	MuteRole   string `json:"mute_role,omitempty"`
	LogEnabled bool   `json:"log"`
	LogChannel string `json:"log_channel,omitempty"`
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string) (GuildSettings, error) {
	all := map[string]GuildSettings{}
	if err := s.LoadBucket(ctx, BucketAdmin, &all); err != nil {
		return GuildSettings{}, err
	}
	return all[guildID], nil
}

func (s *Store) SetGuildSettings(ctx context.Context, guildID string, settings GuildSettings) error {
	all := map[string]GuildSettings{}
	if err := s.LoadBucket(ctx, BucketAdmin, &all); err != nil {
		return err
	}
	all[guildID] = settings
	return s.SaveBucket(ctx, BucketAdmin, all)
}
