package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"warden/internal/sanctions"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
)

// discordPlatform adapts a discordgo session to the scheduler's Platform
// interface. A 404 from the REST API means the target no longer exists and
// is surfaced as sanctions.ErrUnknownResource so the scheduler drops the
// record instead of retrying it forever.
type discordPlatform struct {
	session *discordgo.Session
}

func (p *discordPlatform) Unban(ctx context.Context, guildID, userID string) error {
	_ = ctx
	return mapRESTError(p.session.GuildBanDelete(guildID, userID))
}

func (p *discordPlatform) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	_ = ctx
	return mapRESTError(p.session.GuildMemberRoleRemove(guildID, userID, roleID))
}

func (p *discordPlatform) MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	_ = ctx
	if _, err := p.session.State.Role(guildID, roleID); err != nil {
		// Not in state; confirm against the API before giving up on it.
		roles, rerr := p.session.GuildRoles(guildID)
		if rerr != nil {
			return false, mapRESTError(rerr)
		}
		found := false
		for _, role := range roles {
			if role.ID == roleID {
				found = true
				break
			}
		}
		if !found {
			return false, fmt.Errorf("%w: role %s not in guild %s", sanctions.ErrUnknownResource, roleID, guildID)
		}
	}

	member, err := p.session.GuildMember(guildID, userID)
	if err != nil {
		return false, mapRESTError(err)
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (p *discordPlatform) DirectMessage(ctx context.Context, userID, content string) error {
	_ = ctx
	channel, err := p.session.UserChannelCreate(userID)
	if err != nil {
		return mapRESTError(err)
	}
	_, err = p.session.ChannelMessageSend(channel.ID, content)
	return mapRESTError(err)
}

func mapRESTError(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", sanctions.ErrUnknownResource, err)
	}
	return err
}

// settingsSource resolves the configured mute role from the admin bucket.
type settingsSource struct {
	store *storage.Store
}

func (s *settingsSource) MuteRole(ctx context.Context, guildID string) (string, error) {
	settings, err := s.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		return "", err
	}
	return settings.MuteRole, nil
}
