package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warden/internal/config"
	"warden/internal/sanctions"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	sanctions *sanctions.Service
	session   *discordgo.Session
	commands  map[string]commandHandler
	startedAt time.Time
}

type commandHandler struct {
	perm int64
	run  func(ctx context.Context, msg *discordgo.MessageCreate, args []string)
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, svc *sanctions.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		sanctions: svc,
		session:   session,
	}
	b.commands = map[string]commandHandler{
		"admin":   {perm: discordgo.PermissionAdministrator, run: b.cmdAdmin},
		"kick":    {perm: discordgo.PermissionKickMembers, run: b.cmdKick},
		"ban":     {perm: discordgo.PermissionBanMembers, run: b.cmdBan},
		"softban": {perm: discordgo.PermissionBanMembers, run: b.cmdSoftban},
		"tempban": {perm: discordgo.PermissionBanMembers, run: b.cmdTempban},
		"tban":    {perm: discordgo.PermissionBanMembers, run: b.cmdTempban},
		"warn":    {perm: discordgo.PermissionKickMembers, run: b.cmdWarn},
		"warns":   {perm: discordgo.PermissionKickMembers, run: b.cmdWarns},
		"rmwarn":  {perm: discordgo.PermissionKickMembers, run: b.cmdRemoveWarn},
		"mute":    {perm: discordgo.PermissionManageRoles, run: b.cmdMute},
		"unmute":  {perm: discordgo.PermissionManageRoles, run: b.cmdUnmute},
	}
	return b, nil
}

// Platform exposes the session as the scheduler's enforcement client.
func (b *Bot) Platform() sanctions.Platform {
	return &discordPlatform{session: b.session}
}

// Settings exposes per-guild moderation configuration to the scheduler.
func (b *Bot) Settings() sanctions.SettingsSource {
	return &settingsSource{store: b.store}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.startedAt = time.Now()
	return b.session.Open()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}
	name, args, ok := splitCommand(msg.Content, b.cfg.CommandPrefix)
	if !ok {
		return
	}
	handler, ok := b.commands[name]
	if !ok {
		return
	}

	perms, err := session.UserChannelPermissions(msg.Author.ID, msg.ChannelID)
	if err != nil {
		b.logger.Warn("permission check failed",
			zap.String("guild", msg.GuildID),
			zap.String("user", msg.Author.ID),
			zap.Error(err))
		return
	}
	if perms&handler.perm == 0 && perms&discordgo.PermissionAdministrator == 0 {
		b.reply(msg, "You do not have permission to use that command.")
		return
	}

	ctx := context.Background()
	handler.run(ctx, msg, args)
}

// splitCommand strips the prefix and splits the rest into the command name
// and its arguments.
func splitCommand(content, prefix string) (string, []string, bool) {
	if !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (b *Bot) reply(msg *discordgo.MessageCreate, content string) {
	if _, err := b.session.ChannelMessageSend(msg.ChannelID, content); err != nil {
		b.logger.Warn("reply failed", zap.String("channel", msg.ChannelID), zap.Error(err))
	}
}

// dm sends a best-effort direct message; delivery failures are logged and
// otherwise ignored.
func (b *Bot) dm(userID, content string) {
	channel, err := b.session.UserChannelCreate(userID)
	if err == nil {
		_, err = b.session.ChannelMessageSend(channel.ID, content)
	}
	if err != nil {
		b.logger.Debug("dm failed", zap.String("user", userID), zap.Error(err))
	}
}

// logToChannel posts a moderation-action embed to the guild's configured
// log channel, falling back to the invoking channel.
func (b *Bot) logToChannel(ctx context.Context, msg *discordgo.MessageCreate, action string, target *discordgo.User, info string) {
	settings, err := b.store.GetGuildSettings(ctx, msg.GuildID)
	if err != nil {
		b.logger.Warn("load guild settings failed", zap.String("guild", msg.GuildID), zap.Error(err))
	}

	channelID := msg.ChannelID
	if settings.LogEnabled && settings.LogChannel != "" {
		channelID = settings.LogChannel
	}
	if info == "" {
		info = "No extra information"
	}

	embed := &discordgo.MessageEmbed{
		Title: msg.Content,
		Color: 0xFF0000,
		Fields: []*discordgo.MessageEmbedField{
			{Name: action, Value: fmt.Sprintf("%s (%s)", target.Username, target.ID), Inline: true},
			{Name: "Info", Value: info},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: time.Now().UTC().Format("2006-01-02 15:04")},
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.logger.Warn("moderation log failed", zap.String("channel", channelID), zap.Error(err))
	}
}
