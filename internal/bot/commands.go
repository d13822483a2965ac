package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"warden/internal/sanctions"
	"warden/internal/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// cmdAdmin handles the admin command group: bare for the settings embed,
// plus the log, role, and stats subcommands.
func (b *Bot) cmdAdmin(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.adminInfo(ctx, msg)
		return
	}
	switch strings.ToLower(args[0]) {
	case "log":
		b.adminLog(ctx, msg, args[1:])
	case "role":
		b.adminRole(ctx, msg, args[1:])
	case "stats":
		b.adminStats(msg)
	default:
		b.reply(msg, "Unknown admin subcommand. Available: log, role, stats.")
	}
}

func (b *Bot) adminInfo(ctx context.Context, msg *discordgo.MessageCreate) {
	settings, err := b.store.GetGuildSettings(ctx, msg.GuildID)
	if err != nil {
		b.reply(msg, "Could not load server settings.")
		return
	}

	logStatus := "Not set up"
	if settings.LogChannel != "" {
		logStatus = fmt.Sprintf("%t, <#%s>", settings.LogEnabled, settings.LogChannel)
	}
	muteRole := "Not set up"
	if settings.MuteRole != "" {
		if role, err := b.session.State.Role(msg.GuildID, settings.MuteRole); err == nil {
			muteRole = role.Name
		} else {
			muteRole = settings.MuteRole
		}
	}

	embed := &discordgo.MessageEmbed{
		Title: "Admin Info",
		Color: 0xFFFFFF,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Log", Value: logStatus, Inline: true},
			{Name: "Mute Role", Value: muteRole, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: time.Now().UTC().Format("2006-01-02 15:04")},
	}
	if _, err := b.session.ChannelMessageSendEmbed(msg.ChannelID, embed); err != nil {
		b.logger.Warn("admin info embed failed", zap.Error(err))
	}
}

func (b *Bot) adminLog(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(msg, "Usage: admin log <on|off> [#channel]")
		return
	}
	enabled := args[0] == "on" || args[0] == "true"

	settings, err := b.store.GetGuildSettings(ctx, msg.GuildID)
	if err != nil {
		b.reply(msg, "Could not load server settings.")
		return
	}
	settings.LogEnabled = enabled

	channelID := settings.LogChannel
	if len(args) > 1 {
		channelID = parseChannelArg(args[1])
	}
	if channelID == "" {
		channelID = msg.ChannelID
	}
	settings.LogChannel = channelID

	if err := b.store.SetGuildSettings(ctx, msg.GuildID, settings); err != nil {
		b.logger.Error("save guild settings failed", zap.String("guild", msg.GuildID), zap.Error(err))
		b.reply(msg, "Could not save server settings.")
		return
	}
	b.reply(msg, fmt.Sprintf("Log setting: %t\nLog channel: <#%s>", enabled, channelID))
}

func (b *Bot) adminRole(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.reply(msg, "Usage: admin role <@role|roleID>")
		return
	}
	roleID := parseRoleArg(args[0])
	role, err := b.session.State.Role(msg.GuildID, roleID)
	if err != nil {
		b.reply(msg, "That role could not be found on this server.")
		return
	}

	settings, err := b.store.GetGuildSettings(ctx, msg.GuildID)
	if err != nil {
		b.reply(msg, "Could not load server settings.")
		return
	}
	settings.MuteRole = roleID
	if err := b.store.SetGuildSettings(ctx, msg.GuildID, settings); err != nil {
		b.logger.Error("save guild settings failed", zap.String("guild", msg.GuildID), zap.Error(err))
		b.reply(msg, "Could not save server settings.")
		return
	}
	b.reply(msg, fmt.Sprintf("Mute role set to: %s.", role.Name))
}

func (b *Bot) adminStats(msg *discordgo.MessageCreate) {
	var lines []string
	if info, err := host.Info(); err == nil {
		lines = append(lines, fmt.Sprintf("Host: %s (%s), up %s",
			info.Hostname, info.Platform, utils.PrettyDuration(time.Duration(info.Uptime)*time.Second)))
	}
	if counts, err := cpu.Counts(true); err == nil {
		lines = append(lines, fmt.Sprintf("CPUs: %d", counts))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		lines = append(lines, fmt.Sprintf("Memory: %.1f%% of %d MB", vm.UsedPercent, vm.Total/1024/1024))
	}
	lines = append(lines,
		fmt.Sprintf("Goroutines: %d", runtime.NumGoroutine()),
		fmt.Sprintf("Guilds: %d", len(b.session.State.Guilds)),
		fmt.Sprintf("Bot uptime: %s", utils.PrettyDuration(time.Since(b.startedAt))),
	)
	b.reply(msg, strings.Join(lines, "\n"))
}

func (b *Bot) cmdKick(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	target, rest, err := b.resolveTarget(msg, args)
	if err != nil {
		b.reply(msg, err.Error())
		return
	}
	reason := strings.Join(rest, " ")

	b.dm(target.ID, fmt.Sprintf("You have been kicked from %s for %s\nYou may rejoin.", b.guildName(msg.GuildID), reason))
	if err := b.session.GuildMemberDeleteWithReason(msg.GuildID, target.ID, reason); err != nil {
		b.reply(msg, "Kick failed.")
		b.logger.Warn("kick failed", zap.String("guild", msg.GuildID), zap.String("target", target.ID), zap.Error(err))
		return
	}
	b.logToChannel(ctx, msg, "kick", target, reason)
}

func (b *Bot) cmdBan(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	target, rest, err := b.resolveTarget(msg, args)
	if err != nil {
		b.reply(msg, err.Error())
		return
	}
	reason := strings.Join(rest, " ")

	b.dm(target.ID, fmt.Sprintf("You have been permanently banned from %s for %s", b.guildName(msg.GuildID), reason))
	if err := b.session.GuildBanCreateWithReason(msg.GuildID, target.ID, reason, 7); err != nil {
		b.reply(msg, "Ban failed.")
		b.logger.Warn("ban failed", zap.String("guild", msg.GuildID), zap.String("target", target.ID), zap.Error(err))
		return
	}
	b.logToChannel(ctx, msg, "ban", target, reason)
}

// cmdSoftban bans and immediately unbans to purge the member's recent
// messages without a lasting ban.
func (b *Bot) cmdSoftban(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	target, rest, err := b.resolveTarget(msg, args)
	if err != nil {
		b.reply(msg, err.Error())
		return
	}
	reason := strings.Join(rest, " ")

	b.dm(target.ID, fmt.Sprintf("You have been softbanned from %s for %s\nYou may rejoin.", b.guildName(msg.GuildID), reason))
	if err := b.session.GuildBanCreateWithReason(msg.GuildID, target.ID, "Softbanned: "+reason, 1); err != nil {
		b.reply(msg, "Softban failed.")
		return
	}
	if err := b.session.GuildBanDelete(msg.GuildID, target.ID); err != nil {
		b.reply(msg, "Softban removal failed; the member is still banned.")
		b.logger.Warn("softban unban failed", zap.String("guild", msg.GuildID), zap.String("target", target.ID), zap.Error(err))
		return
	}
	b.logToChannel(ctx, msg, "softban", target, reason)
}

func (b *Bot) cmdTempban(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	target, quantity, unit, reason, err := b.resolveTimedArgs(msg, args, "tempban @user <length> <unit> [reason]")
	if err != nil {
		b.reply(msg, err.Error())
		return
	}

	rec, err := b.sanctions.IssueTempBan(ctx, msg.GuildID, target.ID, msg.Author.ID, unit, quantity, reason)
	if err != nil {
		b.replySanctionError(msg, err)
		return
	}

	remaining := utils.PrettyDuration(time.Until(rec.ExpiresAt))
	b.dm(target.ID, fmt.Sprintf("You have been temporarily banned for %s from %s for %s", remaining, b.guildName(msg.GuildID), reason))
	if err := b.session.GuildBanCreateWithReason(msg.GuildID, target.ID, reason, 1); err != nil {
		b.reply(msg, "Ban failed; the temp ban record was kept and will expire on schedule.")
		b.logger.Warn("tempban ban failed", zap.String("guild", msg.GuildID), zap.String("target", target.ID), zap.Error(err))
		return
	}
	b.reply(msg, fmt.Sprintf("%s temporarily banned for %s.", target.Username, remaining))
	b.logToChannel(ctx, msg, "tempban", target, reason)
}

func (b *Bot) cmdWarn(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	target, quantity, unit, reason, err := b.resolveTimedArgs(msg, args, "warn @user <length> <unit> <reason>")
	if err != nil {
		b.reply(msg, err.Error())
		return
	}
	if reason == "" {
		b.reply(msg, "A reason is required for warnings.")
		return
	}

	rec, err := b.sanctions.IssueWarn(ctx, msg.GuildID, target.ID, msg.Author.ID, unit, quantity, reason)
	if err != nil {
		b.replySanctionError(msg, err)
		return
	}

	remaining := utils.PrettyDuration(time.Until(rec.ExpiresAt))
	b.dm(target.ID, fmt.Sprintf("You have been warned for %s in %s. This warning will expire in %s\nThis is warning #%d.",
		reason, b.guildName(msg.GuildID), remaining, rec.Sequence))
	b.reply(msg, fmt.Sprintf("Warning %d issued to %s for %s", rec.Sequence, target.Username, reason))
	b.logToChannel(ctx, msg, "warn", target, reason)
}

func (b *Bot) cmdWarns(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	_ = ctx
	target, _, err := b.resolveTarget(msg, args)
	if err != nil {
		b.reply(msg, err.Error())
		return
	}

	warns := b.sanctions.Warnings(msg.GuildID, target.ID)
	if len(warns) == 0 {
		b.reply(msg, "Member has no warns.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s's Warns", target.Username),
		Color: 0xFF0000,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total warns", Value: strconv.Itoa(len(warns))},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: time.Now().UTC().Format("2006-01-02 15:04")},
	}
	for _, rec := range warns {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: strconv.Itoa(rec.Sequence),
			Value: fmt.Sprintf("By: <@%s>\nReason: %s\nExpires: %s",
				rec.IssuerID, rec.Reason, utils.PrettyDuration(time.Until(rec.ExpiresAt))),
			Inline: true,
		})
	}
	if _, err := b.session.ChannelMessageSendEmbed(msg.ChannelID, embed); err != nil {
		b.logger.Warn("warns embed failed", zap.Error(err))
	}
}

func (b *Bot) cmdRemoveWarn(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	target, rest, err := b.resolveTarget(msg, args)
	if err != nil {
		b.reply(msg, err.Error())
		return
	}
	if len(rest) == 0 {
		b.reply(msg, "Usage: rmwarn @user <warning number>")
		return
	}
	sequence, err := strconv.Atoi(rest[0])
	if err != nil {
		b.reply(msg, "The warning number must be an integer.")
		return
	}

	if err := b.sanctions.RemoveWarn(ctx, msg.GuildID, target.ID, sequence); err != nil {
		if errors.Is(err, sanctions.ErrNotFound) {
			b.reply(msg, "Member has no warning with that number.")
			return
		}
		b.logger.Error("remove warn failed", zap.String("guild", msg.GuildID), zap.Error(err))
		b.reply(msg, "Could not remove the warning.")
		return
	}
	b.reply(msg, fmt.Sprintf("Removed warning %d from %s.", sequence, target.Username))
	b.logToChannel(ctx, msg, "rmwarn", target, fmt.Sprintf("Warning %d removed", sequence))
}

func (b *Bot) cmdMute(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	settings, err := b.store.GetGuildSettings(ctx, msg.GuildID)
	if err != nil || settings.MuteRole == "" {
		b.reply(msg, "No mute role is configured. Set one with admin role.")
		return
	}

	target, quantity, unit, reason, err := b.resolveTimedArgs(msg, args, "mute @user <length> <unit> <reason>")
	if err != nil {
		b.reply(msg, err.Error())
		return
	}

	replacing := b.sanctions.Muted(msg.GuildID, target.ID)
	rec, err := b.sanctions.IssueMute(ctx, msg.GuildID, target.ID, msg.Author.ID, unit, quantity, reason)
	if err != nil {
		b.replySanctionError(msg, err)
		return
	}

	if err := b.session.GuildMemberRoleAdd(msg.GuildID, target.ID, settings.MuteRole); err != nil {
		b.reply(msg, "Could not add the mute role; the mute record was kept and will expire on schedule.")
		b.logger.Warn("mute role add failed", zap.String("guild", msg.GuildID), zap.String("target", target.ID), zap.Error(err))
		return
	}

	remaining := utils.PrettyDuration(time.Until(rec.ExpiresAt))
	b.dm(target.ID, fmt.Sprintf("You have been muted for %s in %s for %s", reason, b.guildName(msg.GuildID), remaining))
	if replacing {
		b.reply(msg, fmt.Sprintf("%s re-muted for %s, expires in %s (previous mute replaced)", target.Username, reason, remaining))
	} else {
		b.reply(msg, fmt.Sprintf("%s muted for %s, expires in %s", target.Username, reason, remaining))
	}
	b.logToChannel(ctx, msg, "mute", target, reason)
}

func (b *Bot) cmdUnmute(ctx context.Context, msg *discordgo.MessageCreate, args []string) {
	target, _, err := b.resolveTarget(msg, args)
	if err != nil {
		b.reply(msg, err.Error())
		return
	}

	if err := b.sanctions.Unmute(ctx, msg.GuildID, target.ID); err != nil {
		if errors.Is(err, sanctions.ErrNotFound) {
			b.reply(msg, "This member is not muted.")
			return
		}
		b.logger.Error("unmute failed", zap.String("guild", msg.GuildID), zap.Error(err))
		b.reply(msg, "Could not remove the mute.")
		return
	}

	settings, err := b.store.GetGuildSettings(ctx, msg.GuildID)
	if err == nil && settings.MuteRole != "" {
		if err := b.session.GuildMemberRoleRemove(msg.GuildID, target.ID, settings.MuteRole); err != nil {
			b.logger.Warn("unmute role remove failed", zap.String("guild", msg.GuildID), zap.String("target", target.ID), zap.Error(err))
		}
	}

	b.dm(target.ID, fmt.Sprintf("You have been unmuted in %s.", b.guildName(msg.GuildID)))
	b.reply(msg, fmt.Sprintf("Unmuted %s.", target.Username))
	b.logToChannel(ctx, msg, "unmute", target, "")
}

func (b *Bot) replySanctionError(msg *discordgo.MessageCreate, err error) {
	switch {
	case errors.Is(err, sanctions.ErrInvalidUnit):
		b.reply(msg, "Unknown time unit. Use seconds, minutes, hours, days, weeks, months, years, or max.")
	case errors.Is(err, sanctions.ErrExpiryInPast):
		b.reply(msg, "The length must be a positive amount of time.")
	default:
		b.logger.Error("sanction issue failed", zap.Error(err))
		b.reply(msg, "Could not record the sanction.")
	}
}

// resolveTarget extracts the target user from the first argument, which
// may be a mention or a raw ID, and returns the remaining arguments.
func (b *Bot) resolveTarget(msg *discordgo.MessageCreate, args []string) (*discordgo.User, []string, error) {
	if len(args) == 0 {
		return nil, nil, errors.New("A target member is required.")
	}
	userID := parseUserArg(args[0])
	if userID == "" {
		return nil, nil, errors.New("The first argument must be a member mention or ID.")
	}

	member, err := b.session.GuildMember(msg.GuildID, userID)
	if err == nil && member.User != nil {
		return member.User, args[1:], nil
	}
	// Fall back to a bare user lookup so expired-member cleanup commands
	// (rmwarn, unmute) still work after the member leaves.
	user, err := b.session.User(userID)
	if err != nil {
		return nil, nil, errors.New("That member could not be found.")
	}
	return user, args[1:], nil
}

// resolveTimedArgs parses "@user <length> <unit> [reason…]".
func (b *Bot) resolveTimedArgs(msg *discordgo.MessageCreate, args []string, usage string) (*discordgo.User, int, string, string, error) {
	target, rest, err := b.resolveTarget(msg, args)
	if err != nil {
		return nil, 0, "", "", err
	}
	if len(rest) < 2 {
		return nil, 0, "", "", fmt.Errorf("Usage: %s", usage)
	}
	quantity, err := strconv.Atoi(rest[0])
	if err != nil {
		return nil, 0, "", "", errors.New("The length must be an integer.")
	}
	unit := rest[1]
	reason := strings.Join(rest[2:], " ")
	return target, quantity, unit, reason, nil
}

func parseUserArg(arg string) string {
	arg = strings.TrimPrefix(arg, "<@")
	arg = strings.TrimPrefix(arg, "!")
	arg = strings.TrimSuffix(arg, ">")
	if arg == "" || !isDigits(arg) {
		return ""
	}
	return arg
}

func parseChannelArg(arg string) string {
	arg = strings.TrimPrefix(arg, "<#")
	arg = strings.TrimSuffix(arg, ">")
	if !isDigits(arg) {
		return ""
	}
	return arg
}

func parseRoleArg(arg string) string {
	arg = strings.TrimPrefix(arg, "<@&")
	arg = strings.TrimSuffix(arg, ">")
	if !isDigits(arg) {
		return ""
	}
	return arg
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (b *Bot) guildName(guildID string) string {
	if guild, err := b.session.State.Guild(guildID); err == nil {
		return guild.Name
	}
	return "this server"
}
