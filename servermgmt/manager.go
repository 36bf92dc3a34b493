package servermgmt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/vigia/clock"
	"github.com/tnicklin/vigia/discord"
	"github.com/tnicklin/vigia/logger"
	"github.com/tnicklin/vigia/models"
	"github.com/tnicklin/vigia/timeutil"
)

var _ discord.EventModule = (*Manager)(nil)

const (
	maxPurge       = 100
	maxSlowmode    = 21600
	maxTimeout     = 28 * 24 * time.Hour
	bulkDeleteAge  = 14 * 24 * time.Hour
	noReasonGiven  = "No reason provided"
	auditReasonMax = 512
)

type Store interface {
	AddWarning(ctx context.Context, w models.Warning) (int64, error)
	ListWarnings(ctx context.Context, guildID, userID string) ([]models.Warning, error)
	AddMediaChannel(ctx context.Context, guildID, channelID string) error
	RemoveMediaChannel(ctx context.Context, guildID, channelID string) (bool, error)
	ListMediaChannels(ctx context.Context, guildID string) ([]string, error)
	AddActivity(ctx context.Context, e models.ActivityEntry) error
}

// Manager provides moderation commands and media-only enforcement.
type Manager struct {
	media      MediaConfig
	allowed    map[string]struct{}
	api        discord.API
	store      Store
	clock      clock.Clock
	colors     discord.Palette
	tiers      discord.Tiers
	timeFormat string
	logger     logger.Logger
}

type Params struct {
	Media      MediaConfig
	API        discord.API
	Store      Store
	Clock      clock.Clock
	Colors     discord.Palette
	Tiers      discord.Tiers
	TimeFormat string
	Logger     logger.Logger
}

func New(p Params) *Manager {
	media := p.Media
	media.Defaults()
	allowed := make(map[string]struct{}, len(media.AllowedExtensions))
	for _, ext := range media.AllowedExtensions {
		allowed[ext] = struct{}{}
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	tiers := p.Tiers
	if tiers == (discord.Tiers{}) {
		tiers = discord.DefaultTiers()
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	layout := p.TimeFormat
	if layout == "" {
		layout = timeutil.DisplayLayout
	}

	return &Manager{
		media:      media,
		allowed:    allowed,
		api:        p.API,
		store:      p.Store,
		clock:      clk,
		colors:     p.Colors,
		tiers:      tiers,
		timeFormat: layout,
		logger:     log,
	}
}

func (m *Manager) Name() string { return "ServerManagement" }

func (m *Manager) Handlers() []any {
	return []any{m.onMessageCreate}
}

func (m *Manager) Commands() []*discord.Command {
	member := discord.Param{Name: "member", Required: true}
	reason := discord.Param{Name: "reason", Greedy: true}

	return []*discord.Command{
		{
			Name:        "kick",
			Description: "Kick a member from the server.",
			Params:      []discord.Param{member, reason},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdKick,
		},
		{
			Name:        "ban",
			Description: "Ban a member from the server.",
			Params:      []discord.Param{member, reason},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdBan,
		},
		{
			Name:        "unban",
			Description: "Lift a ban by user ID.",
			Params:      []discord.Param{{Name: "user_id", Required: true}},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdUnban,
		},
		{
			Name:        "timeout",
			Aliases:     []string{"mute"},
			Description: "Time a member out, e.g. 10m, 2h or 1d (max 28d).",
			Params:      []discord.Param{member, {Name: "duration", Required: true}, reason},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdTimeout,
		},
		{
			Name:        "untimeout",
			Aliases:     []string{"unmute"},
			Description: "Remove a member's timeout.",
			Params:      []discord.Param{member},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdUntimeout,
		},
		{
			Name:        "purge",
			Aliases:     []string{"clear"},
			Description: "Delete the most recent messages in this channel (1-100).",
			Params:      []discord.Param{{Name: "count", Required: true}},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdPurge,
		},
		{
			Name:        "warn",
			Description: "Warn a member.",
			Params:      []discord.Param{member, {Name: "reason", Required: true, Greedy: true}},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdWarn,
		},
		{
			Name:        "warnings",
			Description: "List a member's warnings.",
			Params:      []discord.Param{member},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdWarnings,
		},
		{
			Name:        "slowmode",
			Description: "Set this channel's slowmode in seconds (0 disables).",
			Params:      []discord.Param{{Name: "seconds", Required: true}},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdSlowmode,
		},
		{
			Name:        "mediaonly",
			Description: "Manage media-only channels: add, remove or list.",
			Params:      []discord.Param{{Name: "action", Required: true}, {Name: "channel"}},
			Permissions: m.tiers.Admin,
			Run:         m.cmdMediaOnly,
		},
	}
}

func (m *Manager) now() string {
	return m.clock.Now().UTC().Format(time.RFC3339)
}

// target resolves the member argument and refuses self-moderation.
func (m *Manager) target(c *discord.Context) (string, error) {
	userID, err := c.UserArg("member")
	if err != nil {
		return "", err
	}
	if userID == c.AuthorID() {
		return "", discord.BadArgument("you cannot moderate yourself")
	}
	if self := c.API.Self(); self != nil && userID == self.ID {
		return "", discord.BadArgument("I cannot moderate myself")
	}
	return userID, nil
}

// reasonOf returns the reason argument capped at the audit log limit of
// auditReasonMax characters.
func reasonOf(c *discord.Context) string {
	reason := strings.TrimSpace(c.Arg("reason"))
	if reason == "" {
		return noReasonGiven
	}
	if r := []rune(reason); len(r) > auditReasonMax {
		reason = string(r[:auditReasonMax])
	}
	return reason
}

func (m *Manager) actionEmbed(color int, title, userID, reason string, c *discord.Context) *discordgo.MessageEmbed {
	embed := discord.Embed(color, title, fmt.Sprintf("<@%s>", userID))
	embed.Fields = []*discordgo.MessageEmbedField{
		discord.Field("Moderator", fmt.Sprintf("<@%s>", c.AuthorID()), true),
		discord.Field("Reason", reason, true),
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: timeutil.Format(m.clock.Now(), m.timeFormat)}
	return embed
}

func (m *Manager) cmdKick(c *discord.Context) error {
	userID, err := m.target(c)
	if err != nil {
		return err
	}
	reason := reasonOf(c)
	if err := m.api.Kick(c.GuildID(), userID, reason); err != nil {
		return fmt.Errorf("kick %s: %w", userID, err)
	}
	m.logger.InfoW("member kicked", "user_id", userID, "moderator_id", c.AuthorID(), "reason", reason)
	m.record(c, userID, c.ChannelID(), "kicked: "+reason)
	return c.ReplyEmbed(m.actionEmbed(m.colors.Warning, "👢 Member kicked", userID, reason, c))
}

func (m *Manager) cmdBan(c *discord.Context) error {
	userID, err := m.target(c)
	if err != nil {
		return err
	}
	reason := reasonOf(c)
	if err := m.api.Ban(c.GuildID(), userID, reason); err != nil {
		return fmt.Errorf("ban %s: %w", userID, err)
	}
	m.logger.InfoW("member banned", "user_id", userID, "moderator_id", c.AuthorID(), "reason", reason)
	m.record(c, userID, c.ChannelID(), "banned: "+reason)
	return c.ReplyEmbed(m.actionEmbed(m.colors.Error, "🔨 Member banned", userID, reason, c))
}

func (m *Manager) cmdUnban(c *discord.Context) error {
	userID, err := c.UserArg("user_id")
	if err != nil {
		return err
	}
	if err := m.api.Unban(c.GuildID(), userID); err != nil {
		return fmt.Errorf("unban %s: %w", userID, err)
	}
	m.logger.InfoW("member unbanned", "user_id", userID, "moderator_id", c.AuthorID())
	m.record(c, userID, c.ChannelID(), "unbanned")
	return c.ReplyEmbed(discord.Embed(m.colors.Success, "Ban lifted", fmt.Sprintf("<@%s> can join again.", userID)))
}

func (m *Manager) cmdTimeout(c *discord.Context) error {
	userID, err := m.target(c)
	if err != nil {
		return err
	}
	d, err := timeutil.ParseDuration(c.Arg("duration"))
	if err != nil {
		return discord.BadArgument("duration: %v", err)
	}
	if d <= 0 || d > maxTimeout {
		return discord.BadArgument("duration must be between 1s and 28d")
	}

	until := m.clock.Now().Add(d)
	if err := m.api.Timeout(c.GuildID(), userID, &until); err != nil {
		return fmt.Errorf("timeout %s: %w", userID, err)
	}
	reason := reasonOf(c)
	m.logger.InfoW("member timed out", "user_id", userID, "moderator_id", c.AuthorID(), "duration", d)
	m.record(c, userID, c.ChannelID(), fmt.Sprintf("timed out for %s: %s", timeutil.Humanize(d), reason))

	embed := m.actionEmbed(m.colors.Warning, "⏳ Member timed out", userID, reason, c)
	embed.Fields = append(embed.Fields, discord.Field("Until", timeutil.Format(until, m.timeFormat), false))
	return c.ReplyEmbed(embed)
}

func (m *Manager) cmdUntimeout(c *discord.Context) error {
	userID, err := m.target(c)
	if err != nil {
		return err
	}
	if err := m.api.Timeout(c.GuildID(), userID, nil); err != nil {
		return fmt.Errorf("remove timeout %s: %w", userID, err)
	}
	m.record(c, userID, c.ChannelID(), "timeout removed")
	return c.ReplyEmbed(discord.Embed(m.colors.Success, "Timeout removed", fmt.Sprintf("<@%s> can talk again.", userID)))
}

func (m *Manager) cmdPurge(c *discord.Context) error {
	count, err := c.IntArg("count", 1, maxPurge)
	if err != nil {
		return err
	}

	limit := count + 1
	if limit > maxPurge {
		limit = maxPurge
	}
	msgs, err := m.api.RecentMessages(c.ChannelID(), limit)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	// The invoking message is deleted with the batch but not counted.
	cutoff := m.clock.Now().Add(-bulkDeleteAge)
	ids := make([]string, 0, len(msgs))
	deleted := 0
	for _, msg := range msgs {
		if !msg.Timestamp.IsZero() && msg.Timestamp.Before(cutoff) {
			continue
		}
		if msg.ID == c.Message.ID {
			ids = append(ids, msg.ID)
			continue
		}
		if deleted < count {
			ids = append(ids, msg.ID)
			deleted++
		}
	}

	if deleted == 0 {
		return c.Reply("Nothing to delete; messages older than 14 days cannot be purged.")
	}
	if len(ids) == 1 {
		err = m.api.DeleteMessage(c.ChannelID(), ids[0])
	} else {
		err = m.api.BulkDelete(c.ChannelID(), ids)
	}
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	noun := "messages"
	if deleted == 1 {
		noun = "message"
	}
	m.logger.InfoW("messages purged", "channel_id", c.ChannelID(), "count", deleted, "moderator_id", c.AuthorID())
	m.record(c, c.AuthorID(), c.ChannelID(), fmt.Sprintf("purged %d %s", deleted, noun))
	return c.Reply(fmt.Sprintf("🧹 Deleted %d %s.", deleted, noun))
}

func (m *Manager) cmdWarn(c *discord.Context) error {
	userID, err := m.target(c)
	if err != nil {
		return err
	}
	reason := reasonOf(c)
	if _, err := m.store.AddWarning(c.Ctx, models.Warning{
		GuildID:     c.GuildID(),
		UserID:      userID,
		ModeratorID: c.AuthorID(),
		Reason:      reason,
		CreatedAt:   m.now(),
	}); err != nil {
		return fmt.Errorf("add warning: %w", err)
	}

	warnings, err := m.store.ListWarnings(c.Ctx, c.GuildID(), userID)
	if err != nil {
		return fmt.Errorf("list warnings: %w", err)
	}
	m.record(c, userID, c.ChannelID(), "warned: "+reason)

	embed := m.actionEmbed(m.colors.Warning, "⚠️ Member warned", userID, reason, c)
	embed.Fields = append(embed.Fields, discord.Field("Total warnings", fmt.Sprint(len(warnings)), true))
	return c.ReplyEmbed(embed)
}

func (m *Manager) cmdWarnings(c *discord.Context) error {
	userID, err := c.UserArg("member")
	if err != nil {
		return err
	}
	warnings, err := m.store.ListWarnings(c.Ctx, c.GuildID(), userID)
	if err != nil {
		return fmt.Errorf("list warnings: %w", err)
	}
	if len(warnings) == 0 {
		return c.Reply(fmt.Sprintf("<@%s> has no warnings.", userID))
	}

	var sb strings.Builder
	for i, w := range warnings {
		fmt.Fprintf(&sb, "**%d.** %s (by <@%s>, %s)\n", i+1, w.Reason, w.ModeratorID, timeutil.FormatStored(w.CreatedAt, m.timeFormat))
	}
	return c.ReplyEmbed(discord.Embed(m.colors.Warning, fmt.Sprintf("Warnings (%d)", len(warnings)), sb.String()))
}

func (m *Manager) cmdSlowmode(c *discord.Context) error {
	seconds, err := c.IntArg("seconds", 0, maxSlowmode)
	if err != nil {
		return err
	}
	if err := m.api.SetSlowmode(c.ChannelID(), seconds); err != nil {
		return fmt.Errorf("set slowmode: %w", err)
	}
	m.record(c, c.AuthorID(), c.ChannelID(), fmt.Sprintf("slowmode set to %ds", seconds))
	if seconds == 0 {
		return c.Reply("Slowmode disabled.")
	}
	return c.Reply(fmt.Sprintf("Slowmode set to %d seconds.", seconds))
}
