// Package activity records member, message and voice events to the store
// and optionally mirrors them to a log channel.
package activity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-co-op/gocron/v2"
	"github.com/tnicklin/vigia/clock"
	"github.com/tnicklin/vigia/discord"
	"github.com/tnicklin/vigia/logger"
	"github.com/tnicklin/vigia/models"
	"github.com/tnicklin/vigia/timeutil"
)

var (
	_ discord.EventModule      = (*Monitor)(nil)
	_ discord.StoreReadyModule = (*Monitor)(nil)
)

const (
	defaultListLimit = 10
	maxListLimit     = 25
	maxContentRunes  = 1000
)

type Store interface {
	AddActivity(ctx context.Context, e models.ActivityEntry) error
	ListActivity(ctx context.Context, guildID string, limit int) ([]models.ActivityEntry, error)
	PruneActivity(ctx context.Context, before time.Time) (int64, error)
}

// Monitor is the activity logger module.
type Monitor struct {
	cfg        Config
	api        discord.API
	store      Store
	clock      clock.Clock
	colors     discord.Palette
	tiers      discord.Tiers
	timeFormat string
	logger     logger.Logger

	mu        sync.Mutex
	scheduler gocron.Scheduler
	job       gocron.Job
	runCtx    context.Context
}

type Params struct {
	Config     Config
	API        discord.API
	Store      Store
	Clock      clock.Clock
	Colors     discord.Palette
	Tiers      discord.Tiers
	TimeFormat string
	Logger     logger.Logger
}

func New(p Params) *Monitor {
	cfg := p.Config
	cfg.Defaults()

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

	return &Monitor{
		cfg:        cfg,
		api:        p.API,
		store:      p.Store,
		clock:      clk,
		colors:     p.Colors,
		tiers:      tiers,
		timeFormat: layout,
		logger:     log,
		runCtx:     context.Background(),
	}
}

func (m *Monitor) Name() string { return "ActivityLogger" }

func (m *Monitor) Handlers() []any {
	return []any{
		func(_ *discordgo.Session, e *discordgo.GuildMemberAdd) { m.HandleMemberAdd(context.Background(), e) },
		func(_ *discordgo.Session, e *discordgo.GuildMemberRemove) { m.HandleMemberRemove(context.Background(), e) },
		func(_ *discordgo.Session, e *discordgo.MessageDelete) { m.HandleMessageDelete(context.Background(), e) },
		func(_ *discordgo.Session, e *discordgo.MessageUpdate) { m.HandleMessageUpdate(context.Background(), e) },
		func(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) { m.HandleVoiceStateUpdate(context.Background(), e) },
	}
}

func (m *Monitor) Commands() []*discord.Command {
	return []*discord.Command{
		{
			Name:        "activity",
			Aliases:     []string{"logs"},
			Description: "Show recent server activity.",
			Params:      []discord.Param{{Name: "limit"}},
			Permissions: m.tiers.Moderator,
			Run:         m.cmdActivity,
		},
	}
}

func (m *Monitor) HandleMemberAdd(ctx context.Context, e *discordgo.GuildMemberAdd) {
	if e == nil || e.Member == nil || e.User == nil {
		return
	}
	m.record(ctx, models.ActivityEntry{
		GuildID: e.GuildID,
		UserID:  e.User.ID,
		Kind:    models.ActivityMemberJoin,
		Details: e.User.Username,
	})
}

func (m *Monitor) HandleMemberRemove(ctx context.Context, e *discordgo.GuildMemberRemove) {
	if e == nil || e.Member == nil || e.User == nil {
		return
	}
	m.record(ctx, models.ActivityEntry{
		GuildID: e.GuildID,
		UserID:  e.User.ID,
		Kind:    models.ActivityMemberLeave,
		Details: e.User.Username,
	})
}

// HandleMessageDelete logs a deletion. Content is only known when the
// message was in the state cache.
func (m *Monitor) HandleMessageDelete(ctx context.Context, e *discordgo.MessageDelete) {
	if e == nil || e.Message == nil || e.GuildID == "" {
		return
	}
	entry := models.ActivityEntry{
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		Kind:      models.ActivityMessageDelete,
		Details:   "content unavailable",
	}
	if before := e.BeforeDelete; before != nil {
		if before.Author != nil {
			if before.Author.Bot {
				return
			}
			entry.UserID = before.Author.ID
		}
		entry.Details = truncate(before.Content)
	}
	m.record(ctx, entry)
}

// HandleMessageUpdate logs content edits of cached messages. Updates that
// leave the content untouched, such as link unfurls, are ignored.
func (m *Monitor) HandleMessageUpdate(ctx context.Context, e *discordgo.MessageUpdate) {
	if e == nil || e.Message == nil || e.BeforeUpdate == nil || e.GuildID == "" {
		return
	}
	before := e.BeforeUpdate
	if before.Author == nil || before.Author.Bot || before.Content == e.Content {
		return
	}
	m.record(ctx, models.ActivityEntry{
		GuildID:   e.GuildID,
		UserID:    before.Author.ID,
		ChannelID: e.ChannelID,
		Kind:      models.ActivityMessageEdit,
		Details:   fmt.Sprintf("%s → %s", truncate(before.Content), truncate(e.Content)),
	})
}

// HandleVoiceStateUpdate logs channel joins, leaves and moves. Mute and
// deafen changes are ignored.
func (m *Monitor) HandleVoiceStateUpdate(ctx context.Context, e *discordgo.VoiceStateUpdate) {
	if e == nil || e.VoiceState == nil {
		return
	}
	var from string
	if e.BeforeUpdate != nil {
		from = e.BeforeUpdate.ChannelID
	}
	to := e.ChannelID

	entry := models.ActivityEntry{GuildID: e.GuildID, UserID: e.UserID}
	switch {
	case from == to:
		return
	case from == "":
		entry.Kind, entry.ChannelID = models.ActivityVoiceJoin, to
		entry.Details = fmt.Sprintf("joined <#%s>", to)
	case to == "":
		entry.Kind, entry.ChannelID = models.ActivityVoiceLeave, from
		entry.Details = fmt.Sprintf("left <#%s>", from)
	default:
		entry.Kind, entry.ChannelID = models.ActivityVoiceMove, to
		entry.Details = fmt.Sprintf("<#%s> → <#%s>", from, to)
	}
	m.record(ctx, entry)
}

// record stores the entry and mirrors it to the log channel.
func (m *Monitor) record(ctx context.Context, entry models.ActivityEntry) {
	at := m.clock.Now().UTC()
	entry.CreatedAt = at.Format(time.RFC3339)

	if err := m.store.AddActivity(ctx, entry); err != nil {
		m.logger.ErrorW("failed to store activity", "kind", entry.Kind, "guild_id", entry.GuildID, "error", err)
	}
	m.logger.DebugW("activity", "kind", entry.Kind, "guild_id", entry.GuildID, "user_id", entry.UserID)

	if m.cfg.LogChannelID == "" {
		return
	}
	embed := discord.Embed(m.color(entry.Kind), entry.Kind.Label(), entry.Details)
	if entry.UserID != "" {
		embed.Fields = append(embed.Fields, discord.Field("User", fmt.Sprintf("<@%s>", entry.UserID), true))
	}
	if entry.ChannelID != "" {
		embed.Fields = append(embed.Fields, discord.Field("Channel", fmt.Sprintf("<#%s>", entry.ChannelID), true))
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: timeutil.Format(at, m.timeFormat)}
	if _, err := m.api.SendEmbed(m.cfg.LogChannelID, embed); err != nil {
		m.logger.WarnW("failed to post activity", "channel_id", m.cfg.LogChannelID, "error", err)
	}
}

func (m *Monitor) color(kind models.ActivityKind) int {
	switch kind {
	case models.ActivityMemberJoin, models.ActivityVoiceJoin:
		return m.colors.Success
	case models.ActivityMemberLeave, models.ActivityVoiceLeave, models.ActivityModeration:
		return m.colors.Warning
	case models.ActivityMessageDelete:
		return m.colors.Error
	default:
		return m.colors.Info
	}
}

func (m *Monitor) cmdActivity(c *discord.Context) error {
	limit := defaultListLimit
	if c.HasArg("limit") {
		n, err := c.IntArg("limit", 1, maxListLimit)
		if err != nil {
			return err
		}
		limit = n
	}

	entries, err := m.store.ListActivity(c.Ctx, c.GuildID(), limit)
	if err != nil {
		return fmt.Errorf("list activity: %w", err)
	}
	if len(entries) == 0 {
		return c.Reply("No activity recorded yet.")
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "`%s` %s\n", timeutil.FormatStored(e.CreatedAt, m.timeFormat), e)
	}
	return c.ReplyEmbed(discord.Embed(m.colors.Info, fmt.Sprintf("Recent activity (%d)", len(entries)), sb.String()))
}

func truncate(s string) string {
	if s == "" {
		return "(empty)"
	}
	r := []rune(s)
	if len(r) <= maxContentRunes {
		return s
	}
	return string(r[:maxContentRunes]) + "…"
}
