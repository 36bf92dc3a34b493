package mentions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/vigia/clock"
	"github.com/tnicklin/vigia/discord"
	"github.com/tnicklin/vigia/logger"
	"github.com/tnicklin/vigia/models"
)

var _ discord.EventModule = (*Tracker)(nil)

const topLimit = 10

// Store is the persistence the tracker needs.
type Store interface {
	IncrementMentions(ctx context.Context, guildID, userID string, delta int, at time.Time) (models.MentionCount, error)
	GetMentionCount(ctx context.Context, guildID, userID string) (models.MentionCount, error)
	MarkRoleAwarded(ctx context.Context, guildID, userID string) error
	ResetMentions(ctx context.Context, guildID, userID string) error
	TopMentions(ctx context.Context, guildID string, limit int) ([]models.MentionCount, error)
}

// Tracker counts how many members each author tags in the tracked
// channel and grants the configured role once the threshold is reached.
type Tracker struct {
	cfg        Config
	prefix     string
	api        discord.API
	store      Store
	clock      clock.Clock
	colors     discord.Palette
	tiers      discord.Tiers
	logger     logger.Logger
	retryDelay time.Duration

	// mu serialises increment-then-award so a role is granted once.
	mu sync.Mutex
}

type Params struct {
	Config Config
	Prefix string
	API    discord.API
	Store  Store
	Clock  clock.Clock
	Colors discord.Palette
	Tiers  discord.Tiers
	Logger logger.Logger
}

func New(p Params) *Tracker {
	cfg := p.Config
	cfg.Defaults()
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	prefix := p.Prefix
	if prefix == "" {
		prefix = "!"
	}
	tiers := p.Tiers
	if tiers == (discord.Tiers{}) {
		tiers = discord.DefaultTiers()
	}
	return &Tracker{
		cfg:        cfg,
		prefix:     prefix,
		api:        p.API,
		store:      p.Store,
		clock:      clk,
		colors:     p.Colors,
		tiers:      tiers,
		logger:     log,
		retryDelay: time.Second,
	}
}

func (t *Tracker) Name() string { return "MentionTracker" }

func (t *Tracker) Handlers() []any {
	return []any{t.onMessageCreate}
}

func (t *Tracker) Commands() []*discord.Command {
	return []*discord.Command{
		{
			Name:        "tags",
			Aliases:     []string{"mentions"},
			Description: "Show how many members someone has tagged and their progress toward the role.",
			Params:      []discord.Param{{Name: "member"}},
			Run:         t.cmdTags,
		},
		{
			Name:        "tagtop",
			Aliases:     []string{"tagleaderboard"},
			Description: "Show the members with the most tags.",
			Run:         t.cmdTop,
		},
		{
			Name:        "resettags",
			Description: "Reset a member's tag count.",
			Params:      []discord.Param{{Name: "member", Required: true}},
			Permissions: t.tiers.Admin,
			Run:         t.cmdReset,
		},
	}
}

func (t *Tracker) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	t.HandleMessage(context.Background(), m.Message)
}

// HandleMessage credits the author for every distinct member tagged in m.
func (t *Tracker) HandleMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if !t.cfg.Tracks(m.ChannelID) {
		return
	}
	if strings.HasPrefix(m.Content, t.prefix) {
		return
	}

	tagged := countTagged(m)
	if tagged == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	mc, err := t.store.IncrementMentions(ctx, m.GuildID, m.Author.ID, tagged, t.clock.Now())
	if err != nil {
		t.logger.ErrorW("failed to record mentions", "guild_id", m.GuildID, "user_id", m.Author.ID, "error", err)
		return
	}
	t.logger.DebugW("mentions recorded", "user_id", m.Author.ID, "tagged", tagged, "count", mc.Count)

	if mc.Count >= t.cfg.Threshold && !mc.RoleAwarded {
		t.award(ctx, m, mc)
	}
}

// countTagged returns the number of distinct human members mentioned,
// excluding the author.
func countTagged(m *discordgo.Message) int {
	seen := make(map[string]struct{}, len(m.Mentions))
	for _, u := range m.Mentions {
		if u == nil || u.Bot || u.ID == m.Author.ID {
			continue
		}
		seen[u.ID] = struct{}{}
	}
	return len(seen)
}

func (t *Tracker) award(ctx context.Context, m *discordgo.Message, mc models.MentionCount) {
	err := retry.Do(
		func() error {
			return t.api.AddRole(m.GuildID, m.Author.ID, t.cfg.RoleID)
		},
		retry.Context(ctx),
		retry.Attempts(uint(t.cfg.AwardAttempts)),
		retry.Delay(t.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.logger.WarnW("role grant failed, retrying", "user_id", m.Author.ID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		// Not marked as awarded: the next tag retries the grant.
		t.logger.ErrorW("failed to grant role", "user_id", m.Author.ID, "role_id", t.cfg.RoleID, "error", err)
		return
	}

	if err := t.store.MarkRoleAwarded(ctx, m.GuildID, m.Author.ID); err != nil {
		t.logger.ErrorW("failed to persist role award", "user_id", m.Author.ID, "error", err)
	}
	t.logger.InfoW("role awarded", "user_id", m.Author.ID, "role_id", t.cfg.RoleID, "count", mc.Count)

	embed := discord.Embed(t.colors.Success, "🎉 Role unlocked",
		fmt.Sprintf("<@%s> has tagged %d members and earned <@&%s>!", m.Author.ID, mc.Count, t.cfg.RoleID))
	if _, err := t.api.SendEmbed(m.ChannelID, embed); err != nil {
		t.logger.WarnW("failed to announce role award", "error", err)
	}
}

// errGuildOnly rejects mention commands sent outside a server.
var errGuildOnly = discord.BadArgument("this command only works in a server")

func (t *Tracker) cmdTags(c *discord.Context) error {
	if c.GuildID() == "" {
		return errGuildOnly
	}
	userID := c.AuthorID()
	if c.HasArg("member") {
		id, err := c.UserArg("member")
		if err != nil {
			return err
		}
		userID = id
	}

	mc, err := t.store.GetMentionCount(c.Ctx, c.GuildID(), userID)
	if err != nil {
		return fmt.Errorf("get mention count: %w", err)
	}

	status := fmt.Sprintf("%d more to go", mc.Remaining(t.cfg.Threshold))
	if mc.RoleAwarded {
		status = "Role awarded"
	} else if mc.Remaining(t.cfg.Threshold) == 0 {
		status = "Threshold reached, role pending"
	}

	embed := discord.Embed(t.colors.Info, "Tag progress", fmt.Sprintf("<@%s>", userID))
	embed.Fields = []*discordgo.MessageEmbedField{
		discord.Field("Tags", fmt.Sprintf("%d/%d", mc.Count, t.cfg.Threshold), true),
		discord.Field("Status", status, true),
	}
	return c.ReplyEmbed(embed)
}

func (t *Tracker) cmdTop(c *discord.Context) error {
	if c.GuildID() == "" {
		return errGuildOnly
	}
	top, err := t.store.TopMentions(c.Ctx, c.GuildID(), topLimit)
	if err != nil {
		return fmt.Errorf("list top mentions: %w", err)
	}
	if len(top) == 0 {
		return c.Reply("No tags recorded yet.")
	}

	var sb strings.Builder
	for i, mc := range top {
		marker := ""
		if mc.RoleAwarded {
			marker = " ✅"
		}
		fmt.Fprintf(&sb, "%d. <@%s>: %d%s\n", i+1, mc.UserID, mc.Count, marker)
	}
	return c.ReplyEmbed(discord.Embed(t.colors.Info, "Top taggers", sb.String()))
}

func (t *Tracker) cmdReset(c *discord.Context) error {
	if c.GuildID() == "" {
		return errGuildOnly
	}
	userID, err := c.UserArg("member")
	if err != nil {
		return err
	}
	if err := t.store.ResetMentions(c.Ctx, c.GuildID(), userID); err != nil {
		return fmt.Errorf("reset mentions: %w", err)
	}
	t.logger.InfoW("mentions reset", "user_id", userID, "by", c.AuthorID())
	return c.ReplyEmbed(discord.Embed(t.colors.Success, "Tags reset", fmt.Sprintf("<@%s> is back to 0 tags.", userID)))
}
