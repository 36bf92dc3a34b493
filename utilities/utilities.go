// Package utilities provides informational commands: help, ping, user and
// server info, avatar and uptime.
package utilities

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/vigia/clock"
	"github.com/tnicklin/vigia/discord"
	"github.com/tnicklin/vigia/logger"
	"github.com/tnicklin/vigia/timeutil"
)

var _ discord.Module = (*Utilities)(nil)

const avatarSize = "1024"

type Utilities struct {
	api        discord.API
	clock      clock.Clock
	colors     discord.Palette
	timeFormat string
	commands   func() []*discord.Command
	startedAt  time.Time
	logger     logger.Logger
}

type Params struct {
	API        discord.API
	Clock      clock.Clock
	Colors     discord.Palette
	TimeFormat string
	// Commands lists every registered command for help.
	Commands func() []*discord.Command
	Logger   logger.Logger
}

func New(p Params) *Utilities {
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	layout := p.TimeFormat
	if layout == "" {
		layout = timeutil.DisplayLayout
	}
	return &Utilities{
		api:        p.API,
		clock:      clk,
		colors:     p.Colors,
		timeFormat: layout,
		commands:   p.Commands,
		startedAt:  clk.Now(),
		logger:     log,
	}
}

func (u *Utilities) Name() string { return "Utilities" }

func (u *Utilities) Commands() []*discord.Command {
	return []*discord.Command{
		{
			Name:        "help",
			Aliases:     []string{"commands"},
			Description: "List commands, or show usage for one.",
			Params:      []discord.Param{{Name: "command"}},
			Run:         u.cmdHelp,
		},
		{
			Name:        "ping",
			Description: "Show gateway latency.",
			Run:         u.cmdPing,
		},
		{
			Name:        "userinfo",
			Aliases:     []string{"whois"},
			Description: "Show information about a member.",
			Params:      []discord.Param{{Name: "member"}},
			Run:         u.cmdUserInfo,
		},
		{
			Name:        "serverinfo",
			Description: "Show information about this server.",
			Run:         u.cmdServerInfo,
		},
		{
			Name:        "avatar",
			Description: "Show a member's avatar.",
			Params:      []discord.Param{{Name: "member"}},
			Run:         u.cmdAvatar,
		},
		{
			Name:        "uptime",
			Description: "Show how long the bot has been running.",
			Run:         u.cmdUptime,
		},
	}
}

func (u *Utilities) registered() []*discord.Command {
	if u.commands == nil {
		return u.Commands()
	}
	return u.commands()
}

func (u *Utilities) cmdHelp(c *discord.Context) error {
	cmds := u.registered()

	if c.HasArg("command") {
		name := strings.TrimPrefix(strings.ToLower(c.Arg("command")), c.Prefix)
		for _, cmd := range cmds {
			if cmd.Name == name || containsFold(cmd.Aliases, name) {
				embed := discord.Embed(u.colors.Info, cmd.Usage(c.Prefix), cmd.Description)
				if len(cmd.Aliases) > 0 {
					embed.Fields = append(embed.Fields, discord.Field("Aliases", strings.Join(cmd.Aliases, ", "), false))
				}
				return c.ReplyEmbed(embed)
			}
		}
		return discord.NotFound(name)
	}

	var sb strings.Builder
	for _, cmd := range cmds {
		fmt.Fprintf(&sb, "`%s` %s\n", cmd.Usage(c.Prefix), cmd.Description)
	}
	embed := discord.Embed(u.colors.Info, "Commands", sb.String())
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Use %shelp <command> for details.", c.Prefix)}
	return c.ReplyEmbed(embed)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// offsetClock is implemented by clocks that correct for drift.
type offsetClock interface {
	Offset() time.Duration
}

func (u *Utilities) cmdPing(c *discord.Context) error {
	ms := u.api.Latency().Milliseconds()
	embed := discord.Embed(u.colors.Info, "🏓 Pong!", fmt.Sprintf("Latency: %dms", ms))
	if oc, ok := u.clock.(offsetClock); ok {
		embed.Fields = append(embed.Fields, discord.Field("Clock offset", oc.Offset().Round(time.Millisecond).String(), true))
	}
	return c.ReplyEmbed(embed)
}

// memberArg resolves the optional member argument, defaulting to the
// invoker.
func memberArg(c *discord.Context) (string, error) {
	if !c.HasArg("member") {
		return c.AuthorID(), nil
	}
	return c.UserArg("member")
}

func (u *Utilities) cmdUserInfo(c *discord.Context) error {
	userID, err := memberArg(c)
	if err != nil {
		return err
	}
	member, err := u.api.Member(c.GuildID(), userID)
	if err != nil {
		return discord.BadArgument("member <@%s> not found", userID)
	}

	user := member.User
	embed := discord.Embed(u.colors.Info, user.Username, fmt.Sprintf("<@%s>", user.ID))
	embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL(avatarSize)}
	embed.Fields = []*discordgo.MessageEmbedField{
		discord.Field("ID", user.ID, true),
		discord.Field("Bot", yesNo(user.Bot), true),
	}
	if member.Nick != "" {
		embed.Fields = append(embed.Fields, discord.Field("Nickname", member.Nick, true))
	}
	if created, err := discordgo.SnowflakeTimestamp(user.ID); err == nil {
		embed.Fields = append(embed.Fields, discord.Field("Account created", timeutil.Format(created, u.timeFormat), false))
	}
	if !member.JoinedAt.IsZero() {
		embed.Fields = append(embed.Fields, discord.Field("Joined server", timeutil.Format(member.JoinedAt, u.timeFormat), false))
	}
	if len(member.Roles) > 0 {
		roles := make([]string, len(member.Roles))
		for i, id := range member.Roles {
			roles[i] = fmt.Sprintf("<@&%s>", id)
		}
		embed.Fields = append(embed.Fields, discord.Field(fmt.Sprintf("Roles (%d)", len(roles)), strings.Join(roles, " "), false))
	}
	return c.ReplyEmbed(embed)
}

func (u *Utilities) cmdServerInfo(c *discord.Context) error {
	if c.GuildID() == "" {
		return discord.BadArgument("this command only works in a server")
	}
	guild, err := u.api.Guild(c.GuildID())
	if err != nil {
		return fmt.Errorf("lookup guild %s: %w", c.GuildID(), err)
	}

	embed := discord.Embed(u.colors.Info, guild.Name, "")
	if guild.Icon != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: discordgo.EndpointGuildIcon(guild.ID, guild.Icon)}
	}
	embed.Fields = []*discordgo.MessageEmbedField{
		discord.Field("ID", guild.ID, true),
		discord.Field("Owner", fmt.Sprintf("<@%s>", guild.OwnerID), true),
		discord.Field("Members", fmt.Sprint(guild.MemberCount), true),
		discord.Field("Channels", fmt.Sprint(len(guild.Channels)), true),
		discord.Field("Roles", fmt.Sprint(len(guild.Roles)), true),
		discord.Field("Boosts", fmt.Sprint(guild.PremiumSubscriptionCount), true),
	}
	if created, err := discordgo.SnowflakeTimestamp(guild.ID); err == nil {
		embed.Fields = append(embed.Fields, discord.Field("Created", timeutil.Format(created, u.timeFormat), false))
	}
	return c.ReplyEmbed(embed)
}

func (u *Utilities) cmdAvatar(c *discord.Context) error {
	userID, err := memberArg(c)
	if err != nil {
		return err
	}
	member, err := u.api.Member(c.GuildID(), userID)
	if err != nil {
		return discord.BadArgument("member <@%s> not found", userID)
	}
	embed := discord.Embed(u.colors.Info, member.User.Username+"'s avatar", "")
	embed.Image = &discordgo.MessageEmbedImage{URL: member.User.AvatarURL(avatarSize)}
	return c.ReplyEmbed(embed)
}

func (u *Utilities) cmdUptime(c *discord.Context) error {
	up := u.clock.Now().Sub(u.startedAt)
	desc := fmt.Sprintf("Up for %s (since %s)", timeutil.Humanize(up), timeutil.Format(u.startedAt, u.timeFormat))
	return c.ReplyEmbed(discord.Embed(u.colors.Info, "⏱️ Uptime", desc))
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
