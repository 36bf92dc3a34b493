package discord

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/vigia/logger"
)

// Param is a positional command parameter.
type Param struct {
	Name     string
	Required bool
	// Greedy consumes the rest of the arguments joined by spaces. Only
	// valid on the last parameter.
	Greedy bool
}

// HandlerFunc runs a command. Returned errors are mapped to a reply by
// the router.
type HandlerFunc func(c *Context) error

// Command is a prefix command.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Params      []Param
	// Permissions is a mask of which the invoker needs any bit.
	Permissions int64
	Run         HandlerFunc
}

// Usage renders the command signature, e.g. "kick <member> [reason...]".
func (c *Command) Usage(prefix string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(c.Name)
	for _, p := range c.Params {
		name := p.Name
		if p.Greedy {
			name += "..."
		}
		if p.Required {
			sb.WriteString(" <" + name + ">")
		} else {
			sb.WriteString(" [" + name + "]")
		}
	}
	return sb.String()
}

// Context is handed to a running command.
type Context struct {
	Ctx     context.Context
	API     API
	Message *discordgo.Message
	Command *Command
	Prefix  string
	Logger  logger.Logger

	args map[string]string
}

// NewContext builds a Context with already-bound arguments. The router
// uses it for dispatch; module tests use it to call handlers directly.
func NewContext(ctx context.Context, api API, m *discordgo.Message, cmd *Command, args map[string]string) *Context {
	if args == nil {
		args = map[string]string{}
	}
	return &Context{
		Ctx:     ctx,
		API:     api,
		Message: m,
		Command: cmd,
		Prefix:  "!",
		Logger:  logger.NewNop(),
		args:    args,
	}
}

func (c *Context) GuildID() string   { return c.Message.GuildID }
func (c *Context) ChannelID() string { return c.Message.ChannelID }

func (c *Context) AuthorID() string {
	if c.Message.Author == nil {
		return ""
	}
	return c.Message.Author.ID
}

// Arg returns the bound value of name, or "".
func (c *Context) Arg(name string) string { return c.args[name] }

// HasArg reports whether name was supplied.
func (c *Context) HasArg(name string) bool {
	_, ok := c.args[name]
	return ok
}

// IntArg parses name as an integer within [min, max].
func (c *Context) IntArg(name string, lo, hi int) (int, error) {
	raw := c.args[name]
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, BadArgument("%s must be a whole number, got %q", name, raw)
	}
	if n < lo || n > hi {
		return 0, BadArgument("%s must be between %d and %d", name, lo, hi)
	}
	return n, nil
}

var (
	userMention    = regexp.MustCompile(`^<@!?(\d+)>$`)
	channelMention = regexp.MustCompile(`^<#(\d+)>$`)
	snowflake      = regexp.MustCompile(`^\d{15,21}$`)
)

// UserArg resolves a member mention or raw ID to a user ID.
func (c *Context) UserArg(name string) (string, error) {
	return parseID(name, c.args[name], userMention)
}

// ChannelArg resolves a channel mention or raw ID to a channel ID.
func (c *Context) ChannelArg(name string) (string, error) {
	return parseID(name, c.args[name], channelMention)
}

func parseID(name, raw string, mention *regexp.Regexp) (string, error) {
	if m := mention.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	if snowflake.MatchString(raw) {
		return raw, nil
	}
	return "", BadArgument("%s: %q is not a valid mention or ID", name, raw)
}

// Reply sends content to the invoking channel.
func (c *Context) Reply(content string) error {
	_, err := c.API.SendMessage(c.ChannelID(), content)
	return err
}

// ReplyEmbed sends an embed to the invoking channel.
func (c *Context) ReplyEmbed(embed *discordgo.MessageEmbed) error {
	_, err := c.API.SendEmbed(c.ChannelID(), embed)
	return err
}
