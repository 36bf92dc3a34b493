package discord

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/vigia/logger"
)

// Router parses prefix commands out of messages and runs them.
type Router struct {
	prefix string
	api    API
	logger logger.Logger

	mu      sync.RWMutex
	lookup  map[string]*Command
	ordered []*Command
}

type RouterParams struct {
	Prefix string
	API    API
	Logger logger.Logger
}

func NewRouter(p RouterParams) *Router {
	prefix := p.Prefix
	if prefix == "" {
		prefix = "!"
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Router{
		prefix: prefix,
		api:    p.API,
		logger: log,
		lookup: make(map[string]*Command),
	}
}

func (r *Router) Prefix() string { return r.prefix }

// Register adds cmd under its name and aliases, case-insensitively.
func (r *Router) Register(cmd *Command) error {
	if cmd.Name == "" || cmd.Run == nil {
		return fmt.Errorf("command %q: name and handler are required", cmd.Name)
	}
	for i, p := range cmd.Params {
		if p.Greedy && i != len(cmd.Params)-1 {
			return fmt.Errorf("command %q: greedy parameter %q must be last", cmd.Name, p.Name)
		}
	}

	keys := append([]string{cmd.Name}, cmd.Aliases...)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range keys {
		if _, ok := r.lookup[strings.ToLower(k)]; ok {
			return fmt.Errorf("command %q already registered", k)
		}
	}
	for _, k := range keys {
		r.lookup[strings.ToLower(k)] = cmd
	}
	r.ordered = append(r.ordered, cmd)
	return nil
}

// Commands returns registered commands in registration order.
func (r *Router) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Find looks up a command by name or alias.
func (r *Router) Find(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.lookup[strings.ToLower(name)]
	return cmd, ok
}

// Parse splits "<prefix><name> args..." into a lower-cased name and its
// arguments. Whitespace between the prefix and the name is ignored.
func (r *Router) Parse(content string) (string, []string, bool) {
	rest, ok := strings.CutPrefix(content, r.prefix)
	if !ok {
		return "", nil, false
	}
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if rest == "" {
		return "", nil, false
	}

	name, remainder := rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name, remainder = rest[:i], rest[i:]
	}
	return strings.ToLower(name), splitArgs(remainder), true
}

// splitArgs splits on whitespace, keeping "double quoted" runs together.
func splitArgs(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, ch := range s {
		switch {
		case ch == '"':
			quoted = !quoted
			pending = true
		case unicode.IsSpace(ch) && !quoted:
			if pending {
				out = append(out, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(ch)
			pending = true
		}
	}
	if pending {
		out = append(out, cur.String())
	}
	return out
}

func bindArgs(params []Param, args []string) (map[string]string, error) {
	bound := make(map[string]string, len(params))
	for i, p := range params {
		if i >= len(args) {
			if p.Required {
				return nil, MissingArgument(p.Name)
			}
			continue
		}
		if p.Greedy {
			bound[p.Name] = strings.Join(args[i:], " ")
			break
		}
		bound[p.Name] = args[i]
	}
	return bound, nil
}

// HandleMessageCreate is the discordgo handler for message events.
func (r *Router) HandleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	r.Dispatch(context.Background(), m.Message)
}

// Dispatch runs the command in m, if any, and reports whether m was a
// command invocation. Command failures never escape: they are turned
// into a reply and logged.
func (r *Router) Dispatch(ctx context.Context, m *discordgo.Message) bool {
	if m == nil || m.Author == nil || m.Author.Bot {
		return false
	}
	name, args, ok := r.Parse(m.Content)
	if !ok {
		return false
	}

	if err := r.invoke(ctx, m, name, args); err != nil {
		r.handleError(m, name, err)
	}
	return true
}

func (r *Router) invoke(ctx context.Context, m *discordgo.Message, name string, args []string) (err error) {
	cmd, ok := r.Find(name)
	if !ok {
		return NotFound(name)
	}

	if cmd.Permissions != 0 {
		if m.GuildID == "" {
			return MissingPermissions()
		}
		perms, err := r.api.UserPermissions(m.Author.ID, m.ChannelID)
		if err != nil {
			return fmt.Errorf("resolve permissions: %w", err)
		}
		if !HasAny(perms, cmd.Permissions) {
			return MissingPermissions()
		}
	}

	bound, err := bindArgs(cmd.Params, args)
	if err != nil {
		return err
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in command %s: %v\n%s", cmd.Name, rec, debug.Stack())
		}
	}()

	c := NewContext(ctx, r.api, m, cmd, bound)
	c.Prefix = r.prefix
	c.Logger = r.logger
	return cmd.Run(c)
}

func (r *Router) handleError(m *discordgo.Message, name string, err error) {
	ce := Classify(err)
	switch ce.Kind {
	case KindUnexpected:
		r.logger.ErrorW("unexpected command error",
			"command", name,
			"user_id", m.Author.ID,
			"channel_id", m.ChannelID,
			"error", err,
		)
	default:
		r.logger.DebugW("command rejected", "command", name, "kind", ce.Kind.String(), "error", err)
	}

	if _, sendErr := r.api.SendMessage(m.ChannelID, ReplyText(ce, r.prefix)); sendErr != nil {
		r.logger.ErrorW("failed to send error reply", "command", name, "error", sendErr)
	}
}
