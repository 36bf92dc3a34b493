package discord_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/vigia/discord"
	"github.com/tnicklin/vigia/discord/discordtest"
)

func newRouter(t *testing.T, api discord.API, cmds ...*discord.Command) *discord.Router {
	t.Helper()
	r := discord.NewRouter(discord.RouterParams{Prefix: "!", API: api})
	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			t.Fatalf("Register(%s): %v", c.Name, err)
		}
	}
	return r
}

func TestRouterParse(t *testing.T) {
	r := newRouter(t, &discordtest.FakeAPI{})

	tests := []struct {
		name     string
		content  string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{name: "plain", content: "!ping", wantName: "ping", wantOK: true},
		{name: "upper case", content: "!PiNg", wantName: "ping", wantOK: true},
		{name: "space after prefix", content: "!   ping now", wantName: "ping", wantArgs: []string{"now"}, wantOK: true},
		{name: "quoted", content: `!warn <@1> "spamming links" again`, wantName: "warn", wantArgs: []string{"<@1>", "spamming links", "again"}, wantOK: true},
		{name: "no prefix", content: "ping", wantOK: false},
		{name: "prefix only", content: "!", wantOK: false},
		{name: "prefix and spaces", content: "!   ", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, ok := r.Parse(tt.content)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.content, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if len(args) != 0 || len(tt.wantArgs) != 0 {
				if !reflect.DeepEqual(args, tt.wantArgs) {
					t.Errorf("args = %#v, want %#v", args, tt.wantArgs)
				}
			}
		})
	}
}

func TestRouterRegisterRejectsDuplicates(t *testing.T) {
	noop := func(*discord.Context) error { return nil }
	r := newRouter(t, &discordtest.FakeAPI{}, &discord.Command{Name: "ping", Aliases: []string{"p"}, Run: noop})

	if err := r.Register(&discord.Command{Name: "P", Run: noop}); err == nil {
		t.Fatal("Register() accepted an alias collision")
	}
	if err := r.Register(&discord.Command{Name: "bad", Params: []discord.Param{{Name: "a", Greedy: true}, {Name: "b"}}, Run: noop}); err == nil {
		t.Fatal("Register() accepted a greedy parameter that is not last")
	}
	if cmd, ok := r.Find("P"); !ok || cmd.Name != "ping" {
		t.Fatalf("Find(P) = %v, %v", cmd, ok)
	}
}

func TestRouterDispatchBindsArguments(t *testing.T) {
	api := &discordtest.FakeAPI{}
	var got map[string]string
	cmd := &discord.Command{
		Name: "timeout",
		Params: []discord.Param{
			{Name: "member", Required: true},
			{Name: "duration", Required: true},
			{Name: "reason", Greedy: true},
		},
		Run: func(c *discord.Context) error {
			got = map[string]string{
				"member":   c.Arg("member"),
				"duration": c.Arg("duration"),
				"reason":   c.Arg("reason"),
			}
			return nil
		},
	}
	r := newRouter(t, api, cmd)

	msg := discordtest.Msg("g", "c", "u", "!timeout <@42> 10m being   very loud")
	if !r.Dispatch(context.Background(), msg) {
		t.Fatal("Dispatch() = false for a command")
	}
	want := map[string]string{"member": "<@42>", "duration": "10m", "reason": "being very loud"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("bound args = %v, want %v", got, want)
	}
	if len(api.Messages()) != 0 {
		t.Fatalf("unexpected replies: %+v", api.Messages())
	}
}

func TestRouterDispatchErrorReplies(t *testing.T) {
	boom := errors.New("database exploded")
	cmds := []*discord.Command{
		{Name: "timeout", Params: []discord.Param{{Name: "member", Required: true}, {Name: "duration", Required: true}}, Run: func(*discord.Context) error { return nil }},
		{Name: "purge", Params: []discord.Param{{Name: "count", Required: true}}, Run: func(c *discord.Context) error {
			_, err := c.IntArg("count", 1, 100)
			return err
		}},
		{Name: "kick", Permissions: discordgo.PermissionKickMembers, Run: func(*discord.Context) error { return nil }},
		{Name: "explode", Run: func(*discord.Context) error { return boom }},
		{Name: "panic", Run: func(*discord.Context) error { panic("nil map") }},
	}

	tests := []struct {
		name    string
		content string
		guild   string
		want    string
	}{
		{name: "unknown command", content: "!nope", guild: "g", want: "❌ Command not found. Use `!help` to see available commands."},
		{name: "missing duration", content: "!timeout <@1>", guild: "g", want: "❌ Missing required argument: duration"},
		{name: "bad count", content: "!purge lots", guild: "g", want: "❌ Invalid argument provided: count must be a whole number, got \"lots\""},
		{name: "no permission", content: "!kick <@1>", guild: "g", want: "❌ You don't have permission to use this command."},
		{name: "permission in dm", content: "!kick <@1>", guild: "", want: "❌ You don't have permission to use this command."},
		{name: "unexpected", content: "!explode", guild: "g", want: "❌ An unexpected error occurred. Please try again later."},
		{name: "panic", content: "!panic", guild: "g", want: "❌ An unexpected error occurred. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &discordtest.FakeAPI{}
			r := newRouter(t, api, cmds...)
			r.Dispatch(context.Background(), discordtest.Msg(tt.guild, "c", "u", tt.content))

			if got := api.LastContent(); got != tt.want {
				t.Fatalf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouterDispatchPermissionGranted(t *testing.T) {
	tests := []struct {
		name  string
		perms int64
	}{
		{name: "exact bit", perms: discordgo.PermissionKickMembers},
		{name: "administrator", perms: discordgo.PermissionAdministrator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &discordtest.FakeAPI{Perms: map[string]int64{"mod": tt.perms}}
			ran := false
			r := newRouter(t, api, &discord.Command{
				Name:        "kick",
				Permissions: discordgo.PermissionKickMembers | discordgo.PermissionBanMembers,
				Run:         func(*discord.Context) error { ran = true; return nil },
			})
			r.Dispatch(context.Background(), discordtest.Msg("g", "c", "mod", "!kick"))
			if !ran {
				t.Fatalf("command did not run; replies: %+v", api.Messages())
			}
		})
	}
}

func TestRouterIgnoresBotsAndPlainText(t *testing.T) {
	api := &discordtest.FakeAPI{}
	r := newRouter(t, api)

	bot := discordtest.Msg("g", "c", "b", "!nope")
	bot.Author.Bot = true
	if r.Dispatch(context.Background(), bot) {
		t.Fatal("Dispatch() handled a bot message")
	}
	if r.Dispatch(context.Background(), discordtest.Msg("g", "c", "u", "hello there")) {
		t.Fatal("Dispatch() handled plain text")
	}
	if len(api.Messages()) != 0 {
		t.Fatalf("unexpected replies: %+v", api.Messages())
	}
}

func TestCommandUsage(t *testing.T) {
	cmd := &discord.Command{Name: "ban", Params: []discord.Param{{Name: "member", Required: true}, {Name: "reason", Greedy: true}}}
	if got := cmd.Usage("!"); got != "!ban <member> [reason...]" {
		t.Fatalf("Usage() = %q", got)
	}
}

func TestContextArgParsers(t *testing.T) {
	c := discord.NewContext(context.Background(), &discordtest.FakeAPI{}, discordtest.Msg("g", "c", "u", ""), nil, map[string]string{
		"mention": "<@!123456789012345678>",
		"raw":     "123456789012345678",
		"channel": "<#223456789012345678>",
		"junk":    "bob",
	})

	for _, name := range []string{"mention", "raw"} {
		id, err := c.UserArg(name)
		if err != nil || id != "123456789012345678" {
			t.Errorf("UserArg(%s) = %q, %v", name, id, err)
		}
	}
	if id, err := c.ChannelArg("channel"); err != nil || id != "223456789012345678" {
		t.Errorf("ChannelArg() = %q, %v", id, err)
	}
	_, err := c.UserArg("junk")
	var ce *discord.CommandError
	if !errors.As(err, &ce) || ce.Kind != discord.KindBadArgument {
		t.Fatalf("UserArg(junk) error = %v, want bad argument", err)
	}
	if !strings.Contains(ce.Detail, "bob") {
		t.Errorf("detail %q does not name the input", ce.Detail)
	}
}
