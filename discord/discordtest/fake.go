// Package discordtest provides an in-memory discord.API for tests.
package discordtest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/vigia/discord"
)

var _ discord.API = (*FakeAPI)(nil)

// ErrNotFound is returned for unknown guilds and members.
var ErrNotFound = errors.New("not found")

// Sent is one outgoing message.
type Sent struct {
	ChannelID string
	Content   string
	Embed     *discordgo.MessageEmbed
}

// RoleGrant is one AddRole call.
type RoleGrant struct {
	GuildID, UserID, RoleID string
}

// FakeAPI records calls and serves canned lookups. The zero value is
// ready to use.
type FakeAPI struct {
	mu sync.Mutex

	Sent        []Sent
	Deleted     []string
	BulkDeleted [][]string
	Roles       []RoleGrant
	Kicked      []string
	Banned      []string
	Unbanned    []string
	TimedOut    map[string]*time.Time
	Slowmode    map[string]int
	Watching    string

	Perms    map[string]int64
	Guilds   map[string]*discordgo.Guild
	Members  map[string]*discordgo.Member
	History  map[string][]*discordgo.Message
	SelfUser *discordgo.User
	Ping     time.Duration

	// AddRoleErrs are returned by successive AddRole calls before it
	// starts succeeding.
	AddRoleErrs []error
	// Fail makes the named method return the error.
	Fail map[string]error

	nextID int
}

func (f *FakeAPI) fail(method string) error {
	if f.Fail == nil {
		return nil
	}
	return f.Fail[method]
}

func (f *FakeAPI) id() string {
	f.nextID++
	return fmt.Sprintf("msg-%d", f.nextID)
}

func (f *FakeAPI) SendMessage(channelID, content string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SendMessage"); err != nil {
		return nil, err
	}
	f.Sent = append(f.Sent, Sent{ChannelID: channelID, Content: content})
	return &discordgo.Message{ID: f.id(), ChannelID: channelID, Content: content}, nil
}

func (f *FakeAPI) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SendEmbed"); err != nil {
		return nil, err
	}
	f.Sent = append(f.Sent, Sent{ChannelID: channelID, Embed: embed})
	return &discordgo.Message{ID: f.id(), ChannelID: channelID}, nil
}

func (f *FakeAPI) DeleteMessage(channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteMessage"); err != nil {
		return err
	}
	f.Deleted = append(f.Deleted, channelID+"/"+messageID)
	return nil
}

func (f *FakeAPI) RecentMessages(channelID string, limit int) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.History[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, f.fail("RecentMessages")
}

func (f *FakeAPI) BulkDelete(channelID string, messageIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("BulkDelete"); err != nil {
		return err
	}
	f.BulkDeleted = append(f.BulkDeleted, messageIDs)
	return nil
}

func (f *FakeAPI) UserPermissions(userID, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UserPermissions"); err != nil {
		return 0, err
	}
	return f.Perms[userID], nil
}

func (f *FakeAPI) AddRole(guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.AddRoleErrs) > 0 {
		err := f.AddRoleErrs[0]
		f.AddRoleErrs = f.AddRoleErrs[1:]
		return err
	}
	f.Roles = append(f.Roles, RoleGrant{GuildID: guildID, UserID: userID, RoleID: roleID})
	return nil
}

func (f *FakeAPI) Kick(_, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Kick"); err != nil {
		return err
	}
	f.Kicked = append(f.Kicked, userID)
	return nil
}

func (f *FakeAPI) Ban(_, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Ban"); err != nil {
		return err
	}
	f.Banned = append(f.Banned, userID)
	return nil
}

func (f *FakeAPI) Unban(_, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Unban"); err != nil {
		return err
	}
	f.Unbanned = append(f.Unbanned, userID)
	return nil
}

func (f *FakeAPI) Timeout(_, userID string, until *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Timeout"); err != nil {
		return err
	}
	if f.TimedOut == nil {
		f.TimedOut = make(map[string]*time.Time)
	}
	f.TimedOut[userID] = until
	return nil
}

func (f *FakeAPI) SetSlowmode(channelID string, seconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SetSlowmode"); err != nil {
		return err
	}
	if f.Slowmode == nil {
		f.Slowmode = make(map[string]int)
	}
	f.Slowmode[channelID] = seconds
	return nil
}

func (f *FakeAPI) Guild(guildID string) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.Guilds[guildID]
	if !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

func (f *FakeAPI) Member(guildID, userID string) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.Members[guildID+"/"+userID]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// AddMember registers m for Member lookups.
func (f *FakeAPI) AddMember(guildID string, m *discordgo.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Members == nil {
		f.Members = make(map[string]*discordgo.Member)
	}
	f.Members[guildID+"/"+m.User.ID] = m
}

func (f *FakeAPI) Latency() time.Duration { return f.Ping }

func (f *FakeAPI) SetWatching(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SetWatching"); err != nil {
		return err
	}
	f.Watching = name
	return nil
}

func (f *FakeAPI) Self() *discordgo.User { return f.SelfUser }

// Messages returns a copy of everything sent so far.
func (f *FakeAPI) Messages() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sent, len(f.Sent))
	copy(out, f.Sent)
	return out
}

// LastContent returns the text of the most recent plain message.
func (f *FakeAPI) LastContent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Sent) - 1; i >= 0; i-- {
		if f.Sent[i].Embed == nil {
			return f.Sent[i].Content
		}
	}
	return ""
}

// LastEmbed returns the most recent embed sent.
func (f *FakeAPI) LastEmbed() *discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Sent) - 1; i >= 0; i-- {
		if f.Sent[i].Embed != nil {
			return f.Sent[i].Embed
		}
	}
	return nil
}

// Msg builds a guild message from author with content.
func Msg(guildID, channelID, authorID, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "in-" + authorID,
		GuildID:   guildID,
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "user" + authorID},
	}
}
