package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// API is the slice of the Discord REST/gateway surface the bot uses.
type API interface {
	SendMessage(channelID, content string) (*discordgo.Message, error)
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
	DeleteMessage(channelID, messageID string) error
	RecentMessages(channelID string, limit int) ([]*discordgo.Message, error)
	BulkDelete(channelID string, messageIDs []string) error

	UserPermissions(userID, channelID string) (int64, error)
	AddRole(guildID, userID, roleID string) error
	Kick(guildID, userID, reason string) error
	Ban(guildID, userID, reason string) error
	Unban(guildID, userID string) error
	Timeout(guildID, userID string, until *time.Time) error
	SetSlowmode(channelID string, seconds int) error

	Guild(guildID string) (*discordgo.Guild, error)
	Member(guildID, userID string) (*discordgo.Member, error)

	Latency() time.Duration
	SetWatching(name string) error
	Self() *discordgo.User
}

var _ API = (*sessionAPI)(nil)

// sessionAPI adapts *discordgo.Session to API, preferring the state
// cache over REST lookups.
type sessionAPI struct {
	s *discordgo.Session
}

// NewAPI wraps a discordgo session.
func NewAPI(s *discordgo.Session) API {
	return &sessionAPI{s: s}
}

func (a *sessionAPI) SendMessage(channelID, content string) (*discordgo.Message, error) {
	return a.s.ChannelMessageSend(channelID, content)
}

func (a *sessionAPI) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return a.s.ChannelMessageSendEmbed(channelID, embed)
}

func (a *sessionAPI) DeleteMessage(channelID, messageID string) error {
	return a.s.ChannelMessageDelete(channelID, messageID)
}

func (a *sessionAPI) RecentMessages(channelID string, limit int) ([]*discordgo.Message, error) {
	return a.s.ChannelMessages(channelID, limit, "", "", "")
}

func (a *sessionAPI) BulkDelete(channelID string, messageIDs []string) error {
	return a.s.ChannelMessagesBulkDelete(channelID, messageIDs)
}

func (a *sessionAPI) UserPermissions(userID, channelID string) (int64, error) {
	return a.s.UserChannelPermissions(userID, channelID)
}

func (a *sessionAPI) AddRole(guildID, userID, roleID string) error {
	return a.s.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (a *sessionAPI) Kick(guildID, userID, reason string) error {
	return a.s.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (a *sessionAPI) Ban(guildID, userID, reason string) error {
	return a.s.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (a *sessionAPI) Unban(guildID, userID string) error {
	return a.s.GuildBanDelete(guildID, userID)
}

func (a *sessionAPI) Timeout(guildID, userID string, until *time.Time) error {
	return a.s.GuildMemberTimeout(guildID, userID, until)
}

func (a *sessionAPI) SetSlowmode(channelID string, seconds int) error {
	_, err := a.s.ChannelEdit(channelID, &discordgo.ChannelEdit{RateLimitPerUser: &seconds})
	return err
}

func (a *sessionAPI) Guild(guildID string) (*discordgo.Guild, error) {
	if g, err := a.s.State.Guild(guildID); err == nil {
		return g, nil
	}
	return a.s.Guild(guildID)
}

func (a *sessionAPI) Member(guildID, userID string) (*discordgo.Member, error) {
	if m, err := a.s.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	return a.s.GuildMember(guildID, userID)
}

func (a *sessionAPI) Latency() time.Duration {
	return a.s.HeartbeatLatency()
}

func (a *sessionAPI) SetWatching(name string) error {
	return a.s.UpdateWatchStatus(0, name)
}

func (a *sessionAPI) Self() *discordgo.User {
	if a.s.State == nil {
		return nil
	}
	return a.s.State.User
}

// Embed builds an embed with the common fields set.
func Embed(color int, title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
	}
}

// Field returns an embed field.
func Field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}
