package models

import (
	"fmt"
	"strings"
)

// MentionCount is the running tag tally of one member in one guild.
type MentionCount struct {
	GuildID     string `json:"guild_id"`
	UserID      string `json:"user_id"`
	Count       int    `json:"count"`
	RoleAwarded bool   `json:"role_awarded"`
	UpdatedAt   string `json:"updated_at"`
}

// Remaining returns how many more tags are needed to reach threshold.
func (m MentionCount) Remaining(threshold int) int {
	if m.Count >= threshold {
		return 0
	}
	return threshold - m.Count
}

// Warning is a moderator-issued warning.
type Warning struct {
	ID          int64  `json:"id"`
	GuildID     string `json:"guild_id"`
	UserID      string `json:"user_id"`
	ModeratorID string `json:"moderator_id"`
	Reason      string `json:"reason"`
	CreatedAt   string `json:"created_at"`
}

// ActivityKind names a logged server event.
type ActivityKind string

const (
	ActivityMemberJoin    ActivityKind = "member_join"
	ActivityMemberLeave   ActivityKind = "member_leave"
	ActivityMessageDelete ActivityKind = "message_delete"
	ActivityMessageEdit   ActivityKind = "message_edit"
	ActivityVoiceJoin     ActivityKind = "voice_join"
	ActivityVoiceLeave    ActivityKind = "voice_leave"
	ActivityVoiceMove     ActivityKind = "voice_move"
	ActivityModeration    ActivityKind = "moderation"
)

// Label returns a human readable title for the kind.
func (k ActivityKind) Label() string {
	switch k {
	case ActivityMemberJoin:
		return "Member joined"
	case ActivityMemberLeave:
		return "Member left"
	case ActivityMessageDelete:
		return "Message deleted"
	case ActivityMessageEdit:
		return "Message edited"
	case ActivityVoiceJoin:
		return "Joined voice"
	case ActivityVoiceLeave:
		return "Left voice"
	case ActivityVoiceMove:
		return "Moved voice channel"
	case ActivityModeration:
		return "Moderation"
	default:
		return strings.ReplaceAll(string(k), "_", " ")
	}
}

// ActivityEntry is one row of the server activity log.
type ActivityEntry struct {
	ID        int64        `json:"id"`
	GuildID   string       `json:"guild_id"`
	UserID    string       `json:"user_id"`
	ChannelID string       `json:"channel_id"`
	Kind      ActivityKind `json:"kind"`
	Details   string       `json:"details"`
	CreatedAt string       `json:"created_at"`
}

func (e ActivityEntry) String() string {
	if e.ChannelID == "" {
		return fmt.Sprintf("%s <@%s>: %s", e.Kind.Label(), e.UserID, e.Details)
	}
	return fmt.Sprintf("%s <@%s> in <#%s>: %s", e.Kind.Label(), e.UserID, e.ChannelID, e.Details)
}
