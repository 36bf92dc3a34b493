package servermgmt

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/vigia/discord"
	"github.com/tnicklin/vigia/models"
)

// hasAllowedMedia reports whether any attachment has an allowed extension.
func hasAllowedMedia(attachments []*discordgo.MessageAttachment, allowed map[string]struct{}) bool {
	for _, a := range attachments {
		if a == nil {
			continue
		}
		if _, ok := allowed[strings.ToLower(path.Ext(a.Filename))]; ok {
			return true
		}
	}
	return false
}

func (m *Manager) onMessageCreate(_ *discordgo.Session, e *discordgo.MessageCreate) {
	m.HandleMessage(context.Background(), e.Message)
}

// HandleMessage deletes messages without allowed media in media-only
// channels. Moderators are exempt.
func (m *Manager) HandleMessage(ctx context.Context, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	mediaOnly, err := m.isMediaOnly(ctx, msg.GuildID, msg.ChannelID)
	if err != nil {
		m.logger.ErrorW("failed to check media-only channel", "channel_id", msg.ChannelID, "error", err)
		return
	}
	if !mediaOnly || hasAllowedMedia(msg.Attachments, m.allowed) {
		return
	}

	perms, err := m.api.UserPermissions(msg.Author.ID, msg.ChannelID)
	if err == nil && discord.HasAny(perms, m.tiers.Moderator) {
		return
	}

	if err := m.api.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
		m.logger.ErrorW("failed to delete non-media message", "channel_id", msg.ChannelID, "message_id", msg.ID, "error", err)
		return
	}
	m.logger.InfoW("removed non-media message", "channel_id", msg.ChannelID, "user_id", msg.Author.ID)

	notice := fmt.Sprintf("<@%s>, this channel only allows media files (images, video or audio).", msg.Author.ID)
	if _, err := m.api.SendMessage(msg.ChannelID, notice); err != nil {
		m.logger.WarnW("failed to send media-only notice", "error", err)
	}
}

func (m *Manager) isMediaOnly(ctx context.Context, guildID, channelID string) (bool, error) {
	if slices.Contains(m.media.OnlyChannels, channelID) {
		return true, nil
	}
	stored, err := m.store.ListMediaChannels(ctx, guildID)
	if err != nil {
		return false, err
	}
	return slices.Contains(stored, channelID), nil
}

func (m *Manager) cmdMediaOnly(c *discord.Context) error {
	action := strings.ToLower(c.Arg("action"))
	switch action {
	case "list":
		stored, err := m.store.ListMediaChannels(c.Ctx, c.GuildID())
		if err != nil {
			return fmt.Errorf("list media channels: %w", err)
		}
		all := append(slices.Clone(m.media.OnlyChannels), stored...)
		slices.Sort(all)
		all = slices.Compact(all)
		if len(all) == 0 {
			return c.Reply("No media-only channels configured.")
		}
		lines := make([]string, len(all))
		for i, id := range all {
			lines[i] = fmt.Sprintf("<#%s>", id)
		}
		return c.ReplyEmbed(discord.Embed(m.colors.Info, "Media-only channels", strings.Join(lines, "\n")))

	case "add", "remove":
		channelID := c.ChannelID()
		if c.HasArg("channel") {
			id, err := c.ChannelArg("channel")
			if err != nil {
				return err
			}
			channelID = id
		}
		if action == "add" {
			if err := m.store.AddMediaChannel(c.Ctx, c.GuildID(), channelID); err != nil {
				return fmt.Errorf("add media channel: %w", err)
			}
			m.record(c, c.AuthorID(), channelID, "media-only enabled")
			return c.ReplyEmbed(discord.Embed(m.colors.Success, "Media-only enabled", fmt.Sprintf("<#%s> now only accepts media files.", channelID)))
		}
		removed, err := m.store.RemoveMediaChannel(c.Ctx, c.GuildID(), channelID)
		if err != nil {
			return fmt.Errorf("remove media channel: %w", err)
		}
		if !removed {
			if slices.Contains(m.media.OnlyChannels, channelID) {
				return discord.BadArgument("<#%s> is media-only by configuration", channelID)
			}
			return discord.BadArgument("<#%s> is not a media-only channel", channelID)
		}
		m.record(c, c.AuthorID(), channelID, "media-only disabled")
		return c.ReplyEmbed(discord.Embed(m.colors.Success, "Media-only disabled", fmt.Sprintf("<#%s> accepts any message again.", channelID)))
	}
	return discord.BadArgument("action must be add, remove or list")
}

// record stores a moderation activity entry; failures are only logged.
func (m *Manager) record(c *discord.Context, targetID, channelID, details string) {
	entry := models.ActivityEntry{
		GuildID:   c.GuildID(),
		UserID:    targetID,
		ChannelID: channelID,
		Kind:      models.ActivityModeration,
		Details:   fmt.Sprintf("%s by <@%s>", details, c.AuthorID()),
		CreatedAt: m.now(),
	}
	if err := m.store.AddActivity(c.Ctx, entry); err != nil {
		m.logger.WarnW("failed to record moderation action", "details", details, "error", err)
	}
}
