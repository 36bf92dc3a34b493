package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestPermissionMask(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		want    int64
		wantErr bool
	}{
		{name: "empty", want: 0},
		{name: "moderator", names: []string{"kick_members", "ban_members", "manage_messages"},
			want: discordgo.PermissionKickMembers | discordgo.PermissionBanMembers | discordgo.PermissionManageMessages},
		{name: "case and space", names: []string{" Manage_Guild "}, want: permissionManageGuild},
		{name: "unknown", names: []string{"fly"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PermissionMask(tt.names)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PermissionMask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PermissionMask() = %b, want %b", got, tt.want)
			}
		})
	}
}

func TestHasAny(t *testing.T) {
	tests := []struct {
		name  string
		perms int64
		mask  int64
		want  bool
	}{
		{name: "no requirement", perms: 0, mask: 0, want: true},
		{name: "matching bit", perms: discordgo.PermissionBanMembers, mask: discordgo.PermissionBanMembers | discordgo.PermissionKickMembers, want: true},
		{name: "missing bit", perms: discordgo.PermissionSendMessages, mask: discordgo.PermissionBanMembers, want: false},
		{name: "administrator", perms: discordgo.PermissionAdministrator, mask: discordgo.PermissionBanMembers, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAny(tt.perms, tt.mask); got != tt.want {
				t.Errorf("HasAny() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermissionConfigResolve(t *testing.T) {
	var cfg PermissionConfig
	cfg.Defaults()
	tiers, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if tiers.Admin != discordgo.PermissionAdministrator|permissionManageGuild|discordgo.PermissionManageRoles {
		t.Errorf("Admin = %b", tiers.Admin)
	}
	if tiers.Moderator&discordgo.PermissionKickMembers == 0 {
		t.Errorf("Moderator tier lacks kick_members: %b", tiers.Moderator)
	}

	cfg.Moderator = []string{"kick_members", "summon"}
	if _, err := cfg.Resolve(); err == nil {
		t.Fatal("Resolve() accepted an unknown permission")
	}
}
