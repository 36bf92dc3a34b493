package discord

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// permissionManageGuild is the MANAGE_GUILD bit.
const permissionManageGuild int64 = 1 << 5

var capabilities = map[string]int64{
	"administrator":    discordgo.PermissionAdministrator,
	"manage_guild":     permissionManageGuild,
	"manage_roles":     discordgo.PermissionManageRoles,
	"manage_channels":  discordgo.PermissionManageChannels,
	"manage_messages":  discordgo.PermissionManageMessages,
	"kick_members":     discordgo.PermissionKickMembers,
	"ban_members":      discordgo.PermissionBanMembers,
	"moderate_members": discordgo.PermissionModerateMembers,
}

// PermissionMask ORs together the bits of the named capabilities.
func PermissionMask(names []string) (int64, error) {
	var mask int64
	for _, name := range names {
		bit, ok := capabilities[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown permission %q (known: %s)", name, strings.Join(knownCapabilities(), ", "))
		}
		mask |= bit
	}
	return mask, nil
}

func knownCapabilities() []string {
	names := make([]string, 0, len(capabilities))
	for name := range capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasAny reports whether perms grants any bit of mask. Administrator
// grants everything; an empty mask requires nothing.
func HasAny(perms, mask int64) bool {
	if mask == 0 || perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&mask != 0
}

// PermissionConfig names the capabilities of each privilege tier.
type PermissionConfig struct {
	Admin     []string `yaml:"admin"`
	Moderator []string `yaml:"moderator"`
}

// Defaults fills unset tiers.
func (c *PermissionConfig) Defaults() {
	if len(c.Admin) == 0 {
		c.Admin = []string{"administrator", "manage_guild", "manage_roles"}
	}
	if len(c.Moderator) == 0 {
		c.Moderator = []string{"kick_members", "ban_members", "manage_messages"}
	}
}

// Tiers is the resolved form of PermissionConfig.
type Tiers struct {
	Admin     int64
	Moderator int64
}

// Resolve converts capability names to permission masks.
func (c PermissionConfig) Resolve() (Tiers, error) {
	admin, err := PermissionMask(c.Admin)
	if err != nil {
		return Tiers{}, fmt.Errorf("admin tier: %w", err)
	}
	mod, err := PermissionMask(c.Moderator)
	if err != nil {
		return Tiers{}, fmt.Errorf("moderator tier: %w", err)
	}
	return Tiers{Admin: admin, Moderator: mod}, nil
}

// DefaultTiers resolves the default PermissionConfig.
func DefaultTiers() Tiers {
	var cfg PermissionConfig
	cfg.Defaults()
	tiers, _ := cfg.Resolve()
	return tiers
}
