package platform

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Discord executes enforcement actions through the Discord REST API. Every
// call is bound to the caller's context; operations that would be no-ops on
// the platform (unbanning someone who is not banned, removing a role from a
// member that already left) are reported as success.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{session: s}
}

func (d *Discord) ApplyBan(ctx context.Context, guildID, userID, reason string) error {
	err := d.session.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
	return classify("apply ban", err)
}

func (d *Discord) LiftBan(ctx context.Context, guildID, userID string) error {
	err := classify("lift ban", d.session.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx)))
	if isGone(err, EntityBan, EntityUser) {
		return nil
	}
	return err
}

func (d *Discord) GrantMuteRole(ctx context.Context, guildID, userID, roleID string) error {
	err := d.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	return classify("grant mute role", err)
}

func (d *Discord) RevokeMuteRole(ctx context.Context, guildID, userID, roleID string) error {
	err := classify("revoke mute role", d.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)))
	if isGone(err, EntityMember, EntityUser, EntityRole) {
		return nil
	}
	return err
}

// MemberPermissions computes the guild-level permission bits of a member.
// present is false when the user is not (or no longer) a member.
func (d *Discord) MemberPermissions(ctx context.Context, guildID, userID string) (int64, bool, error) {
	member, err := d.member(ctx, guildID, userID)
	if err != nil {
		if isGone(err, EntityMember, EntityUser) {
			return 0, false, nil
		}
		return 0, false, err
	}

	guild, err := d.guild(ctx, guildID)
	if err != nil {
		return 0, true, err
	}

	return computePermissions(guild.OwnerID, guildID, member, guild.Roles), true, nil
}

func (d *Discord) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if d.session.State != nil {
		if m, err := d.session.State.Member(guildID, userID); err == nil {
			return m, nil
		}
	}
	m, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	return m, classify("fetch member", err)
}

func (d *Discord) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if d.session.State != nil {
		if g, err := d.session.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
			return g, nil
		}
	}
	g, err := d.session.Guild(guildID, discordgo.WithContext(ctx))
	return g, classify("fetch guild", err)
}

func computePermissions(ownerID, guildID string, member *discordgo.Member, roles []*discordgo.Role) int64 {
	if member.User != nil && member.User.ID == ownerID {
		return discordgo.PermissionAll
	}

	held := make(map[string]struct{}, len(member.Roles))
	for _, id := range member.Roles {
		held[id] = struct{}{}
	}

	var perms int64
	for _, role := range roles {
		if _, ok := held[role.ID]; ok || role.ID == guildID {
			perms |= role.Permissions
		}
	}

	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

func isGone(err error, entities ...Entity) bool {
	pe, ok := err.(*Error)
	if !ok || pe.Kind != KindNotFound {
		return false
	}
	for _, e := range entities {
		if pe.Entity == e {
			return true
		}
	}
	return false
}
