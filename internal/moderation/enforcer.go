package moderation

import (
	"context"

	"github.com/kevinfinalboss/VoidMod/internal/models"
)

// enforcer plugs the kind-specific platform calls into the generic lifecycle.
type enforcer interface {
	apply(ctx context.Context, inf *models.Infraction) error
	lift(ctx context.Context, inf *models.Infraction) error
}

type banEnforcer struct {
	platform Platform
}

func (e banEnforcer) apply(ctx context.Context, inf *models.Infraction) error {
	return e.platform.ApplyBan(ctx, inf.GuildID, inf.UserID, inf.Reason)
}

func (e banEnforcer) lift(ctx context.Context, inf *models.Infraction) error {
	return e.platform.LiftBan(ctx, inf.GuildID, inf.UserID)
}

// muteEnforcer works on the role recorded on the infraction, not the one
// currently configured, so a role change never strands a muted member.
type muteEnforcer struct {
	platform Platform
}

func (e muteEnforcer) apply(ctx context.Context, inf *models.Infraction) error {
	if inf.RoleID == "" {
		return &NotFoundError{Resource: ResourceRole, ID: "(mute role not configured)"}
	}
	return e.platform.GrantMuteRole(ctx, inf.GuildID, inf.UserID, inf.RoleID)
}

func (e muteEnforcer) lift(ctx context.Context, inf *models.Infraction) error {
	if inf.RoleID == "" {
		return &NotFoundError{Resource: ResourceRole, ID: "(mute role not configured)"}
	}
	return e.platform.RevokeMuteRole(ctx, inf.GuildID, inf.UserID, inf.RoleID)
}

func newEnforcers(p Platform) map[models.InfractionKind]enforcer {
	return map[models.InfractionKind]enforcer{
		models.KindBan:  banEnforcer{platform: p},
		models.KindMute: muteEnforcer{platform: p},
	}
}
