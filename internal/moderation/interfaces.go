package moderation

import (
	"context"
	"time"

	"github.com/kevinfinalboss/VoidMod/internal/models"
)

// InfractionStore persists infractions. Lookups return (nil, nil) when
// nothing matches. The mutating calls are conditional writes: they report
// false when the record no longer satisfies their precondition, which is how
// concurrent requests are serialized.
type InfractionStore interface {
	FindByID(ctx context.Context, id string) (*models.Infraction, error)
	FindActive(ctx context.Context, guildID, userID string, kind models.InfractionKind) (*models.Infraction, error)

	// FindDueActive returns active infractions with AppliedUntil <= now whose
	// guild is active and has moderation enabled, oldest expiry first.
	FindDueActive(ctx context.Context, now time.Time) ([]*models.Infraction, error)

	// FindEnforcementFailures returns active records flagged failed and
	// inactive records flagged lift_failed with fewer than maxAttempts tries.
	FindEnforcementFailures(ctx context.Context, maxAttempts int) ([]*models.Infraction, error)

	// Insert assigns inf.ID. It fails with models.ErrActiveInfractionExists
	// when an active infraction of the same kind exists for the member.
	Insert(ctx context.Context, inf *models.Infraction) error

	// Extend applies ext only while the record is active and its
	// AppliedUntil is before ext.Until.
	Extend(ctx context.Context, id string, ext models.Extension) (bool, error)

	// Deactivate flips IsActive to false only if it is still true.
	Deactivate(ctx context.Context, id, liftedByID string, at time.Time) (bool, error)

	// SetEnforcement records the platform state. Apply-side statuses (pending,
	// applied, failed) are only written to active records and lift-side ones
	// to inactive records; false means the record did not match. A failed
	// status increments the attempt counter and stores errMsg.
	SetEnforcement(ctx context.Context, id string, status models.EnforcementStatus, errMsg string, at time.Time) (bool, error)
}

// GuildConfigProvider returns (nil, nil) for guilds without configuration.
type GuildConfigProvider interface {
	ModerationConfig(ctx context.Context, guildID string) (*models.ModerationConfig, error)
}

// Platform performs enforcement on the chat platform. Implementations must be
// idempotent and return *platform.Error values.
type Platform interface {
	ApplyBan(ctx context.Context, guildID, userID, reason string) error
	LiftBan(ctx context.Context, guildID, userID string) error
	GrantMuteRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeMuteRole(ctx context.Context, guildID, userID, roleID string) error
	MemberPermissions(ctx context.Context, guildID, userID string) (perms int64, present bool, err error)
}

type Notifier interface {
	Send(ctx context.Context, guildID, channelID string, summary Summary) error
}
