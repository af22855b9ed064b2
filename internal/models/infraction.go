package models

import (
	"errors"
	"time"
)

type InfractionKind string

const (
	KindBan  InfractionKind = "ban"
	KindMute InfractionKind = "mute"
)

func (k InfractionKind) Valid() bool {
	return k == KindBan || k == KindMute
}

// EnforcementStatus records whether the platform state matches the record.
// "failed" and "lift_failed" mark records that need operator attention or a
// repair pass.
type EnforcementStatus string

const (
	EnforcementPending    EnforcementStatus = "pending"
	EnforcementApplied    EnforcementStatus = "applied"
	EnforcementFailed     EnforcementStatus = "failed"
	EnforcementLifted     EnforcementStatus = "lifted"
	EnforcementLiftFailed EnforcementStatus = "lift_failed"
)

// ForActive reports whether the status describes an active record. Stores
// only record a status on a record whose active flag matches it.
func (s EnforcementStatus) ForActive() bool {
	return s == EnforcementPending || s == EnforcementApplied || s == EnforcementFailed
}

func (s EnforcementStatus) Failure() bool {
	return s == EnforcementFailed || s == EnforcementLiftFailed
}

// Permanent is the AppliedUntil value of infractions that never expire.
var Permanent = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// ErrActiveInfractionExists is returned by stores when an insert would
// create a second active infraction of the same kind for a member.
var ErrActiveInfractionExists = errors.New("an active infraction of this kind already exists")

type Infraction struct {
	ID           string         `bson:"_id" json:"id" gorm:"primaryKey;size:36"`
	GuildID      string         `bson:"guild_id" json:"guild_id" gorm:"size:32;not null"`
	UserID       string         `bson:"user_id" json:"user_id" gorm:"size:32;not null"`
	Kind         InfractionKind `bson:"kind" json:"kind" gorm:"size:8;not null"`
	AppliedByID  string         `bson:"applied_by_id" json:"applied_by_id" gorm:"size:32"`
	AppliedUntil time.Time      `bson:"applied_until" json:"applied_until" gorm:"index"`
	Reason       string         `bson:"reason,omitempty" json:"reason,omitempty" gorm:"type:text"`
	RoleID       string         `bson:"role_id,omitempty" json:"role_id,omitempty" gorm:"size:32"`

	IsActive   bool       `bson:"is_active" json:"is_active" gorm:"index"`
	LiftedByID string     `bson:"lifted_by_id,omitempty" json:"lifted_by_id,omitempty" gorm:"size:32"`
	LiftedOn   *time.Time `bson:"lifted_on,omitempty" json:"lifted_on,omitempty"`

	Enforcement         EnforcementStatus `bson:"enforcement" json:"enforcement" gorm:"size:16;index"`
	EnforcementAttempts int               `bson:"enforcement_attempts" json:"enforcement_attempts"`
	EnforcementError    string            `bson:"enforcement_error,omitempty" json:"enforcement_error,omitempty" gorm:"type:text"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (inf *Infraction) IsPermanent() bool {
	return !inf.AppliedUntil.Before(Permanent)
}

// IsDue reports whether an active infraction has reached its expiry.
func (inf *Infraction) IsDue(now time.Time) bool {
	return inf.IsActive && !inf.AppliedUntil.After(now)
}

// Extension carries the fields an extend overwrites on an active infraction.
type Extension struct {
	Until       time.Time
	Reason      string
	AppliedByID string
	At          time.Time
}
