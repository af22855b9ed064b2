package moderation

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrModuleDisabled is returned when a guild has no moderation configuration
// or has the module switched off.
var ErrModuleDisabled = errors.New("moderation module is disabled for this guild")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type Resource string

const (
	ResourceGuild      Resource = "guild"
	ResourceMember     Resource = "member"
	ResourceChannel    Resource = "channel"
	ResourceRole       Resource = "role"
	ResourceInfraction Resource = "infraction"
)

type NotFoundError struct {
	Resource Resource
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

type AuthorizationReason int

const (
	RequesterNotPrivileged AuthorizationReason = iota + 1
	TargetProtected
)

type AuthorizationError struct {
	Reason      AuthorizationReason
	RequesterID string
	TargetID    string
}

func (e *AuthorizationError) Error() string {
	if e.Reason == TargetProtected {
		return fmt.Sprintf("member %s holds the same privilege and cannot be actioned by %s", e.TargetID, e.RequesterID)
	}
	return fmt.Sprintf("member %s lacks the privilege for this action", e.RequesterID)
}

// PartialFailureError reports that persistence and platform enforcement
// disagree. Persisted says whether the record change was stored, Enforced
// whether the platform side effect happened. The stored record carries a
// failed enforcement flag whenever Persisted is true.
type PartialFailureError struct {
	Op           string
	InfractionID string
	Persisted    bool
	Enforced     bool
	Err          error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s infraction %s: persisted=%t enforced=%t: %v", e.Op, e.InfractionID, e.Persisted, e.Enforced, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// NotificationError is logged and never returned to callers.
type NotificationError struct {
	GuildID   string
	ChannelID string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify guild %s channel %s: %v", e.GuildID, e.ChannelID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

func IsPartialFailure(err error) bool {
	var pf *PartialFailureError
	return errors.As(err, &pf)
}
