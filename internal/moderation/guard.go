package moderation

import (
	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/internal/models"
)

// Subject is a member as seen by the authorization guard. A target that is
// not in the guild has Present == false.
type Subject struct {
	ID          string
	Permissions int64
	Present     bool
}

func (s Subject) holds(privilege int64) bool {
	if s.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return s.Permissions&privilege == privilege
}

// Privilege returns the permission bit a requester needs for kind.
func Privilege(kind models.InfractionKind) int64 {
	if kind == models.KindMute {
		return discordgo.PermissionModerateMembers
	}
	return discordgo.PermissionBanMembers
}

// CanActOn is true when requester holds privilege and target does not
// currently hold it. Absent targets are never protected.
func CanActOn(requester, target Subject, privilege int64) bool {
	return Authorize(requester, target, privilege) == nil
}

func Authorize(requester, target Subject, privilege int64) error {
	if !requester.Present || !requester.holds(privilege) {
		return &AuthorizationError{Reason: RequesterNotPrivileged, RequesterID: requester.ID, TargetID: target.ID}
	}
	if target.Present && target.holds(privilege) {
		return &AuthorizationError{Reason: TargetProtected, RequesterID: requester.ID, TargetID: target.ID}
	}
	return nil
}

// AuthorizeRequester is the lift-side check: only the requester matters.
func AuthorizeRequester(requester Subject, privilege int64) error {
	if !requester.Present || !requester.holds(privilege) {
		return &AuthorizationError{Reason: RequesterNotPrivileged, RequesterID: requester.ID}
	}
	return nil
}
