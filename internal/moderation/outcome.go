package moderation

import (
	"time"

	"github.com/kevinfinalboss/VoidMod/internal/models"
)

type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeExtended
	// OutcomeAlreadyActive: an active infraction already runs at least as long
	// as requested. Nothing was changed.
	OutcomeAlreadyActive
	OutcomeLifted
	// OutcomeNotActive: there was nothing to lift.
	OutcomeNotActive
	// OutcomeRevoked: the infraction was lifted by someone else while it
	// was being applied; the platform side was reverted.
	OutcomeRevoked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExtended:
		return "extended"
	case OutcomeAlreadyActive:
		return "already_active"
	case OutcomeLifted:
		return "lifted"
	case OutcomeNotActive:
		return "not_active"
	case OutcomeRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome    Outcome
	Infraction *models.Infraction
}

func (r Result) Created() bool  { return r.Outcome == OutcomeCreated }
func (r Result) Extended() bool { return r.Outcome == OutcomeExtended }

// Note is the informational text for the non-mutating outcomes.
func (r Result) Note() string {
	switch r.Outcome {
	case OutcomeAlreadyActive:
		if r.Infraction.IsPermanent() {
			return "already active permanently"
		}
		return "already active until " + r.Infraction.AppliedUntil.UTC().Format(time.RFC3339)
	case OutcomeNotActive:
		return "not currently active"
	case OutcomeRevoked:
		return "lifted while it was being applied"
	default:
		return ""
	}
}

// Summary is what the notifier reports to a guild's log channel.
type Summary struct {
	Outcome      Outcome
	Kind         models.InfractionKind
	InfractionID string
	TargetID     string
	ActorID      string
	Until        time.Time
	Reason       string
	Automatic    bool
	At           time.Time
}

func summarize(outcome Outcome, inf *models.Infraction, actorID string, automatic bool, at time.Time) Summary {
	return Summary{
		Outcome:      outcome,
		Kind:         inf.Kind,
		InfractionID: inf.ID,
		TargetID:     inf.UserID,
		ActorID:      actorID,
		Until:        inf.AppliedUntil,
		Reason:       inf.Reason,
		Automatic:    automatic,
		At:           at,
	}
}
