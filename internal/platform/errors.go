package platform

import (
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

type Kind int

const (
	KindTransient Kind = iota
	KindNotFound
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	default:
		return "transient"
	}
}

// Entity names what a NotFound error refers to.
type Entity string

const (
	EntityGuild   Entity = "guild"
	EntityMember  Entity = "member"
	EntityRole    Entity = "role"
	EntityChannel Entity = "channel"
	EntityBan     Entity = "ban"
	EntityUser    Entity = "user"
)

type Error struct {
	Op     string
	Kind   Kind
	Entity Entity
	Err    error
}

func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Entity, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err; unknown errors are transient.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

func IsNotFound(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindNotFound
}

// classify maps a discordgo REST failure onto the adapter taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return &Error{Op: op, Kind: KindTransient, Err: err}
	}

	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownGuild:
			return &Error{Op: op, Kind: KindNotFound, Entity: EntityGuild, Err: err}
		case discordgo.ErrCodeUnknownMember:
			return &Error{Op: op, Kind: KindNotFound, Entity: EntityMember, Err: err}
		case discordgo.ErrCodeUnknownRole:
			return &Error{Op: op, Kind: KindNotFound, Entity: EntityRole, Err: err}
		case discordgo.ErrCodeUnknownChannel:
			return &Error{Op: op, Kind: KindNotFound, Entity: EntityChannel, Err: err}
		case discordgo.ErrCodeUnknownBan:
			return &Error{Op: op, Kind: KindNotFound, Entity: EntityBan, Err: err}
		case discordgo.ErrCodeUnknownUser:
			return &Error{Op: op, Kind: KindNotFound, Entity: EntityUser, Err: err}
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return &Error{Op: op, Kind: KindForbidden, Err: err}
		}
	}

	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return &Error{Op: op, Kind: KindNotFound, Err: err}
		case http.StatusForbidden, http.StatusUnauthorized:
			return &Error{Op: op, Kind: KindForbidden, Err: err}
		}
	}

	return &Error{Op: op, Kind: KindTransient, Err: err}
}
