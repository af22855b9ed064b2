package types

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/config"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"github.com/kevinfinalboss/VoidMod/internal/moderation"
)

type CommandOption struct {
	Name        string
	Description string
	Type        discordgo.ApplicationCommandOptionType
	Required    bool
	Choices     []*discordgo.ApplicationCommandOptionChoice
}

type Command struct {
	Name        string
	Description string
	Category    string
	Cooldown    time.Duration
	DevOnly     bool
	// Permissions is the default member permission Discord requires to see
	// the command. Zero leaves it visible to everyone.
	Permissions int64
	CommandType discordgo.ApplicationCommandType
	Options     []*CommandOption
	Run         func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, deps *Deps) error
}

type Moderator interface {
	CreateOrExtend(ctx context.Context, req moderation.CreateRequest) (moderation.Result, error)
	Disable(ctx context.Context, req moderation.DisableRequest) (moderation.Result, error)
}

type SettingsStore interface {
	UpdateGuildSettings(ctx context.Context, guildID string, setting string, value interface{}) error
}

type ConfigInvalidator interface {
	Invalidate(guildID string)
}

type Sweeper interface {
	Sweep(ctx context.Context) (moderation.Report, error)
}

// Deps is handed to every command.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Moderator Moderator
	Settings  SettingsStore
	Configs   ConfigInvalidator
	Sweeper   Sweeper
}
