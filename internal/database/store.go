package database

import (
	"context"
	"fmt"
	"time"

	"github.com/kevinfinalboss/VoidMod/config"
	"github.com/kevinfinalboss/VoidMod/internal/models"
)

// Store is what the bot needs from persistence: guild bookkeeping, guild
// moderation settings and the infraction records.
type Store interface {
	UpsertGuild(ctx context.Context, guild *models.Guild) error
	UpdateGuildStatus(ctx context.Context, guildID string, isActive bool, leftAt *time.Time) error
	UpdateMemberCount(ctx context.Context, guildID string, delta int) error
	UpdateGuildSettings(ctx context.Context, guildID string, setting string, value interface{}) error
	ModerationConfig(ctx context.Context, guildID string) (*models.ModerationConfig, error)

	FindByID(ctx context.Context, id string) (*models.Infraction, error)
	FindActive(ctx context.Context, guildID, userID string, kind models.InfractionKind) (*models.Infraction, error)
	FindDueActive(ctx context.Context, now time.Time) ([]*models.Infraction, error)
	FindEnforcementFailures(ctx context.Context, maxAttempts int) ([]*models.Infraction, error)
	Insert(ctx context.Context, inf *models.Infraction) error
	Extend(ctx context.Context, id string, ext models.Extension) (bool, error)
	Deactivate(ctx context.Context, id, liftedByID string, at time.Time) (bool, error)
	SetEnforcement(ctx context.Context, id string, status models.EnforcementStatus, errMsg string, at time.Time) (bool, error)

	Close() error
}

var (
	_ Store = (*MongoDB)(nil)
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Open returns the store selected by storage.driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageMongo:
		db, err := NewMongoDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.StorageSQLite:
		db, err := NewSQLStore(cfg.Storage.SQLitePath, cfg.Debug)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
