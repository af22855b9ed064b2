package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// SQLStore is the single-node alternative to MongoDB, backed by SQLite.
type SQLStore struct {
	db *gorm.DB
}

var settingColumns = map[string]string{
	models.SettingAuditLogChannel:      "settings_audit_log_channel",
	models.SettingModerationEnabled:    "settings_moderation_enabled",
	models.SettingModerationLogChannel: "settings_moderation_log_channel_id",
	models.SettingModerationMuteRole:   "settings_moderation_mute_role_id",
}

func NewSQLStore(path string, debug bool) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	gormLogger := gormlogger.Default
	if !debug {
		gormLogger = gormLogger.LogMode(gormlogger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	// one writer keeps SQLite conditional updates strictly serialized
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	_, _ = sqlDB.Exec("PRAGMA journal_mode = WAL;")
	_, _ = sqlDB.Exec("PRAGMA synchronous = NORMAL;")

	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	if err := s.db.AutoMigrate(&models.Guild{}, &models.Infraction{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	err := s.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_infractions_one_active
		ON infractions (guild_id, user_id, kind) WHERE is_active`).Error
	if err != nil {
		return fmt.Errorf("create active index: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) UpsertGuild(ctx context.Context, guild *models.Guild) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "owner_id", "member_count", "is_active", "left_at", "icon", "features", "last_updated",
		}),
	}).Create(guild).Error
}

func (s *SQLStore) UpdateGuildStatus(ctx context.Context, guildID string, isActive bool, leftAt *time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Guild{}).
		Where("guild_id = ?", guildID).
		Updates(map[string]interface{}{
			"is_active":    isActive,
			"left_at":      leftAt,
			"last_updated": time.Now().UTC(),
		}).Error
}

func (s *SQLStore) UpdateMemberCount(ctx context.Context, guildID string, delta int) error {
	return s.db.WithContext(ctx).Model(&models.Guild{}).
		Where("guild_id = ?", guildID).
		Updates(map[string]interface{}{
			"member_count": gorm.Expr("member_count + ?", delta),
			"last_updated": time.Now().UTC(),
		}).Error
}

func (s *SQLStore) UpdateGuildSettings(ctx context.Context, guildID string, setting string, value interface{}) error {
	if err := validateSetting(setting, value); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guild := models.Guild{GuildID: guildID, IsActive: true, JoinedAt: time.Now().UTC()}
		if err := tx.Where("guild_id = ?", guildID).FirstOrCreate(&guild).Error; err != nil {
			return err
		}
		return tx.Model(&models.Guild{}).
			Where("guild_id = ?", guildID).
			Updates(map[string]interface{}{
				settingColumns[setting]: value,
				"last_updated":          time.Now().UTC(),
			}).Error
	})
}

func (s *SQLStore) ModerationConfig(ctx context.Context, guildID string) (*models.ModerationConfig, error) {
	var guild models.Guild
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Take(&guild).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find guild %s", guildID)
	}
	return guild.Settings.ModerationConfig(), nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*models.Infraction, error) {
	return s.take(s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *SQLStore) FindActive(ctx context.Context, guildID, userID string, kind models.InfractionKind) (*models.Infraction, error) {
	return s.take(s.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ? AND kind = ? AND is_active = ?", guildID, userID, kind, true))
}

func (s *SQLStore) take(q *gorm.DB) (*models.Infraction, error) {
	var inf models.Infraction
	err := q.Take(&inf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find infraction")
	}
	return &inf, nil
}

func (s *SQLStore) FindDueActive(ctx context.Context, now time.Time) ([]*models.Infraction, error) {
	var due []*models.Infraction
	err := s.db.WithContext(ctx).
		Model(&models.Infraction{}).
		Select("infractions.*").
		Joins("JOIN guilds ON guilds.guild_id = infractions.guild_id").
		Where("infractions.is_active = ? AND infractions.applied_until <= ?", true, now.UTC()).
		Where("guilds.is_active = ? AND guilds.settings_moderation_enabled = ?", true, true).
		Order("infractions.applied_until").
		Find(&due).Error
	return due, errors.Wrap(err, "find due infractions")
}

func (s *SQLStore) FindEnforcementFailures(ctx context.Context, maxAttempts int) ([]*models.Infraction, error) {
	var flagged []*models.Infraction
	err := s.db.WithContext(ctx).
		Where("(is_active = ? AND enforcement = ?) OR (is_active = ? AND enforcement = ?)",
			true, models.EnforcementFailed, false, models.EnforcementLiftFailed).
		Where("enforcement_attempts < ?", maxAttempts).
		Order("updated_at").
		Find(&flagged).Error
	return flagged, errors.Wrap(err, "find enforcement failures")
}

func (s *SQLStore) Insert(ctx context.Context, inf *models.Infraction) error {
	if inf.ID == "" {
		inf.ID = uuid.NewString()
	}
	inf.AppliedUntil = inf.AppliedUntil.UTC()

	err := s.db.WithContext(ctx).Create(inf).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ErrActiveInfractionExists
	}
	return errors.Wrap(err, "insert infraction")
}

func (s *SQLStore) Extend(ctx context.Context, id string, ext models.Extension) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Infraction{}).
		Where("id = ? AND is_active = ? AND applied_until < ?", id, true, ext.Until.UTC()).
		Updates(map[string]interface{}{
			"applied_until": ext.Until.UTC(),
			"reason":        ext.Reason,
			"applied_by_id": ext.AppliedByID,
			"updated_at":    ext.At.UTC(),
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "extend infraction")
	}
	return res.RowsAffected == 1, nil
}

func (s *SQLStore) Deactivate(ctx context.Context, id, liftedByID string, at time.Time) (bool, error) {
	at = at.UTC()
	res := s.db.WithContext(ctx).Model(&models.Infraction{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active":    false,
			"lifted_by_id": liftedByID,
			"lifted_on":    at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "deactivate infraction")
	}
	return res.RowsAffected == 1, nil
}

func (s *SQLStore) SetEnforcement(ctx context.Context, id string, status models.EnforcementStatus, errMsg string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"enforcement":       status,
		"enforcement_error": errMsg,
		"updated_at":        at.UTC(),
	}
	if status.Failure() {
		updates["enforcement_attempts"] = gorm.Expr("enforcement_attempts + 1")
	}
	res := s.db.WithContext(ctx).Model(&models.Infraction{}).
		Where("id = ? AND is_active = ?", id, status.ForActive()).
		Updates(updates)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "set enforcement status")
	}
	return res.RowsAffected == 1, nil
}
