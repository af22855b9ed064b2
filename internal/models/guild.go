package models

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Guild struct {
	ID          primitive.ObjectID       `bson:"_id,omitempty" gorm:"-"`
	GuildID     string                   `bson:"guild_id" gorm:"primaryKey;size:32"`
	Name        string                   `bson:"name" gorm:"size:100"`
	OwnerID     string                   `bson:"owner_id" gorm:"size:32"`
	MemberCount int                      `bson:"member_count"`
	IsActive    bool                     `bson:"is_active" gorm:"index"`
	JoinedAt    time.Time                `bson:"joined_at"`
	LeftAt      *time.Time               `bson:"left_at,omitempty"`
	Icon        string                   `bson:"icon" gorm:"size:64"`
	Features    []discordgo.GuildFeature `bson:"features" gorm:"serializer:json"`
	LastUpdated time.Time                `bson:"last_updated"`
	Settings    GuildSettings            `bson:"settings" gorm:"embedded;embeddedPrefix:settings_"`
}

type GuildSettings struct {
	AuditLogChannel string           `bson:"audit_log_channel" gorm:"size:32"`
	Moderation      ModerationConfig `bson:"moderation" gorm:"embedded;embeddedPrefix:moderation_"`
}

// ModerationConfig is the per-guild switchboard of the moderation module.
// Results go to LogChannelID, or to the guild audit channel when it is
// empty; with neither set nothing is posted. An empty MuteRoleID makes mutes
// impossible until one is configured.
type ModerationConfig struct {
	Enabled      bool   `bson:"enabled" json:"enabled"`
	LogChannelID string `bson:"log_channel_id,omitempty" json:"log_channel_id,omitempty" gorm:"size:32"`
	MuteRoleID   string `bson:"mute_role_id,omitempty" json:"mute_role_id,omitempty" gorm:"size:32"`

	// AuditChannelID mirrors GuildSettings.AuditLogChannel on read.
	AuditChannelID string `bson:"-" json:"audit_channel_id,omitempty" gorm:"-"`
}

// NotifyChannel is where moderation results are posted.
func (c ModerationConfig) NotifyChannel() string {
	if c.LogChannelID != "" {
		return c.LogChannelID
	}
	return c.AuditChannelID
}

// ModerationConfig is the moderation view of the settings.
func (s GuildSettings) ModerationConfig() *ModerationConfig {
	cfg := s.Moderation
	cfg.AuditChannelID = s.AuditLogChannel
	return &cfg
}

// Setting keys accepted by the guild settings updaters.
const (
	SettingAuditLogChannel      = "audit_log_channel"
	SettingModerationEnabled    = "moderation.enabled"
	SettingModerationLogChannel = "moderation.log_channel_id"
	SettingModerationMuteRole   = "moderation.mute_role_id"
)
