package guild

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"go.uber.org/zap"
)

const eventTimeout = 10 * time.Second

type Store interface {
	UpsertGuild(ctx context.Context, guild *models.Guild) error
	UpdateGuildStatus(ctx context.Context, guildID string, isActive bool, leftAt *time.Time) error
	UpdateMemberCount(ctx context.Context, guildID string, delta int) error
}

type ConfigInvalidator interface {
	Invalidate(guildID string)
}

type MuteReapplier interface {
	ReapplyMute(ctx context.Context, guildID, userID string) (bool, error)
}

// Handler keeps the guild records in sync with gateway events. The
// reconciler only expires infractions of guilds marked active here.
type Handler struct {
	db      Store
	configs ConfigInvalidator
	mutes   MuteReapplier
	logger  *logger.Logger
	now     func() time.Time
}

func NewHandler(db Store, configs ConfigInvalidator, mutes MuteReapplier, l *logger.Logger) *Handler {
	return &Handler{
		db:      db,
		configs: configs,
		mutes:   mutes,
		logger:  l.Named("guild"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) HandleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	h.upsert(g.Guild, "Failed to upsert guild")
}

func (h *Handler) HandleGuildUpdate(s *discordgo.Session, g *discordgo.GuildUpdate) {
	h.upsert(g.Guild, "Failed to update guild")
}

func (h *Handler) upsert(g *discordgo.Guild, failure string) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	now := h.now()
	guild := &models.Guild{
		GuildID:     g.ID,
		Name:        g.Name,
		OwnerID:     g.OwnerID,
		MemberCount: g.MemberCount,
		IsActive:    true,
		JoinedAt:    now,
		Icon:        g.Icon,
		Features:    g.Features,
		LastUpdated: now,
	}

	if err := h.db.UpsertGuild(ctx, guild); err != nil {
		h.logger.Error(failure, zap.String("guild_id", g.ID), zap.Error(err))
		return
	}
	h.configs.Invalidate(g.ID)
}

func (h *Handler) HandleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	// an outage reports the guild as unavailable; only a real removal
	// deactivates it
	if g.Unavailable {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	now := h.now()
	if err := h.db.UpdateGuildStatus(ctx, g.ID, false, &now); err != nil {
		h.logger.Error("Failed to update guild status", zap.String("guild_id", g.ID), zap.Error(err))
		return
	}
	h.configs.Invalidate(g.ID)

	h.logger.Info("Bot removed from guild", zap.String("guild_id", g.ID))
}

func (h *Handler) HandleGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if err := h.db.UpdateMemberCount(ctx, m.GuildID, 1); err != nil {
		h.logger.Error("Failed to update member count", zap.String("guild_id", m.GuildID), zap.Error(err))
	}

	if m.User == nil || m.User.Bot {
		return
	}
	reapplied, err := h.mutes.ReapplyMute(ctx, m.GuildID, m.User.ID)
	if err != nil {
		h.logger.Warn("Failed to re-apply mute on rejoin",
			zap.String("guild_id", m.GuildID), zap.String("user_id", m.User.ID), zap.Error(err))
		return
	}
	if reapplied {
		h.logger.Info("Mute re-applied on rejoin", zap.String("guild_id", m.GuildID), zap.String("user_id", m.User.ID))
	}
}

func (h *Handler) HandleGuildMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.Member == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if err := h.db.UpdateMemberCount(ctx, m.GuildID, -1); err != nil {
		h.logger.Error("Failed to update member count", zap.String("guild_id", m.GuildID), zap.Error(err))
	}
}

// Register attaches every handler to the session.
func (h *Handler) Register(s interface{ AddHandler(interface{}) func() }) {
	s.AddHandler(h.HandleGuildCreate)
	s.AddHandler(h.HandleGuildUpdate)
	s.AddHandler(h.HandleGuildDelete)
	s.AddHandler(h.HandleGuildMemberAdd)
	s.AddHandler(h.HandleGuildMemberRemove)
}
