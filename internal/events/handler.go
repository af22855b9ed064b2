package events

import (
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/config"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"go.uber.org/zap"
)

// Session is the part of *discordgo.Session handlers are attached through.
type Session = interface {
	AddHandler(handler interface{}) func()
}

// Registrar is implemented by the feature handlers under events/.
type Registrar interface {
	Register(s Session)
}

type Handler struct {
	config    *config.Config
	logger    *logger.Logger
	features  []Registrar
	readyOnce sync.Once
}

func NewHandler(cfg *config.Config, l *logger.Logger, features ...Registrar) *Handler {
	return &Handler{
		config:   cfg,
		logger:   l.Named("events"),
		features: features,
	}
}

// Register attaches the session-level handlers and every feature handler.
func (h *Handler) Register(s Session) {
	s.AddHandler(h.handleReady)
	s.AddHandler(h.handleDisconnect)
	s.AddHandler(h.handleResumed)

	for _, f := range h.features {
		f.Register(s)
	}
	h.logger.Debug("Events registered", zap.Int("features", len(h.features)))
}

func (h *Handler) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	h.logger.Info("Session ready",
		zap.String("user", r.User.Username),
		zap.Int("shard", s.ShardID),
		zap.Int("guilds", len(r.Guilds)))

	h.readyOnce.Do(func() {
		if h.config.Discord.Status == "" {
			return
		}
		if err := s.UpdateGameStatus(0, h.config.Discord.Status); err != nil {
			h.logger.Error("Error setting status", zap.Error(err))
		}
	})
}

func (h *Handler) handleDisconnect(s *discordgo.Session, _ *discordgo.Disconnect) {
	h.logger.Warn("Gateway disconnected", zap.Int("shard", s.ShardID))
}

func (h *Handler) handleResumed(s *discordgo.Session, _ *discordgo.Resumed) {
	h.logger.Info("Gateway session resumed", zap.Int("shard", s.ShardID))
}
