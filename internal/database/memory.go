package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kevinfinalboss/VoidMod/internal/models"
)

// MemoryStore keeps guilds and infractions in process. It mirrors the
// conditional-write semantics of the Mongo and SQL stores and is used by
// tests and local runs without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	guilds      map[string]*models.Guild
	infractions map[string]*models.Infraction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guilds:      make(map[string]*models.Guild),
		infractions: make(map[string]*models.Infraction),
	}
}

func (s *MemoryStore) UpsertGuild(_ context.Context, guild *models.Guild) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := *guild
	if existing, ok := s.guilds[guild.GuildID]; ok {
		g.Settings = existing.Settings
		g.JoinedAt = existing.JoinedAt
	}
	s.guilds[guild.GuildID] = &g
	return nil
}

func (s *MemoryStore) UpdateGuildStatus(_ context.Context, guildID string, isActive bool, leftAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.guilds[guildID]; ok {
		g.IsActive = isActive
		g.LeftAt = leftAt
		g.LastUpdated = time.Now()
	}
	return nil
}

func (s *MemoryStore) UpdateMemberCount(_ context.Context, guildID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.guilds[guildID]; ok {
		g.MemberCount += delta
	}
	return nil
}

func (s *MemoryStore) UpdateGuildSettings(_ context.Context, guildID string, setting string, value interface{}) error {
	if err := validateSetting(setting, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guilds[guildID]
	if !ok {
		g = &models.Guild{GuildID: guildID, IsActive: true, JoinedAt: time.Now()}
		s.guilds[guildID] = g
	}
	switch setting {
	case models.SettingAuditLogChannel:
		g.Settings.AuditLogChannel = value.(string)
	case models.SettingModerationEnabled:
		g.Settings.Moderation.Enabled = value.(bool)
	case models.SettingModerationLogChannel:
		g.Settings.Moderation.LogChannelID = value.(string)
	case models.SettingModerationMuteRole:
		g.Settings.Moderation.MuteRoleID = value.(string)
	}
	g.LastUpdated = time.Now()
	return nil
}

func (s *MemoryStore) ModerationConfig(_ context.Context, guildID string) (*models.ModerationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return nil, nil
	}
	return g.Settings.ModerationConfig(), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.Infraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inf, ok := s.infractions[id]; ok {
		c := *inf
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindActive(_ context.Context, guildID, userID string, kind models.InfractionKind) (*models.Infraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inf := s.activeLocked(guildID, userID, kind); inf != nil {
		c := *inf
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryStore) activeLocked(guildID, userID string, kind models.InfractionKind) *models.Infraction {
	for _, inf := range s.infractions {
		if inf.IsActive && inf.GuildID == guildID && inf.UserID == userID && inf.Kind == kind {
			return inf
		}
	}
	return nil
}

func (s *MemoryStore) FindDueActive(_ context.Context, now time.Time) ([]*models.Infraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*models.Infraction
	for _, inf := range s.infractions {
		if !inf.IsDue(now) {
			continue
		}
		g, ok := s.guilds[inf.GuildID]
		if !ok || !g.IsActive || !g.Settings.Moderation.Enabled {
			continue
		}
		c := *inf
		due = append(due, &c)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].AppliedUntil.Before(due[j].AppliedUntil)
	})
	return due, nil
}

func (s *MemoryStore) FindEnforcementFailures(_ context.Context, maxAttempts int) ([]*models.Infraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var flagged []*models.Infraction
	for _, inf := range s.infractions {
		if inf.EnforcementAttempts >= maxAttempts {
			continue
		}
		if (inf.IsActive && inf.Enforcement == models.EnforcementFailed) ||
			(!inf.IsActive && inf.Enforcement == models.EnforcementLiftFailed) {
			c := *inf
			flagged = append(flagged, &c)
		}
	}

	sort.Slice(flagged, func(i, j int) bool {
		return flagged[i].UpdatedAt.Before(flagged[j].UpdatedAt)
	})
	return flagged, nil
}

func (s *MemoryStore) Insert(_ context.Context, inf *models.Infraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inf.IsActive && s.activeLocked(inf.GuildID, inf.UserID, inf.Kind) != nil {
		return models.ErrActiveInfractionExists
	}
	if inf.ID == "" {
		inf.ID = uuid.NewString()
	}
	c := *inf
	s.infractions[inf.ID] = &c
	return nil
}

func (s *MemoryStore) Extend(_ context.Context, id string, ext models.Extension) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inf, ok := s.infractions[id]
	if !ok || !inf.IsActive || !inf.AppliedUntil.Before(ext.Until) {
		return false, nil
	}
	inf.AppliedUntil = ext.Until
	inf.Reason = ext.Reason
	inf.AppliedByID = ext.AppliedByID
	inf.UpdatedAt = ext.At
	return true, nil
}

func (s *MemoryStore) Deactivate(_ context.Context, id, liftedByID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inf, ok := s.infractions[id]
	if !ok || !inf.IsActive {
		return false, nil
	}
	inf.IsActive = false
	inf.LiftedByID = liftedByID
	inf.LiftedOn = &at
	inf.UpdatedAt = at
	return true, nil
}

func (s *MemoryStore) SetEnforcement(_ context.Context, id string, status models.EnforcementStatus, errMsg string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inf, ok := s.infractions[id]
	if !ok || inf.IsActive != status.ForActive() {
		return false, nil
	}
	inf.Enforcement = status
	inf.EnforcementError = errMsg
	inf.UpdatedAt = at
	if status.Failure() {
		inf.EnforcementAttempts++
	}
	return true, nil
}

// All returns a copy of every stored infraction. Test helper.
func (s *MemoryStore) All() []*models.Infraction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Infraction, 0, len(s.infractions))
	for _, inf := range s.infractions {
		c := *inf
		out = append(out, &c)
	}
	return out
}
