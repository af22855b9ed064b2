package database

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type store interface {
	UpsertGuild(ctx context.Context, guild *models.Guild) error
	UpdateGuildStatus(ctx context.Context, guildID string, isActive bool, leftAt *time.Time) error
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
}

var t0 = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) store {
	t.Helper()
	s, err := NewSQLStore(filepath.Join(t.TempDir(), "void.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newMemStore(t *testing.T) store {
	return NewMemoryStore()
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, newMemStore)
}

func TestSQLStore(t *testing.T) {
	runStoreSuite(t, newSQLiteStore)
}

func runStoreSuite(t *testing.T, newStore func(t *testing.T) store) {
	t.Run("guild settings", func(t *testing.T) { testGuildSettings(t, newStore(t)) })
	t.Run("insert and find", func(t *testing.T) { testInsertFind(t, newStore(t)) })
	t.Run("one active per member and kind", func(t *testing.T) { testOneActive(t, newStore(t)) })
	t.Run("extend is monotonic", func(t *testing.T) { testExtend(t, newStore(t)) })
	t.Run("deactivate once", func(t *testing.T) { testDeactivate(t, newStore(t)) })
	t.Run("concurrent deactivate", func(t *testing.T) { testConcurrentDeactivate(t, newStore(t)) })
	t.Run("due set", func(t *testing.T) { testDueSet(t, newStore(t)) })
	t.Run("enforcement failures", func(t *testing.T) { testEnforcementFailures(t, newStore(t)) })
	t.Run("enforcement follows active flag", func(t *testing.T) { testEnforcementMatchesActive(t, newStore(t)) })
}

func enableGuild(t *testing.T, s store, guildID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertGuild(ctx, &models.Guild{GuildID: guildID, Name: guildID, IsActive: true, JoinedAt: t0}))
	require.NoError(t, s.UpdateGuildSettings(ctx, guildID, models.SettingModerationEnabled, true))
}

func newInfraction(guildID, userID string, kind models.InfractionKind, until time.Time) *models.Infraction {
	return &models.Infraction{
		GuildID:      guildID,
		UserID:       userID,
		Kind:         kind,
		AppliedByID:  "mod",
		AppliedUntil: until,
		IsActive:     true,
		Enforcement:  models.EnforcementPending,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
}

func testGuildSettings(t *testing.T, s store) {
	ctx := context.Background()

	cfg, err := s.ModerationConfig(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, s.UpsertGuild(ctx, &models.Guild{GuildID: "g1", Name: "Guild", IsActive: true, JoinedAt: t0}))
	require.NoError(t, s.UpdateGuildSettings(ctx, "g1", models.SettingModerationEnabled, true))
	require.NoError(t, s.UpdateGuildSettings(ctx, "g1", models.SettingModerationMuteRole, "role-1"))
	require.NoError(t, s.UpdateGuildSettings(ctx, "g1", models.SettingModerationLogChannel, "chan-1"))

	cfg, err = s.ModerationConfig(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, models.ModerationConfig{Enabled: true, LogChannelID: "chan-1", MuteRoleID: "role-1"}, *cfg)

	require.NoError(t, s.UpdateGuildSettings(ctx, "g1", models.SettingAuditLogChannel, "audit-1"))
	cfg, err = s.ModerationConfig(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "audit-1", cfg.AuditChannelID)
	assert.Equal(t, "chan-1", cfg.NotifyChannel())

	// a later upsert from a gateway event must not reset settings
	require.NoError(t, s.UpsertGuild(ctx, &models.Guild{GuildID: "g1", Name: "Renamed", IsActive: true, JoinedAt: t0}))
	cfg, err = s.ModerationConfig(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)

	err = s.UpdateGuildSettings(ctx, "g1", models.SettingModerationEnabled, "yes")
	assert.Error(t, err)
	err = s.UpdateGuildSettings(ctx, "g1", "moderation.unknown", "x")
	assert.Error(t, err)
}

func testInsertFind(t *testing.T, s store) {
	ctx := context.Background()

	inf := newInfraction("g1", "u1", models.KindBan, t0.Add(time.Hour))
	require.NoError(t, s.Insert(ctx, inf))
	require.NotEmpty(t, inf.ID)

	got, err := s.FindByID(ctx, inf.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, models.KindBan, got.Kind)
	assert.True(t, got.AppliedUntil.Equal(t0.Add(time.Hour)))

	active, err := s.FindActive(ctx, "g1", "u1", models.KindBan)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, inf.ID, active.ID)

	none, err := s.FindActive(ctx, "g1", "u1", models.KindMute)
	require.NoError(t, err)
	assert.Nil(t, none)

	missing, err := s.FindByID(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testOneActive(t *testing.T, s store) {
	ctx := context.Background()

	first := newInfraction("g1", "u1", models.KindMute, t0.Add(time.Hour))
	require.NoError(t, s.Insert(ctx, first))

	second := newInfraction("g1", "u1", models.KindMute, t0.Add(2*time.Hour))
	assert.ErrorIs(t, s.Insert(ctx, second), models.ErrActiveInfractionExists)

	// another kind or member is independent
	require.NoError(t, s.Insert(ctx, newInfraction("g1", "u1", models.KindBan, t0.Add(time.Hour))))
	require.NoError(t, s.Insert(ctx, newInfraction("g1", "u2", models.KindMute, t0.Add(time.Hour))))

	ok, err := s.Deactivate(ctx, first.ID, "mod", t0)
	require.NoError(t, err)
	require.True(t, ok)

	third := newInfraction("g1", "u1", models.KindMute, t0.Add(3*time.Hour))
	assert.NoError(t, s.Insert(ctx, third))
}

func testExtend(t *testing.T, s store) {
	ctx := context.Background()

	inf := newInfraction("g1", "u1", models.KindBan, t0.Add(time.Hour))
	require.NoError(t, s.Insert(ctx, inf))

	ok, err := s.Extend(ctx, inf.ID, models.Extension{Until: t0.Add(30 * time.Minute), Reason: "shorter", AppliedByID: "mod2", At: t0})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Extend(ctx, inf.ID, models.Extension{Until: t0.Add(time.Hour), Reason: "same", AppliedByID: "mod2", At: t0})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Extend(ctx, inf.ID, models.Extension{Until: t0.Add(2 * time.Hour), Reason: "longer", AppliedByID: "mod2", At: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.FindByID(ctx, inf.ID)
	require.NoError(t, err)
	assert.True(t, got.AppliedUntil.Equal(t0.Add(2*time.Hour)))
	assert.Equal(t, "longer", got.Reason)
	assert.Equal(t, "mod2", got.AppliedByID)
}

func testDeactivate(t *testing.T, s store) {
	ctx := context.Background()

	inf := newInfraction("g1", "u1", models.KindBan, t0.Add(time.Hour))
	require.NoError(t, s.Insert(ctx, inf))

	ok, err := s.Deactivate(ctx, inf.ID, "mod", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Deactivate(ctx, inf.ID, "other", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.FindByID(ctx, inf.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "mod", got.LiftedByID)
	require.NotNil(t, got.LiftedOn)
	assert.True(t, got.LiftedOn.Equal(t0.Add(time.Minute)))

	ok, err = s.Extend(ctx, inf.ID, models.Extension{Until: t0.Add(5 * time.Hour), At: t0})
	require.NoError(t, err)
	assert.False(t, ok, "inactive infractions cannot be extended")
}

func testConcurrentDeactivate(t *testing.T, s store) {
	ctx := context.Background()

	inf := newInfraction("g1", "u1", models.KindBan, t0.Add(time.Hour))
	require.NoError(t, s.Insert(ctx, inf))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Deactivate(ctx, inf.ID, "mod", t0)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func testDueSet(t *testing.T, s store) {
	ctx := context.Background()
	now := t0

	enableGuild(t, s, "g1")
	require.NoError(t, s.UpsertGuild(ctx, &models.Guild{GuildID: "g-off", IsActive: true, JoinedAt: t0}))
	enableGuild(t, s, "g-left")
	require.NoError(t, s.UpdateGuildStatus(ctx, "g-left", false, &now))

	past := newInfraction("g1", "u-past", models.KindBan, now.Add(-time.Second))
	exact := newInfraction("g1", "u-exact", models.KindMute, now)
	future := newInfraction("g1", "u-future", models.KindBan, now.Add(time.Second))
	disabled := newInfraction("g-off", "u-off", models.KindBan, now.Add(-time.Hour))
	left := newInfraction("g-left", "u-left", models.KindBan, now.Add(-time.Hour))
	lifted := newInfraction("g1", "u-lifted", models.KindBan, now.Add(-time.Hour))
	for _, inf := range []*models.Infraction{past, exact, future, disabled, left, lifted} {
		require.NoError(t, s.Insert(ctx, inf))
	}
	_, err := s.Deactivate(ctx, lifted.ID, "mod", now)
	require.NoError(t, err)

	due, err := s.FindDueActive(ctx, now)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, inf := range due {
		ids = append(ids, inf.UserID)
	}
	assert.Equal(t, []string{"u-past", "u-exact"}, ids)
}

func testEnforcementFailures(t *testing.T, s store) {
	ctx := context.Background()

	applyFailed := newInfraction("g1", "u1", models.KindBan, t0.Add(time.Hour))
	liftFailed := newInfraction("g1", "u2", models.KindBan, t0.Add(time.Hour))
	applied := newInfraction("g1", "u3", models.KindBan, t0.Add(time.Hour))
	for _, inf := range []*models.Infraction{applyFailed, liftFailed, applied} {
		require.NoError(t, s.Insert(ctx, inf))
	}

	setEnforcement(t, s, applyFailed.ID, models.EnforcementFailed, "boom", t0)
	setEnforcement(t, s, applied.ID, models.EnforcementApplied, "", t0)
	_, err := s.Deactivate(ctx, liftFailed.ID, "mod", t0)
	require.NoError(t, err)
	setEnforcement(t, s, liftFailed.ID, models.EnforcementLiftFailed, "boom", t0.Add(time.Second))

	flagged, err := s.FindEnforcementFailures(ctx, 2)
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	assert.Equal(t, applyFailed.ID, flagged[0].ID)
	assert.Equal(t, liftFailed.ID, flagged[1].ID)
	assert.Equal(t, 1, flagged[0].EnforcementAttempts)
	assert.Equal(t, "boom", flagged[0].EnforcementError)

	setEnforcement(t, s, applyFailed.ID, models.EnforcementFailed, "boom again", t0.Add(2*time.Second))
	flagged, err = s.FindEnforcementFailures(ctx, 2)
	require.NoError(t, err)
	require.Len(t, flagged, 1, "records past the attempt budget are left for an operator")
	assert.Equal(t, liftFailed.ID, flagged[0].ID)
}

func setEnforcement(t *testing.T, s store, id string, status models.EnforcementStatus, errMsg string, at time.Time) {
	t.Helper()
	ok, err := s.SetEnforcement(context.Background(), id, status, errMsg, at)
	require.NoError(t, err)
	require.True(t, ok)
}

func testEnforcementMatchesActive(t *testing.T, s store) {
	ctx := context.Background()

	inf := newInfraction("g1", "u1", models.KindBan, t0.Add(time.Hour))
	require.NoError(t, s.Insert(ctx, inf))

	ok, err := s.SetEnforcement(ctx, inf.ID, models.EnforcementLifted, "", t0)
	require.NoError(t, err)
	assert.False(t, ok, "an active record cannot be marked lifted")

	won, err := s.Deactivate(ctx, inf.ID, "mod", t0)
	require.NoError(t, err)
	require.True(t, won)
	setEnforcement(t, s, inf.ID, models.EnforcementLifted, "", t0)

	// a late apply must not overwrite the lift
	ok, err = s.SetEnforcement(ctx, inf.ID, models.EnforcementApplied, "", t0.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.SetEnforcement(ctx, inf.ID, models.EnforcementFailed, "late", t0.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.FindByID(ctx, inf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnforcementLifted, got.Enforcement)
	assert.Zero(t, got.EnforcementAttempts)

	ok, err = s.SetEnforcement(ctx, "missing", models.EnforcementApplied, "", t0)
	require.NoError(t, err)
	assert.False(t, ok)
}
