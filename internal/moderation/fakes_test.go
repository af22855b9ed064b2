package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/internal/database"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/kevinfinalboss/VoidMod/internal/platform"
	"github.com/stretchr/testify/require"
)

const (
	guildID    = "G"
	muteRoleID = "muted"
	logChannel = "mod-log"

	modID    = "mod"
	adminID  = "admin"
	peerID   = "peer"
	nobodyID = "nobody"
	targetID = "42"
)

var t0 = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakePlatform struct {
	mu      sync.Mutex
	members map[string]int64
	calls   map[string]int
	errs    map[string]error
	// failFor makes every enforcement call against that user fail.
	failFor      map[string]error
	guildMissing bool
	// hooks run before the named call is recorded, outside the lock.
	hooks map[string]func()
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members: map[string]int64{
			modID:    discordgo.PermissionBanMembers | discordgo.PermissionModerateMembers,
			adminID:  discordgo.PermissionAdministrator,
			peerID:   discordgo.PermissionBanMembers,
			nobodyID: 0,
			targetID: 0,
		},
		calls:   map[string]int{},
		errs:    map[string]error{},
		failFor: map[string]error{},
		hooks:   map[string]func(){},
	}
}

func (p *fakePlatform) record(op, userID string) error {
	p.mu.Lock()
	hook := p.hooks[op]
	p.mu.Unlock()
	if hook != nil {
		hook()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if err, ok := p.failFor[userID]; ok {
		return err
	}
	return p.errs[op]
}

func (p *fakePlatform) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *fakePlatform) setErr(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.errs, op)
		return
	}
	p.errs[op] = err
}

func (p *fakePlatform) onCall(op string, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fn == nil {
		delete(p.hooks, op)
		return
	}
	p.hooks[op] = fn
}

func (p *fakePlatform) ApplyBan(_ context.Context, _, userID, _ string) error {
	return p.record("ApplyBan", userID)
}

func (p *fakePlatform) LiftBan(_ context.Context, _, userID string) error {
	return p.record("LiftBan", userID)
}

func (p *fakePlatform) GrantMuteRole(_ context.Context, _, userID, _ string) error {
	return p.record("GrantMuteRole", userID)
}

func (p *fakePlatform) RevokeMuteRole(_ context.Context, _, userID, _ string) error {
	return p.record("RevokeMuteRole", userID)
}

func (p *fakePlatform) MemberPermissions(_ context.Context, gID, userID string) (int64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.guildMissing {
		return 0, false, &platform.Error{Op: "guild", Kind: platform.KindNotFound, Entity: platform.EntityGuild}
	}
	perms, ok := p.members[userID]
	return perms, ok, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []Summary
	channels []string
	err      error
}

func (n *fakeNotifier) Send(_ context.Context, _, channelID string, s Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, s)
	n.channels = append(n.channels, channelID)
	return nil
}

func (n *fakeNotifier) outcomes() []Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Outcome, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Outcome)
	}
	return out
}

type harness struct {
	store    *database.MemoryStore
	platform *fakePlatform
	notifier *fakeNotifier
	clock    *clock
	manager  *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    database.NewMemoryStore(),
		platform: newFakePlatform(),
		notifier: &fakeNotifier{},
		clock:    &clock{t: t0},
	}
	h.enableGuild(t, guildID)
	h.manager = NewManager(h.store, h.store, h.platform, h.notifier, Options{Now: h.clock.Now})
	return h
}

func (h *harness) enableGuild(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.store.UpsertGuild(ctx, &models.Guild{GuildID: id, IsActive: true, JoinedAt: t0}))
	require.NoError(t, h.store.UpdateGuildSettings(ctx, id, models.SettingModerationEnabled, true))
	require.NoError(t, h.store.UpdateGuildSettings(ctx, id, models.SettingModerationMuteRole, muteRoleID))
	require.NoError(t, h.store.UpdateGuildSettings(ctx, id, models.SettingModerationLogChannel, logChannel))
}

func (h *harness) reconciler(maxAttempts int) *Reconciler {
	return NewReconciler(h.store, h.manager, ReconcilerOptions{MaxEnforcementAttempts: maxAttempts})
}

// seed stores an active, applied infraction directly.
func (h *harness) seed(t *testing.T, gID, userID string, kind models.InfractionKind, until time.Time) *models.Infraction {
	t.Helper()
	inf := &models.Infraction{
		GuildID:      gID,
		UserID:       userID,
		Kind:         kind,
		AppliedByID:  modID,
		AppliedUntil: until,
		IsActive:     true,
		Enforcement:  models.EnforcementApplied,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	if kind == models.KindMute {
		inf.RoleID = muteRoleID
	}
	require.NoError(t, h.store.Insert(context.Background(), inf))
	return inf
}

// flagFailed marks an active record as failed enforcement.
func (h *harness) flagFailed(t *testing.T, id string) {
	t.Helper()
	ok, err := h.store.SetEnforcement(context.Background(), id, models.EnforcementFailed, "timeout", t0)
	require.NoError(t, err)
	require.True(t, ok)
}

func (h *harness) get(t *testing.T, id string) *models.Infraction {
	t.Helper()
	inf, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, inf)
	return inf
}

func (h *harness) activeCount(userID string, kind models.InfractionKind) int {
	n := 0
	for _, inf := range h.store.All() {
		if inf.IsActive && inf.UserID == userID && inf.Kind == kind {
			n++
		}
	}
	return n
}

func banRequest(requester string, until time.Time) CreateRequest {
	return CreateRequest{GuildID: guildID, TargetID: targetID, RequesterID: requester, Until: until, Reason: "spam", Kind: models.KindBan}
}

func muteRequest(until time.Time) CreateRequest {
	return CreateRequest{GuildID: guildID, TargetID: targetID, RequesterID: modID, Until: until, Reason: "flood", Kind: models.KindMute}
}
