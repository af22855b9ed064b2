package moderation

import (
	"context"
	"time"

	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/kevinfinalboss/VoidMod/internal/platform"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SystemActorID is recorded as LiftedByID for automatic expiry.
const SystemActorID = "system"

// maxWriteAttempts bounds how often a request re-reads after losing a
// conditional write to a concurrent request.
const maxWriteAttempts = 3

var ErrConcurrentModification = errors.New("infraction changed concurrently too many times")

type Options struct {
	PlatformTimeout time.Duration
	NotifyTimeout   time.Duration
	Logger          *logger.Logger
	Now             func() time.Time
}

type Manager struct {
	store     InfractionStore
	configs   GuildConfigProvider
	platform  Platform
	notifier  Notifier
	enforcers map[models.InfractionKind]enforcer

	log             *logger.Logger
	now             func() time.Time
	platformTimeout time.Duration
	notifyTimeout   time.Duration
}

func NewManager(store InfractionStore, configs GuildConfigProvider, p Platform, notifier Notifier, opts Options) *Manager {
	m := &Manager{
		store:           store,
		configs:         configs,
		platform:        p,
		notifier:        notifier,
		enforcers:       newEnforcers(p),
		log:             opts.Logger,
		now:             opts.Now,
		platformTimeout: opts.PlatformTimeout,
		notifyTimeout:   opts.NotifyTimeout,
	}
	if m.log == nil {
		m.log = logger.NewNop()
	}
	m.log = m.log.Named("moderation")
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	if m.platformTimeout <= 0 {
		m.platformTimeout = 10 * time.Second
	}
	if m.notifyTimeout <= 0 {
		m.notifyTimeout = 5 * time.Second
	}
	return m
}

type CreateRequest struct {
	GuildID     string
	TargetID    string
	RequesterID string
	Until       time.Time
	Reason      string
	Kind        models.InfractionKind
}

func (r CreateRequest) validate(now time.Time) error {
	switch {
	case r.GuildID == "":
		return &ValidationError{Field: "guild_id", Reason: "required"}
	case r.TargetID == "":
		return &ValidationError{Field: "target_id", Reason: "required"}
	case r.RequesterID == "":
		return &ValidationError{Field: "requester_id", Reason: "required"}
	case !r.Kind.Valid():
		return &ValidationError{Field: "kind", Reason: "must be ban or mute"}
	case !r.Until.After(now):
		return &ValidationError{Field: "until", Reason: "must be in the future"}
	}
	return nil
}

// DisableRequest addresses an infraction either by ID or by the active
// (guild, target, kind) triple.
type DisableRequest struct {
	InfractionID string
	GuildID      string
	TargetID     string
	Kind         models.InfractionKind
	RequesterID  string
}

func (r DisableRequest) validate() error {
	if r.RequesterID == "" {
		return &ValidationError{Field: "requester_id", Reason: "required"}
	}
	if r.InfractionID != "" {
		return nil
	}
	switch {
	case r.GuildID == "":
		return &ValidationError{Field: "guild_id", Reason: "required"}
	case r.TargetID == "":
		return &ValidationError{Field: "target_id", Reason: "required"}
	case !r.Kind.Valid():
		return &ValidationError{Field: "kind", Reason: "must be ban or mute"}
	}
	return nil
}

// CreateOrExtend creates an infraction, or extends the active one when the
// request runs longer. A shorter or equal request leaves the active
// infraction untouched and yields OutcomeAlreadyActive.
//
// On *PartialFailureError the returned Result still describes the stored
// record, which is flagged as failed enforcement.
func (m *Manager) CreateOrExtend(ctx context.Context, req CreateRequest) (Result, error) {
	if err := req.validate(m.now()); err != nil {
		return Result{}, err
	}

	cfg, err := m.moduleConfig(ctx, req.GuildID)
	if err != nil {
		return Result{}, err
	}
	if req.Kind == models.KindMute && cfg.MuteRoleID == "" {
		return Result{}, &NotFoundError{Resource: ResourceRole, ID: "(mute role not configured)"}
	}

	requester, target, err := m.subjects(ctx, req.GuildID, req.RequesterID, req.TargetID)
	if err != nil {
		return Result{}, err
	}
	if err := Authorize(requester, target, Privilege(req.Kind)); err != nil {
		return Result{}, err
	}
	if req.Kind == models.KindMute && !target.Present {
		return Result{}, &NotFoundError{Resource: ResourceMember, ID: req.TargetID}
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		existing, err := m.store.FindActive(ctx, req.GuildID, req.TargetID, req.Kind)
		if err != nil {
			return Result{}, errors.Wrap(err, "find active infraction")
		}

		if existing == nil {
			res, err := m.create(ctx, req, cfg)
			if errors.Is(err, models.ErrActiveInfractionExists) {
				continue
			}
			return res, err
		}

		if !req.Until.After(existing.AppliedUntil) {
			transitionCount.WithLabelValues(string(req.Kind), OutcomeAlreadyActive.String()).Inc()
			// a record whose enforcement failed earlier gets another try
			if err := m.RepairEnforcement(ctx, existing); err != nil {
				return Result{Outcome: OutcomeAlreadyActive, Infraction: existing}, err
			}
			return Result{Outcome: OutcomeAlreadyActive, Infraction: existing}, nil
		}

		res, ok, err := m.extend(ctx, req, cfg, existing)
		if err != nil || ok {
			return res, err
		}
	}

	return Result{}, ErrConcurrentModification
}

func (m *Manager) create(ctx context.Context, req CreateRequest, cfg *models.ModerationConfig) (Result, error) {
	now := m.now()
	inf := &models.Infraction{
		GuildID:      req.GuildID,
		UserID:       req.TargetID,
		Kind:         req.Kind,
		AppliedByID:  req.RequesterID,
		AppliedUntil: req.Until,
		Reason:       req.Reason,
		IsActive:     true,
		Enforcement:  models.EnforcementPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Kind == models.KindMute {
		inf.RoleID = cfg.MuteRoleID
	}

	if err := m.store.Insert(ctx, inf); err != nil {
		if errors.Is(err, models.ErrActiveInfractionExists) {
			return Result{}, err
		}
		return Result{}, errors.Wrap(err, "insert infraction")
	}

	log := m.log.With(infractionFields(inf)...)

	if err := m.apply(ctx, inf); err != nil {
		log.Error("Enforcement failed after infraction was stored", zap.Error(err))
		enforcementFailureCount.WithLabelValues(string(inf.Kind), "apply").Inc()
		if !m.markEnforcement(ctx, inf, models.EnforcementFailed, err) {
			return m.revoked(ctx, inf)
		}
		return Result{Outcome: OutcomeCreated, Infraction: inf}, &PartialFailureError{
			Op: "create", InfractionID: inf.ID, Persisted: true, Enforced: false, Err: err,
		}
	}
	if !m.markEnforcement(ctx, inf, models.EnforcementApplied, nil) {
		return m.revoked(ctx, inf)
	}

	log.Info("Infraction created")
	transitionCount.WithLabelValues(string(inf.Kind), OutcomeCreated.String()).Inc()
	m.notify(ctx, inf.GuildID, cfg, summarize(OutcomeCreated, inf, req.RequesterID, false, now))

	return Result{Outcome: OutcomeCreated, Infraction: inf}, nil
}

// extend reports ok == false when the conditional write lost a race and the
// caller should re-read.
func (m *Manager) extend(ctx context.Context, req CreateRequest, cfg *models.ModerationConfig, existing *models.Infraction) (Result, bool, error) {
	now := m.now()
	ext := models.Extension{
		Until:       req.Until,
		Reason:      req.Reason,
		AppliedByID: req.RequesterID,
		At:          now,
	}

	ok, err := m.store.Extend(ctx, existing.ID, ext)
	if err != nil {
		return Result{}, false, errors.Wrap(err, "extend infraction")
	}
	if !ok {
		return Result{}, false, nil
	}

	inf := *existing
	inf.AppliedUntil = ext.Until
	inf.Reason = ext.Reason
	inf.AppliedByID = ext.AppliedByID
	inf.UpdatedAt = now

	log := m.log.With(infractionFields(&inf)...)

	if err := m.apply(ctx, &inf); err != nil {
		log.Error("Enforcement failed after infraction was extended", zap.Error(err))
		enforcementFailureCount.WithLabelValues(string(inf.Kind), "apply").Inc()
		if !m.markEnforcement(ctx, &inf, models.EnforcementFailed, err) {
			res, err := m.revoked(ctx, &inf)
			return res, true, err
		}
		return Result{Outcome: OutcomeExtended, Infraction: &inf}, true, &PartialFailureError{
			Op: "extend", InfractionID: inf.ID, Persisted: true, Enforced: false, Err: err,
		}
	}
	if !m.markEnforcement(ctx, &inf, models.EnforcementApplied, nil) {
		res, err := m.revoked(ctx, &inf)
		return res, true, err
	}

	log.Info("Infraction extended")
	transitionCount.WithLabelValues(string(inf.Kind), OutcomeExtended.String()).Inc()
	m.notify(ctx, inf.GuildID, cfg, summarize(OutcomeExtended, &inf, req.RequesterID, false, now))

	return Result{Outcome: OutcomeExtended, Infraction: &inf}, true, nil
}

// Disable lifts an infraction on behalf of a member holding the privilege
// for its kind.
func (m *Manager) Disable(ctx context.Context, req DisableRequest) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	inf, err := m.resolve(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if inf == nil || !inf.IsActive {
		return m.notActive(req.Kind, inf), nil
	}

	cfg, err := m.moduleConfig(ctx, inf.GuildID)
	if err != nil {
		return Result{}, err
	}

	requester, _, err := m.subjects(ctx, inf.GuildID, req.RequesterID, "")
	if err != nil {
		return Result{}, err
	}
	if err := AuthorizeRequester(requester, Privilege(inf.Kind)); err != nil {
		return Result{}, err
	}

	return m.lift(ctx, inf, cfg, req.RequesterID, false)
}

// Expire lifts a due infraction as the system identity. The guard is
// bypassed; configuration must still exist.
func (m *Manager) Expire(ctx context.Context, inf *models.Infraction) (Result, error) {
	cfg, err := m.moduleConfig(ctx, inf.GuildID)
	if err != nil {
		return Result{}, err
	}
	return m.lift(ctx, inf, cfg, SystemActorID, true)
}

func (m *Manager) resolve(ctx context.Context, req DisableRequest) (*models.Infraction, error) {
	if req.InfractionID == "" {
		inf, err := m.store.FindActive(ctx, req.GuildID, req.TargetID, req.Kind)
		return inf, errors.Wrap(err, "find active infraction")
	}

	inf, err := m.store.FindByID(ctx, req.InfractionID)
	if err != nil {
		return nil, errors.Wrap(err, "find infraction")
	}
	if inf == nil || (req.GuildID != "" && inf.GuildID != req.GuildID) {
		return nil, &NotFoundError{Resource: ResourceInfraction, ID: req.InfractionID}
	}
	return inf, nil
}

func (m *Manager) notActive(kind models.InfractionKind, inf *models.Infraction) Result {
	if inf != nil {
		kind = inf.Kind
	}
	transitionCount.WithLabelValues(string(kind), OutcomeNotActive.String()).Inc()
	return Result{Outcome: OutcomeNotActive, Infraction: inf}
}

// lift flips the active flag first; only the caller that wins that
// compare-and-set touches the platform.
func (m *Manager) lift(ctx context.Context, inf *models.Infraction, cfg *models.ModerationConfig, actorID string, automatic bool) (Result, error) {
	now := m.now()
	won, err := m.store.Deactivate(ctx, inf.ID, actorID, now)
	if err != nil {
		return Result{}, errors.Wrap(err, "deactivate infraction")
	}
	if !won {
		return m.notActive(inf.Kind, inf), nil
	}

	lifted := *inf
	lifted.IsActive = false
	lifted.LiftedByID = actorID
	lifted.LiftedOn = &now
	lifted.UpdatedAt = now
	if lifted.Kind == models.KindMute && lifted.RoleID == "" {
		lifted.RoleID = cfg.MuteRoleID
	}

	log := m.log.With(infractionFields(&lifted)...).With(zap.String("lifted_by", actorID))

	pctx, cancel := context.WithTimeout(ctx, m.platformTimeout)
	err = m.enforcers[lifted.Kind].lift(pctx, &lifted)
	cancel()
	if err != nil {
		log.Error("Lift failed after infraction was deactivated", zap.Error(err))
		m.markEnforcement(ctx, &lifted, models.EnforcementLiftFailed, err)
		enforcementFailureCount.WithLabelValues(string(lifted.Kind), "lift").Inc()
		return Result{Outcome: OutcomeLifted, Infraction: &lifted}, &PartialFailureError{
			Op: "lift", InfractionID: lifted.ID, Persisted: true, Enforced: false, Err: err,
		}
	}
	m.markEnforcement(ctx, &lifted, models.EnforcementLifted, nil)

	log.Info("Infraction lifted", zap.Bool("automatic", automatic))
	transitionCount.WithLabelValues(string(lifted.Kind), OutcomeLifted.String()).Inc()
	m.notify(ctx, lifted.GuildID, cfg, summarize(OutcomeLifted, &lifted, actorID, automatic, now))

	return Result{Outcome: OutcomeLifted, Infraction: &lifted}, nil
}

// RepairEnforcement retries the platform side of a record flagged failed
// (active) or lift_failed (inactive). Other records are left alone.
func (m *Manager) RepairEnforcement(ctx context.Context, inf *models.Infraction) error {
	var (
		op      string
		success models.EnforcementStatus
		failure models.EnforcementStatus
	)
	switch {
	case inf.IsActive && inf.Enforcement == models.EnforcementFailed:
		op, success, failure = "apply", models.EnforcementApplied, models.EnforcementFailed
	case !inf.IsActive && inf.Enforcement == models.EnforcementLiftFailed:
		op, success, failure = "lift", models.EnforcementLifted, models.EnforcementLiftFailed
	default:
		return nil
	}

	if inf.Kind == models.KindMute && inf.RoleID == "" {
		if cfg, err := m.configs.ModerationConfig(ctx, inf.GuildID); err == nil && cfg != nil {
			inf.RoleID = cfg.MuteRoleID
		}
	}

	pctx, cancel := context.WithTimeout(ctx, m.platformTimeout)
	var err error
	if op == "apply" {
		err = m.enforcers[inf.Kind].apply(pctx, inf)
	} else {
		err = m.enforcers[inf.Kind].lift(pctx, inf)
	}
	cancel()

	if err != nil {
		enforcementFailureCount.WithLabelValues(string(inf.Kind), op).Inc()
		if !m.markEnforcement(ctx, inf, failure, err) {
			_, err := m.revert(ctx, inf)
			return err
		}
		return &PartialFailureError{Op: "repair " + op, InfractionID: inf.ID, Persisted: true, Enforced: false, Err: err}
	}

	if !m.markEnforcement(ctx, inf, success, nil) {
		_, err := m.revert(ctx, inf)
		return err
	}
	m.log.Info("Enforcement repaired", append(infractionFields(inf), zap.String("op", op))...)
	return nil
}

// ReapplyMute grants the mute role again to a member with an active mute,
// e.g. after they left and rejoined the guild.
func (m *Manager) ReapplyMute(ctx context.Context, guildID, userID string) (bool, error) {
	inf, err := m.store.FindActive(ctx, guildID, userID, models.KindMute)
	if err != nil {
		return false, errors.Wrap(err, "find active mute")
	}
	if inf == nil || inf.IsDue(m.now()) {
		return false, nil
	}
	if _, err := m.moduleConfig(ctx, guildID); err != nil {
		return false, err
	}

	if err := m.apply(ctx, inf); err != nil {
		if !m.markEnforcement(ctx, inf, models.EnforcementFailed, err) {
			_, err := m.revert(ctx, inf)
			return false, err
		}
		return false, &PartialFailureError{Op: "reapply", InfractionID: inf.ID, Persisted: true, Enforced: false, Err: err}
	}
	if !m.markEnforcement(ctx, inf, models.EnforcementApplied, nil) {
		_, err := m.revert(ctx, inf)
		return false, err
	}
	return true, nil
}

// revoked answers a create or extend whose record was lifted while the
// platform call ran.
func (m *Manager) revoked(ctx context.Context, inf *models.Infraction) (Result, error) {
	current, err := m.revert(ctx, inf)
	transitionCount.WithLabelValues(string(inf.Kind), OutcomeRevoked.String()).Inc()
	return Result{Outcome: OutcomeRevoked, Infraction: current}, err
}

// revert lifts the platform side of a record that was deactivated while an
// apply was in flight, so the late apply does not outlive the lift.
func (m *Manager) revert(ctx context.Context, inf *models.Infraction) (*models.Infraction, error) {
	current, err := m.store.FindByID(ctx, inf.ID)
	if err != nil {
		return inf, errors.Wrap(err, "reload infraction")
	}
	if current == nil || current.IsActive {
		return inf, nil
	}
	if current.Kind == models.KindMute && current.RoleID == "" {
		current.RoleID = inf.RoleID
	}

	log := m.log.With(infractionFields(current)...)
	log.Warn("Infraction was lifted while enforcement ran, reverting")

	pctx, cancel := context.WithTimeout(ctx, m.platformTimeout)
	err = m.enforcers[current.Kind].lift(pctx, current)
	cancel()
	if err != nil {
		log.Error("Revert failed", zap.Error(err))
		m.markEnforcement(ctx, current, models.EnforcementLiftFailed, err)
		enforcementFailureCount.WithLabelValues(string(current.Kind), "lift").Inc()
		return current, &PartialFailureError{Op: "revert", InfractionID: current.ID, Persisted: true, Enforced: false, Err: err}
	}
	m.markEnforcement(ctx, current, models.EnforcementLifted, nil)
	return current, nil
}

func (m *Manager) apply(ctx context.Context, inf *models.Infraction) error {
	pctx, cancel := context.WithTimeout(ctx, m.platformTimeout)
	defer cancel()
	return m.enforcers[inf.Kind].apply(pctx, inf)
}

// markEnforcement reports false when the record's active flag no longer
// matches status, i.e. it was lifted while an apply ran. Store errors are
// logged and count as recorded.
func (m *Manager) markEnforcement(ctx context.Context, inf *models.Infraction, status models.EnforcementStatus, cause error) bool {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := m.now()
	ok, err := m.store.SetEnforcement(ctx, inf.ID, status, msg, now)
	if err != nil {
		m.log.Error("Failed to record enforcement status",
			append(infractionFields(inf), zap.String("status", string(status)), zap.Error(err))...)
		return true
	}
	if !ok {
		return false
	}
	if status.Failure() {
		inf.EnforcementAttempts++
	}
	inf.Enforcement = status
	inf.EnforcementError = msg
	inf.UpdatedAt = now
	return true
}

func (m *Manager) moduleConfig(ctx context.Context, guildID string) (*models.ModerationConfig, error) {
	cfg, err := m.configs.ModerationConfig(ctx, guildID)
	if err != nil {
		return nil, errors.Wrap(err, "load moderation config")
	}
	if cfg == nil || !cfg.Enabled {
		return nil, ErrModuleDisabled
	}
	return cfg, nil
}

// subjects resolves the requester and, when targetID is set, the target.
func (m *Manager) subjects(ctx context.Context, guildID, requesterID, targetID string) (Subject, Subject, error) {
	pctx, cancel := context.WithTimeout(ctx, m.platformTimeout)
	defer cancel()

	requester := Subject{ID: requesterID}
	perms, present, err := m.platform.MemberPermissions(pctx, guildID, requesterID)
	if err != nil {
		return Subject{}, Subject{}, lookupError(err, guildID)
	}
	requester.Permissions, requester.Present = perms, present

	target := Subject{ID: targetID}
	if targetID == "" {
		return requester, target, nil
	}
	perms, present, err = m.platform.MemberPermissions(pctx, guildID, targetID)
	if err != nil {
		return Subject{}, Subject{}, lookupError(err, guildID)
	}
	target.Permissions, target.Present = perms, present

	return requester, target, nil
}

func lookupError(err error, guildID string) error {
	var pe *platform.Error
	if errors.As(err, &pe) && pe.Kind == platform.KindNotFound && pe.Entity == platform.EntityGuild {
		return &NotFoundError{Resource: ResourceGuild, ID: guildID}
	}
	return errors.Wrap(err, "resolve member permissions")
}

func (m *Manager) notify(ctx context.Context, guildID string, cfg *models.ModerationConfig, summary Summary) {
	channelID := cfg.NotifyChannel()
	if m.notifier == nil || channelID == "" {
		return
	}

	nctx, cancel := context.WithTimeout(ctx, m.notifyTimeout)
	defer cancel()

	if err := m.notifier.Send(nctx, guildID, channelID, summary); err != nil {
		notificationFailureCount.Inc()
		m.log.Warn("Notification not delivered", zap.Error(&NotificationError{GuildID: guildID, ChannelID: channelID, Err: err}))
	}
}

func infractionFields(inf *models.Infraction) []zap.Field {
	return []zap.Field{
		zap.String("infraction_id", inf.ID),
		zap.String("guild_id", inf.GuildID),
		zap.String("user_id", inf.UserID),
		zap.String("kind", string(inf.Kind)),
	}
}
