package moderation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ReconcilerState int

const (
	StateIdle ReconcilerState = iota
	StateScanning
	StateDisabling
)

func (s ReconcilerState) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateDisabling:
		return "disabling"
	default:
		return "idle"
	}
}

// Report summarizes one sweep. Err aggregates the per-item failures.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Due        int           `json:"due"`
	Lifted     int           `json:"lifted"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Repaired   int           `json:"repaired"`
	RepairFail int           `json:"repair_failed"`
	Err        error         `json:"-"`
}

type ReconcilerOptions struct {
	// Limit throttles platform-bound work across a sweep. Nil means unlimited.
	Limit                  *rate.Limiter
	MaxEnforcementAttempts int
	Logger                 *logger.Logger
	Now                    func() time.Time
}

var ErrSweepInProgress = errors.New("a sweep is already running")

// ErrDueQuery is wrapped by Sweep when the due set could not be loaded. No
// infraction was touched in that case.
var ErrDueQuery = errors.New("query due infractions")

// Reconciler lifts infractions whose expiry has passed. Overlapping sweeps in
// one process are refused; across processes the store's conditional
// deactivate keeps them idempotent.
type Reconciler struct {
	store   InfractionStore
	manager *Manager
	limit   *rate.Limiter
	maxTry  int
	log     *logger.Logger
	now     func() time.Time

	running atomic.Bool

	mu    sync.RWMutex
	state ReconcilerState
	last  *Report
}

func NewReconciler(store InfractionStore, manager *Manager, opts ReconcilerOptions) *Reconciler {
	r := &Reconciler{
		store:   store,
		manager: manager,
		limit:   opts.Limit,
		maxTry:  opts.MaxEnforcementAttempts,
		log:     opts.Logger,
		now:     opts.Now,
	}
	if r.log == nil {
		r.log = logger.NewNop()
	}
	r.log = r.log.Named("reconciler")
	if r.now == nil {
		r.now = manager.now
	}
	return r
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	r.log.Info("Expiry reconciler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := r.Sweep(ctx)
		switch {
		case err == nil || ctx.Err() != nil:
		case errors.Is(err, ErrDueQuery):
			r.log.Error("Sweep could not load due infractions", zap.Error(err))
		default:
			r.log.Warn("Sweep finished with errors",
				zap.String("run_id", report.RunID),
				zap.Int("failed", report.Failed),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.log.Info("Expiry reconciler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep lifts every due infraction once. A failure on one item is recorded
// and the batch continues; the returned error aggregates them and the report
// is still complete. Only ErrSweepInProgress and ErrDueQuery mean the batch
// did not run.
func (r *Reconciler) Sweep(ctx context.Context) (report Report, err error) {
	if !r.running.CompareAndSwap(false, true) {
		return Report{}, ErrSweepInProgress
	}
	defer r.running.Store(false)

	report = Report{RunID: uuid.NewString(), StartedAt: r.now()}
	log := r.log.With(zap.String("run_id", report.RunID))
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		sweepDuration.Observe(report.Duration.Seconds())
		r.finish(report)
	}()

	r.setState(StateScanning)
	due, qerr := r.store.FindDueActive(ctx, report.StartedAt)
	if qerr != nil {
		sweepErrorCount.Inc()
		report.Err = fmt.Errorf("%w: %v", ErrDueQuery, qerr)
		return report, report.Err
	}
	report.Due = len(due)

	r.setState(StateDisabling)
	for _, inf := range due {
		if err := r.wait(ctx); err != nil {
			report.Err = multierr.Append(report.Err, err)
			break
		}
		r.expireOne(ctx, log, inf, &report)
	}

	if ctx.Err() == nil && r.maxTry > 0 {
		r.repair(ctx, log, &report)
	}

	if report.Due > 0 || report.Failed > 0 || report.Repaired > 0 {
		log.Info("Sweep completed",
			zap.Int("due", report.Due),
			zap.Int("lifted", report.Lifted),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Int("repaired", report.Repaired))
	}

	return report, report.Err
}

func (r *Reconciler) expireOne(ctx context.Context, log *logger.Logger, inf *models.Infraction, report *Report) {
	res, err := r.manager.Expire(ctx, inf)
	switch {
	case err != nil:
		report.Failed++
		sweepItemCount.WithLabelValues("failed").Inc()
		report.Err = multierr.Append(report.Err, errors.Wrapf(err, "infraction %s", inf.ID))
		log.Warn("Could not expire infraction", append(infractionFields(inf), zap.Error(err))...)
	case res.Outcome == OutcomeNotActive:
		report.Skipped++
		sweepItemCount.WithLabelValues("skipped").Inc()
	default:
		report.Lifted++
		sweepItemCount.WithLabelValues("lifted").Inc()
	}
}

func (r *Reconciler) repair(ctx context.Context, log *logger.Logger, report *Report) {
	flagged, err := r.store.FindEnforcementFailures(ctx, r.maxTry)
	if err != nil {
		report.Err = multierr.Append(report.Err, errors.Wrap(err, "query enforcement failures"))
		return
	}

	for _, inf := range flagged {
		if err := r.wait(ctx); err != nil {
			report.Err = multierr.Append(report.Err, err)
			return
		}
		if err := r.manager.RepairEnforcement(ctx, inf); err != nil {
			report.RepairFail++
			sweepItemCount.WithLabelValues("repair_failed").Inc()
			log.Warn("Enforcement repair failed", append(infractionFields(inf),
				zap.Int("attempts", inf.EnforcementAttempts), zap.Error(err))...)
			continue
		}
		report.Repaired++
		sweepItemCount.WithLabelValues("repaired").Inc()
	}
}

func (r *Reconciler) wait(ctx context.Context) error {
	if r.limit == nil {
		return ctx.Err()
	}
	return r.limit.Wait(ctx)
}

func (r *Reconciler) setState(s ReconcilerState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Reconciler) finish(report Report) {
	r.mu.Lock()
	r.state = StateIdle
	r.last = &report
	r.mu.Unlock()
}

// Status returns the current state and a copy of the last finished report.
func (r *Reconciler) Status() (ReconcilerState, *Report) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return r.state, nil
	}
	last := *r.last
	return r.state, &last
}
