package reconcile

// reconciler.go
// Periodic exchange of recently updated orders with the cloud store: local
// orders the cloud has not caught up with are pushed, newer cloud copies are
// merged into the local store.
// Every tick is skipped outright while the operator has an edit, authorization
// or payment modal open, or while the terminal is in the background. Results
// of a tick that finishes after Stop are discarded.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"giftpos/internal/model"
	"giftpos/internal/notify"
	"giftpos/internal/orderlock"
	"giftpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrRemoteNotConfigured is returned by ManualSync when no cloud endpoint is set.
var ErrRemoteNotConfigured = errors.New("la nube no está configurada")

var errStale = errors.New("reconcile: loop stopped, discarding results")

// Remote is the cloud order store.
type Remote interface {
	Configured() bool
	FetchUpdatedSince(ctx context.Context, since time.Time, limit int) ([]model.Order, error)
	Upsert(ctx context.Context, o *model.Order) error
}

// Guard reports the terminal UI state consulted at the top of each tick.
type Guard interface {
	AnyModalOpen() bool
	Foreground() bool
}

// Skip reasons reported in Result.Skipped.
const (
	SkipNotConfigured = "not_configured"
	SkipModalOpen     = "modal_open"
	SkipBackground    = "background"
	SkipBusy          = "busy"
	SkipStale         = "stale"
)

// Result summarizes one tick or manual sync.
type Result struct {
	Skipped    string `json:"skipped,omitempty"`
	Pushed     int    `json:"pushed"`
	PushFailed int    `json:"pushFailed"`
	Fetched    int    `json:"fetched"`
	Applied    int    `json:"applied"`
}

// Options tunes the loop. Zero values get the defaults.
type Options struct {
	Interval       time.Duration // 30s
	AutoLookback   time.Duration // 7 days
	ManualLookback time.Duration // 30 days
	FetchLimit     int           // 200
	Now            func() time.Time
}

func (o *Options) withDefaults() {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.AutoLookback <= 0 {
		o.AutoLookback = 7 * 24 * time.Hour
	}
	if o.ManualLookback <= 0 {
		o.ManualLookback = 30 * 24 * time.Hour
	}
	if o.FetchLimit <= 0 {
		o.FetchLimit = 200
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Reconciler is safe for concurrent use. Ticks and manual syncs never
// overlap; a tick that finds a sync in progress is skipped.
type Reconciler struct {
	store    repository.OrderRepository
	remote   Remote
	guard    Guard
	notifier notify.Notifier
	locker   *orderlock.Locker
	opts     Options

	syncMu sync.Mutex
	gen    atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New wires a Reconciler. guard and notifier may be nil.
func New(store repository.OrderRepository, remote Remote, guard Guard, notifier notify.Notifier, locker *orderlock.Locker, opts Options) *Reconciler {
	opts.withDefaults()
	if locker == nil {
		locker = orderlock.New()
	}
	return &Reconciler{
		store:    store,
		remote:   remote,
		guard:    guard,
		notifier: notifier,
		locker:   locker,
		opts:     opts,
	}
}

// Start launches the loop: one manual sync right away, then a guarded tick
// every Interval. It returns false if the loop is already running.
func (r *Reconciler) Start(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done

	go r.run(loopCtx, done)
	return true
}

// Stop cancels the loop and waits for it to exit. Results of any tick or
// sync still in flight are discarded.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	r.gen.Add(1)
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (r *Reconciler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Reconciler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	log.Info().Dur("interval", r.opts.Interval).Msg("reconcile: started")

	if r.remote.Configured() {
		_, _ = r.ManualSync(ctx)
	}

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconcile: shutting down")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one automatic cycle over the auto window: fetch the cloud
// copies, push local orders the cloud has not caught up with, then merge the
// fetched copies. Errors are logged and swallowed.
func (r *Reconciler) Tick(ctx context.Context) Result {
	if reason := r.skipReason(); reason != "" {
		log.Debug().Str("reason", reason).Msg("reconcile: tick skipped")
		return Result{Skipped: reason}
	}
	if !r.syncMu.TryLock() {
		return Result{Skipped: SkipBusy}
	}
	defer r.syncMu.Unlock()

	gen := r.gen.Load()
	var res Result
	since := r.opts.Now().Add(-r.opts.AutoLookback)

	remote, err := r.fetch(ctx, since, &res)
	if err == nil {
		err = r.pushLocal(ctx, gen, since, newerThan(remote, len(remote) < r.opts.FetchLimit), &res)
	}
	if err == nil {
		err = r.apply(ctx, gen, remote, &res)
	}
	switch {
	case errors.Is(err, errStale):
		log.Debug().Msg("reconcile: tick finished after stop, discarded")
		res.Skipped = SkipStale
	case err != nil:
		log.Warn().Err(err).Msg("reconcile: tick failed")
	default:
		if res.PushFailed > 0 {
			log.Warn().Int("push_failed", res.PushFailed).Msg("reconcile: some local orders were not pushed")
		}
		if res.Applied > 0 {
			log.Info().Int("fetched", res.Fetched).Int("applied", res.Applied).Msg("reconcile: merged remote orders")
			r.notify(notify.LevelInfo, fmt.Sprintf("%d pedidos actualizados desde la nube", res.Applied))
		}
	}
	return res
}

// ManualSync pushes every local order updated within the manual window, then
// pulls with the same window. The operator always gets a toast.
func (r *Reconciler) ManualSync(ctx context.Context) (Result, error) {
	if !r.remote.Configured() {
		r.notify(notify.LevelWarning, ErrRemoteNotConfigured.Error())
		return Result{Skipped: SkipNotConfigured}, ErrRemoteNotConfigured
	}
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	gen := r.gen.Load()
	var res Result
	since := r.opts.Now().Add(-r.opts.ManualLookback)

	err := r.pushLocal(ctx, gen, since, nil, &res)
	if err == nil {
		var remote []model.Order
		remote, err = r.fetch(ctx, since, &res)
		if err == nil {
			err = r.apply(ctx, gen, remote, &res)
		}
	}
	if errors.Is(err, errStale) {
		res.Skipped = SkipStale
		return res, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("reconcile: manual sync failed")
		r.notify(notify.LevelError, "Error al sincronizar con la nube")
		return res, err
	}

	log.Info().
		Int("pushed", res.Pushed).
		Int("push_failed", res.PushFailed).
		Int("fetched", res.Fetched).
		Int("applied", res.Applied).
		Msg("reconcile: manual sync done")
	if res.PushFailed > 0 {
		r.notify(notify.LevelWarning, fmt.Sprintf("Sincronizado con %d pedidos sin enviar", res.PushFailed))
	} else {
		r.notify(notify.LevelSuccess, "Sincronización completada")
	}
	return res, nil
}

func (r *Reconciler) skipReason() string {
	if !r.remote.Configured() {
		return SkipNotConfigured
	}
	if r.guard != nil {
		if r.guard.AnyModalOpen() {
			return SkipModalOpen
		}
		if !r.guard.Foreground() {
			return SkipBackground
		}
	}
	return ""
}

func (r *Reconciler) fetch(ctx context.Context, since time.Time, res *Result) ([]model.Order, error) {
	remote, err := r.remote.FetchUpdatedSince(ctx, since, r.opts.FetchLimit)
	if err != nil {
		return nil, fmt.Errorf("reconcile: fetch remote: %w", err)
	}
	res.Fetched = len(remote)
	return remote, nil
}

// pushFilter reports whether a local order should be uploaded.
type pushFilter func(local *model.Order) bool

// newerThan keeps local orders strictly newer than the fetched cloud copy.
// An order missing from the fetch counts as newer only when the fetch was
// not truncated by the row cap.
func newerThan(remote []model.Order, complete bool) pushFilter {
	byID := make(map[uuid.UUID]*model.Order, len(remote))
	for i := range remote {
		byID[remote[i].ID] = &remote[i]
	}
	return func(local *model.Order) bool {
		if local.UpdatedAt == nil {
			return false
		}
		cloud, ok := byID[local.ID]
		if !ok {
			return complete
		}
		return cloud.UpdatedAt == nil || local.UpdatedAt.After(*cloud.UpdatedAt)
	}
}

// pushLocal uploads local orders stamped after since. A nil filter pushes all
// of them. Failures are counted and logged, never returned.
func (r *Reconciler) pushLocal(ctx context.Context, gen uint64, since time.Time, filter pushFilter, res *Result) error {
	local, err := r.store.ListUpdatedSince(ctx, since, r.opts.FetchLimit)
	if err != nil {
		return fmt.Errorf("reconcile: list local orders: %w", err)
	}
	for i := range local {
		if r.gen.Load() != gen || ctx.Err() != nil {
			return errStale
		}
		o := &local[i]
		if filter != nil && !filter(o) {
			continue
		}
		if err := r.remote.Upsert(ctx, o); err != nil {
			res.PushFailed++
			log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("reconcile: push failed")
			continue
		}
		res.Pushed++
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, gen uint64, remote []model.Order, res *Result) error {
	for i := range remote {
		if r.gen.Load() != gen || ctx.Err() != nil {
			return errStale
		}
		applied, err := r.applyOne(ctx, &remote[i])
		if err != nil {
			log.Warn().Err(err).Str("order_id", remote[i].ID.String()).Msg("reconcile: merge failed")
			continue
		}
		if applied {
			res.Applied++
		}
	}
	return nil
}

// applyOne runs the read-modify-write for one order under its lock.
func (r *Reconciler) applyOne(ctx context.Context, remote *model.Order) (bool, error) {
	if remote.ID == uuid.Nil {
		return false, errors.New("remote order without id")
	}
	unlock := r.locker.Lock(remote.ID)
	defer unlock()

	local, err := r.store.FindByID(ctx, remote.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	merged, changed := Merge(local, remote)
	if !changed {
		return false, nil
	}
	if err := r.store.Upsert(ctx, merged); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Reconciler) notify(level notify.Level, msg string) {
	if r.notifier != nil {
		r.notifier.Notify(level, msg, "")
	}
}
