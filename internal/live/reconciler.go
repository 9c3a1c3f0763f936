package live

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/taskdeck/internal/logging"
)

// ReloadFunc refetches the view's data.
type ReloadFunc func(ctx context.Context) error

// Reconciler calls a ReloadFunc once per quiet burst of inbox signals.
type Reconciler struct {
	inbox    *Inbox
	reload   ReloadFunc
	debounce time.Duration
	limiter  *rate.Limiter
	logger   *logging.Logger
	metrics  *Metrics
}

// NewReconciler creates a reconciler. After a signal it waits until the
// inbox has been quiet for debounce, then for the limiter, which spaces
// reloads at least minInterval apart.
func NewReconciler(inbox *Inbox, reload ReloadFunc, debounce, minInterval time.Duration, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Nop()
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Reconciler{
		inbox:    inbox,
		reload:   reload,
		debounce: debounce,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.Named("reconcile"),
		metrics:  NewMetrics(),
	}
}

// Run reloads on signals until ctx is done. Reload errors are logged and
// the loop continues.
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.inbox.C():
		}

		if !r.settle(ctx) {
			return nil
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return nil
		}

		start := time.Now()
		err := r.reload(ctx)
		if ctx.Err() != nil {
			return nil
		}
		r.metrics.recordReload(err)
		if err != nil {
			r.logger.Warn(ctx, "live reload failed", zap.Error(err))
			continue
		}
		r.logger.Debug(ctx, "live reload", zap.Duration("duration", time.Since(start)))
	}
}

// settle waits until no signal has arrived for the debounce period. It
// reports false if ctx ended first.
func (r *Reconciler) settle(ctx context.Context) bool {
	if r.debounce <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(r.debounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-r.inbox.C():
			timer.Reset(r.debounce)
		case <-timer.C:
			return true
		}
	}
}
