package live

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/taskdeck/internal/logging"
)

// Watcher runs a Channel and its Reconciler together.
type Watcher struct {
	channel    *Channel
	reconciler *Reconciler
}

// NewWatcher wires a channel to a reconciler calling reload.
func NewWatcher(cfg Config, reload ReloadFunc, logger *logging.Logger) *Watcher {
	inbox := NewInbox()
	return &Watcher{
		channel:    NewChannel(cfg, inbox, logger),
		reconciler: NewReconciler(inbox, reload, cfg.Debounce, cfg.MinReloadInterval, logger),
	}
}

// Run blocks until the channel ends. The reconciler stops with it.
func (w *Watcher) Run(ctx context.Context, userID int64, token string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.reconciler.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return w.channel.Run(gctx, userID, token)
	})
	return g.Wait()
}

// Close closes the socket; Run returns shortly after.
func (w *Watcher) Close() {
	w.channel.Close()
}
