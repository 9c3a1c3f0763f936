package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/taskdeck/internal/dashboard"
	"github.com/fyrsmithlabs/taskdeck/internal/live"
	"github.com/fyrsmithlabs/taskdeck/internal/session"
)

func newWatchCmd(a *app) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live task updates",
		Long: `Connect to the push channel and print the task summary every time the
server reports a change. Bursts of updates are coalesced into one reload.

watch stops on Ctrl-C, when the connection drops (unless live.reconnect
is enabled) or when you log out from another terminal.

Examples:
  # Follow updates
  taskdeck watch

  # Also expose Prometheus metrics
  taskdeck watch --metrics-addr 127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: a.protected(func(cmd *cobra.Command, args []string, s session.Session) error {
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.cfg.Live.MetricsAddr
			}
			return a.watch(cmd.Context(), cmd.OutOrStdout(), s, metricsAddr)
		}),
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides live.metrics_addr)")
	return cmd
}

func (a *app) watch(ctx context.Context, out io.Writer, s session.Session, metricsAddr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := dashboard.New(a.api, dashboard.WithLogger(a.logger))
	defer ctrl.Close()

	var mu sync.Mutex
	report := func(prefix string) {
		st := ctrl.Stats(time.Now())
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "%s %s: %d tasks, %d open, %d overdue\n",
			time.Now().Format(time.TimeOnly), prefix, st.Total, st.Open(), st.Overdue)
	}

	if err := ctrl.Load(ctx); err != nil {
		return err
	}
	report("loaded")

	watcher := live.NewWatcher(live.FromAppConfig(a.cfg), func(ctx context.Context) error {
		if err := ctrl.Load(ctx); err != nil {
			return err
		}
		report("updated")
		return nil
	}, a.logger)

	ended := make(chan struct{})
	var endOnce sync.Once
	unsubscribe := a.store.OnChange(func(next *session.Session) {
		if next == nil || next.UserID != s.UserID {
			endOnce.Do(func() { close(ended) })
			watcher.Close()
		}
	})
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := watcher.Run(gctx, s.UserID, s.Token.Value())
		if errors.Is(err, live.ErrClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := a.store.Watch(gctx)
		if errors.Is(err, session.ErrNotWatchable) {
			return nil
		}
		return err
	})
	if metricsAddr != "" {
		ln, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", metricsAddr, err)
		}
		live.NewMetrics()
		srv := &http.Server{Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		a.logger.Info(ctx, "serving metrics", zap.String("addr", ln.Addr().String()))
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	select {
	case <-ended:
		fmt.Fprintln(out, "Session ended.")
	default:
	}
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
