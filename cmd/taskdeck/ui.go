package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/taskdeck/internal/dashboard"
	"github.com/fyrsmithlabs/taskdeck/internal/live"
	"github.com/fyrsmithlabs/taskdeck/internal/session"
	"github.com/fyrsmithlabs/taskdeck/internal/tui"
)

func newUICmd(a *app) *cobra.Command {
	var noLive bool
	cmd := &cobra.Command{
		Use:     "ui",
		Aliases: []string{"dashboard"},
		Short:   "Open the interactive task dashboard",
		Long: `Open the interactive dashboard. The list reloads automatically when the
server pushes an update.

Keys:
  ↑/↓ or j/k  move          s/enter  next status
  f/tab       filter        d        delete (asks y/n)
  g           AI generate   r        reload
  x/esc       dismiss       L        logout
  q           quit`,
		Args: cobra.NoArgs,
		RunE: a.protected(func(cmd *cobra.Command, args []string, s session.Session) error {
			return a.runUI(cmd, s, !noLive)
		}),
	}
	cmd.Flags().BoolVar(&noLive, "no-live", false, "Don't connect to the push channel")
	return cmd
}

func (a *app) runUI(cmd *cobra.Command, s session.Session, withLive bool) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctrl := dashboard.New(a.api, dashboard.WithLogger(a.logger))
	defer ctrl.Close()

	p := tea.NewProgram(tui.New(ctrl, a.store, tui.WithTimeout(a.cfg.API.Timeout.Duration())),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	nav := tui.Navigator(p.Send)
	a.navigate = nav.Navigate
	defer func() { a.navigate = nil }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.store.Watch(gctx); err != nil && !errors.Is(err, session.ErrNotWatchable) {
			a.logger.Warn(gctx, "session watch stopped", zap.Error(err))
		}
		return nil
	})

	var watcher *live.Watcher
	if withLive {
		watcher = live.NewWatcher(live.FromAppConfig(a.cfg), func(ctx context.Context) error {
			err := ctrl.Load(ctx)
			p.Send(tui.Refresh())
			return err
		}, a.logger)
		g.Go(func() error {
			if err := watcher.Run(gctx, s.UserID, s.Token.Value()); err != nil && !errors.Is(err, live.ErrClosed) {
				a.logger.Warn(gctx, "live updates unavailable", zap.Error(err))
			}
			return nil
		})
	}

	// A logout from another terminal ends the dashboard too.
	unsubscribe := a.store.OnChange(func(next *session.Session) {
		if next != nil {
			return
		}
		if watcher != nil {
			watcher.Close()
		}
		nav.Navigate(session.RouteLogin)
	})
	defer unsubscribe()

	final, err := p.Run()
	cancel()
	_ = g.Wait()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", err)
	}
	if m, ok := final.(tui.Model); ok && m.LoggedOut() {
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	}
	return nil
}
