package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskdeck/internal/client"
	"github.com/fyrsmithlabs/taskdeck/internal/config"
	"github.com/fyrsmithlabs/taskdeck/internal/logging"
	"github.com/fyrsmithlabs/taskdeck/internal/session"
	"github.com/fyrsmithlabs/taskdeck/internal/telemetry"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	server     string
	ws         string
	logLevel   string
	json       bool
}

// app holds the process-wide services built once by the root command.
type app struct {
	flags globalFlags

	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	store  *session.Store
	api    *client.Client

	// navigate receives session navigation; the ui command points it at
	// the running program.
	navigate func(session.Route)
}

// setup loads configuration and wires logging, telemetry, the session
// store and the API client.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.LoadWithFile(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.server != "" {
		cfg.API.BaseURL = strings.TrimRight(a.flags.server, "/")
	}
	if a.flags.ws != "" {
		cfg.API.WSURL = strings.TrimRight(a.flags.ws, "/")
	}
	if a.flags.logLevel != "" {
		cfg.Logging.Level = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	a.cfg = cfg

	a.tel, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return err
	}
	a.logger, err = logging.NewLogger(logCfg, a.tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if terr := a.tel.Err(); terr != nil {
		a.logger.Warn(ctx, "telemetry degraded", zap.Error(terr))
	}

	storage, err := session.NewFileStorage(cfg.Session.Path)
	if err != nil {
		return err
	}
	a.store = session.New(storage, nil,
		session.WithLogger(a.logger),
		session.WithNavigator(session.NavigatorFunc(func(r session.Route) {
			if a.navigate != nil {
				a.navigate(r)
			}
		})),
	)
	// An unreadable session file leaves the user signed out; Load logs it.
	_ = a.store.Load()

	a.api, err = client.New(cfg.API.BaseURL, a.store,
		client.WithTimeout(cfg.API.Timeout.Duration()),
		client.WithLogger(a.logger),
		client.WithTracer(a.tel.Tracer("github.com/fyrsmithlabs/taskdeck/client")),
		client.WithMeter(a.tel.Meter("github.com/fyrsmithlabs/taskdeck/client")),
	)
	if err != nil {
		return err
	}
	a.store.SetAuthenticator(a.api)
	return nil
}

// close flushes telemetry and logs. Safe to call after a failed setup.
func (a *app) close() {
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.tel.Shutdown(ctx)
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// errLoginRequired wraps v1.ErrNotAuthenticated for commands that need
// a signed-in user.
var errLoginRequired = errors.New("not logged in: run `taskdeck login` first")

// requireSession returns the signed-in user or errLoginRequired.
func (a *app) requireSession() (session.Session, error) {
	s, err := a.store.RequireSession()
	if err != nil {
		return s, fmt.Errorf("%w (%w)", errLoginRequired, err)
	}
	return s, nil
}

// protected wraps a RunE so it only runs with a session.
func (a *app) protected(run func(cmd *cobra.Command, args []string, s session.Session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := a.requireSession()
		if err != nil {
			return err
		}
		return run(cmd, args, s)
	}
}
