// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/auth"
	authpg "github.com/taskforge/taskforge/internal/auth/postgres"
	"github.com/taskforge/taskforge/internal/avatar"
	avatarpg "github.com/taskforge/taskforge/internal/avatar/postgres"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/httpapi"
	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/notify"
	"github.com/taskforge/taskforge/internal/observability"
	"github.com/taskforge/taskforge/internal/store"
	"github.com/taskforge/taskforge/internal/store/memory"
	"github.com/taskforge/taskforge/internal/task"
	taskpg "github.com/taskforge/taskforge/internal/task/postgres"
	"github.com/taskforge/taskforge/pkg/errutil"
)

const (
	serviceName      = "taskforge"
	readinessTimeout = 2 * time.Second
	smtpMaxRetries   = 3
	smtpBaseDelay    = time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the REST API, the metrics/health listener and the
expired-token sweeper. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveConfigFile()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, err := logging.ParseLevel(cfg.Log.Level)
			if err != nil {
				return err
			}
			logger := logging.SetDefault(serviceName, version, cfg.Log.Format, level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger, func(addr string) {
				cmd.Printf("TaskForge listening on %s\n", addr)
			})
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// repositories are the storage backends behind the services.
type repositories struct {
	users   auth.UserRepository
	tokens  auth.TokenRepository
	tasks   task.Repository
	avatars avatar.Repository
	ready   observability.ReadinessChecker
	close   func()
}

// openStore selects the configured backend. Postgres is migrated first
// when auto_migrate is set.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*repositories, error) {
	if cfg.Store == config.StoreMemory {
		logger.WarnContext(ctx, "using in-memory store; data is lost on exit")
		st := memory.New()
		return &repositories{
			users:   st.Users(),
			tokens:  st.Tokens(),
			tasks:   st.Tasks(),
			avatars: st.Avatars(),
			ready:   st.Ping,
			close:   func() {},
		}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL, logger); err != nil {
			return nil, err
		}
	}

	pool, err := store.Connect(ctx, cfg.Database.URL, store.DefaultConnectOptions, logger)
	if err != nil {
		return nil, err
	}
	return &repositories{
		users:   authpg.NewUserRepository(pool),
		tokens:  authpg.NewTokenRepository(pool),
		tasks:   taskpg.NewTaskRepository(pool),
		avatars: avatarpg.NewAvatarRepository(pool),
		ready:   observability.PingChecker(pool, readinessTimeout),
		close:   pool.Close,
	}, nil
}

func migrateUp(databaseURL string, logger *slog.Logger) (err error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, m.Close()) }()

	if err := m.Up(); err != nil {
		return err
	}
	schema, _, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("database schema up to date", "version", schema)
	return nil
}

// newNotifier picks SMTP when a host is configured and logs mail otherwise.
// Either way delivery happens off the request path.
func newNotifier(cfg config.Config, logger *slog.Logger) (*notify.Dispatcher, error) {
	var next notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.SMTP.Host != "" {
		smtp, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			MaxRetries: smtpMaxRetries,
			BaseDelay:  smtpBaseDelay,
		}, logger)
		if err != nil {
			return nil, err
		}
		next = smtp
	}
	return notify.NewDispatcher(next, notify.WithDispatcherLogger(logger))
}

// pruner is the part of SessionManager the sweeper needs.
type pruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// runPruner deletes expired tokens every interval until ctx is done.
func runPruner(ctx context.Context, p pruner, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PruneExpired(ctx); err != nil && ctx.Err() == nil {
				errutil.LogErrorContext(ctx, logger, slog.LevelWarn, "token prune failed", err)
			}
		}
	}
}

// runServer wires every component and serves until ctx is cancelled or a
// listener fails. started receives the bound API address.
func runServer(ctx context.Context, cfg config.Config, logger *slog.Logger, started func(addr string)) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	repos, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	hasher, err := auth.NewArgon2idHasher(cfg.Argon2Params())
	if err != nil {
		return err
	}
	issuer, err := auth.NewJWTIssuer([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	dispatcher, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}

	var (
		obsServer   *observability.Server
		authMetrics *auth.Metrics
		httpMetrics *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, repos.ready, logger)
		authMetrics = auth.NewMetrics(obsServer.Registry())
		httpMetrics = obsServer.Metrics()
	}

	sessions, err := auth.NewSessionManager(repos.users, repos.tokens, hasher, issuer,
		auth.WithLogger(logger),
		auth.WithNotifier(dispatcher),
		auth.WithMetrics(authMetrics),
	)
	if err != nil {
		return err
	}
	tasks, err := task.NewService(repos.tasks, logger)
	if err != nil {
		return err
	}
	avatars, err := avatar.NewService(repos.avatars)
	if err != nil {
		return err
	}
	handler, err := httpapi.NewRouter(httpapi.Deps{
		Sessions:    sessions,
		Tasks:       tasks,
		Avatars:     avatars,
		AuthMetrics: authMetrics,
		HTTPMetrics: httpMetrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErrCh := make(chan error, 1)
	go func() {
		defer close(httpErrCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrCh <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, httpErrCh, "api", logger)

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			cancel(err)
			_ = httpSrv.Close()
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	if cfg.Auth.PruneInterval > 0 {
		go runPruner(ctx, sessions, cfg.Auth.PruneInterval, logger)
	}

	addr := listener.Addr().String()
	logger.Info("taskforge ready", "addr", addr, "store", cfg.Store)
	if started != nil {
		started(addr)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if cause := context.Cause(ctx); !errors.Is(cause, context.Canceled) {
		errs = append(errs, cause)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// monitorServerErrors cancels ctx when a server reports a failure. The
// failure becomes the cancellation cause.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel(oops.Code("SERVER_FAILED").With("server", serverName).Wrap(err))
		}
	case <-ctx.Done():
	}
}
