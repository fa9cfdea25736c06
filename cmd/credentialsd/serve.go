package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/activitymap"
	"github.com/goliatone/go-credentials/config"
	"github.com/goliatone/go-credentials/mailer"
	"github.com/goliatone/go-credentials/metrics"
	"github.com/goliatone/go-credentials/persistence"
	"github.com/goliatone/go-credentials/server"
	"github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API serving registration, activation, login and
token validation, plus the health and metrics endpoints.`,
		RunE: runServe,
	}

	cmd.Flags().String("http.addr", "", "listen address")
	databaseFlags(cmd.Flags())
	logFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer a.Close()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		errCh <- a.server.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	return a.server.Shutdown(shutdownCtx)
}

// app holds the wired service graph
type app struct {
	db       *bun.DB
	registry *prometheus.Registry
	service  *auth.Service
	server   *server.Server
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := persistence.Open(ctx, persistence.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, err
	}

	a := &app{db: db}

	if cfg.Database.AutoMigrate {
		applied, err := persistence.Migrate(ctx, db)
		if err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("migrations applied", "migrations", applied)
	}

	manager := auth.NewRepositoryManager(db)
	if err := manager.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	codec, err := auth.NewJWTCodec(
		[]byte(cfg.Token.SigningKey),
		cfg.Token.Algorithm,
		auth.WithCodecDefaultTTL(cfg.Token.DefaultTTL),
		auth.WithCodecLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier, err := newNotifier(cfg.Mail, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sink, err := metrics.NewSink(a.registry)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, errors.CategoryInternal, "register metrics")
	}

	a.service = auth.NewService(manager.Credentials(), codec).
		WithNotifier(notifier).
		WithActivitySink(auth.MultiActivitySink{sink, activitymap.LogSink(logger)}).
		WithLogger(logger).
		WithActivationBaseURL(cfg.Mail.BaseURL).
		WithLoginTTL(cfg.Token.LoginTTL).
		WithStrictNotification(cfg.Mail.Strict)

	a.server = server.New(a.service,
		server.WithLogger(logger),
		server.WithGatherer(a.registry),
		server.WithReadiness(manager.Ping),
	)

	return a, nil
}

func newNotifier(cfg config.Mail, logger *slog.Logger) (auth.Notifier, error) {
	if !cfg.Enabled {
		logger.Warn("mail delivery disabled, activation links are logged at debug level")
		return auth.NotifierFunc(func(ctx context.Context, to, _, link string) error {
			logger.DebugContext(ctx, "activation link", "to", to, "link", link)
			return nil
		}), nil
	}

	return mailer.NewSMTPNotifier(mailer.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		FromName: cfg.FromName,
		Subject:  cfg.Subject,
		StartTLS: cfg.StartTLS,
		Retries:  cfg.Retries,
		Backoff:  cfg.Backoff,
	}, mailer.WithLogger(logger))
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
