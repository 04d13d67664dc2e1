package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"validator-commission-alerts/internal/alerting"
	"validator-commission-alerts/internal/api"
	"validator-commission-alerts/internal/config"
	"validator-commission-alerts/internal/fetcher"
	"validator-commission-alerts/internal/scheduler"
	"validator-commission-alerts/internal/service"
	"validator-commission-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetchers() (fetcher.ChainStateFetcher, fetcher.MevCommissionFetcher) {
	chain := fetcher.NewSolana(fetcher.SolanaOptions{
		RPCURL:     a.Config.Solana.RPCURL,
		Commitment: a.Config.Solana.Commitment,
		Timeout:    a.Config.Solana.RequestTimeout,
	}, a.Logger)

	mev := fetcher.NewJito(fetcher.JitoOptions{
		BaseURL:   a.Config.Jito.BaseURL,
		Timeout:   a.Config.Jito.RequestTimeout,
		UserAgent: a.Config.Jito.UserAgent,
		CacheTTL:  a.Config.Jito.CacheTTL,
	}, a.Logger)

	return chain, mev
}

// newDispatcher 构造告警分发器。alerting 关闭或没有任何通道时返回 nil。
func (a *App) newDispatcher(subs storage.SubscriptionStore) *alerting.Dispatcher {
	if !a.Config.Alerting.Enabled || subs == nil {
		return nil
	}

	var mailer alerting.Mailer
	if a.Config.Alerting.Mailer.Enabled {
		cfg := a.Config.Alerting.Mailer
		mailer = alerting.NewHTTPMailer(alerting.MailerOptions{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			From:    cfg.From,
			Timeout: cfg.RequestTimeout,
		}, a.Logger)
	}

	var broadcast alerting.Broadcaster
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		broadcast = alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}

	if mailer == nil && broadcast == nil {
		return nil
	}
	return alerting.NewDispatcher(subs, mailer, broadcast, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// requireStore opens the store for commands that cannot run without one.
func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn not configured")
	}
	return store, closeStore, nil
}

// Run executes the long-running watcher.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, nil, a.Logger)

	chain, mev := a.newFetchers()

	metrics := service.NewMetrics()
	metrics.Register(prometheus.DefaultRegisterer)

	// The typed-nil guard matters: assigning a nil *Dispatcher into the
	// interface would defeat the alerter == nil checks downstream.
	var alerter service.Alerter
	if dispatcher := a.newDispatcher(store); dispatcher != nil {
		alerter = dispatcher
	} else {
		a.Logger.Warn().Msg("alerting disabled; events are recorded only")
	}

	svc := service.New(a.Config, sched, chain, mev, service.Stores{
		Snapshots:   store,
		Events:      store,
		Uptime:      store,
		Delinquency: store,
	}, alerter, metrics, a.Logger)

	if a.Config.API.Enabled {
		apiSrv := api.NewServer(a.Config.API.Listen, api.Stores{
			Snapshots: store,
			Events:    store,
			Uptime:    store,
		}, a.Logger)
		go func() {
			if err := apiSrv.Run(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("api server terminated")
				cancel()
			}
		}()
	}

	a.Logger.Info().Msg("starting watcher")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("watcher stopped")
	return nil
}

// Migrate applies the schema DDL and exits.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("schema up to date")
	return nil
}

// EventsOptions configure the events command.
type EventsOptions struct {
	VoteAccount    string
	Classification string
	Limit          int
}

// UptimeOptions configure the uptime command.
type UptimeOptions struct {
	VoteAccount string
	Days        int
}

// EpochReportOptions configure the epochs command.
type EpochReportOptions struct {
	FromEpoch      uint64
	ToEpoch        uint64
	Classification string
}

// SubscribeOptions configure subscribe/unsubscribe.
type SubscribeOptions struct {
	Email       string
	Preference  string
	VoteAccount string
	Commission  bool
	Delinquency bool
}

// SimulateOptions feed a synthetic pair of observations through the full
// pipeline.
type SimulateOptions struct {
	VoteAccount    string
	Metric         string
	FromValue      string
	ToValue        string
	MarkDelinquent bool
}

// ExportOptions hold parameters for exporting a validator's history.
type ExportOptions struct {
	VoteAccount string
	Days        int
	PNGPath     string
	CSVPath     string
	MaxPoints   int
}
