package cmd

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"portfolio-ledger/alerts"
	"portfolio-ledger/analytics"
	"portfolio-ledger/events"
	"portfolio-ledger/handlers"
	"portfolio-ledger/ledger"
	"portfolio-ledger/valuation"
)

type serveCmd struct {
	noScheduler bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API and the alert scheduler" }
func (*serveCmd) Usage() string {
	return `serve [-no-scheduler]

  Migrates the database, then serves the API until SIGINT or SIGTERM.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noScheduler, "no-scheduler", false, "do not run the volatility alert batch")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := open(ctx)
	if a == nil {
		return status
	}
	defer a.Close()
	logger := a.logger

	if err := a.store.Migrate(); err != nil {
		logger.Error("migrate", zap.Error(err))
		return subcommands.ExitFailure
	}

	var publisher events.Publisher = events.Nop{}
	if len(a.cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafka(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
		logger.Info("publishing ledger events", zap.Strings("brokers", a.cfg.KafkaBrokers), zap.String("topic", a.cfg.KafkaTopic))
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine := alerts.NewEngine(a.store, a.prices, alerts.Options{
		Workers:   a.cfg.AlertWorkers,
		Timeout:   a.cfg.AlertTimeout,
		MinCloses: a.cfg.AlertMinCloses,
	}, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if c.noScheduler {
			return
		}
		alerts.NewScheduler(engine, a.cfg.AlertInterval, a.cfg.AlertRunOnStart, logger).Start(ctx)
	}()

	h := &handlers.Handler{
		Store:       a.store,
		Ledger:      ledger.NewService(a.store, a.prices, publisher, logger),
		Valuation:   valuation.NewService(a.store, a.loc),
		Analytics:   analytics.NewCalculator(a.store, a.prices, logger),
		Preferences: alerts.NewPreferences(a.store),
		Prices:      a.prices,
		Directory:   a.quotes,
		Redis:       a.redis,
		JWTSecret:   a.cfg.JWTSecret,
		Logger:      logger,
	}
	server := &http.Server{Addr: ":" + a.cfg.Port, Handler: h.Router(a.cfg.CORSOrigin)}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("port", a.cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	exit := subcommands.ExitSuccess
	select {
	case <-sig:
	case err := <-serveErr:
		logger.Error("http", zap.Error(err))
		exit = subcommands.ExitFailure
	}
	cancel()

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShut()
	if err := server.Shutdown(ctxShut); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	<-done
	logger.Info("shutdown complete")
	return exit
}
