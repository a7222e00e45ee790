// Package cmd implements the command line of the ledger service: the API
// server and the maintenance commands sharing its configuration.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/go-redis/redis/v8"
	"github.com/google/subcommands"
	"go.uber.org/zap"

	"portfolio-ledger/config"
	"portfolio-ledger/database"
	"portfolio-ledger/pricefeed"
)

// Commands lists every subcommand. main registers them all.
var Commands = []subcommands.Command{
	&serveCmd{},
	&migrateCmd{},
	&alertsCmd{},
	&simulateCmd{},
	&dailyCmd{},
}

// app holds the connections opened from the configuration.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	loc    *time.Location
	store  *database.Store
	redis  *redis.Client
	quotes *pricefeed.AlphaVantage
	prices *pricefeed.Cache
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := config.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, loc: loc, store: database.New(db)}

	// the shared cache is an optimisation; run without it rather than not at all
	a.redis, err = config.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, running without shared cache", zap.Error(err))
	}

	a.quotes = pricefeed.NewAlphaVantage(cfg.AlphaVantageURL, cfg.AlphaVantageAPIKey, &http.Client{Timeout: 15 * time.Second})
	a.prices, err = pricefeed.NewCache(a.quotes, a.redis, cfg.PriceCacheTTL, cfg.HistoryCacheTTL, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the connections. It is safe on a partially opened app.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.store != nil {
		if sqlDB, err := a.store.DB().DB(); err == nil {
			sqlDB.Close()
		}
	}
	a.logger.Sync()
}

// open is the common prologue of every command.
func open(ctx context.Context) (*app, subcommands.ExitStatus) {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, subcommands.ExitFailure
	}
	return a, subcommands.ExitSuccess
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}
