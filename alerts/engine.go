// Package alerts watches the volatility of the symbols users asked about.
//
// Each (user, symbol) preference is either normal or triggered. A run
// computes the annualized volatility of about a month of daily closes and
// moves the pair between the two states; raising an alert stores one Alert
// row per pair, clearing it only lowers the flag.
package alerts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio-ledger/analytics"
	"portfolio-ledger/database"
	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
)

// Message is the text of the alert raised for symbol.
func Message(symbol string) string {
	return fmt.Sprintf("Volatility alert! %s has exceeded your threshold.", symbol)
}

type Outcome string

const (
	Raised    Outcome = "raised"
	Refreshed Outcome = "refreshed"
	Cleared   Outcome = "cleared"
	Unchanged Outcome = "unchanged"
	// Stale means the threshold changed while the pair was evaluated; the
	// result was discarded.
	Stale   Outcome = "stale"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Result is the evaluation of one preference.
type Result struct {
	UserID     uint
	Symbol     string
	Volatility float64
	Outcome    Outcome
	Err        error
}

// RunResult counts the outcomes of a batch. Evaluated counts the pairs whose
// volatility was computed.
type RunResult struct {
	Evaluated int `json:"evaluated"`
	Raised    int `json:"raised"`
	Refreshed int `json:"refreshed"`
	Cleared   int `json:"cleared"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

func (r *RunResult) add(res Result) {
	switch res.Outcome {
	case Raised:
		r.Raised++
	case Refreshed:
		r.Refreshed++
	case Cleared:
		r.Cleared++
	case Skipped, Stale:
		r.Skipped++
	case Failed:
		r.Failed++
	}
	if res.Outcome != Skipped && res.Outcome != Failed {
		r.Evaluated++
	}
}

type Options struct {
	// Workers bounds the evaluations running at once.
	Workers int
	// Timeout bounds a single evaluation, market data included.
	Timeout time.Duration
	// MinCloses is the fewest daily closes a volatility is computed from.
	MinCloses int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MinCloses < 2 {
		o.MinCloses = 10
	}
	return o
}

type Engine struct {
	store  *database.Store
	prices pricefeed.Gateway
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(store *database.Store, prices pricefeed.Gateway, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, prices: prices, opts: opts.withDefaults(), logger: logger, now: time.Now}
}

// Evaluate computes the volatility of pref's symbol and applies the state
// change it implies. Missing or short market data skips the pair; only
// storage failures are Failed.
func (e *Engine) Evaluate(ctx context.Context, pref models.UserPreference) Result {
	res := Result{UserID: pref.UserID, Symbol: pref.Symbol}
	bars, err := e.prices.History(ctx, pref.Symbol, pricefeed.OneMonth, pricefeed.Daily)
	if err != nil {
		return res.skip(err)
	}
	closes := pricefeed.Closes(bars)
	if len(closes) < e.opts.MinCloses {
		return res.skip(models.Errorf(pref.UserID, pref.Symbol, models.ErrInsufficientHistory, "%d closes, need %d", len(closes), e.opts.MinCloses))
	}
	if res.Volatility, err = analytics.Volatility(closes); err != nil {
		return res.skip(models.WithSymbol(pref.UserID, pref.Symbol, err))
	}

	exceeded := res.Volatility > pref.VolatilityThreshold
	switch {
	case exceeded:
		res.Outcome = Raised
		if pref.AlertTriggered {
			res.Outcome = Refreshed
		}
		err = e.store.InTx(ctx, func(tx *database.Store) error {
			ok, err := tx.SetAlertTriggered(ctx, pref.UserID, pref.Symbol, pref.VolatilityThreshold, true)
			if err != nil || !ok {
				res.Outcome = Stale
				return err
			}
			return tx.UpsertAlert(ctx, &models.Alert{
				UserID:    pref.UserID,
				Symbol:    pref.Symbol,
				Message:   Message(pref.Symbol),
				CreatedAt: e.now(),
			})
		})
	case pref.AlertTriggered:
		res.Outcome = Cleared
		var ok bool
		ok, err = e.store.SetAlertTriggered(ctx, pref.UserID, pref.Symbol, pref.VolatilityThreshold, false)
		if !ok {
			res.Outcome = Stale
		}
	default:
		res.Outcome = Unchanged
	}
	if err != nil {
		res.Outcome = Failed
		res.Err = models.WithSymbol(pref.UserID, pref.Symbol, err)
	}
	return res
}

func (r Result) skip(err error) Result {
	r.Outcome = Skipped
	r.Err = models.WithSymbol(r.UserID, r.Symbol, err)
	return r
}

// Run evaluates every stored preference on a bounded pool of workers, each
// evaluation under its own timeout, so a slow symbol delays only itself.
// The error is non-nil only when the preferences cannot be listed or ctx
// ends before the batch completes.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	prefs, err := e.store.AllPreferences(ctx)
	if err != nil {
		return RunResult{}, err
	}

	results := make([]Result, len(prefs))
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, pref := range prefs {
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
			defer cancel()
			results[i] = e.Evaluate(tctx, pref)
			return nil
		})
	}
	g.Wait()

	var out RunResult
	for _, res := range results {
		out.add(res)
		switch {
		case res.Outcome == Failed:
			e.logger.Error("alert evaluation failed",
				zap.Uint("user_id", res.UserID),
				zap.String("symbol", res.Symbol),
				zap.Error(res.Err))
		case res.Err != nil:
			e.logger.Warn("alert evaluation skipped",
				zap.Uint("user_id", res.UserID),
				zap.String("symbol", res.Symbol),
				zap.Error(res.Err))
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}
