package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"portfolio-ledger/events"
	"portfolio-ledger/ledger"
	"portfolio-ledger/models"
)

// stock is a symbol the simulation trades.
type stock struct {
	Symbol string
	Name   string
}

var simulatedStocks = []stock{
	{"AAPL", "Apple Inc."},
	{"GOOGL", "Alphabet Inc."},
	{"TSLA", "Tesla Inc."},
	{"AMZN", "Amazon.com Inc."},
	{"NVDA", "NVIDIA Corp"},
}

var trends = map[string]float64{
	"up":      0.005,
	"down":    -0.005,
	"neutral": 0,
}

type simulateCmd struct {
	userID uint
	days   int
	trend  string
	seed   int64
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "replace a user's ledger with random trading history" }
func (*simulateCmd) Usage() string {
	return `simulate [-user id] [-days n] [-trend up|down|neutral] [-seed n]

  Deletes the user's transactions and holdings, then records one random
  BUY or SELL per stock and day, priced around today's quote.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.userID, "user", 1, "id of the user to simulate for")
	f.IntVar(&c.days, "days", 180, "number of days of history")
	f.StringVar(&c.trend, "trend", "neutral", "market trend: up, down or neutral")
	f.Int64Var(&c.seed, "seed", 0, "random seed (defaults to the current time)")
}

func (c *simulateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	drift, ok := trends[c.trend]
	if !ok || c.days <= 0 {
		fmt.Fprintf(os.Stderr, "Error: trend must be up, down or neutral and days positive\n")
		return subcommands.ExitUsageError
	}
	a, status := open(ctx)
	if a == nil {
		return status
	}
	defer a.Close()

	user, err := a.store.User(ctx, c.userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: user %d: %v\n", c.userID, err)
		return subcommands.ExitFailure
	}
	if err := a.store.ResetLedger(ctx, user.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted all existing transactions and holdings for %s\n", user.Email)

	base := map[string]decimal.Decimal{}
	for _, s := range simulatedStocks {
		price, err := a.prices.CurrentPrice(ctx, s.Symbol)
		if err != nil {
			a.logger.Warn("skipping unpriced stock", zap.String("symbol", s.Symbol), zap.Error(err))
			continue
		}
		base[s.Symbol] = price
	}

	seed := c.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sim := simulation{
		rng:    rand.New(rand.NewSource(seed)),
		userID: user.ID,
		days:   c.days,
		drift:  drift,
		end:    time.Now(),
	}
	txs := sim.generate(simulatedStocks, base)

	svc := ledger.NewService(a.store, a.prices, events.Nop{}, a.logger)
	err = svc.RecordBatch(ctx, txs)
	if err != nil && !errors.Is(err, models.ErrPriceUnavailable) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: some holdings could not be priced: %v\n", err)
	}
	fmt.Printf("Recorded %d transactions for %s\n", len(txs), user.Email)
	return subcommands.ExitSuccess
}

// simulation draws a trading history ending at end.
type simulation struct {
	rng    *rand.Rand
	userID uint
	days   int
	drift  float64
	end    time.Time
}

// generate returns the transactions of every stock with a base price, in
// timestamp order. Each day every stock gets one BUY or SELL of 1 to 100
// shares, priced at base moved by the drift and up to 2% noise. A SELL the
// running position cannot cover is dropped.
func (s simulation) generate(stocks []stock, base map[string]decimal.Decimal) []models.Transaction {
	held := map[string]int64{}
	var txs []models.Transaction
	for daysAgo := s.days - 1; daysAgo >= 0; daysAgo-- {
		ts := s.end.AddDate(0, 0, -daysAgo)
		for _, st := range stocks {
			price, ok := base[st.Symbol]
			if !ok {
				continue
			}
			move := 1 + s.drift + (s.rng.Float64()*0.04 - 0.02)
			price = price.Mul(decimal.NewFromFloat(move))

			typ := models.Buy
			if s.rng.Intn(2) == 1 {
				typ = models.Sell
			}
			qty := int64(s.rng.Intn(100) + 1)
			if typ == models.Sell {
				if held[st.Symbol] < qty {
					continue
				}
				held[st.Symbol] -= qty
			} else {
				held[st.Symbol] += qty
			}
			txs = append(txs, models.NewTransaction(s.userID, st.Symbol, st.Name, typ, price, qty, ts))
		}
	}
	return txs
}
