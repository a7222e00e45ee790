package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"portfolio-ledger/valuation"
)

type dailyCmd struct {
	userID   uint
	currency string
	last     int
}

func (*dailyCmd) Name() string     { return "daily" }
func (*dailyCmd) Synopsis() string { return "display the day by day value of a user's portfolio" }
func (*dailyCmd) Usage() string {
	return `daily [-user id] [-c currency] [-n days]

  Rebuilds the portfolio value of every day since the first transaction.
`
}

func (c *dailyCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.userID, "user", 1, "id of the user to report on")
	f.StringVar(&c.currency, "c", money.USD, "currency of the amounts")
	f.IntVar(&c.last, "n", 30, "only show the last n days, 0 for all")
}

func (c *dailyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if money.GetCurrency(c.currency) == nil {
		fmt.Fprintf(os.Stderr, "Error: unknown currency %q\n", c.currency)
		return subcommands.ExitUsageError
	}
	a, status := open(ctx)
	if a == nil {
		return status
	}
	defer a.Close()

	days, err := valuation.NewService(a.store, a.loc).DailySummary(ctx, c.userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.last > 0 && len(days) > c.last {
		days = days[len(days)-c.last:]
	}
	printMarkdown(dailyMarkdown(days, c.currency))
	return subcommands.ExitSuccess
}

// formatMoney prints amount in the currency's display format, e.g. $1,500.00.
func formatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	return cur.Formatter().Format(amount.Shift(int32(cur.Fraction)).Round(0).IntPart())
}

func dailyMarkdown(days []valuation.DaySnapshot, currency string) string {
	var b strings.Builder
	b.WriteString("# Daily portfolio value\n\n")
	if len(days) == 0 {
		b.WriteString("No transactions yet.\n")
		return b.String()
	}
	b.WriteString("| Date | Value | Daily P/L | Positions |\n|:---|---:|---:|:---|\n")
	for _, d := range days {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			d.Date,
			formatMoney(d.PortfolioValue, currency),
			formatMoney(d.ProfitLoss, currency),
			openPositions(d.Positions))
	}
	return b.String()
}

// openPositions lists the held quantities as "AAPL 10, MSFT 2".
func openPositions(book valuation.Book) string {
	symbols := make([]string, 0, len(book))
	for s, p := range book {
		if p.Quantity > 0 {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)
	parts := make([]string, len(symbols))
	for i, s := range symbols {
		parts[i] = fmt.Sprintf("%s %d", s, book[s].Quantity)
	}
	return strings.Join(parts, ", ")
}
