package pricefeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-ledger/models"
)

// DefaultAlphaVantageURL is the public Alpha Vantage query endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

// AlphaVantage is a Gateway and Directory backed by the Alpha Vantage API.
type AlphaVantage struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAlphaVantage returns a client for baseURL. A nil client uses a default
// one with a 10s timeout.
func NewAlphaVantage(baseURL, apiKey string, client *http.Client) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &AlphaVantage{baseURL: baseURL, apiKey: apiKey, client: client}
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Price string `json:"05. price"`
	} `json:"Global Quote"`
}

type ohlcv struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type searchResponse struct {
	BestMatches []struct {
		Symbol   string `json:"1. symbol"`
		Name     string `json:"2. name"`
		Type     string `json:"3. type"`
		Region   string `json:"4. region"`
		Currency string `json:"8. currency"`
	} `json:"bestMatches"`
}

type overviewResponse struct {
	Symbol       string `json:"Symbol"`
	Name         string `json:"Name"`
	Sector       string `json:"Sector"`
	Industry     string `json:"Industry"`
	OfficialSite string `json:"OfficialSite"`
	Description  string `json:"Description"`
}

func (a *AlphaVantage) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var res globalQuoteResponse
	if err := a.query(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}}, &res); err != nil {
		return decimal.Zero, models.WithSymbol(0, symbol, err)
	}
	if res.GlobalQuote.Price == "" {
		return decimal.Zero, models.Errorf(0, symbol, models.ErrPriceUnavailable, "no quote")
	}
	price, err := decimal.NewFromString(res.GlobalQuote.Price)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, models.Errorf(0, symbol, models.ErrPriceUnavailable, "bad quote %q", res.GlobalQuote.Price)
	}
	return price, nil
}

func (a *AlphaVantage) History(ctx context.Context, symbol string, period Period, interval Interval) ([]Bar, error) {
	params := url.Values{"symbol": {symbol}}
	layout := time.DateOnly
	switch interval {
	case FiveMinutes, Hourly:
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("interval", strings.TrimSuffix(string(interval), "m")+"min")
		params.Set("outputsize", "full")
		layout = time.DateTime
	case Daily:
		params.Set("function", "TIME_SERIES_DAILY")
		if period == OneYear || period == Max || period == YearToDate {
			params.Set("outputsize", "full")
		}
	case Weekly:
		params.Set("function", "TIME_SERIES_WEEKLY")
	case Monthly:
		params.Set("function", "TIME_SERIES_MONTHLY")
	default:
		return nil, models.Errorf(0, symbol, models.ErrInvalidInput, "unsupported interval %q", interval)
	}

	var raw map[string]json.RawMessage
	if err := a.query(ctx, params, &raw); err != nil {
		return nil, models.WithSymbol(0, symbol, err)
	}
	var series map[string]ohlcv
	for key, value := range raw {
		if strings.Contains(key, "Time Series") {
			if err := json.Unmarshal(value, &series); err != nil {
				return nil, models.Errorf(0, symbol, models.ErrPriceUnavailable, "decode %s: %v", key, err)
			}
			break
		}
	}

	bars := make([]Bar, 0, len(series))
	for stamp, v := range series {
		bar, err := v.bar(stamp, layout)
		if err != nil {
			return nil, models.Errorf(0, symbol, models.ErrPriceUnavailable, "%v", err)
		}
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return trim(bars, period), nil
}

func (v ohlcv) bar(stamp, layout string) (Bar, error) {
	ts, err := time.Parse(layout, stamp)
	if err != nil {
		return Bar{}, fmt.Errorf("bad timestamp %q: %w", stamp, err)
	}
	b := Bar{Time: ts}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&b.Open, v.Open}, {&b.High, v.High}, {&b.Low, v.Low}, {&b.Close, v.Close}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return Bar{}, fmt.Errorf("bad price %q at %s: %w", f.src, stamp, err)
		}
	}
	if v.Volume != "" {
		if b.Volume, err = strconv.ParseInt(v.Volume, 10, 64); err != nil {
			return Bar{}, fmt.Errorf("bad volume %q at %s: %w", v.Volume, stamp, err)
		}
	}
	return b, nil
}

func (a *AlphaVantage) Search(ctx context.Context, keywords string) ([]Match, error) {
	var res searchResponse
	if err := a.query(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {keywords}}, &res); err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(res.BestMatches))
	for _, m := range res.BestMatches {
		out = append(out, Match{Symbol: m.Symbol, Name: m.Name, Type: m.Type, Region: m.Region, Currency: m.Currency})
	}
	return out, nil
}

func (a *AlphaVantage) Company(ctx context.Context, symbol string) (Company, error) {
	var res overviewResponse
	if err := a.query(ctx, url.Values{"function": {"OVERVIEW"}, "symbol": {symbol}}, &res); err != nil {
		return Company{}, models.WithSymbol(0, symbol, err)
	}
	if res.Symbol == "" {
		return Company{}, models.Errorf(0, symbol, models.ErrNotFound, "no company overview")
	}
	return Company{
		Name:        orNA(res.Name),
		Sector:      orNA(res.Sector),
		Industry:    orNA(res.Industry),
		Website:     orNA(res.OfficialSite),
		Description: orNA(res.Description),
	}, nil
}

func orNA(s string) string {
	if s == "" || s == "None" {
		return "N/A"
	}
	return s
}

// query performs a GET on the API and decodes the JSON body into data.
// Alpha Vantage reports errors and throttling with a 200 and a message
// field; those become ErrPriceUnavailable too.
func (a *AlphaVantage) query(ctx context.Context, params url.Values, data any) error {
	params.Set("apikey", a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPriceUnavailable, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s: %s", models.ErrPriceUnavailable, params.Get("function"), resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPriceUnavailable, err)
	}

	var status struct {
		Error       string `json:"Error Message"`
		Note        string `json:"Note"`
		Information string `json:"Information"`
	}
	if err := json.Unmarshal(body, &status); err == nil {
		if msg := status.Error + status.Note + status.Information; msg != "" {
			return fmt.Errorf("%w: %s", models.ErrPriceUnavailable, msg)
		}
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(data); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrPriceUnavailable, params.Get("function"), err)
	}
	return nil
}

var (
	_ Gateway   = (*AlphaVantage)(nil)
	_ Directory = (*AlphaVantage)(nil)
)
