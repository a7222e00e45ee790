package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"portfolio-ledger/alerts"
	"portfolio-ledger/analytics"
	"portfolio-ledger/database"
	"portfolio-ledger/database/dbtest"
	"portfolio-ledger/handlers"
	"portfolio-ledger/ledger"
	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
	"portfolio-ledger/pricefeed/pricefeedtest"
	"portfolio-ledger/valuation"
)

const secret = "handler-secret"

type directory struct{}

func (directory) Search(_ context.Context, keywords string) ([]pricefeed.Match, error) {
	return []pricefeed.Match{{Symbol: keywords, Name: "Match"}}, nil
}

func (directory) Company(_ context.Context, symbol string) (pricefeed.Company, error) {
	if symbol != "AAPL" {
		return pricefeed.Company{}, models.Errorf(0, symbol, models.ErrNotFound, "no company")
	}
	return pricefeed.Company{Name: "Apple Inc", Sector: "Technology"}, nil
}

type server struct {
	t      *testing.T
	router *gin.Engine
	store  *database.Store
	prices *pricefeedtest.Fake
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := dbtest.Open(t)
	prices := pricefeedtest.New()
	h := &handlers.Handler{
		Store:       store,
		Ledger:      ledger.NewService(store, prices, nil, nil),
		Valuation:   valuation.NewService(store, time.UTC),
		Analytics:   analytics.NewCalculator(store, prices, nil),
		Preferences: alerts.NewPreferences(store),
		Prices:      prices,
		Directory:   directory{},
		JWTSecret:   secret,
	}
	return &server{t: t, router: h.Router("*"), store: store, prices: prices}
}

func token(t *testing.T, userID uint) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

// do sends a request as userID (anonymous when 0) and decodes the JSON
// answer into out when given.
func (s *server) do(method, path string, userID uint, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(s.t, userID))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

func TestSignupAndLogin(t *testing.T) {
	s := newServer(t)
	creds := gin.H{"email": "ann@example.com", "password": "hunter22"}

	if code := s.do(http.MethodPost, "/signup", 0, creds, nil); code != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", code)
	}
	if code := s.do(http.MethodPost, "/signup", 0, creds, nil); code != http.StatusConflict {
		t.Errorf("second signup status = %d, want 409", code)
	}

	var login map[string]string
	if code := s.do(http.MethodPost, "/login", 0, creds, &login); code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", code)
	}
	if login["access_token"] == "" {
		t.Error("login returned no access token")
	}
	if _, ok := login["refresh_token"]; ok {
		t.Error("login returned a refresh token without redis")
	}

	bad := gin.H{"email": "ann@example.com", "password": "wrong-one"}
	if code := s.do(http.MethodPost, "/login", 0, bad, nil); code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", code)
	}
	if code := s.do(http.MethodPost, "/refresh", 0, gin.H{"refresh_token": "x"}, nil); code != http.StatusServiceUnavailable {
		t.Errorf("refresh status = %d, want 503 without redis", code)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{"/holdings", "/diversity", "/alerts", "/prices/AAPL"} {
		if code := s.do(http.MethodGet, path, 0, nil, nil); code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, code)
		}
	}
}

func TestTradingFlow(t *testing.T) {
	s := newServer(t)
	s.prices.SetPrice("AAPL", 150)

	var receipt ledger.Receipt
	code := s.do(http.MethodPost, "/purchase", 1, gin.H{"symbol": "aapl", "name": "Apple", "quantity": 10}, &receipt)
	if code != http.StatusCreated {
		t.Fatalf("purchase status = %d, want 201", code)
	}
	if receipt.Holding == nil || receipt.Holding.Quantity != 10 {
		t.Errorf("purchase holding = %+v, want 10 shares", receipt.Holding)
	}

	s.prices.SetPrice("AAPL", 165)
	if code := s.do(http.MethodPost, "/sell", 1, gin.H{"symbol": "AAPL", "quantity": 4}, nil); code != http.StatusCreated {
		t.Fatalf("sell status = %d, want 201", code)
	}
	if code := s.do(http.MethodPost, "/sell", 1, gin.H{"symbol": "AAPL", "quantity": 40}, nil); code != http.StatusBadRequest {
		t.Errorf("oversell status = %d, want 400", code)
	}

	var holdings struct{ Holdings []models.Holding }
	s.do(http.MethodGet, "/holdings", 1, nil, &holdings)
	if len(holdings.Holdings) != 1 || holdings.Holdings[0].Quantity != 6 {
		t.Errorf("holdings = %+v, want 6 AAPL", holdings.Holdings)
	}

	var pl analytics.ProfitLoss
	if code := s.do(http.MethodGet, "/profit-loss/aapl", 1, nil, &pl); code != http.StatusOK {
		t.Fatalf("profit-loss status = %d, want 200", code)
	}
	if pl.NetQuantity != 6 || pl.ProfitLossPct.String() != "10" {
		t.Errorf("profit-loss = %+v, want 6 shares at +10%%", pl)
	}

	var div analytics.Diversity
	if code := s.do(http.MethodGet, "/diversity", 1, nil, &div); code != http.StatusOK {
		t.Fatalf("diversity status = %d, want 200", code)
	}
	if len(div.PerSymbol) != 1 || div.PerSymbol[0].DiversityPct.String() != "100" {
		t.Errorf("diversity = %+v, want AAPL at 100%%", div)
	}

	var daily struct {
		DailySummary []valuation.DaySnapshot `json:"daily_summary"`
	}
	if code := s.do(http.MethodGet, "/portfolio-daily", 1, nil, &daily); code != http.StatusOK {
		t.Fatalf("portfolio-daily status = %d, want 200", code)
	}
	if len(daily.DailySummary) != 1 || daily.DailySummary[0].PortfolioValue.String() != "900" {
		t.Errorf("daily summary = %+v, want one day worth 900", daily.DailySummary)
	}
}

func TestEmptyPortfolio(t *testing.T) {
	s := newServer(t)
	var daily map[string][]any
	if code := s.do(http.MethodGet, "/portfolio-daily", 2, nil, &daily); code != http.StatusOK {
		t.Errorf("portfolio-daily status = %d, want 200", code)
	}
	if got, ok := daily["daily_summary"]; !ok || len(got) != 0 {
		t.Errorf("daily_summary = %v, want an empty list", got)
	}
	if code := s.do(http.MethodGet, "/diversity", 2, nil, nil); code != http.StatusNotFound {
		t.Errorf("diversity status = %d, want 404", code)
	}
	if code := s.do(http.MethodGet, "/profit-loss/TSLA", 2, nil, nil); code != http.StatusBadRequest {
		t.Errorf("profit-loss status = %d, want 400", code)
	}
}

func TestPreferencesAndAlerts(t *testing.T) {
	s := newServer(t)

	var pref models.UserPreference
	if code := s.do(http.MethodPost, "/preferences", 1, gin.H{"symbol": "tsla"}, &pref); code != http.StatusOK {
		t.Fatalf("set preference status = %d, want 200", code)
	}
	if pref.Symbol != "TSLA" || pref.VolatilityThreshold != models.DefaultVolatilityThreshold {
		t.Errorf("preference = %+v, want TSLA at the default threshold", pref)
	}
	if code := s.do(http.MethodPost, "/preferences", 1, gin.H{"symbol": "TSLA", "volatility_threshold": -1}, nil); code != http.StatusBadRequest {
		t.Errorf("negative threshold status = %d, want 400", code)
	}

	var list struct{ Preferences []models.UserPreference }
	s.do(http.MethodGet, "/preferences", 1, nil, &list)
	if len(list.Preferences) != 1 {
		t.Errorf("preferences = %+v, want 1", list.Preferences)
	}

	s.store.UpsertAlert(context.Background(), &models.Alert{UserID: 1, Symbol: "TSLA", Message: alerts.Message("TSLA"), CreatedAt: time.Now()})
	var got struct{ Alerts []models.EnrichedAlert }
	s.do(http.MethodGet, "/alerts", 1, nil, &got)
	if len(got.Alerts) != 1 || got.Alerts[0].AlertTriggered == nil {
		t.Errorf("alerts = %+v, want one enriched alert", got.Alerts)
	}
}

func TestMarketRoutes(t *testing.T) {
	s := newServer(t)
	s.prices.SetPrice("AAPL", 187.5).SetCloses("AAPL", time.Now(), 180, 181, 182)

	if code := s.do(http.MethodGet, "/prices/aapl", 1, nil, nil); code != http.StatusOK {
		t.Errorf("price status = %d, want 200", code)
	}
	if p, err := s.store.LatestPrice(context.Background(), "AAPL"); err != nil || p.Price.String() != "187.5" {
		t.Errorf("recorded price = %+v, %v, want 187.5", p, err)
	}
	if code := s.do(http.MethodGet, "/prices/MSFT", 1, nil, nil); code != http.StatusServiceUnavailable {
		t.Errorf("unknown price status = %d, want 503", code)
	}

	var series struct{ Data []pricefeed.Bar }
	if code := s.do(http.MethodGet, "/time-series/AAPL?range=1month", 1, nil, &series); code != http.StatusOK {
		t.Errorf("time-series status = %d, want 200", code)
	}
	if len(series.Data) != 3 {
		t.Errorf("time-series bars = %d, want 3", len(series.Data))
	}
	if code := s.do(http.MethodGet, "/time-series/AAPL?range=2decades", 1, nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad range status = %d, want 400", code)
	}

	if code := s.do(http.MethodGet, "/search", 1, nil, nil); code != http.StatusBadRequest {
		t.Errorf("search without ticker status = %d, want 400", code)
	}
	if code := s.do(http.MethodGet, "/company/AAPL", 1, nil, nil); code != http.StatusOK {
		t.Errorf("company status = %d, want 200", code)
	}
	if code := s.do(http.MethodGet, "/company/ZZZZ", 1, nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown company status = %d, want 404", code)
	}
	if code := s.do(http.MethodGet, "/risk?symbol=AAPL", 1, nil, nil); code != http.StatusBadRequest {
		t.Errorf("risk on 3 closes status = %d, want 400", code)
	}

	var vol map[string]string
	if code := s.do(http.MethodGet, "/volatility/AAPL", 1, nil, &vol); code != http.StatusOK {
		t.Errorf("volatility status = %d, want 200", code)
	}
	if vol["current_volatility"] == "" {
		t.Errorf("volatility = %v, want a percentage", vol)
	}
}

func TestTimeSeriesRecordsBarsOnce(t *testing.T) {
	s := newServer(t)
	s.prices.SetCloses("AAPL", time.Now(), 180, 181, 182)
	for i := 0; i < 3; i++ {
		if code := s.do(http.MethodGet, "/time-series/AAPL?range=1month", 1, nil, nil); code != http.StatusOK {
			t.Fatalf("time-series status = %d, want 200", code)
		}
	}
	var n int64
	if err := s.store.DB().Model(&models.StockPrice{}).Where("symbol = ?", "AAPL").Count(&n).Error; err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("recorded bars after 3 identical requests = %d, want 3", n)
	}
}

func TestStockPriceFallsBackToRecordedQuote(t *testing.T) {
	s := newServer(t)
	s.prices.SetPrice("AAPL", 187.5)
	if code := s.do(http.MethodGet, "/prices/AAPL", 1, nil, nil); code != http.StatusOK {
		t.Fatalf("price status = %d, want 200", code)
	}

	s.prices.Remove("AAPL")
	var got struct {
		Price string `json:"price"`
		Stale bool   `json:"stale"`
	}
	if code := s.do(http.MethodGet, "/prices/AAPL", 1, nil, &got); code != http.StatusOK {
		t.Fatalf("price status with feed down = %d, want 200", code)
	}
	if got.Price != "187.5" || !got.Stale {
		t.Errorf("price with feed down = %+v, want stale 187.5", got)
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	if code := s.do(http.MethodGet, "/health", 0, nil, nil); code != http.StatusOK {
		t.Errorf("health status = %d, want 200", code)
	}
}
