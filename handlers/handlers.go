// Package handlers exposes the ledger, analytics and alerts over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"portfolio-ledger/alerts"
	"portfolio-ledger/analytics"
	"portfolio-ledger/database"
	"portfolio-ledger/ledger"
	"portfolio-ledger/middleware"
	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
	"portfolio-ledger/valuation"
)

// Handler serves every route. Redis is optional; without it no refresh
// tokens are issued.
type Handler struct {
	Store       *database.Store
	Ledger      *ledger.Service
	Valuation   *valuation.Service
	Analytics   *analytics.Calculator
	Preferences *alerts.Preferences
	Prices      pricefeed.Gateway
	Directory   pricefeed.Directory
	Redis       *redis.Client
	JWTSecret   string
	Logger      *zap.Logger

	now func() time.Time
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// Router builds the gin engine with public and authenticated routes.
func (h *Handler) Router(corsOrigin string) *gin.Engine {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(h.Logger), gin.Recovery(), middleware.CORS(corsOrigin))

	// Public routes
	router.GET("/health", h.Health)
	router.POST("/signup", h.Signup)
	router.POST("/login", h.Login)
	router.POST("/refresh", h.Refresh)

	// Protected routes
	auth := router.Group("/")
	auth.Use(middleware.JWTAuth(h.JWTSecret))
	{
		auth.POST("/purchase", h.Purchase)
		auth.POST("/sell", h.Sell)
		auth.GET("/holdings", h.Holdings)
		auth.GET("/profit-loss/:symbol", h.ProfitLoss)
		auth.GET("/diversity", h.Diversity)
		auth.GET("/portfolio-daily", h.PortfolioDaily)

		auth.GET("/preferences", h.ListPreferences)
		auth.POST("/preferences", h.SetPreference)
		auth.GET("/alerts", h.Alerts)

		auth.GET("/prices/:symbol", h.StockPrice)
		auth.GET("/time-series/:symbol", h.TimeSeries)
		auth.GET("/search", h.Search)
		auth.GET("/company/:symbol", h.Company)
		auth.GET("/risk", h.Risk)
		auth.GET("/volatility/:symbol", h.Volatility)
	}
	return router
}

func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.Store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail answers with the status matching err's kind. Unexpected errors are
// logged and hidden from the client.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInsufficientPosition),
		errors.Is(err, models.ErrInsufficientHistory):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrEmptyPortfolio):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrPriceUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.Error(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
