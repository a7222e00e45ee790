package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio-ledger/models"
	"portfolio-ledger/pricefeed"
)

func (h *Handler) StockPrice(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	ctx := c.Request.Context()

	price, err := h.Prices.CurrentPrice(ctx, symbol)
	if errors.Is(err, models.ErrPriceUnavailable) {
		// serve the last recorded quote while the feed is down
		last, lerr := h.Store.LatestPrice(ctx, symbol)
		if lerr == nil {
			c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": last.Price, "stale": true, "as_of": last.Timestamp})
			return
		}
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.record(c, []models.StockPrice{{Symbol: symbol, Price: price, Timestamp: h.clock()}})
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

// TimeSeries returns the bars of a chart range such as ?range=1month.
// Daily closes are kept as recorded prices.
func (h *Handler) TimeSeries(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	name := c.DefaultQuery("range", "1month")
	interval, period, ok := pricefeed.ParseRange(name)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown range %q", name)})
		return
	}

	bars, err := h.Prices.History(c.Request.Context(), symbol, period, interval)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(bars) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Historical data not found"})
		return
	}

	if interval == pricefeed.Daily {
		prices := make([]models.StockPrice, len(bars))
		for i, b := range bars {
			prices[i] = models.StockPrice{Symbol: symbol, Price: b.Close, Timestamp: b.Time}
		}
		h.record(c, prices)
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "period": period, "data": bars})
}

// record stores observed prices. A failure only costs the history, so the
// request still succeeds.
func (h *Handler) record(c *gin.Context, prices []models.StockPrice) {
	if err := h.Store.RecordPrices(c.Request.Context(), prices); err != nil {
		h.Logger.Warn("record prices", zap.String("symbol", prices[0].Symbol), zap.Error(err))
	}
}

func (h *Handler) Search(c *gin.Context) {
	ticker := strings.TrimSpace(c.Query("ticker"))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ticker symbol is required"})
		return
	}
	matches, err := h.Directory.Search(c.Request.Context(), ticker)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": matches})
}

func (h *Handler) Company(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	info, err := h.Directory.Company(c.Request.Context(), symbol)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) Risk(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a stock symbol"})
		return
	}
	risk, err := h.Analytics.Risk(c.Request.Context(), symbol)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, risk)
}

func (h *Handler) Volatility(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	v, err := h.Analytics.CurrentVolatility(c.Request.Context(), symbol)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "current_volatility": fmt.Sprintf("%.2f%%", v)})
}
