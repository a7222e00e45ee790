package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio-ledger/ledger"
	"portfolio-ledger/middleware"
	"portfolio-ledger/models"
	"portfolio-ledger/valuation"
)

type TradeInput struct {
	Symbol   string `json:"symbol" binding:"required"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity" binding:"required"`
}

func (h *Handler) Purchase(c *gin.Context) { h.trade(c, h.Ledger.Purchase) }

func (h *Handler) Sell(c *gin.Context) { h.trade(c, h.Ledger.Sale) }

func (h *Handler) trade(c *gin.Context, record func(ctx context.Context, req ledger.TradeRequest) (ledger.Receipt, error)) {
	var input TradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := record(c.Request.Context(), ledger.TradeRequest{
		UserID:   middleware.UserID(c),
		Symbol:   input.Symbol,
		Name:     input.Name,
		Quantity: input.Quantity,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) Holdings(c *gin.Context) {
	holdings, err := h.Ledger.Holdings(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"holdings": holdings})
}

func (h *Handler) ProfitLoss(c *gin.Context) {
	pl, err := h.Analytics.ProfitLoss(c.Request.Context(), middleware.UserID(c), models.NormalizeSymbol(c.Param("symbol")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pl)
}

func (h *Handler) Diversity(c *gin.Context) {
	d, err := h.Analytics.Diversity(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) PortfolioDaily(c *gin.Context) {
	days, err := h.Valuation.DailySummary(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if days == nil {
		days = []valuation.DaySnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"daily_summary": days})
}
