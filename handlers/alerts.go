package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio-ledger/middleware"
	"portfolio-ledger/models"
)

type PreferenceInput struct {
	Symbol string `json:"symbol" binding:"required"`
	// VolatilityThreshold defaults to models.DefaultVolatilityThreshold.
	VolatilityThreshold *float64 `json:"volatility_threshold"`
}

func (h *Handler) ListPreferences(c *gin.Context) {
	prefs, err := h.Preferences.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

func (h *Handler) SetPreference(c *gin.Context) {
	var input PreferenceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	threshold := models.DefaultVolatilityThreshold
	if input.VolatilityThreshold != nil {
		threshold = *input.VolatilityThreshold
	}

	pref, err := h.Preferences.Set(c.Request.Context(), middleware.UserID(c), input.Symbol, threshold)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

func (h *Handler) Alerts(c *gin.Context) {
	alerts, err := h.Preferences.Alerts(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
