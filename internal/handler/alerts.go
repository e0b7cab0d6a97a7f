package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wasiiff/blokk-lens/internal/alert"
	"github.com/wasiiff/blokk-lens/internal/domain"
	"github.com/wasiiff/blokk-lens/internal/repository"
)

// AlertStore is the slice of the alert repository the HTTP surface needs.
// The evaluator-side operations (ListPending, MarkTriggered) stay out of it.
type AlertStore interface {
	Create(ctx context.Context, a *domain.Alert) (*domain.Alert, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Alert, error)
	Deactivate(ctx context.Context, userID string, alertID int64) error
	Delete(ctx context.Context, userID string, alertID int64) error
}

// AlertEvaluator runs one evaluation pass on demand, outside the poller's
// schedule.
type AlertEvaluator interface {
	EvaluateAll(ctx context.Context) ([]alert.Trigger, error)
}

// SetAlertEvaluator enables the on-demand evaluation endpoint. Without it
// the endpoint reports the evaluator as unavailable.
func (h *Handler) SetAlertEvaluator(ev AlertEvaluator) {
	h.alertEvaluator = ev
}

func (h *Handler) EvaluateAlerts(c *gin.Context) {
	if h.alertEvaluator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert evaluator unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.evaluate-alerts")
	defer span.End()

	triggers, err := h.alertEvaluator.EvaluateAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggered": len(triggers), "triggers": triggers})
}

type createAlertRequest struct {
	CoinID      string  `json:"coin_id" binding:"required"`
	Kind        string  `json:"kind" binding:"required"`
	Condition   string  `json:"condition"`
	TargetValue float64 `json:"target_value"`
}

func (h *Handler) CreateAlert(c *gin.Context) {
	if h.alertStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-alert")
	defer span.End()

	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := domain.AlertKind(req.Kind)
	if !kind.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be one of price_above, price_below, percent_change, technical_signal"})
		return
	}
	if kind == domain.AlertTechnicalSignal && !validCondition(req.Condition) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "condition must be one of buy, sell, rsi_oversold, rsi_overbought"})
		return
	}
	if kind != domain.AlertTechnicalSignal && req.TargetValue == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_value is required for price and percent alerts"})
		return
	}

	alert, err := h.alertStore.Create(ctx, &domain.Alert{
		UserID:      userID(c),
		CoinID:      req.CoinID,
		Kind:        kind,
		Condition:   req.Condition,
		TargetValue: req.TargetValue,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) ListAlerts(c *gin.Context) {
	if h.alertStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-alerts")
	defer span.End()

	alerts, err := h.alertStore.ListByUser(ctx, userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *Handler) DeactivateAlert(c *gin.Context) {
	if h.alertStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.deactivate-alert")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.alertStore.Deactivate(ctx, userID(c), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteAlert(c *gin.Context) {
	if h.alertStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.delete-alert")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.alertStore.Delete(ctx, userID(c), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func validCondition(condition string) bool {
	switch condition {
	case domain.ConditionBuy, domain.ConditionSell, domain.ConditionRSIOversold, domain.ConditionRSIOverbought:
		return true
	}
	return false
}
