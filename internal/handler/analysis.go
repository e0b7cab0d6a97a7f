package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wasiiff/blokk-lens/internal/repository"
	"github.com/wasiiff/blokk-lens/internal/service"
)

func (h *Handler) GetAnalysis(c *gin.Context) {
	if h.analysisService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-analysis")
	defer span.End()

	coinID := coinParam(c)
	if coinID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coin id is required"})
		return
	}
	span.SetAttributes(attribute.String("coin", coinID))

	analysis, err := h.analysisService.Analyze(ctx, coinID)
	if err != nil {
		c.JSON(fetchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

type runBacktestRequest struct {
	CoinID         string  `json:"coin_id" binding:"required"`
	Days           int     `json:"days"`
	InitialCapital float64 `json:"initial_capital" binding:"required"`
	MinConfidence  int     `json:"min_confidence"`
}

func (h *Handler) RunBacktest(c *gin.Context) {
	if h.backtestService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-backtest")
	defer span.End()

	var req runBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.backtestService.Run(ctx, userID(c), service.BacktestParams{
		CoinID:         req.CoinID,
		Days:           req.Days,
		InitialCapital: req.InitialCapital,
		MinConfidence:  req.MinConfidence,
	})
	if err != nil {
		c.JSON(fetchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListBacktests(c *gin.Context) {
	if h.backtestService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-backtests")
	defer span.End()

	results, err := h.backtestService.List(ctx, userID(c), intQuery(c, "limit", 20))
	if err != nil {
		if errors.Is(err, service.ErrNoStore) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"backtests": results})
}

func (h *Handler) GetBacktest(c *gin.Context) {
	if h.backtestService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-backtest")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}

	res, err := h.backtestService.Get(ctx, userID(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "backtest not found"})
			return
		}
		if errors.Is(err, service.ErrNoStore) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteBacktest(c *gin.Context) {
	if h.backtestService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.delete-backtest")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.backtestService.Delete(ctx, userID(c), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "backtest not found"})
			return
		}
		if errors.Is(err, service.ErrNoStore) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
