package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/marketdata"
	"github.com/wasiiff/blokk-lens/internal/service"
)

type Handler struct {
	tracer          trace.Tracer
	market          *marketdata.Service
	analysisService *service.AnalysisService
	backtestService *service.BacktestService
	alertStore      AlertStore
	alertEvaluator  AlertEvaluator
}

func New(
	tracer trace.Tracer,
	market *marketdata.Service,
	analysisService *service.AnalysisService,
	backtestService *service.BacktestService,
	alertStore AlertStore,
) *Handler {
	return &Handler{
		tracer:          tracer,
		market:          market,
		analysisService: analysisService,
		backtestService: backtestService,
		alertStore:      alertStore,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	r.GET("/api/prices", h.GetPrices)
	r.GET("/api/prices/:coin", h.GetPrice)
	r.GET("/api/markets", h.GetMarkets)
	r.GET("/api/coins/:coin", h.GetCoinDetails)
	r.GET("/api/coins/:coin/chart", h.GetMarketChart)
	r.GET("/api/coins/:coin/ohlc", h.GetOHLC)
	r.GET("/api/trending", h.GetTrending)
	r.GET("/api/global", h.GetGlobalStats)
	r.GET("/api/search", h.Search)

	r.GET("/api/analysis/:coin", h.GetAnalysis)

	r.POST("/api/backtests", h.RunBacktest)
	r.GET("/api/backtests", h.ListBacktests)
	r.GET("/api/backtests/:id", h.GetBacktest)
	r.DELETE("/api/backtests/:id", h.DeleteBacktest)

	r.POST("/api/alerts", h.CreateAlert)
	r.GET("/api/alerts", h.ListAlerts)
	r.POST("/api/alerts/evaluate", h.EvaluateAlerts)
	r.POST("/api/alerts/:id/deactivate", h.DeactivateAlert)
	r.DELETE("/api/alerts/:id", h.DeleteAlert)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// userID resolves the caller identity set by the fronting API gateway.
// Authentication itself happens upstream.
func userID(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if id == "" {
		return "anonymous"
	}
	return id
}

func coinParam(c *gin.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("coin")))
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// fetchStatus maps data retrieval failures: a fully exhausted fallback chain
// is service degradation, not an internal bug.
func fetchStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, marketdata.ErrAllSourcesExhausted) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
