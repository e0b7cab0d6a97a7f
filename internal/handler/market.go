package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

func (h *Handler) GetPrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-price")
	defer span.End()

	coinID := coinParam(c)
	if coinID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coin id is required"})
		return
	}
	span.SetAttributes(attribute.String("coin", coinID))

	quote, err := h.market.GetPrice(ctx, coinID)
	if err != nil {
		c.JSON(fetchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// GetPrices serves batch quotes for ?ids=bitcoin,ethereum. Unresolvable coins
// are simply absent from the response.
func (h *Handler) GetPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-prices")
	defer span.End()

	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids query parameter is required"})
		return
	}
	ids := make([]string, 0, 8)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			ids = append(ids, id)
		}
	}

	quotes, err := h.market.GetPrices(ctx, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": quotes})
}

func (h *Handler) GetMarkets(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-markets")
	defer span.End()

	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 50)
	if pageSize > 250 {
		pageSize = 250
	}

	coins, err := h.market.GetMarketCoins(ctx, page, pageSize)
	if err != nil {
		c.JSON(fetchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coins": coins, "page": page, "page_size": pageSize})
}

func (h *Handler) GetCoinDetails(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-coin-details")
	defer span.End()

	coinID := coinParam(c)
	if coinID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coin id is required"})
		return
	}

	detail, err := h.market.GetCoinDetails(ctx, coinID)
	if err != nil {
		c.JSON(fetchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) GetMarketChart(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-market-chart")
	defer span.End()

	coinID := coinParam(c)
	if coinID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coin id is required"})
		return
	}
	days := intQuery(c, "days", 90)

	chart, err := h.market.GetMarketChart(ctx, coinID, days)
	if err != nil {
		c.JSON(fetchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, chart)
}

func (h *Handler) GetOHLC(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-ohlc")
	defer span.End()

	coinID := coinParam(c)
	if coinID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coin id is required"})
		return
	}
	days := intQuery(c, "days", 30)

	series, err := h.market.GetOHLC(ctx, coinID, days)
	if err != nil {
		c.JSON(fetchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *Handler) GetTrending(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-trending")
	defer span.End()

	trending, err := h.market.GetTrending(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trending": trending})
}

func (h *Handler) GetGlobalStats(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-global-stats")
	defer span.End()

	stats, err := h.market.GetGlobalStats(ctx)
	if err != nil {
		c.JSON(fetchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Search(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.search")
	defer span.End()

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q query parameter is required"})
		return
	}

	results, err := h.market.Search(ctx, query)
	if err != nil {
		c.JSON(fetchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
