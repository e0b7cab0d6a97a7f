package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/wasiiff/blokk-lens/internal/domain"
	"github.com/wasiiff/blokk-lens/internal/indicator"
	"github.com/wasiiff/blokk-lens/internal/signal"
)

const analysisChartDays = 90

// AnalysisMarketData is the slice of the data service the analysis pipeline
// needs.
type AnalysisMarketData interface {
	GetPrice(ctx context.Context, coinID string) (*domain.Quote, error)
	GetMarketChart(ctx context.Context, coinID string, days int) (*domain.MarketChart, error)
}

// Analysis bundles everything computed for one coin in one pass.
type Analysis struct {
	CoinID     string                     `json:"coin_id"`
	Price      float64                    `json:"price"`
	Indicators domain.TechnicalIndicators `json:"indicators"`
	Signal     domain.Signal              `json:"signal"`
	Source     domain.DataSource          `json:"source"`
}

type AnalysisService struct {
	tracer trace.Tracer
	market AnalysisMarketData
}

func NewAnalysisService(tracer trace.Tracer, market AnalysisMarketData) *AnalysisService {
	return &AnalysisService{tracer: tracer, market: market}
}

// Analyze fetches current price and a 90-day chart, computes the indicator
// snapshot and derives a trading signal from it.
func (s *AnalysisService) Analyze(ctx context.Context, coinID string) (*Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.analyze")
	defer span.End()

	quote, err := s.market.GetPrice(ctx, coinID)
	if err != nil {
		return nil, fmt.Errorf("price for %s: %w", coinID, err)
	}
	chart, err := s.market.GetMarketChart(ctx, coinID, analysisChartDays)
	if err != nil {
		return nil, fmt.Errorf("chart for %s: %w", coinID, err)
	}

	ind := indicator.Analyze(chart.Prices())
	sig := signal.Generate(ind, quote.PriceUSD)

	return &Analysis{
		CoinID:     coinID,
		Price:      quote.PriceUSD,
		Indicators: ind,
		Signal:     sig,
		Source:     chart.Source,
	}, nil
}
