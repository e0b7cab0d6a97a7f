// Package backtest replays a historical price series bar-by-bar through the
// signal generator and simulates an all-in long-only strategy. Like the
// indicator package it is pure computation with no I/O.
package backtest

import (
	"math"

	"github.com/wasiiff/blokk-lens/internal/domain"
	"github.com/wasiiff/blokk-lens/internal/indicator"
	"github.com/wasiiff/blokk-lens/internal/signal"
)

const (
	// warmupBars is the minimum history before the first signal is taken,
	// enough for the 20-bar moving average to be meaningful.
	warmupBars = 20

	// maxTradeHistory bounds the persisted trade list to the most recent
	// entries; counters still cover the full run.
	maxTradeHistory = 50
)

// Run walks the series from warmupBars to the second-to-last bar. At each bar
// it recomputes indicators over the expanding window prices[0..i] (never
// looking ahead) and acts on the resulting signal when its confidence clears
// minConfidence. Buys go all-in, sells close the whole position. A position
// still open at the end is force-closed at the final price; the forced close
// counts toward win/loss but is not recorded as a trade event.
func Run(points []domain.PricePoint, initialCapital float64, minConfidence int) *domain.BacktestResult {
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}

	capital := initialCapital
	maxCapital := initialCapital
	maxDrawdown := 0.0
	position := 0.0
	entryPrice := 0.0
	wins, losses := 0, 0

	var trades []domain.BacktestTrade
	var sellReturns []float64

	for i := warmupBars; i < len(points)-1; i++ {
		ind := indicator.Analyze(prices[:i+1])
		sig := signal.Generate(ind, prices[i])
		if sig.Confidence < minConfidence {
			continue
		}

		switch {
		case sig.Action == domain.SignalBuy && position == 0:
			position = capital / prices[i]
			entryPrice = prices[i]
			capital = 0
			trades = append(trades, domain.BacktestTrade{
				Action:     domain.SignalBuy,
				Index:      i,
				Timestamp:  points[i].Timestamp,
				Price:      prices[i],
				Confidence: sig.Confidence,
			})

		case sig.Action == domain.SignalSell && position > 0:
			capital = position * prices[i]
			position = 0
			profit := (prices[i]/entryPrice - 1) * 100
			if profit > 0 {
				wins++
			} else {
				losses++
			}
			sellReturns = append(sellReturns, profit)
			trades = append(trades, domain.BacktestTrade{
				Action:     domain.SignalSell,
				Index:      i,
				Timestamp:  points[i].Timestamp,
				Price:      prices[i],
				Confidence: sig.Confidence,
				ProfitPct:  round2(profit),
			})

			if capital > maxCapital {
				maxCapital = capital
			}
			if dd := (maxCapital - capital) / maxCapital * 100; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	if position > 0 {
		finalPrice := prices[len(prices)-1]
		capital = position * finalPrice
		if finalPrice > entryPrice {
			wins++
		} else {
			losses++
		}
		position = 0
	}

	totalTrades := wins + losses
	winRate := 0.0
	if totalTrades > 0 {
		winRate = float64(wins) / float64(totalTrades) * 100
	}
	totalReturn := 0.0
	if initialCapital > 0 {
		totalReturn = (capital/initialCapital - 1) * 100
	}

	if len(trades) > maxTradeHistory {
		trades = trades[len(trades)-maxTradeHistory:]
	}

	return &domain.BacktestResult{
		InitialCapital: initialCapital,
		MinConfidence:  minConfidence,
		FinalCapital:   round2(capital),
		TotalReturnPct: round2(totalReturn),
		TotalTrades:    totalTrades,
		WinningTrades:  wins,
		LosingTrades:   losses,
		WinRate:        round2(winRate),
		MaxDrawdownPct: round2(maxDrawdown),
		Sharpe:         round2(sharpe(sellReturns)),
		Trades:         trades,
	}
}

// sharpe is the simplified ratio over realized sell-trade returns: mean
// divided by population standard deviation. Zero when there are no sell
// trades or no variance.
func sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
