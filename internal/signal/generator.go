// Package signal turns an indicator snapshot into a buy/sell/hold decision.
package signal

import (
	"fmt"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

const (
	rsiOversold   = 30
	rsiOverbought = 70

	// Minimum confidence fraction before a buy/sell is emitted over hold.
	decisionThreshold = 0.3
)

// Generate tallies independent bullish/bearish votes and produces a decision
// with confidence and the reasons behind each vote. Reasons appear in the
// fixed check order RSI, trend, MACD, moving averages; callers rely on that
// ordering.
func Generate(ind domain.TechnicalIndicators, currentPrice float64) domain.Signal {
	var bullish, bearish int
	reasons := make([]string, 0, 4)

	if ind.RSI < rsiOversold {
		bullish++
		reasons = append(reasons, fmt.Sprintf("rsi %.1f oversold", ind.RSI))
	} else if ind.RSI > rsiOverbought {
		bearish++
		reasons = append(reasons, fmt.Sprintf("rsi %.1f overbought", ind.RSI))
	}

	switch ind.Trend {
	case domain.TrendBullish:
		bullish++
		reasons = append(reasons, "trend bullish")
	case domain.TrendBearish:
		bearish++
		reasons = append(reasons, "trend bearish")
	}

	// MACD always casts exactly one vote.
	if ind.MACD.Histogram > 0 {
		bullish++
		reasons = append(reasons, "macd histogram positive")
	} else {
		bearish++
		reasons = append(reasons, "macd histogram negative")
	}

	if currentPrice > ind.SMA20 && currentPrice > ind.SMA50 {
		bullish++
		reasons = append(reasons, "price above sma20 and sma50")
	} else if currentPrice < ind.SMA20 && currentPrice < ind.SMA50 {
		bearish++
		reasons = append(reasons, "price below sma20 and sma50")
	}

	total := bullish + bearish
	var fraction float64
	if total > 0 {
		fraction = float64(bullish-bearish) / float64(total)
		if fraction < 0 {
			fraction = -fraction
		}
	}

	action := domain.SignalHold
	if bullish > bearish && fraction > decisionThreshold {
		action = domain.SignalBuy
	} else if bearish > bullish && fraction > decisionThreshold {
		action = domain.SignalSell
	}

	return domain.Signal{
		Action:     action,
		Confidence: int(fraction * 100),
		Reasons:    reasons,
	}
}
