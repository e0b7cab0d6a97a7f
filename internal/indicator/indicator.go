// Package indicator holds the pure technical-indicator math. Every function
// is deterministic and degrades to a neutral value on short input instead of
// returning an error.
package indicator

import (
	"math"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

const (
	RSIPeriod      = 14
	macdFastPeriod = 12
	macdSlowPeriod = 26
	trendShortSMA  = 20
	trendLongSMA   = 50
)

// SMA returns the mean of the last period values. With fewer than period
// points it returns the most recent price, or 0 for an empty series.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period <= 0 || len(prices) < period {
		return prices[len(prices)-1]
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// EMA seeds with the simple average of the first period values and applies
// the standard recurrence over the remainder. Short series fall back to the
// latest price, empty series to 0.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period <= 0 || len(prices) < period {
		return prices[len(prices)-1]
	}
	var seed float64
	for _, p := range prices[:period] {
		seed += p
	}
	ema := seed / float64(period)
	k := 2.0 / (float64(period) + 1.0)
	for _, p := range prices[period:] {
		ema = (p-ema)*k + ema
	}
	return ema
}

// RSI averages the last period gains and losses over successive differences.
// With fewer than period+1 points it returns the neutral 50; if the average
// loss is zero it returns 100.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}
	var gainSum, lossSum float64
	for i := len(prices) - period; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD computes EMA(12)-EMA(26). The signal line is a simplified smoothing
// (macd*0.9), not a true 9-period EMA of the MACD history; kept as-is for
// parity with the original calculation.
func MACD(prices []float64) domain.MACDValue {
	macd := EMA(prices, macdFastPeriod) - EMA(prices, macdSlowPeriod)
	signal := macd * 0.9
	return domain.MACDValue{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}

// Volatility is the population standard deviation of the full series.
func Volatility(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	var mean float64
	for _, p := range prices {
		mean += p
	}
	mean /= float64(len(prices))

	var variance float64
	for _, p := range prices {
		d := p - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(prices)))
}

// Trend classifies the series by comparing the current price against SMA20
// and SMA50. Fewer than 20 points is always neutral.
func Trend(prices []float64) domain.TrendDirection {
	if len(prices) < trendShortSMA {
		return domain.TrendNeutral
	}
	price := prices[len(prices)-1]
	sma20 := SMA(prices, trendShortSMA)
	sma50 := SMA(prices, trendLongSMA)

	if price > sma20 && sma20 > sma50 {
		return domain.TrendBullish
	}
	if price < sma20 && sma20 < sma50 {
		return domain.TrendBearish
	}
	return domain.TrendNeutral
}

// Analyze composes all indicators into one snapshot.
func Analyze(prices []float64) domain.TechnicalIndicators {
	return domain.TechnicalIndicators{
		SMA20:      SMA(prices, trendShortSMA),
		SMA50:      SMA(prices, trendLongSMA),
		RSI:        RSI(prices, RSIPeriod),
		MACD:       MACD(prices),
		Volatility: Volatility(prices),
		Trend:      Trend(prices),
	}
}
