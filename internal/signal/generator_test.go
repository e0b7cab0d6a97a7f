package signal

import (
	"strings"
	"testing"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

func TestGenerateAllBullishVotes(t *testing.T) {
	ind := domain.TechnicalIndicators{
		SMA20: 95,
		SMA50: 90,
		RSI:   25,
		MACD:  domain.MACDValue{Histogram: 1.5},
		Trend: domain.TrendBullish,
	}

	sig := Generate(ind, 100)
	if sig.Action != domain.SignalBuy {
		t.Fatalf("expected buy, got %s", sig.Action)
	}
	if sig.Confidence != 100 {
		t.Fatalf("expected confidence 100, got %d", sig.Confidence)
	}
	if len(sig.Reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %d", len(sig.Reasons))
	}
}

func TestGenerateReasonOrdering(t *testing.T) {
	ind := domain.TechnicalIndicators{
		SMA20: 110,
		SMA50: 120,
		RSI:   75,
		MACD:  domain.MACDValue{Histogram: -0.2},
		Trend: domain.TrendBearish,
	}

	sig := Generate(ind, 100)
	if sig.Action != domain.SignalSell {
		t.Fatalf("expected sell, got %s", sig.Action)
	}
	if len(sig.Reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %d", len(sig.Reasons))
	}

	// Fixed check order: RSI, trend, MACD, moving averages.
	if !strings.Contains(sig.Reasons[0], "rsi") {
		t.Fatalf("reason 0 should be rsi, got %q", sig.Reasons[0])
	}
	if !strings.Contains(sig.Reasons[1], "trend") {
		t.Fatalf("reason 1 should be trend, got %q", sig.Reasons[1])
	}
	if !strings.Contains(sig.Reasons[2], "macd") {
		t.Fatalf("reason 2 should be macd, got %q", sig.Reasons[2])
	}
	if !strings.Contains(sig.Reasons[3], "sma") {
		t.Fatalf("reason 3 should be moving averages, got %q", sig.Reasons[3])
	}
}

func TestGenerateMACDAlwaysVotes(t *testing.T) {
	ind := domain.TechnicalIndicators{
		SMA20: 100,
		SMA50: 100,
		RSI:   50,
		MACD:  domain.MACDValue{Histogram: 0},
		Trend: domain.TrendNeutral,
	}

	// Neutral everything: only the bearish MACD vote (histogram <= 0) lands.
	sig := Generate(ind, 100)
	if len(sig.Reasons) != 1 {
		t.Fatalf("expected exactly 1 reason, got %d", len(sig.Reasons))
	}
	if !strings.Contains(sig.Reasons[0], "macd histogram negative") {
		t.Fatalf("expected bearish macd vote, got %q", sig.Reasons[0])
	}
}

func TestGenerateNarrowMarginStillBuys(t *testing.T) {
	// Two bullish (trend, macd) vs one bearish (rsi): fraction = 1/3, buy
	// requires strictly more than 0.3.
	ind := domain.TechnicalIndicators{
		SMA20: 100,
		SMA50: 100,
		RSI:   80,
		MACD:  domain.MACDValue{Histogram: 0.5},
		Trend: domain.TrendBullish,
	}

	sig := Generate(ind, 100)
	if sig.Action != domain.SignalBuy {
		t.Fatalf("expected buy with fraction 1/3 > 0.3, got %s", sig.Action)
	}
	if sig.Confidence != 33 {
		t.Fatalf("expected confidence 33, got %d", sig.Confidence)
	}
}

func TestGenerateBalancedVotesHold(t *testing.T) {
	// One bullish (macd) vs one bearish (rsi): tie, hold.
	ind := domain.TechnicalIndicators{
		SMA20: 100,
		SMA50: 100,
		RSI:   75,
		MACD:  domain.MACDValue{Histogram: 0.5},
		Trend: domain.TrendNeutral,
	}

	sig := Generate(ind, 100)
	if sig.Action != domain.SignalHold {
		t.Fatalf("expected hold on tie, got %s", sig.Action)
	}
	if sig.Confidence != 0 {
		t.Fatalf("expected confidence 0, got %d", sig.Confidence)
	}
	if len(sig.Reasons) != 2 {
		t.Fatalf("reason count should match votes cast, got %d", len(sig.Reasons))
	}
}

func TestGenerateReasonCountMatchesVotes(t *testing.T) {
	cases := []struct {
		ind   domain.TechnicalIndicators
		price float64
		votes int
	}{
		{domain.TechnicalIndicators{RSI: 50, Trend: domain.TrendNeutral, MACD: domain.MACDValue{Histogram: 1}}, 100, 1},
		{domain.TechnicalIndicators{RSI: 20, Trend: domain.TrendNeutral, MACD: domain.MACDValue{Histogram: 1}}, 100, 2},
		{domain.TechnicalIndicators{RSI: 20, Trend: domain.TrendBullish, MACD: domain.MACDValue{Histogram: 1}, SMA20: 90, SMA50: 80}, 100, 4},
	}
	for i, tc := range cases {
		sig := Generate(tc.ind, tc.price)
		if len(sig.Reasons) != tc.votes {
			t.Fatalf("case %d: expected %d reasons, got %d", i, tc.votes, len(sig.Reasons))
		}
	}
}
