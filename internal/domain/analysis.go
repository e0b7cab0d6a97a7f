package domain

import "time"

type TrendDirection string

const (
	TrendBullish TrendDirection = "bullish"
	TrendBearish TrendDirection = "bearish"
	TrendNeutral TrendDirection = "neutral"
)

type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// TechnicalIndicators is a derived snapshot, always recomputed from a price
// series and never persisted as source of truth.
type TechnicalIndicators struct {
	SMA20      float64        `json:"sma20"`
	SMA50      float64        `json:"sma50"`
	RSI        float64        `json:"rsi"`
	MACD       MACDValue      `json:"macd"`
	Volatility float64        `json:"volatility"`
	Trend      TrendDirection `json:"trend"`
}

type SignalAction string

const (
	SignalBuy  SignalAction = "buy"
	SignalSell SignalAction = "sell"
	SignalHold SignalAction = "hold"
)

type Signal struct {
	Action     SignalAction `json:"signal"`
	Confidence int          `json:"confidence"`
	Reasons    []string     `json:"reasons"`
}

type AlertKind string

const (
	AlertPriceAbove      AlertKind = "price_above"
	AlertPriceBelow      AlertKind = "price_below"
	AlertPercentChange   AlertKind = "percent_change"
	AlertTechnicalSignal AlertKind = "technical_signal"
)

// Technical conditions for AlertTechnicalSignal alerts.
const (
	ConditionBuy           = "buy"
	ConditionSell          = "sell"
	ConditionRSIOversold   = "rsi_oversold"
	ConditionRSIOverbought = "rsi_overbought"
)

// Alert is a persisted user rule. Once triggered it is terminal: the
// evaluator never considers it again, even if the condition re-occurs.
type Alert struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	CoinID       string     `json:"coin_id"`
	Kind         AlertKind  `json:"kind"`
	Condition    string     `json:"condition,omitempty"`
	TargetValue  float64    `json:"target_value"`
	IsActive     bool       `json:"is_active"`
	IsTriggered  bool       `json:"is_triggered"`
	TriggeredAt  *time.Time `json:"triggered_at,omitempty"`
	TriggerPrice *float64   `json:"trigger_price,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (k AlertKind) IsValid() bool {
	switch k {
	case AlertPriceAbove, AlertPriceBelow, AlertPercentChange, AlertTechnicalSignal:
		return true
	}
	return false
}

type BacktestTrade struct {
	Action     SignalAction `json:"action"`
	Index      int          `json:"index"`
	Timestamp  int64        `json:"timestamp"`
	Price      float64      `json:"price"`
	Confidence int          `json:"confidence"`
	ProfitPct  float64      `json:"profit_pct,omitempty"`
}

// BacktestResult is immutable once created; Trades holds only the most
// recent portion of the full history.
type BacktestResult struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"user_id"`
	CoinID         string          `json:"coin_id"`
	Days           int             `json:"days"`
	InitialCapital float64         `json:"initial_capital"`
	MinConfidence  int             `json:"min_confidence"`
	FinalCapital   float64         `json:"final_capital"`
	TotalReturnPct float64         `json:"total_return_pct"`
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	WinRate        float64         `json:"win_rate"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	Sharpe         float64         `json:"sharpe"`
	Trades         []BacktestTrade `json:"trades"`
	Commentary     string          `json:"commentary,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
