package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/wasiiff/blokk-lens/internal/domain"
	"github.com/wasiiff/blokk-lens/internal/service"
)

type PriceQuerier interface {
	GetPrice(ctx context.Context, coinID string) (*domain.Quote, error)
	GetTrending(ctx context.Context) ([]domain.TrendingCoin, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, coinID string) (*service.Analysis, error)
}

// StartTelegramBot wires the command handlers and begins long polling. A
// missing token disables the bot without failing startup.
func StartTelegramBot(token string, market PriceQuerier, analyzer Analyzer) *AlertDispatcher {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/price", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /price bitcoin")
		}
		coinID := strings.ToLower(args[0])
		quote, err := market.GetPrice(context.Background(), coinID)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching price for %s: %v", coinID, err))
		}
		msg := fmt.Sprintf(
			"%s\nPrice: $%.2f\n24h Change: %.2f%%\n24h Volume: $%.0f\nSource: %s",
			coinID, quote.PriceUSD, quote.Change24hPct, quote.Volume24h, quote.Source,
		)
		return c.Send(msg)
	})

	b.Handle("/signal", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /signal bitcoin")
		}
		coinID := strings.ToLower(args[0])
		analysis, err := analyzer.Analyze(context.Background(), coinID)
		if err != nil {
			return c.Send(fmt.Sprintf("Error analyzing %s: %v", coinID, err))
		}
		return c.Send(formatAnalysis(analysis))
	})

	b.Handle("/trending", func(c tele.Context) error {
		trending, err := market.GetTrending(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching trending coins: %v", err))
		}
		lines := make([]string, 0, len(trending)+1)
		lines = append(lines, "Trending now:")
		for _, tc := range trending {
			lines = append(lines, fmt.Sprintf("%s (%s)", tc.Name, strings.ToUpper(tc.Symbol)))
		}
		return c.Send(strings.Join(lines, "\n"))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("Alert notifications enabled for this chat.")
			}
			return c.Send("Alert notifications are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Alert notifications disabled for this chat.")
			}
			return c.Send("Alert notifications are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	log.Println("Telegram bot started")
	go b.Start()
	return alerts
}

func formatAnalysis(a *service.Analysis) string {
	ind := a.Indicators
	return fmt.Sprintf(
		"%s at $%.2f\nSignal: %s (%d%% confidence)\nRSI: %.1f | Trend: %s\nSMA20: %.2f | SMA50: %.2f\nReasons: %s",
		a.CoinID, a.Price,
		strings.ToUpper(string(a.Signal.Action)), a.Signal.Confidence,
		ind.RSI, ind.Trend,
		ind.SMA20, ind.SMA50,
		strings.Join(a.Signal.Reasons, "; "),
	)
}
