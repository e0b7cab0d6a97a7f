package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/wasiiff/blokk-lens/internal/alert"
	"github.com/wasiiff/blokk-lens/internal/domain"
)

func TestParseAlertMode(t *testing.T) {
	mode, err := parseAlertMode(nil)
	if err != nil || mode != "status" {
		t.Fatalf("expected default status mode, got mode=%q err=%v", mode, err)
	}

	mode, err = parseAlertMode([]string{"on"})
	if err != nil || mode != "on" {
		t.Fatalf("expected on mode, got mode=%q err=%v", mode, err)
	}

	mode, err = parseAlertMode([]string{"OFF"})
	if err != nil || mode != "off" {
		t.Fatalf("expected off mode, got mode=%q err=%v", mode, err)
	}

	if _, err := parseAlertMode([]string{"nope"}); err == nil {
		t.Fatal("expected invalid mode error")
	}
}

func TestAlertDispatcherNotifyTriggers(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender)

	if !dispatcher.Subscribe(10) {
		t.Fatal("expected initial subscribe to return true")
	}
	if !dispatcher.Subscribe(20) {
		t.Fatal("expected initial subscribe to return true")
	}
	if dispatcher.Subscribe(10) {
		t.Fatal("expected duplicate subscribe to return false")
	}

	triggers := []alert.Trigger{{
		Alert: domain.Alert{
			ID:          7,
			CoinID:      "bitcoin",
			Kind:        domain.AlertPriceAbove,
			TargetValue: 45000,
		},
		Price:       50000,
		TriggeredAt: time.Unix(0, 0).UTC(),
	}}

	dispatcher.NotifyTriggers(context.Background(), triggers)
	if len(sender.messages[10]) != 1 || len(sender.messages[20]) != 1 {
		t.Fatalf("expected one message per subscriber, got %+v", sender.messages)
	}
	body := sender.messages[10][0]
	if !strings.Contains(body, "bitcoin") || !strings.Contains(body, "price above $45000.00") {
		t.Fatalf("unexpected alert body: %s", body)
	}
}

func TestAlertDispatcherUnsubscribe(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender)

	dispatcher.Subscribe(10)
	if !dispatcher.Unsubscribe(10) {
		t.Fatal("expected unsubscribe to return true")
	}
	if dispatcher.Unsubscribe(10) {
		t.Fatal("expected second unsubscribe to return false")
	}

	dispatcher.NotifyTriggers(context.Background(), []alert.Trigger{{
		Alert: domain.Alert{ID: 1, CoinID: "ethereum", Kind: domain.AlertPriceBelow, TargetValue: 2000},
		Price: 1900,
	}})
	if len(sender.messages) != 0 {
		t.Fatalf("expected zero outgoing messages, got %+v", sender.messages)
	}
}

func TestAlertDispatcherNilIsSafe(t *testing.T) {
	var dispatcher *AlertDispatcher
	dispatcher.NotifyTriggers(context.Background(), []alert.Trigger{{
		Alert: domain.Alert{ID: 1, CoinID: "bitcoin"},
	}})
}

func TestFormatTriggerTechnicalCondition(t *testing.T) {
	body := formatTrigger(alert.Trigger{
		Alert: domain.Alert{
			ID:        3,
			CoinID:    "solana",
			Kind:      domain.AlertTechnicalSignal,
			Condition: domain.ConditionRSIOversold,
		},
		Price:       95.5,
		TriggeredAt: time.Unix(0, 0),
	})
	if !strings.Contains(body, "rsi_oversold") || !strings.Contains(body, "$95.50") {
		t.Fatalf("unexpected trigger body: %s", body)
	}
}

type fakeSender struct {
	messages map[int64][]string
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.messages == nil {
		f.messages = make(map[int64][]string)
	}

	chat, ok := to.(*tele.Chat)
	if !ok {
		return nil, fmt.Errorf("unexpected recipient type %T", to)
	}
	f.messages[chat.ID] = append(f.messages[chat.ID], fmt.Sprint(what))
	return &tele.Message{}, nil
}
