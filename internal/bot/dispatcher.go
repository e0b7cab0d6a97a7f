package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/wasiiff/blokk-lens/internal/alert"
	"github.com/wasiiff/blokk-lens/internal/domain"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AlertDispatcher broadcasts fired alerts to subscribed chats. It implements
// the evaluator's Notifier interface.
type AlertDispatcher struct {
	sender messageSender

	mu          sync.RWMutex
	subscribers map[int64]struct{}
}

func NewAlertDispatcher(sender messageSender) *AlertDispatcher {
	return &AlertDispatcher{
		sender:      sender,
		subscribers: make(map[int64]struct{}),
	}
}

func (d *AlertDispatcher) Subscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; exists {
		return false
	}
	d.subscribers[chatID] = struct{}{}
	return true
}

func (d *AlertDispatcher) Unsubscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.subscribers[chatID]; !exists {
		return false
	}
	delete(d.subscribers, chatID)
	return true
}

func (d *AlertDispatcher) IsSubscribed(chatID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.subscribers[chatID]
	return exists
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

func (d *AlertDispatcher) NotifyTriggers(ctx context.Context, triggers []alert.Trigger) {
	_ = ctx
	if d == nil || d.sender == nil || len(triggers) == 0 {
		return
	}

	chatIDs := d.snapshotSubscribers()
	if len(chatIDs) == 0 {
		return
	}

	msg := formatTriggerMessage(triggers)
	for _, chatID := range chatIDs {
		if _, err := d.sender.Send(&tele.Chat{ID: chatID}, msg); err != nil {
			log.Printf("alert broadcast to chat %d: %v", chatID, err)
		}
	}
}

func (d *AlertDispatcher) snapshotSubscribers() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	chatIDs := make([]int64, 0, len(d.subscribers))
	for chatID := range d.subscribers {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })
	return chatIDs
}

func parseAlertMode(args []string) (string, error) {
	if len(args) == 0 {
		return "status", nil
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "on":
		return "on", nil
	case "off":
		return "off", nil
	case "status":
		return "status", nil
	default:
		return "", fmt.Errorf("invalid mode")
	}
}

func formatTriggerMessage(triggers []alert.Trigger) string {
	lines := make([]string, 0, len(triggers)+1)
	lines = append(lines, "Alert triggered:")
	for _, tr := range triggers {
		lines = append(lines, formatTrigger(tr))
	}
	return strings.Join(lines, "\n")
}

func formatTrigger(tr alert.Trigger) string {
	a := tr.Alert
	var condition string
	switch a.Kind {
	case domain.AlertPriceAbove:
		condition = fmt.Sprintf("price above $%.2f", a.TargetValue)
	case domain.AlertPriceBelow:
		condition = fmt.Sprintf("price below $%.2f", a.TargetValue)
	case domain.AlertPercentChange:
		condition = fmt.Sprintf("24h change beyond %.1f%%", a.TargetValue)
	case domain.AlertTechnicalSignal:
		condition = a.Condition
	}
	return fmt.Sprintf(
		"#%d %s %s at $%.2f (%s)",
		a.ID, a.CoinID, condition, tr.Price, tr.TriggeredAt.UTC().Format(time.RFC822),
	)
}
