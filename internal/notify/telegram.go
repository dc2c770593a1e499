// Package notify pushes caregiver alerts to Telegram: threshold
// alarms for incoming readings and a digest when new advice arrives.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/punkyapp/diabetes-cockpit/internal/bus"
	"github.com/punkyapp/diabetes-cockpit/internal/config"
	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// Alert band constants
const (
	alertUrgentLow  = "urgent_low"
	alertLow        = "low"
	alertHigh       = "high"
	alertUrgentHigh = "urgent_high"
)

// TelegramNotifier listens on the event bus and messages the
// configured caregiver chat. All sends are best-effort.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	alerts config.AlertConfig
	logger *slog.Logger

	mu            sync.Mutex
	lastAlertTime map[string]time.Time

	subs []*bus.Subscription
}

// NewTelegramNotifier authorizes the bot and targets one chat.
func NewTelegramNotifier(token string, chatID int64, alerts config.AlertConfig, logger *slog.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Telegram notifier authorized", "account", api.Self.UserName)
	return &TelegramNotifier{
		api:           api,
		chatID:        chatID,
		alerts:        alerts,
		logger:        logger,
		lastAlertTime: make(map[string]time.Time),
	}, nil
}

// Attach subscribes the notifier to readings and advice events.
func (n *TelegramNotifier) Attach(b *bus.Bus) {
	n.subs = append(n.subs,
		b.Subscribe(bus.KindEntryAppended, func(event bus.Event) {
			if e, ok := event.(bus.EntryAppended); ok {
				n.checkAndAlert(e.Entry)
			}
		}),
		b.Subscribe(bus.KindAdviceReady, func(event bus.Event) {
			if e, ok := event.(bus.AdviceReady); ok && e.Advice != nil {
				n.sendAdvice(e.Advice)
			}
		}),
	)
}

// Detach cancels all subscriptions; no events are delivered afterward.
func (n *TelegramNotifier) Detach() {
	for _, sub := range n.subs {
		sub.Cancel()
	}
	n.subs = nil
}

// checkAndAlert sends a threshold alarm for the reading, suppressing
// repeats inside the configured window per band.
func (n *TelegramNotifier) checkAndAlert(entry domain.GlucoseEntry) {
	if !entry.HasValue() {
		return
	}

	band := n.classify(*entry.SGV)
	if band == "" {
		return
	}

	n.mu.Lock()
	if last, ok := n.lastAlertTime[band]; ok {
		repeat := time.Duration(n.alerts.RepeatMinutes) * time.Minute
		if repeat > 0 && time.Since(last) < repeat {
			n.mu.Unlock()
			return
		}
	}
	n.lastAlertTime[band] = time.Now()
	n.mu.Unlock()

	n.send(formatAlert(band, entry))
}

func (n *TelegramNotifier) classify(value float64) string {
	switch {
	case value <= n.alerts.UrgentLow:
		return alertUrgentLow
	case value <= n.alerts.Low:
		return alertLow
	case value >= n.alerts.UrgentHigh:
		return alertUrgentHigh
	case value >= n.alerts.High:
		return alertHigh
	default:
		return ""
	}
}

func formatAlert(band string, entry domain.GlucoseEntry) string {
	value := fmt.Sprintf("%.0f mg/dl %s", *entry.SGV, entry.Trend)
	switch band {
	case alertUrgentLow:
		return "⚠️ DRINGEND: Blutzucker kritisch niedrig: " + value
	case alertLow:
		return "⬇️ Blutzucker niedrig: " + value
	case alertUrgentHigh:
		return "⚠️ DRINGEND: Blutzucker kritisch hoch: " + value
	default:
		return "⬆️ Blutzucker hoch: " + value
	}
}

// sendAdvice forwards the suggestion and lists the recommended
// changes the way the cockpit history shows them.
func (n *TelegramNotifier) sendAdvice(advice *domain.Advice) {
	var sb strings.Builder
	sb.WriteString("💡 Therapie-Empfehlung\n")
	sb.WriteString(advice.Suggestion)
	for _, item := range advice.Recommendations {
		fmt.Fprintf(&sb, "\n• %s (%s)", item.Change, item.Reason)
	}
	n.send(sb.String())
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn("failed to send Telegram message", "error", err)
	}
}
