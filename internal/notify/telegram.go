package notify

import (
	"fmt"
	"strings"

	"mechconnect/internal/domain"
	"mechconnect/internal/events"
	"mechconnect/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier forwards lifecycle events to a Telegram chat so the
// mechanic gets a push-style notification for every confirmed action and
// every failed one.
type TelegramNotifier struct {
	sender domain.TelegramSender
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(sender domain.TelegramSender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID, logger: logger}
}

// Subscribe attaches the notifier to every lifecycle event type.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventRequestAccepted,
		events.EventRequestDeclined,
		events.EventRequestCancelled,
		events.EventQuoteSubmitted,
		events.EventBookingCancelled,
		events.EventBookingCompleted,
		events.EventBackjobReschedule,
		events.EventActionFailed,
	} {
		bus.Subscribe(eventType, n.handle)
	}
}

func (n *TelegramNotifier) handle(event *events.Event) error {
	payload, err := events.DecodeJobPayload(event)
	if err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event payload error")
		return err
	}

	text := formatMessage(event.Type, payload)
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("telegram send error")
		return err
	}
	return nil
}

func formatMessage(eventType string, p events.JobEventPayload) string {
	label := "Request"
	if p.JobKind == models.JobKindBooking {
		label = "Booking"
	}
	ref := fmt.Sprintf("%s #%d", label, p.JobID)
	if p.Summary != "" {
		ref = fmt.Sprintf("%s (%s)", ref, p.Summary)
	}

	var b strings.Builder
	switch eventType {
	case events.EventRequestAccepted:
		fmt.Fprintf(&b, "✅ %s accepted", ref)
	case events.EventRequestDeclined:
		fmt.Fprintf(&b, "🚫 %s declined", ref)
	case events.EventRequestCancelled:
		fmt.Fprintf(&b, "❌ %s cancelled", ref)
		if p.Message != "" {
			fmt.Fprintf(&b, "\nReason: %s", p.Message)
		}
	case events.EventQuoteSubmitted:
		fmt.Fprintf(&b, "💰 Quote sent for %s", ref)
		if p.QuoteTotal != "" {
			fmt.Fprintf(&b, "\nTotal: %s", p.QuoteTotal)
		}
	case events.EventBookingCancelled:
		fmt.Fprintf(&b, "❌ %s cancelled", ref)
		if p.Message != "" {
			fmt.Fprintf(&b, "\nReason: %s", p.Message)
		}
	case events.EventBookingCompleted:
		fmt.Fprintf(&b, "🎉 %s completed", ref)
		if p.Amount != "" {
			fmt.Fprintf(&b, "\nCollected: %s", p.Amount)
		}
	case events.EventBackjobReschedule:
		fmt.Fprintf(&b, "🔁 Reschedule requested for %s", ref)
	case events.EventActionFailed:
		fmt.Fprintf(&b, "⚠️ Action %q failed for %s", p.Action, ref)
		if p.Message != "" {
			fmt.Fprintf(&b, "\n%s", p.Message)
		}
	default:
		return ""
	}
	return b.String()
}
