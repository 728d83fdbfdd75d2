package notifier

import (
	"fmt"
	"log/slog"

	"github.com/gregdel/pushover"

	"github.com/emirlan/inboxlm/internal/config"
	"github.com/emirlan/inboxlm/internal/message"
	"github.com/emirlan/inboxlm/internal/store"
)

// Notifier pushes an alert for a top-priority inbox message.
type Notifier interface {
	Notify(msg *store.Message) error
}

// PushoverNotifier sends alerts via Pushover.
type PushoverNotifier struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
}

// NewPushoverNotifier creates a new Pushover notifier.
func NewPushoverNotifier(cfg config.PushoverConfig) *PushoverNotifier {
	return &PushoverNotifier{
		app:       pushover.New(cfg.AppToken),
		recipient: pushover.NewRecipient(cfg.UserToken),
	}
}

// Notify pushes a high-priority notification for an urgent message. The
// body prefers the AI summary over the raw content.
func (p *PushoverNotifier) Notify(msg *store.Message) error {
	notification := &pushover.Message{
		Title:    formatTitle(msg),
		Message:  formatBody(msg),
		Priority: pushover.PriorityHigh,
		Sound:    pushover.SoundPersistent,
	}

	response, err := p.app.SendMessage(notification, p.recipient)
	if err != nil {
		return fmt.Errorf("failed to send pushover notification: %w", err)
	}

	slog.Info("Pushover notification sent",
		"platform", msg.Platform,
		"sender", msg.Sender,
		"status", response.Status)

	return nil
}

func formatTitle(msg *store.Message) string {
	return fmt.Sprintf("%s %s: %s", platformIcon(msg.Platform), msg.Platform, msg.Sender)
}

func formatBody(msg *store.Message) string {
	body := msg.Content
	if msg.Summary != nil && *msg.Summary != "" {
		body = *msg.Summary
	}
	return truncate(body, 500)
}

func platformIcon(p message.Platform) string {
	switch p {
	case message.PlatformWhatsApp:
		return "💬"
	case message.PlatformSlack:
		return "🔔"
	case message.PlatformGmail:
		return "📧"
	default:
		return "📨"
	}
}

// LogNotifier logs instead of sending; used in dry-run mode.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) Notify(msg *store.Message) error {
	slog.Info("DRY-RUN NOTIFICATION",
		"platform", msg.Platform,
		"sender", msg.Sender,
		"text", truncate(msg.Content, 100))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
