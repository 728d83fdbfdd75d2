package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/emirlan/inboxlm/internal/config"
	"github.com/emirlan/inboxlm/internal/message"

	_ "github.com/mattn/go-sqlite3"
)

// maxBuffered caps the incoming-event buffer; beyond it the oldest
// messages are dropped.
const maxBuffered = 500

// WhatsAppAdapter receives messages over a live WhatsApp connection and
// buffers them so Fetch can hand out a finite batch per call. WhatsApp has
// no history-pull API for linked devices, so the batch is whatever arrived
// since the previous fetch.
type WhatsAppAdapter struct {
	cfg    config.WhatsAppConfig
	client *whatsmeow.Client

	mu      sync.Mutex
	pending []message.RawMessage
}

// NewWhatsAppAdapter creates a WhatsApp adapter. Call Connect before the
// first fetch.
func NewWhatsAppAdapter(cfg config.WhatsAppConfig) *WhatsAppAdapter {
	return &WhatsAppAdapter{cfg: cfg}
}

func (w *WhatsAppAdapter) Platform() message.Platform {
	return message.PlatformWhatsApp
}

// Connect opens the session database, connects the client, and starts
// buffering incoming messages. On a fresh install it prints a QR code to
// link the device and blocks until linking completes.
func (w *WhatsAppAdapter) Connect(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.StoragePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	dbPath := fmt.Sprintf("file:%s/whatsapp.db?_foreign_keys=on", w.cfg.StoragePath)
	container, err := sqlstore.New(ctx, "sqlite3", dbPath, waLog.Noop)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	w.client = whatsmeow.NewClient(device, waLog.Noop)
	w.client.AddEventHandler(w.handleEvent)

	if w.client.Store.ID == nil {
		// Not linked yet; run the QR flow.
		qrChan, _ := w.client.GetQRChannel(ctx)
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				slog.Info("WhatsApp QR code (scan with phone)", "qr", evt.Code)
				fmt.Println("WhatsApp QR Code:")
				fmt.Println(evt.Code)
			} else {
				slog.Info("WhatsApp login event", "event", evt.Event)
			}
		}
	} else {
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
	}

	slog.Info("WhatsApp adapter connected")
	return nil
}

// Disconnect closes the live connection.
func (w *WhatsAppAdapter) Disconnect() {
	if w.client != nil {
		w.client.Disconnect()
	}
}

// Fetch drains the buffer of messages received since the previous call.
func (w *WhatsAppAdapter) Fetch(_ context.Context) []message.RawMessage {
	w.mu.Lock()
	defer w.mu.Unlock()

	batch := w.pending
	w.pending = nil
	return batch
}

func (w *WhatsAppAdapter) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		w.buffer(v)
	}
}

func (w *WhatsAppAdapter) buffer(evt *events.Message) {
	var text string
	if msg := evt.Message; msg != nil {
		text = extractWhatsAppText(msg)
	}
	if text == "" {
		return
	}

	sender := evt.Info.Sender.User
	if evt.Info.PushName != "" {
		sender = evt.Info.PushName
	}

	raw := message.NewRaw(message.PlatformWhatsApp, evt.Info.ID, sender, text)
	raw.CreatedAt = evt.Info.Timestamp
	raw.Metadata["phone"] = evt.Info.Sender.User
	raw.Metadata["chat_id"] = evt.Info.Chat.String()
	raw.Metadata["is_group"] = fmt.Sprintf("%v", evt.Info.IsGroup)

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) >= maxBuffered {
		w.pending = w.pending[1:]
	}
	w.pending = append(w.pending, raw)
}

func extractWhatsAppText(msg *waE2E.Message) string {
	if msg.Conversation != nil {
		return *msg.Conversation
	}
	if msg.ExtendedTextMessage != nil && msg.ExtendedTextMessage.Text != nil {
		return *msg.ExtendedTextMessage.Text
	}
	return ""
}
