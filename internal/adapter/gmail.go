package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/emirlan/inboxlm/internal/config"
	"github.com/emirlan/inboxlm/internal/googleauth"
	"github.com/emirlan/inboxlm/internal/message"
)

// GmailAdapter fetches recent inbox messages via the Gmail API.
type GmailAdapter struct {
	cfg     config.GmailConfig
	service *gmail.Service
}

// NewGmailAdapter creates a Gmail adapter. The API client is initialized
// lazily on the first fetch so a missing token does not block startup.
func NewGmailAdapter(cfg config.GmailConfig) *GmailAdapter {
	return &GmailAdapter{cfg: cfg}
}

func (g *GmailAdapter) Platform() message.Platform {
	return message.PlatformGmail
}

// Fetch returns the current batch of inbox messages, or an empty batch if
// Gmail cannot be reached.
func (g *GmailAdapter) Fetch(ctx context.Context) []message.RawMessage {
	msgs, err := g.fetch(ctx)
	if err != nil {
		slog.Warn("Gmail fetch failed, returning empty batch", "error", err)
		return nil
	}
	return msgs
}

func (g *GmailAdapter) fetch(ctx context.Context) ([]message.RawMessage, error) {
	if err := g.ensureService(ctx); err != nil {
		return nil, err
	}

	maxResults := g.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 25
	}

	list, err := g.service.Users.Messages.List("me").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var msgs []message.RawMessage
	for _, ref := range list.Messages {
		raw, err := g.fetchOne(ctx, ref.Id)
		if err != nil {
			slog.Warn("Failed to fetch Gmail message", "message_id", ref.Id, "error", err)
			continue
		}
		if raw != nil {
			msgs = append(msgs, *raw)
		}
	}

	return msgs, nil
}

func (g *GmailAdapter) fetchOne(ctx context.Context, id string) (*message.RawMessage, error) {
	email, err := g.service.Users.Messages.Get("me", id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return normalizeEmail(email), nil
}

// normalizeEmail maps an API message to the common shape. Sent mail is
// skipped, returning nil.
func normalizeEmail(email *gmail.Message) *message.RawMessage {
	for _, label := range email.LabelIds {
		if label == "SENT" {
			return nil
		}
	}

	var from, subject string
	if email.Payload != nil {
		for _, header := range email.Payload.Headers {
			switch header.Name {
			case "From":
				from = header.Value
			case "Subject":
				subject = header.Value
			}
		}
	}

	raw := message.NewRaw(message.PlatformGmail, email.Id, from, email.Snippet)
	raw.CreatedAt = time.UnixMilli(email.InternalDate)
	raw.Metadata["subject"] = subject
	raw.Metadata["from"] = from
	raw.Metadata["labels"] = fmt.Sprintf("%v", email.LabelIds)

	return &raw
}

func (g *GmailAdapter) ensureService(ctx context.Context) error {
	if g.service != nil {
		return nil
	}

	client, err := googleauth.Client(ctx, g.cfg.CredentialsPath, g.cfg.TokenPath, gmail.GmailReadonlyScope)
	if err != nil {
		return fmt.Errorf("failed to get Gmail OAuth2 client: %w", err)
	}

	g.service, err = gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return nil
}
