package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/emirlan/inboxlm/internal/config"
	"github.com/emirlan/inboxlm/internal/message"
)

// slackAPI is the slice of the Slack Web API the adapter uses; *slack.Client
// satisfies it.
type slackAPI interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// SlackAdapter fetches channel history and sends composed messages via the
// Slack Web API.
type SlackAdapter struct {
	api       slackAPI
	channelID string
	limit     int

	// cachemu guards userCache; Fetch runs concurrently, one per request.
	cachemu   sync.Mutex
	userCache map[string]string
}

// NewSlackAdapter creates a Slack adapter for the configured channel.
func NewSlackAdapter(cfg config.SlackConfig) *SlackAdapter {
	return &SlackAdapter{
		api:       slack.New(cfg.BotToken),
		channelID: cfg.ChannelID,
		limit:     100,
		userCache: make(map[string]string),
	}
}

func (s *SlackAdapter) Platform() message.Platform {
	return message.PlatformSlack
}

// Fetch returns the channel's recent history, or an empty batch if Slack
// cannot be reached.
func (s *SlackAdapter) Fetch(ctx context.Context) []message.RawMessage {
	msgs, err := s.fetch(ctx)
	if err != nil {
		slog.Warn("Slack fetch failed, returning empty batch", "error", err)
		return nil
	}
	return msgs
}

func (s *SlackAdapter) fetch(ctx context.Context) ([]message.RawMessage, error) {
	resp, err := s.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: s.channelID,
		Limit:     s.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel history: %w", err)
	}

	var msgs []message.RawMessage
	for _, m := range resp.Messages {
		// Skip bot chatter and message edits.
		if m.BotID != "" || m.SubType != "" {
			continue
		}
		if m.Text == "" {
			continue
		}

		sender := s.resolveUser(ctx, m.User)
		raw := message.NewRaw(message.PlatformSlack, m.Timestamp, sender, m.Text)
		raw.CreatedAt = slackTimestamp(m.Timestamp)
		raw.Metadata["user"] = m.User
		raw.Metadata["channel"] = s.channelID
		if m.ThreadTimestamp != "" {
			raw.Metadata["thread_ts"] = m.ThreadTimestamp
		}
		msgs = append(msgs, raw)
	}

	return msgs, nil
}

// Send posts text to the configured channel.
func (s *SlackAdapter) Send(ctx context.Context, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	return nil
}

func (s *SlackAdapter) resolveUser(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}

	s.cachemu.Lock()
	name, ok := s.userCache[userID]
	s.cachemu.Unlock()
	if ok {
		return name
	}

	user, err := s.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		slog.Warn("Failed to resolve Slack user", "user_id", userID, "error", err)
		return userID
	}

	name = user.RealName
	if name == "" {
		name = user.Name
	}

	s.cachemu.Lock()
	s.userCache[userID] = name
	s.cachemu.Unlock()
	return name
}

// slackTimestamp converts a Slack ts value ("1645567890.123456") to a time.
func slackTimestamp(ts string) time.Time {
	secs, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(n, 0)
}
