// Package digest produces a single AI summary over a time window of stored
// messages.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emirlan/inboxlm/internal/store"
)

// EmptyWindowPlaceholder is returned when the window holds no messages;
// the AI provider is never called in that case.
const EmptyWindowPlaceholder = "No messages to summarize for this period."

// Summarizer is the slice of the AI annotator the aggregator needs.
// *ai.Annotator satisfies it.
type Summarizer interface {
	Digest(ctx context.Context, joined string) string
}

// Aggregator builds digests from persisted message history.
type Aggregator struct {
	store      *store.Store
	summarizer Summarizer
}

// New creates a digest aggregator.
func New(st *store.Store, summarizer Summarizer) *Aggregator {
	return &Aggregator{store: st, summarizer: summarizer}
}

// Build summarizes every message with created_at in [start, end], both
// ends inclusive, concatenated in stored order.
func (a *Aggregator) Build(ctx context.Context, start, end time.Time) (string, error) {
	msgs, err := a.store.MessagesByDateRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to load digest window: %w", err)
	}

	if len(msgs) == 0 {
		return EmptyWindowPlaceholder, nil
	}

	contents := make([]string, 0, len(msgs))
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}

	return a.summarizer.Digest(ctx, strings.Join(contents, "\n\n")), nil
}

// BuildDaily summarizes the trailing 24-hour window ending now.
func (a *Aggregator) BuildDaily(ctx context.Context) (string, error) {
	now := time.Now()
	return a.Build(ctx, now.Add(-24*time.Hour), now)
}
