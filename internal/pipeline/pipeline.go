// Package pipeline orchestrates message ingestion: fetch a batch from a
// platform adapter, annotate each message, and persist the merged record.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emirlan/inboxlm/internal/adapter"
	"github.com/emirlan/inboxlm/internal/ai"
	"github.com/emirlan/inboxlm/internal/message"
	"github.com/emirlan/inboxlm/internal/notifier"
	"github.com/emirlan/inboxlm/internal/store"
)

// SenderSelf marks a message composed by the operator; such messages skip
// annotation entirely.
const SenderSelf = "self"

// Annotator is the slice of the AI annotator the pipeline needs.
// *ai.Annotator satisfies it.
type Annotator interface {
	Summarize(ctx context.Context, text string) string
	Sentiment(ctx context.Context, text string) int
	Priority(ctx context.Context, text string) int
	SuggestResponse(ctx context.Context, text string) string
}

// Deps collects the pipeline's collaborators.
type Deps struct {
	Store     *store.Store
	Annotator Annotator
	Adapters  []adapter.Adapter
	// SlackSender forwards composed messages to the live channel. Optional.
	SlackSender adapter.Sender
	// Notifier receives top-priority messages as they are ingested. Optional.
	Notifier notifier.Notifier
}

// Pipeline runs ingestion for all registered platforms.
type Pipeline struct {
	store     *store.Store
	annotator Annotator
	adapters  map[message.Platform]adapter.Adapter
	sender    adapter.Sender
	notifier  notifier.Notifier
}

// New creates a pipeline from its collaborators.
func New(deps Deps) *Pipeline {
	adapters := make(map[message.Platform]adapter.Adapter, len(deps.Adapters))
	for _, a := range deps.Adapters {
		adapters[a.Platform()] = a
	}
	return &Pipeline{
		store:     deps.Store,
		annotator: deps.Annotator,
		adapters:  adapters,
		sender:    deps.SlackSender,
		notifier:  deps.Notifier,
	}
}

// Ingest fetches the platform's current batch, annotates and persists each
// message, and returns the platform's full stored history including prior
// runs. Messages already stored under the same external id are not
// duplicated. A platform with no configured adapter simply returns the
// stored history.
func (p *Pipeline) Ingest(ctx context.Context, platform message.Platform) ([]store.Message, error) {
	if a, ok := p.adapters[platform]; ok {
		for _, raw := range a.Fetch(ctx) {
			if err := p.ingestOne(ctx, raw); err != nil {
				return nil, err
			}
		}
	} else {
		slog.Debug("No adapter configured, returning stored history only", "platform", platform)
	}

	return p.store.MessagesByPlatform(ctx, platform)
}

func (p *Pipeline) ingestOne(ctx context.Context, raw message.RawMessage) error {
	m := &store.Message{
		Platform:   raw.Platform,
		ExternalID: raw.ExternalID,
		Sender:     raw.Sender,
		Content:    raw.Content,
		Metadata:   store.JSONMap(raw.Metadata),
		CreatedAt:  raw.CreatedAt,
	}
	p.annotate(ctx, m)

	created, err := p.store.CreateMessage(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to persist %s message %s: %w", m.Platform, m.ExternalID, err)
	}

	if created {
		p.maybeNotify(m)
	}
	return nil
}

// annotate fills in summary, sentiment, and priority concurrently, then a
// suggested response for the most urgent messages only. Annotation
// never fails; the annotator degrades to fallback values internally.
func (p *Pipeline) annotate(ctx context.Context, m *store.Message) {
	var (
		summary   string
		sentiment int
		priority  int
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		summary = p.annotator.Summarize(ctx, m.Content)
	}()
	go func() {
		defer wg.Done()
		sentiment = p.annotator.Sentiment(ctx, m.Content)
	}()
	go func() {
		defer wg.Done()
		priority = p.annotator.Priority(ctx, m.Content)
	}()
	wg.Wait()

	m.Summary = &summary
	m.Sentiment = &sentiment
	m.Priority = &priority
	m.Processed = true

	if priority == ai.PriorityMax {
		if m.Metadata == nil {
			m.Metadata = store.JSONMap{}
		}
		m.Metadata["suggestedResponse"] = p.annotator.SuggestResponse(ctx, m.Content)
	}
}

// Compose handles an operator-submitted Slack message. A sender of "self"
// skips annotation and stores the record with null annotation fields;
// anything else runs the full annotation path. Either way the content is
// forwarded to the live Slack channel after the record is stored.
func (p *Pipeline) Compose(ctx context.Context, content, sender string) (*store.Message, error) {
	m := &store.Message{
		Platform:   message.PlatformSlack,
		ExternalID: uuid.NewString(),
		Sender:     sender,
		Content:    content,
		Metadata:   store.JSONMap{},
		CreatedAt:  time.Now(),
	}

	if sender != SenderSelf {
		p.annotate(ctx, m)
	}

	created, err := p.store.CreateMessage(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("failed to persist composed message: %w", err)
	}
	if created {
		p.maybeNotify(m)
	}

	if p.sender != nil {
		if err := p.sender.Send(ctx, content); err != nil {
			return nil, fmt.Errorf("failed to forward message to slack: %w", err)
		}
	}

	return m, nil
}

func (p *Pipeline) maybeNotify(m *store.Message) {
	if p.notifier == nil || m.Priority == nil || *m.Priority != ai.PriorityMax {
		return
	}
	if err := p.notifier.Notify(m); err != nil {
		slog.Error("Failed to send urgency notification",
			"platform", m.Platform,
			"error", err)
	}
}
