// Package ai annotates message text with LLM-derived metadata: a summary,
// a sentiment score, an urgency priority, and (for the most urgent
// messages) a suggested response.
//
// Every public operation is resilient: a provider failure degrades to a
// documented fallback value and is logged, never propagated. Ingestion must
// not abort because the AI provider is having a bad day.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/emirlan/inboxlm/internal/retry"
)

// Sentiment scale: 1 (very negative) to 5 (very positive).
const (
	SentimentMin     = 1
	SentimentMax     = 5
	SentimentNeutral = 3
)

// Priority scale: 1 (low urgency) to 3 (most urgent). PriorityMax gates the
// suggested-response call and urgency notifications.
const (
	PriorityMin = 1
	PriorityMax = 3
)

// Fallback strings returned when the provider cannot be reached or the
// input is empty.
const (
	SummaryEmptyFallback = "No text provided to summarize."
	SummaryErrorFallback = "Error generating summary."
	ResponseFallback     = "No suggested response available."
	DigestErrorFallback  = "Error generating digest."
)

// Annotator derives message annotations from a Generator. All operations
// return a usable value; none return an error.
type Annotator struct {
	gen    Generator
	policy retry.Policy
}

// NewAnnotator creates an annotator. Rate-limited provider calls retry up
// to maxAttempts times with exponential backoff starting at baseDelay; all
// other failures fall back immediately.
func NewAnnotator(gen Generator, maxAttempts int, baseDelay time.Duration) *Annotator {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Annotator{
		gen: gen,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			BaseDelay:   baseDelay,
			Retryable:   IsRateLimit,
		},
	}
}

// Summarize returns a concise summary of text.
func (a *Annotator) Summarize(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return SummaryEmptyFallback
	}

	result, err := a.generate(ctx, fmt.Sprintf("Summarize this text concisely: %s", text))
	if err != nil {
		slog.Warn("Summarization failed, using fallback", "error", err)
		return SummaryErrorFallback
	}
	return strings.TrimSpace(result)
}

// Sentiment scores text from 1 (very negative) to 5 (very positive).
// Empty input and provider failures score neutral.
func (a *Annotator) Sentiment(ctx context.Context, text string) int {
	if strings.TrimSpace(text) == "" {
		return SentimentNeutral
	}

	prompt := fmt.Sprintf(
		"Analyze the sentiment of this text and return only a number from %d-%d (%d being very negative, %d being very positive): %s",
		SentimentMin, SentimentMax, SentimentMin, SentimentMax, text,
	)
	result, err := a.generate(ctx, prompt)
	if err != nil {
		slog.Warn("Sentiment analysis failed, using neutral", "error", err)
		return SentimentNeutral
	}
	return parseScale(result, SentimentNeutral, SentimentMin, SentimentMax)
}

// Priority rates the urgency of text from 1 (low) to 3 (most urgent).
// Empty input and provider failures rate lowest urgency.
func (a *Annotator) Priority(ctx context.Context, text string) int {
	if strings.TrimSpace(text) == "" {
		return PriorityMin
	}

	prompt := fmt.Sprintf(
		"Rate the urgency of this message from %d to %d (%d being low, %d being most urgent). Return only the number: %s",
		PriorityMin, PriorityMax, PriorityMin, PriorityMax, text,
	)
	result, err := a.generate(ctx, prompt)
	if err != nil {
		slog.Warn("Priority detection failed, using lowest", "error", err)
		return PriorityMin
	}
	return parseScale(result, PriorityMin, PriorityMin, PriorityMax)
}

// SuggestResponse drafts a short reply to text. Callers invoke it only for
// messages rated PriorityMax.
func (a *Annotator) SuggestResponse(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ResponseFallback
	}

	prompt := fmt.Sprintf("Write a brief, professional response to this urgent message: %s", text)
	result, err := a.generate(ctx, prompt)
	if err != nil {
		slog.Warn("Response suggestion failed, using fallback", "error", err)
		return ResponseFallback
	}
	return strings.TrimSpace(result)
}

// Digest summarizes a batch of joined message bodies into one overview.
// Callers are expected to handle the empty-batch case themselves.
func (a *Annotator) Digest(ctx context.Context, joined string) string {
	prompt := fmt.Sprintf(
		"Create a short digest of the following messages, grouping related topics and calling out anything urgent:\n\n%s",
		joined,
	)
	result, err := a.generate(ctx, prompt)
	if err != nil {
		slog.Warn("Digest generation failed, using fallback", "error", err)
		return DigestErrorFallback
	}
	return strings.TrimSpace(result)
}

func (a *Annotator) generate(ctx context.Context, prompt string) (string, error) {
	var result string
	err := a.policy.Do(ctx, func() error {
		var genErr error
		result, genErr = a.gen.Generate(ctx, prompt)
		return genErr
	})
	return result, err
}

// parseScale extracts the first integer from a model response and clamps it
// to [min, max]. Anything unparseable yields the fallback.
func parseScale(s string, fallback, min, max int) int {
	s = strings.TrimSpace(s)

	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return fallback
	}

	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return fallback
	}

	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
