// Package adapter fetches batches of provider messages and normalizes them
// into the common RawMessage shape.
//
// Fetch never fails: on any upstream error (network, expired auth,
// malformed payload) an adapter logs a diagnostic and returns an empty
// batch. A broken provider degrades to an empty inbox, it does not take
// the request down. Adapters never write to storage; persistence belongs
// to the ingestion pipeline.
package adapter

import (
	"context"

	"github.com/emirlan/inboxlm/internal/message"
)

// Adapter produces a finite, non-restartable batch of provider messages
// per Fetch call.
type Adapter interface {
	// Platform identifies which provider this adapter serves.
	Platform() message.Platform

	// Fetch returns the current batch of normalized provider messages.
	// It returns an empty slice on upstream failure, never an error.
	Fetch(ctx context.Context) []message.RawMessage
}

// Sender forwards operator-composed text to a provider. Implemented by the
// Slack adapter for the compose endpoint.
type Sender interface {
	Send(ctx context.Context, text string) error
}
