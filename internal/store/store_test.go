package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emirlan/inboxlm/internal/message"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestCreateMessage_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &Message{
		Platform:   message.PlatformGmail,
		ExternalID: "msg-1",
		Content:    "original content",
		Summary:    strPtr("summary"),
		Sentiment:  intPtr(4),
		Priority:   intPtr(2),
		Processed:  true,
	}
	created, err := s.CreateMessage(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)

	dup := &Message{
		Platform:   message.PlatformGmail,
		ExternalID: "msg-1",
		Content:    "different content on re-ingest",
	}
	created, err = s.CreateMessage(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created, "same (platform, external_id) must not insert twice")
	assert.Equal(t, first.ID, dup.ID, "conflict returns the stored row")
	assert.Equal(t, "original content", dup.Content)

	msgs, err := s.MessagesByPlatform(ctx, message.PlatformGmail)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestCreateMessage_SameExternalIDDifferentPlatforms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []message.Platform{message.PlatformGmail, message.PlatformSlack} {
		created, err := s.CreateMessage(ctx, &Message{
			Platform:   p,
			ExternalID: "shared-id",
			Content:    "hello",
		})
		require.NoError(t, err)
		assert.True(t, created)
	}
}

func TestMessagesByPlatform_Ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "a", "c"} {
		_, err := s.CreateMessage(ctx, &Message{
			Platform:   message.PlatformSlack,
			ExternalID: id,
			Content:    id,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	msgs, err := s.MessagesByPlatform(ctx, message.PlatformSlack)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "b", msgs[0].ExternalID)
	assert.Equal(t, "a", msgs[1].ExternalID)
	assert.Equal(t, "c", msgs[2].ExternalID)
}

func TestMessagesByDateRange_InclusiveBounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(-time.Hour), // before window
		base,                 // window start
		base.Add(time.Hour),  // inside
		base.Add(2 * time.Hour), // window end
		base.Add(3 * time.Hour), // after window
	}
	for i, ts := range times {
		_, err := s.CreateMessage(ctx, &Message{
			Platform:   message.PlatformGmail,
			ExternalID: string(rune('a' + i)),
			Content:    "x",
			CreatedAt:  ts,
		})
		require.NoError(t, err)
	}

	msgs, err := s.MessagesByDateRange(ctx, base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, msgs, 3, "range is inclusive on both ends")
}

func TestMessageMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateMessage(ctx, &Message{
		Platform:   message.PlatformSlack,
		ExternalID: "meta-1",
		Content:    "hi",
		Metadata:   JSONMap{"channel": "C123", "suggestedResponse": "On it."},
	})
	require.NoError(t, err)

	msgs, err := s.MessagesByPlatform(ctx, message.PlatformSlack)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "C123", msgs[0].Metadata["channel"])
	assert.Equal(t, "On it.", msgs[0].Metadata["suggestedResponse"])
}

func TestAiModelCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &AiModel{Name: "gemini-pro", Endpoint: "https://example.com", APIKey: "k"}
	require.NoError(t, s.CreateAiModel(ctx, m))
	require.NotZero(t, m.ID)

	active, err := s.ActiveAiModels(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "models start inactive")

	require.NoError(t, s.SetAiModelActive(ctx, m.ID, true))
	active, err = s.ActiveAiModels(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].Active)

	got, err := s.AiModelByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "gemini-pro", got.Name)

	assert.ErrorIs(t, s.SetAiModelActive(ctx, 9999, true), ErrNotFound)
	_, err = s.AiModelByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribeReceivesRefreshOnInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	_, err := s.CreateMessage(ctx, &Message{
		Platform:   message.PlatformGmail,
		ExternalID: "sse-1",
		Content:    "hello",
	})
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, "refresh", ev)
	case <-time.After(time.Second):
		t.Fatal("expected a refresh event after insert")
	}

	// A duplicate insert must not fire another event.
	_, err = s.CreateMessage(ctx, &Message{
		Platform:   message.PlatformGmail,
		ExternalID: "sse-1",
		Content:    "hello again",
	})
	require.NoError(t, err)

	select {
	case <-ch:
		t.Fatal("duplicate insert must not notify subscribers")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msgs := []*Message{
		{Platform: message.PlatformGmail, ExternalID: "1", Content: "a", Processed: true, Priority: intPtr(3)},
		{Platform: message.PlatformGmail, ExternalID: "2", Content: "b", Processed: true, Priority: intPtr(1)},
		{Platform: message.PlatformSlack, ExternalID: "3", Content: "c"},
	}
	for _, m := range msgs {
		_, err := s.CreateMessage(ctx, m)
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalMessages)
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.UrgentMessages)
	assert.Equal(t, int64(2), stats.ByPlatform[message.PlatformGmail])
	assert.Equal(t, int64(1), stats.ByPlatform[message.PlatformSlack])
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &User{Username: "operator", Password: "hash"}))

	u, err := s.UserByUsername(ctx, "operator")
	require.NoError(t, err)
	assert.Equal(t, "operator", u.Username)

	_, err = s.UserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
