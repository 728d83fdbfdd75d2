package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emirlan/inboxlm/internal/adapter"
	"github.com/emirlan/inboxlm/internal/ai"
	"github.com/emirlan/inboxlm/internal/message"
	"github.com/emirlan/inboxlm/internal/store"
)

// fakeAdapter replays a scripted batch; failing mode yields an empty batch
// like a real adapter does on upstream errors.
type fakeAdapter struct {
	platform message.Platform
	batch    []message.RawMessage
	failing  bool
}

func (f *fakeAdapter) Platform() message.Platform { return f.platform }

func (f *fakeAdapter) Fetch(_ context.Context) []message.RawMessage {
	if f.failing {
		return nil
	}
	return f.batch
}

// fakeAnnotator derives deterministic annotations and counts invocations.
type fakeAnnotator struct {
	calls atomic.Int64
}

func (f *fakeAnnotator) Summarize(_ context.Context, text string) string {
	f.calls.Add(1)
	return "summary of: " + text
}

func (f *fakeAnnotator) Sentiment(_ context.Context, _ string) int {
	f.calls.Add(1)
	return 4
}

func (f *fakeAnnotator) Priority(_ context.Context, text string) int {
	f.calls.Add(1)
	if strings.Contains(text, "NOW") {
		return ai.PriorityMax
	}
	return ai.PriorityMin
}

func (f *fakeAnnotator) SuggestResponse(_ context.Context, _ string) string {
	f.calls.Add(1)
	return "On it, looking into this right away."
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

type fakeNotifier struct {
	notified []*store.Message
}

func (f *fakeNotifier) Notify(m *store.Message) error {
	f.notified = append(f.notified, m)
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func raw(p message.Platform, id, content string) message.RawMessage {
	r := message.NewRaw(p, id, "someone", content)
	return r
}

func TestIngest_AnnotatesAndPersists(t *testing.T) {
	st := newTestStore(t)
	ann := &fakeAnnotator{}
	pl := New(Deps{
		Store:     st,
		Annotator: ann,
		Adapters: []adapter.Adapter{&fakeAdapter{
			platform: message.PlatformGmail,
			batch: []message.RawMessage{
				raw(message.PlatformGmail, "g-1", "quarterly report attached"),
				raw(message.PlatformGmail, "g-2", "lunch on friday?"),
			},
		}},
	})

	msgs, err := pl.Ingest(context.Background(), message.PlatformGmail)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	for _, m := range msgs {
		assert.True(t, m.Processed)
		require.NotNil(t, m.Summary)
		assert.Contains(t, *m.Summary, "summary of:")
		require.NotNil(t, m.Sentiment)
		assert.Equal(t, 4, *m.Sentiment)
		require.NotNil(t, m.Priority)
		assert.Equal(t, ai.PriorityMin, *m.Priority)
		assert.NotContains(t, m.Metadata, "suggestedResponse",
			"low-priority messages get no suggested response")
	}
}

func TestIngest_ReingestIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	pl := New(Deps{
		Store:     st,
		Annotator: &fakeAnnotator{},
		Adapters: []adapter.Adapter{&fakeAdapter{
			platform: message.PlatformGmail,
			batch:    []message.RawMessage{raw(message.PlatformGmail, "g-1", "hello")},
		}},
	})

	first, err := pl.Ingest(context.Background(), message.PlatformGmail)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := pl.Ingest(context.Background(), message.PlatformGmail)
	require.NoError(t, err)
	assert.Len(t, second, 1, "re-ingesting the same external id must not duplicate")
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestIngest_AdapterFailureIsolated(t *testing.T) {
	st := newTestStore(t)
	pl := New(Deps{
		Store:     st,
		Annotator: &fakeAnnotator{},
		Adapters: []adapter.Adapter{
			&fakeAdapter{platform: message.PlatformGmail, failing: true},
			&fakeAdapter{
				platform: message.PlatformSlack,
				batch:    []message.RawMessage{raw(message.PlatformSlack, "s-1", "standup in 5")},
			},
		},
	})

	gmail, err := pl.Ingest(context.Background(), message.PlatformGmail)
	require.NoError(t, err, "a failing adapter must not surface an error")
	assert.Empty(t, gmail)

	slack, err := pl.Ingest(context.Background(), message.PlatformSlack)
	require.NoError(t, err)
	assert.Len(t, slack, 1, "other platforms are unaffected")
}

func TestIngest_UrgentMessageGetsSuggestionAndNotification(t *testing.T) {
	st := newTestStore(t)
	notif := &fakeNotifier{}
	pl := New(Deps{
		Store:     st,
		Annotator: &fakeAnnotator{},
		Adapters: []adapter.Adapter{&fakeAdapter{
			platform: message.PlatformWhatsApp,
			batch:    []message.RawMessage{raw(message.PlatformWhatsApp, "w-1", "Server is down, need help NOW")},
		}},
		Notifier: notif,
	})

	msgs, err := pl.Ingest(context.Background(), message.PlatformWhatsApp)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	require.NotNil(t, m.Priority)
	assert.Equal(t, ai.PriorityMax, *m.Priority)
	assert.NotEmpty(t, m.Metadata["suggestedResponse"])
	require.Len(t, notif.notified, 1)

	// Re-ingest: the duplicate insert must not notify again.
	_, err = pl.Ingest(context.Background(), message.PlatformWhatsApp)
	require.NoError(t, err)
	assert.Len(t, notif.notified, 1)
}

func TestCompose_FullAnnotationPath(t *testing.T) {
	st := newTestStore(t)
	sender := &fakeSender{}
	pl := New(Deps{
		Store:       st,
		Annotator:   &fakeAnnotator{},
		SlackSender: sender,
	})

	m, err := pl.Compose(context.Background(), "Server is down, need help NOW", "")
	require.NoError(t, err)

	assert.True(t, m.Processed)
	require.NotNil(t, m.Priority)
	assert.Equal(t, ai.PriorityMax, *m.Priority)
	assert.NotEmpty(t, m.Metadata["suggestedResponse"])
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Server is down, need help NOW", sender.sent[0])
}

func TestCompose_SelfSkipsAnnotation(t *testing.T) {
	st := newTestStore(t)
	ann := &fakeAnnotator{}
	sender := &fakeSender{}
	pl := New(Deps{
		Store:       st,
		Annotator:   ann,
		SlackSender: sender,
	})

	m, err := pl.Compose(context.Background(), "fyi", SenderSelf)
	require.NoError(t, err)

	assert.Nil(t, m.Summary)
	assert.Nil(t, m.Sentiment)
	assert.Nil(t, m.Priority)
	assert.False(t, m.Processed)
	assert.Zero(t, ann.calls.Load(), "self-authored messages skip annotation entirely")
	assert.Len(t, sender.sent, 1, "the message is still forwarded to slack")
}

func TestCompose_SendFailureSurfaces(t *testing.T) {
	st := newTestStore(t)
	pl := New(Deps{
		Store:       st,
		Annotator:   &fakeAnnotator{},
		SlackSender: &fakeSender{err: errors.New("not_in_channel")},
	})

	_, err := pl.Compose(context.Background(), "hello", SenderSelf)
	assert.Error(t, err)
}
