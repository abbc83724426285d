package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/datachat/internal/client"
	"github.com/raphaelgruber/datachat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelay records calls and answers from a script.
type fakeRelay struct {
	mu    sync.Mutex
	calls []relayCall

	// gate, when set, blocks each call until it receives a value.
	gate chan struct{}
	resp *client.ChatResponse
	err  error
}

type relayCall struct {
	prompt         string
	conversationID string
	ctxErr         error
}

func (f *fakeRelay) SendPrompt(ctx context.Context, prompt, conversationID string) (*client.ChatResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, relayCall{prompt: prompt, conversationID: conversationID, ctxErr: ctx.Err()})
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeRelay) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedID(id string) func() string {
	return func() string { return id }
}

func newSession(relay session.Relay) *session.Session {
	return session.New(relay, session.Config{NewID: fixedID("conv-1"), Locale: "en", Logger: testLogger()})
}

func TestSendMessageSuccess(t *testing.T) {
	chart := json.RawMessage(`{"labels":["a","b"],"values":[3,4]}`)
	relay := &fakeRelay{resp: &client.ChatResponse{
		ID:        "resp-1",
		Text:      "Here is the breakdown...",
		SQL:       "SELECT category, SUM(qty) FROM sales GROUP BY category",
		ChartData: chart,
		Done:      true,
		Error:     false,
	}}
	s := newSession(relay)

	err := s.SendMessage(context.Background(), "total sales by category")
	require.NoError(t, err)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, session.Message{Role: session.RoleUser, Text: "total sales by category"}, msgs[0])
	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Here is the breakdown...", msgs[1].Text)
	assert.Equal(t, "SELECT category, SUM(qty) FROM sales GROUP BY category", msgs[1].SQL)
	assert.JSONEq(t, string(chart), string(msgs[1].ChartData))
	assert.False(t, msgs[1].IsError)
	assert.Equal(t, "resp-1", msgs[1].ResponseID)
	assert.True(t, msgs[1].Done)

	assert.False(t, s.IsGenerating())
	require.Equal(t, 1, relay.callCount())
	assert.Equal(t, "conv-1", relay.calls[0].conversationID)
}

func TestSendMessageMiddlewareErrorFlag(t *testing.T) {
	relay := &fakeRelay{resp: &client.ChatResponse{Text: "SQL execution failed", Error: true}}
	s := newSession(relay)

	require.NoError(t, s.SendMessage(context.Background(), "broken query"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsError)
	assert.Equal(t, "SQL execution failed", msgs[1].Text)
}

func TestSendMessageRelayFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network", fmt.Errorf("%w: connection refused", client.ErrNetwork)},
		{"timeout", fmt.Errorf("%w: deadline exceeded", client.ErrTimeout)},
		{"status", &client.StatusError{Code: 502}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &fakeRelay{err: tt.err}
			s := newSession(relay)

			err := s.SendMessage(context.Background(), "revenue trend")
			require.NoError(t, err, "relay failures are reported in the transcript")

			msgs := s.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, session.Message{Role: session.RoleUser, Text: "revenue trend"}, msgs[0])
			assert.Equal(t, session.Message{Role: session.RoleAssistant, Text: session.FailureText("en")}, msgs[1])
			assert.NotContains(t, msgs[1].Text, tt.err.Error())
			assert.False(t, s.IsGenerating())
		})
	}
}

func TestSendMessageBlankIsNoop(t *testing.T) {
	relay := &fakeRelay{resp: &client.ChatResponse{Text: "unused"}}
	s := newSession(relay)

	for _, q := range []string{"", "   ", "\n\t"} {
		err := s.SendMessage(context.Background(), q)
		assert.ErrorIs(t, err, session.ErrBlankQuery)
	}

	assert.Empty(t, s.Messages())
	assert.Equal(t, 0, relay.callCount())
	assert.False(t, s.IsGenerating())
}

func TestSendMessageWhileGeneratingIsNoop(t *testing.T) {
	relay := &fakeRelay{
		gate: make(chan struct{}),
		resp: &client.ChatResponse{Text: "first answer"},
	}
	s := newSession(relay)

	done := make(chan error, 1)
	go func() {
		done <- s.SendMessage(context.Background(), "first")
	}()

	require.Eventually(t, s.IsGenerating, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return relay.callCount() == 1 }, time.Second, 5*time.Millisecond)

	err := s.SendMessage(context.Background(), "second")
	assert.ErrorIs(t, err, session.ErrGenerating)
	assert.Len(t, s.Messages(), 1, "user message of the first turn only")
	assert.Equal(t, 1, relay.callCount(), "no additional request")

	close(relay.gate)
	require.NoError(t, <-done)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "first answer", msgs[1].Text)
	assert.False(t, s.IsGenerating())
}

func TestConcurrentSendsAdmitOneTurn(t *testing.T) {
	relay := &fakeRelay{gate: make(chan struct{}), resp: &client.ChatResponse{Text: "ok"}}
	s := newSession(relay)

	const senders = 10
	results := make(chan error, senders)
	for i := 0; i < senders; i++ {
		go func(i int) {
			results <- s.SendMessage(context.Background(), fmt.Sprintf("q%d", i))
		}(i)
	}

	// Every sender but the admitted one returns immediately.
	busy := 0
	for i := 0; i < senders-1; i++ {
		err := <-results
		require.ErrorIs(t, err, session.ErrGenerating)
		busy++
	}
	close(relay.gate)
	require.NoError(t, <-results)

	assert.Equal(t, senders-1, busy)
	assert.Equal(t, 1, relay.callCount())
	assert.Len(t, s.Messages(), 2)
}

func TestConversationIDStable(t *testing.T) {
	relay := &fakeRelay{resp: &client.ChatResponse{Text: "ok"}}
	s := session.New(relay, session.Config{Logger: testLogger()})

	id := s.ConversationID()
	require.NotEmpty(t, id)

	for _, q := range []string{"one", "two", "three"} {
		require.NoError(t, s.SendMessage(context.Background(), q))
		assert.Equal(t, id, s.ConversationID())
	}

	for _, call := range relay.calls {
		assert.Equal(t, id, call.conversationID)
	}
}

func TestDistinctSessionsGetDistinctIDs(t *testing.T) {
	relay := &fakeRelay{}
	a := session.New(relay, session.Config{Logger: testLogger()})
	b := session.New(relay, session.Config{Logger: testLogger()})
	assert.NotEqual(t, a.ConversationID(), b.ConversationID())
}

func TestRepeatedQueryIsNotDeduplicated(t *testing.T) {
	relay := &fakeRelay{resp: &client.ChatResponse{Text: "same"}}
	s := newSession(relay)

	require.NoError(t, s.SendMessage(context.Background(), "total sales by category"))
	require.NoError(t, s.SendMessage(context.Background(), "total sales by category"))

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	for i, want := range []session.Role{session.RoleUser, session.RoleAssistant, session.RoleUser, session.RoleAssistant} {
		assert.Equal(t, want, msgs[i].Role, "message %d", i)
	}
	assert.Equal(t, 2, relay.callCount())
}

func TestSendMessageIgnoresCallerCancellation(t *testing.T) {
	relay := &fakeRelay{resp: &client.ChatResponse{Text: "ok"}}
	s := newSession(relay)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.SendMessage(ctx, "revenue trend"))
	require.Equal(t, 1, relay.callCount())
	assert.NoError(t, relay.calls[0].ctxErr)
	assert.Equal(t, "ok", s.Messages()[1].Text)
}

func TestMessagesReturnsCopy(t *testing.T) {
	relay := &fakeRelay{resp: &client.ChatResponse{Text: "ok"}}
	s := newSession(relay)
	require.NoError(t, s.SendMessage(context.Background(), "q"))

	msgs := s.Messages()
	msgs[0].Text = "tampered"

	assert.Equal(t, "q", s.Messages()[0].Text)
}

func TestFailureTextLocale(t *testing.T) {
	relay := &fakeRelay{err: errors.New("down")}
	s := session.New(relay, session.Config{NewID: fixedID("c"), Locale: "zh", Logger: testLogger()})

	require.NoError(t, s.SendMessage(context.Background(), "q"))
	assert.Equal(t, session.FailureText("zh"), s.Messages()[1].Text)
	assert.Contains(t, session.FailureText("zh"), "3002")
	assert.Equal(t, session.FailureText("en"), session.FailureText("fr"))
}
