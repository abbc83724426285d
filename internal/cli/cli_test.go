package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/raphaelgruber/datachat/internal/client"
	"github.com/raphaelgruber/datachat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRelay struct {
	prompts []string
	fail    bool
}

func (r *stubRelay) SendPrompt(ctx context.Context, prompt, conversationID string) (*client.ChatResponse, error) {
	r.prompts = append(r.prompts, prompt)
	if r.fail {
		return nil, errors.New("connection refused")
	}
	return &client.ChatResponse{
		Text:      "**" + prompt + "**",
		SQL:       "SELECT category, SUM(amount) FROM sales GROUP BY category",
		ChartData: json.RawMessage(`[{"x":"a","y":1},{"x":"b","y":2}]`),
	}, nil
}

func newTestSession(relay session.Relay) *session.Session {
	return session.New(relay, session.Config{
		NewID:  func() string { return "conv-1" },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func plainRenderer() renderer {
	return newRenderer(true, 0)
}

func TestRenderUserMessage(t *testing.T) {
	out := plainRenderer().message(session.Message{Role: session.RoleUser, Text: "sales?"})
	assert.Equal(t, "You: sales?", out)
}

func TestRenderAssistantMessage(t *testing.T) {
	out := plainRenderer().message(session.Message{
		Role:      session.RoleAssistant,
		Text:      "| a | b |\n|---|---|\n| 1 | 2 |",
		SQL:       "SELECT 1",
		ChartData: json.RawMessage(`[1,2,3]`),
	})

	assert.True(t, strings.HasPrefix(out, "Assistant:\n| a | b |"))
	assert.Contains(t, out, "SQL:\nSELECT 1")
	assert.Contains(t, out, "Chart data (3 points):")
}

func TestRenderErrorMessage(t *testing.T) {
	out := plainRenderer().message(session.Message{
		Role:    session.RoleAssistant,
		Text:    "no such table",
		IsError: true,
	})
	assert.Equal(t, "Assistant (error):\nno such table", out)
}

func TestFormatChart(t *testing.T) {
	assert.Empty(t, formatChart(nil))
	assert.Empty(t, formatChart(json.RawMessage("null")))
	assert.Equal(t, "{\n  \"a\": 1\n}", formatChart(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, "not json", formatChart(json.RawMessage("not json")))

	big := json.RawMessage(`"` + strings.Repeat("x", maxChartLen*2) + `"`)
	out := formatChart(big)
	assert.True(t, strings.HasSuffix(out, "\n..."))
	assert.Len(t, out, maxChartLen+len("\n..."))
}

func TestChartLabel(t *testing.T) {
	assert.Equal(t, "Chart data (2 points):", chartLabel(json.RawMessage(`[1,2]`)))
	assert.Equal(t, "Chart data:", chartLabel(json.RawMessage(`{"series":[]}`)))
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"region=north", "limit=20", "active=true", "ids=[1,2]", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"region": "north",
		"limit":  float64(20),
		"active": true,
		"ids":    []any{float64(1), float64(2)},
		"empty":  "",
	}, params)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Empty(t, params)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=x"})
	assert.Error(t, err)
}

func TestAskOnce(t *testing.T) {
	relay := &stubRelay{}
	s := newTestSession(relay)

	var out bytes.Buffer
	require.NoError(t, askOnce(context.Background(), s, "sales by category", &out, plainRenderer(), false))

	assert.Equal(t, []string{"sales by category"}, relay.prompts)
	assert.Contains(t, out.String(), "**sales by category**")
	assert.Contains(t, out.String(), "GROUP BY category")
	assert.Contains(t, out.String(), "Chart data (2 points):")
}

func TestAskOnceJSON(t *testing.T) {
	s := newTestSession(&stubRelay{})

	var out bytes.Buffer
	require.NoError(t, askOnce(context.Background(), s, "q", &out, plainRenderer(), true))

	var msg session.Message
	require.NoError(t, json.Unmarshal(out.Bytes(), &msg))
	assert.Equal(t, session.RoleAssistant, msg.Role)
	assert.Equal(t, "**q**", msg.Text)
}

func TestAskOnceBlankQuery(t *testing.T) {
	s := newTestSession(&stubRelay{})
	err := askOnce(context.Background(), s, "  ", io.Discard, plainRenderer(), false)
	assert.ErrorIs(t, err, session.ErrBlankQuery)
}

func TestAskOnceRelayFailurePrintsFailureText(t *testing.T) {
	s := newTestSession(&stubRelay{fail: true})

	var out bytes.Buffer
	require.NoError(t, askOnce(context.Background(), s, "q", &out, plainRenderer(), false))
	assert.Contains(t, out.String(), session.FailureText("en"))
}

func TestLineChat(t *testing.T) {
	relay := &stubRelay{}
	s := newTestSession(relay)

	in := strings.NewReader("first question\n\n   \nsecond question\n/quit\nnever sent\n")
	var out bytes.Buffer
	require.NoError(t, runLineChat(context.Background(), s, in, &out, plainRenderer()))

	assert.Equal(t, []string{"first question", "second question"}, relay.prompts)
	assert.Len(t, s.Messages(), 4)
	assert.Equal(t, 2, strings.Count(out.String(), "Assistant:"))
	assert.NotContains(t, out.String(), "You:")
}

func TestLineChatEndOfInput(t *testing.T) {
	relay := &stubRelay{}
	s := newTestSession(relay)

	var out bytes.Buffer
	require.NoError(t, runLineChat(context.Background(), s, strings.NewReader("only"), &out, plainRenderer()))
	assert.Equal(t, []string{"only"}, relay.prompts)
}

func TestIsQuit(t *testing.T) {
	assert.True(t, isQuit("/quit"))
	assert.True(t, isQuit("  /exit "))
	assert.False(t, isQuit("quit"))
	assert.False(t, isQuit(""))
}
