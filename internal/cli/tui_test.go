package cli

import (
	"testing"

	"github.com/raphaelgruber/datachat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, relay session.Relay) (chatModel, *session.Session) {
	t.Helper()
	s := newTestSession(relay)
	events, cancel := s.Subscribe()
	t.Cleanup(cancel)
	return newChatModel(s, events, plainRenderer()), s
}

func TestSubmitSendsAndClearsInput(t *testing.T) {
	relay := &stubRelay{}
	m, s := newTestModel(t, relay)
	m.input.SetValue("revenue by month")

	next, cmd := m.submit()
	require.NotNil(t, cmd)
	assert.Empty(t, next.(chatModel).input.Value())

	done, ok := cmd().(sendDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.err)
	assert.Equal(t, []string{"revenue by month"}, relay.prompts)
	assert.Len(t, s.Messages(), 2)
}

func TestSubmitBlankIsIgnored(t *testing.T) {
	m, _ := newTestModel(t, &stubRelay{})
	m.input.SetValue("   ")

	_, cmd := m.submit()
	assert.Nil(t, cmd)
}

func TestSubmitWhileGeneratingKeepsInput(t *testing.T) {
	relay := &stubRelay{}
	m, _ := newTestModel(t, relay)
	m.generating = true
	m.input.SetValue("next question")

	next, cmd := m.submit()
	assert.Nil(t, cmd)
	assert.Equal(t, "next question", next.(chatModel).input.Value())
	assert.Empty(t, relay.prompts)
}

func TestSubmitQuit(t *testing.T) {
	m, _ := newTestModel(t, &stubRelay{})
	m.input.SetValue("/quit")

	next, cmd := m.submit()
	assert.NotNil(t, cmd)
	assert.True(t, next.(chatModel).quitting)
}

func TestApplyEventTracksGeneratingAndPrinted(t *testing.T) {
	m, s := newTestModel(t, &stubRelay{})
	require.NoError(t, s.SendMessage(t.Context(), "q"))

	next, _ := m.applyEvent(session.Event{Kind: session.EventState, Generating: true, Count: 1})
	m = next.(chatModel)
	assert.True(t, m.generating)
	assert.Equal(t, 1, m.printed)

	next, _ = m.applyEvent(session.Event{Kind: session.EventState, Generating: false, Count: 2})
	m = next.(chatModel)
	assert.False(t, m.generating)
	assert.Equal(t, 2, m.printed)
}

func TestPendingLinesCatchesUpAfterDroppedEvents(t *testing.T) {
	m, s := newTestModel(t, &stubRelay{})
	require.NoError(t, s.SendMessage(t.Context(), "one"))
	require.NoError(t, s.SendMessage(t.Context(), "two"))

	lines := m.pendingLines(4)
	require.Len(t, lines, 4)
	assert.Equal(t, "You: one", lines[0])
	assert.Equal(t, "You: two", lines[2])

	m.printed = 4
	assert.Nil(t, m.pendingLines(4))
	assert.Nil(t, m.pendingLines(3))
}

func TestSessionClosedQuits(t *testing.T) {
	m, _ := newTestModel(t, &stubRelay{})

	next, cmd := m.Update(sessionEventMsg{ok: false})
	assert.NotNil(t, cmd)
	assert.True(t, next.(chatModel).quitting)
}
