// Package session holds the conversation state for one chat and relays turns to the middleware.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/raphaelgruber/datachat/internal/client"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the transcript. Messages are never mutated once appended.
type Message struct {
	Role      Role            `json:"role"`
	Text      string          `json:"text"`
	SQL       string          `json:"sql,omitempty"`
	ChartData json.RawMessage `json:"chartData,omitempty"`
	IsError   bool            `json:"isError,omitempty"`

	// Passed through from the middleware response; not interpreted.
	ResponseID string `json:"responseId,omitempty"`
	Done       bool   `json:"done,omitempty"`
}

var (
	// ErrBlankQuery is returned when the query is empty or whitespace.
	ErrBlankQuery = errors.New("query is blank")

	// ErrGenerating is returned when a turn is already in flight.
	ErrGenerating = errors.New("a response is already being generated")
)

// Relay sends one prompt to the middleware.
// *client.Client satisfies it.
type Relay interface {
	SendPrompt(ctx context.Context, prompt, conversationID string) (*client.ChatResponse, error)
}

// Config holds the injected dependencies of a Session.
type Config struct {
	// NewID generates the conversation id. Defaults to a random UUID.
	NewID func() string

	// Locale selects the failure text (see FailureText).
	Locale string

	Logger *slog.Logger
}

// Session is the conversation store for one active chat.
// It owns its transcript and generating flag; all methods are safe for concurrent use.
type Session struct {
	relay          Relay
	conversationID string
	failureText    string
	logger         *slog.Logger

	mu         sync.Mutex
	messages   []Message
	generating bool
	subs       map[int]chan Event
	nextSubID  int
}

// New creates a session with a freshly generated conversation id.
func New(relay Relay, cfg Config) *Session {
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := newID()
	return &Session{
		relay:          relay,
		conversationID: id,
		failureText:    FailureText(cfg.Locale),
		logger:         logger.With("conversation_id", id),
		subs:           make(map[int]chan Event),
	}
}

// ConversationID returns the id shared by every turn of this session.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Messages returns a copy of the transcript in chronological order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// IsGenerating reports whether a turn is in flight.
func (s *Session) IsGenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// SendMessage runs one turn: it appends the user message, asks the middleware,
// and appends exactly one assistant message.
//
// A blank query or a call while another turn is in flight changes nothing and
// returns ErrBlankQuery or ErrGenerating. Relay failures are logged and become
// a fixed assistant message; SendMessage then returns nil.
//
// The relay call is not cancelled with ctx; the client timeout bounds it.
func (s *Session) SendMessage(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrBlankQuery
	}

	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return ErrGenerating
	}
	s.generating = true
	s.appendLocked(Message{Role: RoleUser, Text: query})
	s.publishLocked(Event{Kind: EventState})
	s.mu.Unlock()

	defer s.setIdle()

	resp, err := s.relay.SendPrompt(context.WithoutCancel(ctx), query, s.conversationID)
	if err != nil {
		s.logger.Error("chat request failed", "error", err)
		s.append(Message{Role: RoleAssistant, Text: s.failureText})
		return nil
	}

	if resp.Error {
		s.logger.Warn("middleware reported an error", "response_id", resp.ID)
	}
	s.append(Message{
		Role:       RoleAssistant,
		Text:       resp.Text,
		SQL:        resp.SQL,
		ChartData:  resp.ChartData,
		IsError:    resp.Error,
		ResponseID: resp.ID,
		Done:       resp.Done,
	})
	return nil
}

func (s *Session) append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(msg)
}

// appendLocked adds msg and notifies subscribers. Caller must hold mu.
func (s *Session) appendLocked(msg Message) {
	s.messages = append(s.messages, msg)
	m := msg
	s.publishLocked(Event{Kind: EventMessage, Message: &m})
}

func (s *Session) setIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
	s.publishLocked(Event{Kind: EventState})
}
