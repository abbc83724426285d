package session

// EventKind distinguishes transcript appends from generating-flag changes.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventState   EventKind = "state"
)

// Event notifies views that the session changed.
// Generating and Count describe the session right after the change.
type Event struct {
	Kind       EventKind `json:"kind"`
	Message    *Message  `json:"message,omitempty"`
	Generating bool      `json:"generating"`
	Count      int       `json:"count"`
}

// subscriberBuffer is the per-subscriber backlog; a full subscriber misses events.
const subscriberBuffer = 32

// Subscribe returns a channel of session events and a function that ends the
// subscription and closes the channel. Views re-read Messages() when they fall behind.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// Already removed by Close or an earlier cancel.
		if _, ok := s.subs[id]; !ok {
			return
		}
		delete(s.subs, id)
		close(ch)
	}
	return ch, cancel
}

// Close ends every subscription. The transcript stays readable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// publishLocked fans ev out without blocking. Caller must hold mu.
func (s *Session) publishLocked(ev Event) {
	ev.Generating = s.generating
	ev.Count = len(s.messages)
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
