package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/datachat/internal/session"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Frame types sent on the events websocket.
const (
	FrameSnapshot = "snapshot"
	FrameEvent    = "event"
)

// Frame is one websocket message. The first frame is always a snapshot so a
// view that connects mid-conversation can render the transcript.
type Frame struct {
	Type     string         `json:"type"`
	Snapshot *Snapshot      `json:"snapshot,omitempty"`
	Event    *session.Event `json:"event,omitempty"`
}

// handleEvents streams session events until the client leaves or the session is removed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.Subscribe()
	defer cancel()

	logger := h.logger.With("conversation_id", s.ConversationID())
	logger.Debug("event stream opened")
	defer logger.Debug("event stream closed")

	snap := snapshotOf(s)
	if err := writeFrame(conn, Frame{Type: FrameSnapshot, Snapshot: &snap}); err != nil {
		return
	}

	// Drain reads so close frames and pongs are processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}
			if err := writeFrame(conn, Frame{Type: FrameEvent, Event: &ev}); err != nil {
				logger.Debug("event write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(f)
}
