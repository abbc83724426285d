// Package web serves chat sessions over HTTP for browser views.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/datachat/internal/client"
	"github.com/raphaelgruber/datachat/internal/metrics"
	"github.com/raphaelgruber/datachat/internal/session"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 64 << 10

// Handler routes the session API.
type Handler struct {
	sessions *session.Registry
	recycle  *client.RecycleClient
	metrics  *metrics.Collector
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// Snapshot is the full state of one session as seen by a view.
type Snapshot struct {
	ConversationID string            `json:"conversationId"`
	Generating     bool              `json:"generating"`
	Messages       []session.Message `json:"messages"`
}

type sendRequest struct {
	Query string `json:"query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler wires the routes. recycle and m may be nil.
func NewHandler(sessions *session.Registry, recycle *client.RecycleClient, m *metrics.Collector, logger *slog.Logger) *Handler {
	h := &Handler{
		sessions: sessions,
		recycle:  recycle,
		metrics:  m,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local dev
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		mux: http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /api/sessions", h.handleCreate)
	h.mux.HandleFunc("GET /api/sessions/{id}", h.handleGet)
	h.mux.HandleFunc("DELETE /api/sessions/{id}", h.handleDelete)
	h.mux.HandleFunc("POST /api/sessions/{id}/messages", h.handleSend)
	h.mux.HandleFunc("GET /api/sessions/{id}/events", h.handleEvents)
	h.mux.HandleFunc("POST /api/recycle", h.handleRecycle)
	h.mux.HandleFunc("GET /stats", h.handleStats)
	h.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	h.logger.Info("session created", "conversation_id", s.ConversationID())
	writeJSON(w, http.StatusCreated, snapshotOf(s))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(s))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.sessions.Remove(id) {
		writeError(w, http.StatusNotFound, "unknown conversation "+id)
		return
	}
	h.logger.Info("session removed", "conversation_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleSend runs one turn and answers with the settled snapshot.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.SendMessage(r.Context(), req.Query)
	switch {
	case errors.Is(err, session.ErrBlankQuery):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrGenerating):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("send message failed", "conversation_id", s.ConversationID(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, snapshotOf(s))
}

func (h *Handler) handleRecycle(w http.ResponseWriter, r *http.Request) {
	if h.recycle == nil {
		writeError(w, http.StatusNotFound, "recycle feed not configured")
		return
	}

	var params map[string]any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	payload, err := h.recycle.Execute(r.Context(), params)
	if err != nil {
		h.logger.Error("recycle feed failed", "error", err)
		writeError(w, http.StatusBadGateway, "recycle feed request failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	var snap metrics.Snapshot
	if h.metrics != nil {
		snap = h.metrics.Snapshot()
	}
	snap.ActiveSessions = h.sessions.Len()
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	s, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown conversation "+id)
	}
	return s, ok
}

func snapshotOf(s *session.Session) Snapshot {
	return Snapshot{
		ConversationID: s.ConversationID(),
		Generating:     s.IsGenerating(),
		Messages:       s.Messages(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
