package sse

import (
	"net/http"

	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/realtime"
)

// Handler streams channel events to viewers over the event-stream wire
// format. Anonymous clients are admitted on public channels; the identity
// collaborator decides.
type Handler struct {
	hub    *realtime.Hub
	auth   domain.Authenticator
	logger *logging.Logger
}

// NewHandler creates a new SSE handler
func NewHandler(hub *realtime.Hub, auth domain.Authenticator, logger *logging.Logger) *Handler {
	return &Handler{
		hub:    hub,
		auth:   auth,
		logger: logger,
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ident, err := h.auth.Authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = domain.ChannelGlobal
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := NewConn(w, flusher)

	connID, err := h.hub.Register(r.Context(), conn, channel, realtime.RegisterOptions{
		UserID:    ident.UserID,
		Role:      ident.Role,
		Transport: realtime.TransportSSE,
		Metadata: map[string]string{
			"user_agent":  r.UserAgent(),
			"remote_addr": r.RemoteAddr,
		},
	})
	if err != nil {
		h.logger.Error("failed to register stream", "error", err)
		conn.Close()
		conn.Wait()
		return
	}

	h.logger.Info("stream connected",
		"connection_id", connID,
		"channel", channel,
		"remote_addr", r.RemoteAddr,
	)

	select {
	case <-r.Context().Done():
	case <-conn.Done():
	}

	h.hub.Unregister(connID)
	conn.Wait()
	h.logger.Info("stream disconnected", "connection_id", connID, "channel", channel)
}
