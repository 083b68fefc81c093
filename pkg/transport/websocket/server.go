package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/errors"
	"github.com/galleralive/realtime/pkg/realtime"
	"github.com/galleralive/realtime/pkg/transport/protocol"
)

// PendingSource supplies a user's open proposals for the reconnect replay.
type PendingSource interface {
	PendingFor(userID string) []*domain.Proposal
}

// ServerOptions represents websocket server options
type ServerOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	Hub             *realtime.Hub
	Auth            domain.Authenticator
	Router          protocol.HandlerRegistry
	Pending         PendingSource
	Logger          *logging.Logger
	ConnOptions     ConnOptions
}

// ServerOption is a function that configures ServerOptions
type ServerOption func(*ServerOptions)

// WithHub sets the broadcast hub for the server
func WithHub(hub *realtime.Hub) ServerOption {
	return func(o *ServerOptions) {
		o.Hub = hub
	}
}

// WithAuthenticator sets the identity collaborator
func WithAuthenticator(auth domain.Authenticator) ServerOption {
	return func(o *ServerOptions) {
		o.Auth = auth
	}
}

// WithRouter sets the negotiation message router
func WithRouter(router protocol.HandlerRegistry) ServerOption {
	return func(o *ServerOptions) {
		o.Router = router
	}
}

// WithPendingSource sets the pending-proposal replay source
func WithPendingSource(pending PendingSource) ServerOption {
	return func(o *ServerOptions) {
		o.Pending = pending
	}
}

// WithLogger sets the logger for the server
func WithLogger(logger *logging.Logger) ServerOption {
	return func(o *ServerOptions) {
		o.Logger = logger
	}
}

// WithCheckOrigin sets the check origin function
func WithCheckOrigin(checkOrigin func(r *http.Request) bool) ServerOption {
	return func(o *ServerOptions) {
		o.CheckOrigin = checkOrigin
	}
}

// Server upgrades negotiation socket connections, admits them to the hub
// and routes their inbound messages.
type Server struct {
	upgrader websocket.Upgrader
	options  ServerOptions
	codec    protocol.Codec
	logger   *logging.Logger
	errs     errors.Handler
}

// NewServer creates a new WebSocket server
func NewServer(opts ...ServerOption) *Server {
	options := ServerOptions{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // configure for production
		},
		ConnOptions: DefaultConnOptions(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin:     options.CheckOrigin,
		},
		options: options,
		codec:   protocol.NewJSONCodec(),
		logger:  options.Logger,
		errs:    errors.NewDefaultHandler(options.Logger.Logger),
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ident, err := s.options.Auth.Authenticate(r)
	if err != nil {
		s.logger.Warn("rejected unauthenticated socket", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = domain.ChannelGlobal
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade error",
			"error", err,
			"remote_addr", r.RemoteAddr,
		)
		return
	}

	conn := NewConn(wsConn, s.logger, s.options.ConnOptions)

	connID, err := s.options.Hub.Register(r.Context(), conn, channel, realtime.RegisterOptions{
		UserID:    ident.UserID,
		Role:      ident.Role,
		Transport: realtime.TransportWebSocket,
		Metadata: map[string]string{
			"user_agent":  r.UserAgent(),
			"remote_addr": r.RemoteAddr,
		},
	})
	if err != nil {
		s.logger.Error("failed to register connection", "error", err)
		conn.Close()
		return
	}

	conn.OnPong(func() {
		s.options.Hub.Registry().Touch(connID, time.Now())
	})

	connLogger := s.logger.WithFields(map[string]any{
		"connection_id": connID,
		"user_id":       ident.UserID,
	})

	conn.Receive(func(message []byte) error {
		return s.handleMessage(conn, connID, connLogger, ident, message)
	})

	conn.Start()

	s.replayPending(conn, ident)

	s.logger.Info("socket connected",
		"connection_id", connID,
		"user_id", ident.UserID,
		"channel", channel,
		"remote_addr", r.RemoteAddr,
	)

	<-conn.Context().Done()

	s.options.Hub.Unregister(connID)
	conn.Wait()
	s.logger.Info("socket disconnected", "connection_id", connID, "user_id", ident.UserID)
}

// handleMessage routes one inbound negotiation message.
func (s *Server) handleMessage(conn *Conn, connID string, logger *logging.Logger, ident domain.Identity, message []byte) error {
	msg, err := s.codec.Decode(message)
	if err != nil {
		logger.Warn("malformed socket message", "error", err)
		return s.sendError(conn, "malformed message")
	}

	ctx := protocol.WithIdentity(context.Background(), ident)
	ctx = protocol.WithConnectionID(ctx, connID)
	ctx = logging.WithLogger(ctx, logger)

	response, err := s.options.Router.Handle(ctx, msg)
	if err != nil {
		s.errs.HandleWithLogger(ctx, err, logging.FromContext(ctx).Logger)
		return s.sendError(conn, "unrecognized message")
	}

	if response != nil {
		return s.sendMessage(conn, response)
	}
	return nil
}

// replayPending pushes the user's open offers on (re)connect.
func (s *Server) replayPending(conn *Conn, ident domain.Identity) {
	if s.options.Pending == nil || ident.UserID == "" {
		return
	}

	pending := s.options.Pending.PendingFor(ident.UserID)
	if len(pending) == 0 {
		return
	}

	msg, err := protocol.NewMessage(domain.MessageTypePendingProposals, domain.PendingProposalsMessage{Proposals: pending})
	if err != nil {
		s.logger.Error("failed to build pending replay", "error", err)
		return
	}
	s.sendMessage(conn, msg)
}

func (s *Server) sendError(conn *Conn, reason string) error {
	msg, err := protocol.NewMessage(domain.MessageTypeProposalError, domain.ProposalErrorMessage{Reason: reason})
	if err != nil {
		return err
	}
	return s.sendMessage(conn, msg)
}

func (s *Server) sendMessage(conn *Conn, msg *domain.Message) error {
	data, err := s.codec.Encode(*msg)
	if err != nil {
		return err
	}

	// Send never blocks, so a deadline would have nothing to cut short.
	return conn.Send(context.Background(), data)
}
