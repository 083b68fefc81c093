package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/errors"
)

// Transport kind labels for registry entries.
const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

// Connection is a registry entry for one open push-connection. The registry
// owns every entry exclusively; other components refer to connections by id.
type Connection struct {
	ID          string
	UserID      string
	Role        string
	Channel     string
	Transport   string
	ConnectedAt time.Time
	Metadata    map[string]string

	transport domain.Conn

	// guarded by the registry mutex
	lastHeartbeat time.Time
}

// Registry tracks every open connection and its channel membership. A single
// coarse lock guards the maps; broadcast iteration takes read snapshots.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]*Connection
	byChannel map[string]map[string]*Connection
	byUser    map[string]map[string]*Connection

	eventsSent int64
	sendErrors int64

	logger *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		conns:     make(map[string]*Connection),
		byChannel: make(map[string]map[string]*Connection),
		byUser:    make(map[string]map[string]*Connection),
		logger:    logger,
	}
}

// Add stores a new connection entry.
func (r *Registry) Add(conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID]; exists {
		return errors.New(errors.ErrorTypeInternal, "DUPLICATE_CONNECTION", "connection id already registered")
	}

	conn.lastHeartbeat = conn.ConnectedAt
	r.conns[conn.ID] = conn

	if r.byChannel[conn.Channel] == nil {
		r.byChannel[conn.Channel] = make(map[string]*Connection)
	}
	r.byChannel[conn.Channel][conn.ID] = conn

	if conn.UserID != "" {
		if r.byUser[conn.UserID] == nil {
			r.byUser[conn.UserID] = make(map[string]*Connection)
		}
		r.byUser[conn.UserID][conn.ID] = conn
	}

	r.logger.Info("connection registered",
		"connection_id", conn.ID,
		"channel", conn.Channel,
		"user_id", conn.UserID,
		"total_connections", len(r.conns),
	)

	return nil
}

// Remove closes a connection's transport and drops it from all indices. It
// is idempotent and safe after the transport already closed.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return
	}

	delete(r.conns, id)

	if set := r.byChannel[conn.Channel]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byChannel, conn.Channel)
		}
	}
	if conn.UserID != "" {
		if set := r.byUser[conn.UserID]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(r.byUser, conn.UserID)
			}
		}
	}
	total := len(r.conns)
	r.mu.Unlock()

	// close outside the lock; errors on an already-closed transport are
	// expected and ignored
	_ = conn.transport.Close()

	r.logger.Info("connection unregistered",
		"connection_id", id,
		"channel", conn.Channel,
		"total_connections", total,
	)
}

// Get retrieves a connection by id.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Channel returns a snapshot of the live connections on a channel.
func (r *Registry) Channel(name string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byChannel[name]
	conns := make([]*Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// User returns a snapshot of the connections owned by a user.
func (r *Registry) User(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	conns := make([]*Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Touch records heartbeat evidence for a connection.
func (r *Registry) Touch(id string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[id]; ok {
		conn.lastHeartbeat = t
	}
}

// StaleBefore returns connections whose last heartbeat is older than the
// given deadline.
func (r *Registry) StaleBefore(deadline time.Time) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*Connection
	for _, conn := range r.conns {
		if conn.lastHeartbeat.Before(deadline) {
			stale = append(stale, conn)
		}
	}
	return stale
}

// Send writes an encoded frame to one connection. A transport failure prunes
// the connection and reports false; it never propagates to the caller.
func (r *Registry) Send(ctx context.Context, id string, frame []byte) bool {
	conn, ok := r.Get(id)
	if !ok {
		return false
	}

	if err := conn.transport.Send(ctx, frame); err != nil {
		atomic.AddInt64(&r.sendErrors, 1)
		r.logger.Warn("send failed, pruning connection",
			"connection_id", id,
			"channel", conn.Channel,
			"error", err,
		)
		r.Remove(id)
		return false
	}

	atomic.AddInt64(&r.eventsSent, 1)
	return true
}

// SendToUser writes a frame to every connection owned by a user and returns
// the number of successful writes. A non-empty transport restricts delivery
// to connections of that kind.
func (r *Registry) SendToUser(ctx context.Context, userID, transport string, frame []byte) int {
	sent := 0
	for _, conn := range r.User(userID) {
		if transport != "" && conn.Transport != transport {
			continue
		}
		if r.Send(ctx, conn.ID, frame) {
			sent++
		}
	}
	return sent
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CountsByChannel returns live connection counts per channel.
func (r *Registry) CountsByChannel() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.byChannel))
	for name, set := range r.byChannel {
		counts[name] = len(set)
	}
	return counts
}

// CountsByRole returns live connection counts per role label.
func (r *Registry) CountsByRole() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, conn := range r.conns {
		role := conn.Role
		if role == "" {
			role = "anonymous"
		}
		counts[role]++
	}
	return counts
}

// EventsSent returns the number of frames written successfully.
func (r *Registry) EventsSent() int64 {
	return atomic.LoadInt64(&r.eventsSent)
}

// SendErrors returns the number of failed writes.
func (r *Registry) SendErrors() int64 {
	return atomic.LoadInt64(&r.sendErrors)
}
