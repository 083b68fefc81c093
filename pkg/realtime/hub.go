package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/galleralive/realtime/internal/eventbus"
	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/wire"
)

// HubOptions configures a hub instance.
type HubOptions struct {
	HistoryCapacity int
	HistoryMaxAge   time.Duration
	ReplayCount     int
}

// DefaultHubOptions returns the production defaults.
func DefaultHubOptions() HubOptions {
	return HubOptions{
		HistoryCapacity: 100,
		HistoryMaxAge:   24 * time.Hour,
		ReplayCount:     10,
	}
}

// Hub fans published events out to every registry entry subscribed to a
// channel and maintains the bounded per-channel history. Publishes on the
// same channel are serialized, so each subscriber observes publish order.
type Hub struct {
	registry *Registry
	history  *History
	bus      eventbus.Bus
	logger   *logging.Logger
	options  HubOptions

	// per-channel locks serialize history append + fan-out; delivery order
	// within a channel depends on them, and a slow channel never holds up
	// the others
	mu        sync.Mutex
	channelMu map[string]*sync.Mutex
}

// NewHub creates a hub owning the given registry.
func NewHub(registry *Registry, bus eventbus.Bus, logger *logging.Logger, options HubOptions) *Hub {
	return &Hub{
		registry:  registry,
		history:   NewHistory(options.HistoryCapacity, options.HistoryMaxAge),
		bus:       bus,
		logger:    logger,
		options:   options,
		channelMu: make(map[string]*sync.Mutex),
	}
}

func (h *Hub) channelLock(channel string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, ok := h.channelMu[channel]
	if !ok {
		lock = &sync.Mutex{}
		h.channelMu[channel] = lock
	}
	return lock
}

// RegisterOptions carries the identity and metadata of an admitted client.
type RegisterOptions struct {
	UserID    string
	Role      string
	Transport string
	Metadata  map[string]string
}

// Register admits a transport to a channel. It allocates the connection id,
// pushes the connection-established notice and replays recent channel
// history to the new subscriber.
func (h *Hub) Register(ctx context.Context, transport domain.Conn, channel string, opts RegisterOptions) (string, error) {
	conn := &Connection{
		ID:          xid.New().String(),
		UserID:      opts.UserID,
		Role:        opts.Role,
		Channel:     channel,
		Transport:   opts.Transport,
		ConnectedAt: time.Now(),
		Metadata:    opts.Metadata,
		transport:   transport,
	}

	if err := h.registry.Add(conn); err != nil {
		return "", err
	}

	established := domain.NewEvent(
		domain.ConnectionEstablishedPayload{ConnectionID: conn.ID, Channel: channel},
		domain.PriorityLow,
		domain.Metadata{UserID: opts.UserID},
	)
	if frame, err := wire.Encode(established); err == nil {
		h.registry.Send(ctx, conn.ID, frame)
	}

	for _, ev := range h.history.Recent(channel, h.options.ReplayCount, time.Now()) {
		frame, err := wire.Encode(ev)
		if err != nil {
			continue
		}
		if !h.registry.Send(ctx, conn.ID, frame) {
			break
		}
	}

	if h.bus != nil {
		h.bus.PublishAsync(eventbus.NewEvent(eventbus.EventConnectionRegistered, "hub", conn.ID).
			WithMetadata("channel", channel).
			WithMetadata("user_id", opts.UserID))
	}

	return conn.ID, nil
}

// Unregister removes a connection. Idempotent.
func (h *Hub) Unregister(id string) {
	h.registry.Remove(id)

	if h.bus != nil {
		h.bus.PublishAsync(eventbus.NewEvent(eventbus.EventConnectionClosed, "hub", id))
	}
}

// Publish fans an event out to every live subscriber of a channel, appends
// it to the channel history and returns the number of successful sends. A
// dead subscriber is pruned without aborting the fan-out.
func (h *Hub) Publish(ctx context.Context, channel string, ev domain.Event) int {
	lock := h.channelLock(channel)
	lock.Lock()
	defer lock.Unlock()

	h.history.Append(channel, ev)

	frame, err := wire.Encode(ev)
	if err != nil {
		h.logger.Error("event encode failed",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"error", err,
		)
		return 0
	}

	sent := 0
	for _, conn := range h.registry.Channel(channel) {
		if h.registry.Send(ctx, conn.ID, frame) {
			sent++
		}
	}

	h.logger.Debug("event published",
		"channel", channel,
		"event_type", ev.Type,
		"sent", sent,
	)

	return sent
}

// PublishToSet publishes one event to several channels. Not atomic across
// channels; partial delivery on error is acceptable.
func (h *Hub) PublishToSet(ctx context.Context, channels []string, ev domain.Event) int {
	sent := 0
	for _, channel := range channels {
		sent += h.Publish(ctx, channel, ev)
	}
	return sent
}

// SendDirect pushes an already-encoded negotiation message to every socket
// connection owned by a user, bypassing channel fan-out.
func (h *Hub) SendDirect(ctx context.Context, userID string, frame []byte) int {
	return h.registry.SendToUser(ctx, userID, TransportWebSocket, frame)
}

// Registry exposes the connection registry for collaborators that probe
// liveness and statistics.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// PurgeHistory drops aged-out events from every channel buffer.
func (h *Hub) PurgeHistory(now time.Time) {
	h.history.PurgeExpired(now)
}

// Stop closes every connection.
func (h *Hub) Stop() {
	for _, conn := range h.registry.All() {
		h.registry.Remove(conn.ID)
	}
	h.logger.Info("hub stopped")
}
