package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/wire"
)

// MonitorOptions configures the liveness monitor.
type MonitorOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultMonitorOptions returns the production probe cadence.
func DefaultMonitorOptions() MonitorOptions {
	return MonitorOptions{
		Interval: 30 * time.Second,
		Timeout:  60 * time.Second,
	}
}

// Monitor evicts connections whose heartbeat evidence has gone stale and
// pushes a heartbeat frame to every still-alive connection. It is the only
// component allowed to unregister a connection purely due to time.
type Monitor struct {
	hub     *Hub
	logger  *logging.Logger
	options MonitorOptions

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a liveness monitor for the hub's registry.
func NewMonitor(hub *Hub, logger *logging.Logger, options MonitorOptions) *Monitor {
	return &Monitor{
		hub:     hub,
		logger:  logger,
		options: options,
	}
}

// Start runs the periodic probe loop until the context is cancelled or Stop
// is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.options.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.tick(ctx, now)
			}
		}
	}()

	m.logger.Info("liveness monitor started",
		"interval", m.options.Interval,
		"timeout", m.options.Timeout,
	)
}

// Stop halts the probe loop.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// tick evicts stale connections, probes the rest and purges aged history.
func (m *Monitor) tick(ctx context.Context, now time.Time) {
	registry := m.hub.Registry()

	deadline := now.Add(-m.options.Timeout)
	for _, conn := range registry.StaleBefore(deadline) {
		m.logger.Info("evicting stale connection",
			"connection_id", conn.ID,
			"channel", conn.Channel,
		)
		m.hub.Unregister(conn.ID)
	}

	hb := domain.NewEvent(
		domain.HeartbeatPayload{ServerTime: now.UTC()},
		domain.PriorityLow,
		domain.Metadata{},
	)
	frame, err := wire.Encode(hb)
	if err != nil {
		m.logger.Error("heartbeat encode failed", "error", err)
		return
	}

	// an accepted heartbeat is liveness evidence for push-only streams: a
	// stream whose queue backed up rejects it and gets pruned. Socket
	// connections prove liveness through pongs instead.
	for _, conn := range registry.All() {
		if registry.Send(ctx, conn.ID, frame) && conn.Transport == TransportSSE {
			registry.Touch(conn.ID, now)
		}
	}

	m.hub.PurgeHistory(now)
}
