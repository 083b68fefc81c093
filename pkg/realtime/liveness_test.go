package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_PushesHeartbeats(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	stream := &mockConn{}
	_, err := hub.Register(ctx, stream, "global", RegisterOptions{Transport: TransportSSE})
	require.NoError(t, err)
	stream.clearFrames()

	monitor := NewMonitor(hub, testLogger(), MonitorOptions{Interval: 10 * time.Millisecond, Timeout: time.Minute})
	monitor.Start(ctx)
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return len(stream.getFrames()) >= 2
	}, time.Second, 5*time.Millisecond)

	for _, frame := range stream.getFrames() {
		assert.Contains(t, string(frame), "event: HEARTBEAT")
		assert.Contains(t, string(frame), "serverTime")
	}
}

func TestMonitor_EvictsStaleSocket(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	// a socket connection that accepts writes but never pongs
	silent := &mockConn{}
	_, err := hub.Register(ctx, silent, "global", RegisterOptions{Transport: TransportWebSocket})
	require.NoError(t, err)

	monitor := NewMonitor(hub, testLogger(), MonitorOptions{Interval: 5 * time.Millisecond, Timeout: 15 * time.Millisecond})
	monitor.Start(ctx)
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return hub.Registry().Count() == 0
	}, time.Second, 5*time.Millisecond, "silent socket must be evicted after the timeout")
	assert.True(t, silent.isClosed())
}

func TestMonitor_FlushedStreamStaysAlive(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	stream := &mockConn{}
	_, err := hub.Register(ctx, stream, "global", RegisterOptions{Transport: TransportSSE})
	require.NoError(t, err)

	monitor := NewMonitor(hub, testLogger(), MonitorOptions{Interval: 5 * time.Millisecond, Timeout: 15 * time.Millisecond})
	monitor.Start(ctx)
	defer monitor.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, hub.Registry().Count(), "a stream whose heartbeats flush is never evicted")
}

func TestMonitor_PrunesBrokenTransportOnProbe(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	broken := &mockConn{sendErr: assert.AnError}
	entry := newTestEntry("c1", "u1", "global", broken)
	entry.Transport = TransportSSE
	require.NoError(t, hub.Registry().Add(entry))

	monitor := NewMonitor(hub, testLogger(), MonitorOptions{Interval: 5 * time.Millisecond, Timeout: time.Minute})
	monitor.Start(ctx)
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return hub.Registry().Count() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCollector_Snapshot(t *testing.T) {
	logger := testLogger()
	registry := NewRegistry(logger)
	require.NoError(t, registry.Add(newTestEntry("c1", "u1", "global", &mockConn{})))

	collector := NewCollector(registry, stubCounter{})
	stats := collector.Snapshot()

	assert.Equal(t, map[string]int{"global": 1}, stats.ConnectionsByChannel)
	assert.Equal(t, map[string]int{"viewer": 1}, stats.ConnectionsByRole)
	assert.Equal(t, int64(3), stats.ProposalsByStatus["pending"])
	assert.GreaterOrEqual(t, stats.UptimeSeconds, 0.0)
}

type stubCounter struct{}

func (stubCounter) CountsByStatus() map[string]int64 {
	return map[string]int64{"pending": 3}
}
