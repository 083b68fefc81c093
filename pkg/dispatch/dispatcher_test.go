package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
)

// mockPublisher records every publish call.
type mockPublisher struct {
	calls []publishCall
}

type publishCall struct {
	channels []string
	event    domain.Event
}

func (m *mockPublisher) Publish(_ context.Context, channel string, ev domain.Event) int {
	m.calls = append(m.calls, publishCall{channels: []string{channel}, event: ev})
	return 1
}

func (m *mockPublisher) PublishToSet(_ context.Context, channels []string, ev domain.Event) int {
	m.calls = append(m.calls, publishCall{channels: channels, event: ev})
	return len(channels)
}

func newTestDispatcher() (*Dispatcher, *mockPublisher) {
	pub := &mockPublisher{}
	logger := logging.New(logging.Config{Level: "error", Format: "text"})
	return NewDispatcher(pub, logger), pub
}

func TestDispatcher_FightStatusChanged(t *testing.T) {
	tests := []struct {
		status       string
		wantPriority domain.Priority
	}{
		{"in_progress", domain.PriorityHigh},
		{"betting_open", domain.PriorityHigh},
		{"finished", domain.PriorityCritical},
		{"cancelled", domain.PriorityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			d, pub := newTestDispatcher()

			d.FightStatusChanged(context.Background(), "f1", "scheduled", tt.status)

			require.Len(t, pub.calls, 1)
			call := pub.calls[0]
			assert.Equal(t, []string{"event:f1", "global"}, call.channels)
			assert.Equal(t, domain.EventFightStatusChanged, call.event.Type)
			assert.Equal(t, tt.wantPriority, call.event.Priority)

			payload, ok := call.event.Payload.(domain.FightStatusPayload)
			require.True(t, ok)
			assert.Equal(t, "scheduled", payload.PreviousStatus)
			assert.Equal(t, tt.status, payload.Status)
		})
	}
}

func TestDispatcher_BetPlaced(t *testing.T) {
	d, pub := newTestDispatcher()

	d.BetPlaced(context.Background(), "b1", "f1", "u1", 500, "red")

	require.Len(t, pub.calls, 1)
	call := pub.calls[0]
	assert.Equal(t, []string{"event:f1", "betting:notifications"}, call.channels)
	assert.Equal(t, domain.EventBetPlaced, call.event.Type)
	assert.Equal(t, domain.PriorityMedium, call.event.Priority)
	assert.Equal(t, "u1", call.event.Metadata.UserID)
	assert.Equal(t, "b1", call.event.Metadata.BetID)
}

func TestDispatcher_BetMatched(t *testing.T) {
	d, pub := newTestDispatcher()

	d.BetMatched(context.Background(), "b1", "b2", "f1", 500)

	require.Len(t, pub.calls, 1)
	call := pub.calls[0]
	assert.Equal(t, []string{"event:f1", "betting:notifications"}, call.channels)
	assert.Equal(t, domain.PriorityHigh, call.event.Priority)

	payload, ok := call.event.Payload.(domain.BetMatchedPayload)
	require.True(t, ok)
	assert.Equal(t, "b2", payload.MatchedBetID)
}

func TestDispatcher_OddsUpdated(t *testing.T) {
	d, pub := newTestDispatcher()

	d.OddsUpdated(context.Background(), "f1", 1.8, 2.1, 7)

	require.Len(t, pub.calls, 1)
	call := pub.calls[0]
	assert.Equal(t, []string{"event:f1"}, call.channels)
	assert.Equal(t, domain.PriorityLow, call.event.Priority)

	payload, ok := call.event.Payload.(domain.OddsPayload)
	require.True(t, ok)
	assert.Equal(t, 7, payload.Version)
}

func TestDispatcher_PaymentProcessed(t *testing.T) {
	d, pub := newTestDispatcher()

	d.PaymentProcessed(context.Background(), "p1", "u1", 1000, "completed")

	require.Len(t, pub.calls, 1)
	call := pub.calls[0]
	assert.Equal(t, []string{"betting:notifications", "admin-system"}, call.channels)
	assert.Equal(t, domain.EventPaymentProcessed, call.event.Type)
}

func TestDispatcher_SystemNotice(t *testing.T) {
	d, pub := newTestDispatcher()

	d.SystemNotice(context.Background(), "maintenance at midnight", domain.PriorityCritical)

	require.Len(t, pub.calls, 1)
	call := pub.calls[0]
	assert.Equal(t, []string{"admin-system"}, call.channels)
	assert.Equal(t, domain.PriorityCritical, call.event.Priority)

	payload, ok := call.event.Payload.(domain.NoticePayload)
	require.True(t, ok)
	assert.Equal(t, "maintenance at midnight", payload.Message)
}
