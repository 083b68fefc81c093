package realtime

import (
	"sync"
	"time"

	"github.com/galleralive/realtime/pkg/domain"
)

// History keeps a bounded recent-event buffer per channel so late joiners
// get context. It is best-effort only, bounded by both count and age.
type History struct {
	mu       sync.RWMutex
	capacity int
	maxAge   time.Duration
	channels map[string][]domain.Event
}

// NewHistory creates a history buffer with the given per-channel capacity
// and maximum event age.
func NewHistory(capacity int, maxAge time.Duration) *History {
	return &History{
		capacity: capacity,
		maxAge:   maxAge,
		channels: make(map[string][]domain.Event),
	}
}

// Append records an event on a channel, evicting the oldest entry once the
// channel is at capacity.
func (h *History) Append(channel string, ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := h.channels[channel]
	if len(buf) >= h.capacity {
		copy(buf, buf[1:])
		buf = buf[:len(buf)-1]
	}
	h.channels[channel] = append(buf, ev)
}

// Recent returns up to n of the newest events on a channel, oldest first,
// skipping events older than the age bound.
func (h *History) Recent(channel string, n int, now time.Time) []domain.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	buf := h.channels[channel]
	cutoff := now.Add(-h.maxAge)

	start := len(buf) - n
	if start < 0 {
		start = 0
	}

	recent := make([]domain.Event, 0, len(buf)-start)
	for _, ev := range buf[start:] {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		recent = append(recent, ev)
	}
	return recent
}

// PurgeExpired drops events older than the age bound from every channel.
func (h *History) PurgeExpired(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := now.Add(-h.maxAge)
	for channel, buf := range h.channels {
		i := 0
		for i < len(buf) && buf[i].Timestamp.Before(cutoff) {
			i++
		}
		if i == 0 {
			continue
		}
		if i == len(buf) {
			delete(h.channels, channel)
			continue
		}
		h.channels[channel] = append([]domain.Event(nil), buf[i:]...)
	}
}

// Len returns the number of buffered events on a channel.
func (h *History) Len(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
