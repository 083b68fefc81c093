package realtime

import (
	"time"
)

// Stats is the read-only operational snapshot consumed by monitoring.
type Stats struct {
	ConnectionsByChannel map[string]int   `json:"connectionsByChannel"`
	ConnectionsByRole    map[string]int   `json:"connectionsByRole"`
	EventsSent           int64            `json:"eventsSent"`
	ErrorsEncountered    int64            `json:"errorsEncountered"`
	ProposalsByStatus    map[string]int64 `json:"proposalsByStatus"`
	UptimeSeconds        float64          `json:"uptimeSeconds"`
}

// ProposalCounter is implemented by the negotiation store.
type ProposalCounter interface {
	CountsByStatus() map[string]int64
}

// Collector aggregates the monitoring snapshot from the registry and the
// proposal store.
type Collector struct {
	registry  *Registry
	proposals ProposalCounter
	startTime time.Time
}

// NewCollector creates a stats collector.
func NewCollector(registry *Registry, proposals ProposalCounter) *Collector {
	return &Collector{
		registry:  registry,
		proposals: proposals,
		startTime: time.Now(),
	}
}

// Snapshot returns the current operational counters.
func (c *Collector) Snapshot() Stats {
	stats := Stats{
		ConnectionsByChannel: c.registry.CountsByChannel(),
		ConnectionsByRole:    c.registry.CountsByRole(),
		EventsSent:           c.registry.EventsSent(),
		ErrorsEncountered:    c.registry.SendErrors(),
		UptimeSeconds:        time.Since(c.startTime).Seconds(),
	}
	if c.proposals != nil {
		stats.ProposalsByStatus = c.proposals.CountsByStatus()
	}
	return stats
}
