package domain

import (
	"time"

	"github.com/rs/xid"
)

// EventType identifies the kind of broadcast event. Values appear verbatim
// in the `event:` field of the wire frame.
type EventType string

const (
	EventFightStatusChanged    EventType = "FIGHT_STATUS_CHANGED"
	EventBetPlaced             EventType = "BET_PLACED"
	EventBetMatched            EventType = "BET_MATCHED"
	EventOddsUpdate            EventType = "ODDS_UPDATE"
	EventPaymentProcessed      EventType = "PAYMENT_PROCESSED"
	EventConnectionEstablished EventType = "CONNECTION_ESTABLISHED"
	EventHeartbeat             EventType = "HEARTBEAT"
	EventSystemNotice          EventType = "SYSTEM_NOTICE"
)

// Priority indicates how urgent an event is to consumers. It is carried on
// the wire only; delivery order is publish order regardless of priority.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Metadata carries optional correlation ids for an event.
type Metadata struct {
	UserID     string `json:"userId,omitempty"`
	FightID    string `json:"fightId,omitempty"`
	BetID      string `json:"betId,omitempty"`
	ProposalID string `json:"proposalId,omitempty"`
}

// IsZero reports whether no correlation id is set.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// Payload is the closed set of event payloads. Each payload struct reports
// its own event type; the wire serializer switches on it.
type Payload interface {
	EventType() EventType
}

// Event is an immutable broadcast message.
type Event struct {
	ID        string
	Type      EventType
	Payload   Payload
	Timestamp time.Time
	Priority  Priority
	Metadata  Metadata
}

// NewEvent builds an event from a payload, stamping id and timestamp.
func NewEvent(payload Payload, priority Priority, md Metadata) Event {
	return Event{
		ID:        xid.New().String(),
		Type:      payload.EventType(),
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		Priority:  priority,
		Metadata:  md,
	}
}

// FightStatusPayload reports a fight moving between statuses.
type FightStatusPayload struct {
	FightID        string `json:"fightId"`
	PreviousStatus string `json:"previousStatus,omitempty"`
	Status         string `json:"status"`
}

func (FightStatusPayload) EventType() EventType { return EventFightStatusChanged }

// BetPlacedPayload announces a newly placed bet.
type BetPlacedPayload struct {
	BetID   string  `json:"betId"`
	FightID string  `json:"fightId"`
	UserID  string  `json:"userId"`
	Amount  float64 `json:"amount"`
	Side    string  `json:"side"`
}

func (BetPlacedPayload) EventType() EventType { return EventBetPlaced }

// BetMatchedPayload announces two bets pairing off.
type BetMatchedPayload struct {
	BetID        string  `json:"betId"`
	MatchedBetID string  `json:"matchedBetId"`
	FightID      string  `json:"fightId"`
	Amount       float64 `json:"amount"`
}

func (BetMatchedPayload) EventType() EventType { return EventBetMatched }

// OddsPayload carries an odds refresh for a fight.
type OddsPayload struct {
	FightID string  `json:"fightId"`
	Red     float64 `json:"red"`
	Blue    float64 `json:"blue"`
	Version int     `json:"version"`
}

func (OddsPayload) EventType() EventType { return EventOddsUpdate }

// PaymentPayload reports a processed payment.
type PaymentPayload struct {
	PaymentID string  `json:"paymentId"`
	UserID    string  `json:"userId"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

func (PaymentPayload) EventType() EventType { return EventPaymentProcessed }

// ConnectionEstablishedPayload is the first event pushed on a new connection.
type ConnectionEstablishedPayload struct {
	ConnectionID string `json:"connectionId"`
	Channel      string `json:"channel"`
}

func (ConnectionEstablishedPayload) EventType() EventType { return EventConnectionEstablished }

// HeartbeatPayload is the liveness probe pushed by the monitor.
type HeartbeatPayload struct {
	ServerTime time.Time `json:"serverTime"`
}

func (HeartbeatPayload) EventType() EventType { return EventHeartbeat }

// NoticePayload is a free-form operator notice.
type NoticePayload struct {
	Message string `json:"message"`
}

func (NoticePayload) EventType() EventType { return EventSystemNotice }
