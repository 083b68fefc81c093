package domain

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// ProposalKind distinguishes the two counter-offer calls.
type ProposalKind string

const (
	ProposalPago ProposalKind = "PAGO"
	ProposalDoy  ProposalKind = "DOY"
)

// ProposalStatus is the negotiation state of a proposal.
type ProposalStatus int32

const (
	StatusPending ProposalStatus = iota
	StatusAccepted
	StatusRejected
	StatusExpired
	StatusCancelled
)

func (s ProposalStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusExpired:
		return "expired"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends the negotiation.
func (s ProposalStatus) Terminal() bool {
	return s != StatusPending
}

// Proposal is a bilateral wager counter-offer. All fields except status are
// immutable after creation; status moves exactly once from pending to a
// terminal value via compare-and-swap.
type Proposal struct {
	ID             string
	Kind           ProposalKind
	FightID        string
	BetID          string
	ProposerID     string
	CounterpartyID string
	BaseAmount     float64
	ProposedAmount float64
	Side           string
	CreatedAt      time.Time
	ExpiresAt      time.Time

	status atomic.Int32
}

// Status returns the current negotiation status.
func (p *Proposal) Status() ProposalStatus {
	return ProposalStatus(p.status.Load())
}

// Resolve attempts the pending-to-terminal transition. It returns true only
// for the single caller that wins the race; all later attempts fail.
func (p *Proposal) Resolve(next ProposalStatus) bool {
	if !next.Terminal() {
		return false
	}
	return p.status.CompareAndSwap(int32(StatusPending), int32(next))
}

// MarshalJSON includes the status string alongside the immutable fields.
func (p *Proposal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID             string       `json:"proposalId"`
		Kind           ProposalKind `json:"kind"`
		FightID        string       `json:"fightId"`
		BetID          string       `json:"betId"`
		ProposerID     string       `json:"proposedBy"`
		CounterpartyID string       `json:"proposedTo"`
		BaseAmount     float64      `json:"amount"`
		ProposedAmount float64      `json:"proposedAmount"`
		Side           string       `json:"side"`
		CreatedAt      time.Time    `json:"createdAt"`
		ExpiresAt      time.Time    `json:"expiresAt"`
		Status         string       `json:"status"`
	}{
		ID:             p.ID,
		Kind:           p.Kind,
		FightID:        p.FightID,
		BetID:          p.BetID,
		ProposerID:     p.ProposerID,
		CounterpartyID: p.CounterpartyID,
		BaseAmount:     p.BaseAmount,
		ProposedAmount: p.ProposedAmount,
		Side:           p.Side,
		CreatedAt:      p.CreatedAt,
		ExpiresAt:      p.ExpiresAt,
		Status:         p.Status().String(),
	})
}
