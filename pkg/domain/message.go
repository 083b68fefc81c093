package domain

import (
	"encoding/json"
	"time"
)

// MessageType identifies a negotiation socket message.
type MessageType string

const (
	// inbound
	MessageTypeCreatePago MessageType = "create_pago_proposal"
	MessageTypeCreateDoy  MessageType = "create_doy_proposal"
	MessageTypeRespond    MessageType = "respond_to_proposal"
	MessageTypeCancel     MessageType = "cancel_proposal"

	// outbound
	MessageTypeProposalCreated  MessageType = "proposal_created"
	MessageTypeProposalReceived MessageType = "proposal_received"
	MessageTypeProposalResult   MessageType = "proposal_result"
	MessageTypeProposalError    MessageType = "proposal_error"
	MessageTypePendingProposals MessageType = "pending_proposals"
)

// Message is the generic negotiation socket envelope.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// CreateProposalRequest is the payload of create_pago_proposal and
// create_doy_proposal.
type CreateProposalRequest struct {
	FightID        string  `json:"fightId"`
	BetID          string  `json:"betId"`
	ProposedTo     string  `json:"proposedTo"`
	ProposedAmount float64 `json:"proposedAmount"`
	Side           string  `json:"side"`
	Amount         float64 `json:"amount"`
	TimeoutMs      int64   `json:"timeoutMs,omitempty"`
}

// RespondRequest is the payload of respond_to_proposal.
type RespondRequest struct {
	ProposalID string `json:"proposalId"`
	Response   string `json:"response"`
}

// CancelRequest is the payload of cancel_proposal.
type CancelRequest struct {
	ProposalID string `json:"proposalId"`
}

// ProposalCreatedResponse confirms a proposal to its proposer.
type ProposalCreatedResponse struct {
	ProposalID string    `json:"proposalId"`
	Kind       string    `json:"kind"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ProposalResultMessage reports a terminal transition to both parties.
type ProposalResultMessage struct {
	ProposalID string `json:"proposalId"`
	Kind       string `json:"kind"`
	Result     string `json:"result"`
	FightID    string `json:"fightId"`
	BetID      string `json:"betId"`
}

// ProposalErrorMessage carries a short human-readable failure reason.
type ProposalErrorMessage struct {
	Reason string `json:"reason"`
}

// PendingProposalsMessage replays a user's open offers on reconnect.
type PendingProposalsMessage struct {
	Proposals []*Proposal `json:"proposals"`
}
