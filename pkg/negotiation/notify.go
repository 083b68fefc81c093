package negotiation

import (
	"context"

	"github.com/galleralive/realtime/internal/eventbus"
	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/transport/protocol"
)

// Sender delivers an encoded negotiation message to every socket connection
// a user currently holds. The hub implements it.
type Sender interface {
	SendDirect(ctx context.Context, userID string, frame []byte) int
}

// Notifier routes negotiation notices to the involved parties: the offer to
// the counterparty on creation, and the result to both on any terminal
// transition. Offline parties are skipped; outcomes are not replayed.
type Notifier struct {
	sender Sender
	codec  protocol.Codec
	logger *logging.Logger
}

// NewNotifier creates a notifier delivering through the given sender.
func NewNotifier(sender Sender, logger *logging.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		codec:  protocol.NewJSONCodec(),
		logger: logger,
	}
}

// Attach subscribes the notifier to the store's bus events.
func (n *Notifier) Attach(bus eventbus.Bus) {
	bus.Subscribe(eventbus.EventProposalOffered, n.onOffered)
	bus.Subscribe(eventbus.EventProposalResolved, n.onResolved)
}

func (n *Notifier) onOffered(ev *eventbus.Event) {
	p, ok := ev.Data.(*domain.Proposal)
	if !ok {
		return
	}

	n.send(p.CounterpartyID, domain.MessageTypeProposalReceived, p)
}

func (n *Notifier) onResolved(ev *eventbus.Event) {
	re, ok := ev.Data.(ResolvedEvent)
	if !ok {
		return
	}

	result := ProposalResult(re.Status)
	msg := domain.ProposalResultMessage{
		ProposalID: re.Proposal.ID,
		Kind:       string(re.Proposal.Kind),
		Result:     result,
		FightID:    re.Proposal.FightID,
		BetID:      re.Proposal.BetID,
	}

	n.send(re.Proposal.ProposerID, domain.MessageTypeProposalResult, msg)
	n.send(re.Proposal.CounterpartyID, domain.MessageTypeProposalResult, msg)
}

func (n *Notifier) send(userID string, messageType domain.MessageType, payload interface{}) {
	msg, err := protocol.NewMessage(messageType, payload)
	if err != nil {
		n.logger.Error("failed to build notification", "type", messageType, "error", err)
		return
	}

	data, err := n.codec.Encode(*msg)
	if err != nil {
		n.logger.Error("failed to encode notification", "type", messageType, "error", err)
		return
	}

	sent := n.sender.SendDirect(context.Background(), userID, data)
	if sent == 0 {
		// party is offline: dropped, never queued
		n.logger.Debug("notification dropped, user offline",
			"user_id", userID,
			"type", messageType,
		)
	}
}

// ProposalResult maps a terminal status to the wire result string. Expiry is
// reported as "timeout".
func ProposalResult(status domain.ProposalStatus) string {
	if status == domain.StatusExpired {
		return "timeout"
	}
	return status.String()
}
