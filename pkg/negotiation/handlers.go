package negotiation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/errors"
	"github.com/galleralive/realtime/pkg/transport/protocol"
)

// NewRouter builds the handler registry for the inbound negotiation socket
// protocol.
func NewRouter(store *Store, logger *logging.Logger) *protocol.DefaultHandlerRegistry {
	registry := protocol.NewHandlerRegistry()

	create := NewCreateHandler(store, logger)
	registry.Register(domain.MessageTypeCreatePago, create)
	registry.Register(domain.MessageTypeCreateDoy, create)
	registry.Register(domain.MessageTypeRespond, NewRespondHandler(store, logger))
	registry.Register(domain.MessageTypeCancel, NewCancelHandler(store, logger))

	return registry
}

// CreateHandler handles create_pago_proposal and create_doy_proposal.
type CreateHandler struct {
	store  *Store
	logger *logging.Logger
}

// NewCreateHandler creates a new create handler
func NewCreateHandler(store *Store, logger *logging.Logger) *CreateHandler {
	return &CreateHandler{store: store, logger: logger}
}

// Handle implements protocol.Handler
func (h *CreateHandler) Handle(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	ident, ok := protocol.IdentityFromContext(ctx)
	if !ok || ident.UserID == "" {
		return errorMessage("authentication required")
	}

	var req domain.CreateProposalRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return errorMessage("malformed proposal request")
	}

	kind := domain.ProposalPago
	if msg.Type == domain.MessageTypeCreateDoy {
		kind = domain.ProposalDoy
	}

	p, err := h.store.Create(CreateRequest{
		Kind:           kind,
		FightID:        req.FightID,
		BetID:          req.BetID,
		ProposerID:     ident.UserID,
		CounterpartyID: req.ProposedTo,
		BaseAmount:     req.Amount,
		ProposedAmount: req.ProposedAmount,
		Side:           req.Side,
		Timeout:        time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		h.logger.Debug("proposal create rejected", "proposer_id", ident.UserID, "error", err)
		return errorResponse(err)
	}

	return protocol.NewMessage(domain.MessageTypeProposalCreated, domain.ProposalCreatedResponse{
		ProposalID: p.ID,
		Kind:       string(p.Kind),
		ExpiresAt:  p.ExpiresAt,
	})
}

// CanHandle implements protocol.Handler
func (h *CreateHandler) CanHandle(messageType domain.MessageType) bool {
	return messageType == domain.MessageTypeCreatePago || messageType == domain.MessageTypeCreateDoy
}

// RespondHandler handles respond_to_proposal.
type RespondHandler struct {
	store  *Store
	logger *logging.Logger
}

// NewRespondHandler creates a new respond handler
func NewRespondHandler(store *Store, logger *logging.Logger) *RespondHandler {
	return &RespondHandler{store: store, logger: logger}
}

// Handle implements protocol.Handler
func (h *RespondHandler) Handle(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	ident, ok := protocol.IdentityFromContext(ctx)
	if !ok || ident.UserID == "" {
		return errorMessage("authentication required")
	}

	var req domain.RespondRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return errorMessage("malformed response request")
	}

	var decision domain.ProposalStatus
	switch req.Response {
	case "accept":
		decision = domain.StatusAccepted
	case "reject":
		decision = domain.StatusRejected
	default:
		return errorMessage("response must be accept or reject")
	}

	if _, err := h.store.Respond(req.ProposalID, ident.UserID, decision); err != nil {
		h.logger.Debug("proposal response rejected", "proposal_id", req.ProposalID, "error", err)
		return errorResponse(err)
	}

	// the result message reaches both parties through the notifier
	return nil, nil
}

// CanHandle implements protocol.Handler
func (h *RespondHandler) CanHandle(messageType domain.MessageType) bool {
	return messageType == domain.MessageTypeRespond
}

// CancelHandler handles cancel_proposal.
type CancelHandler struct {
	store  *Store
	logger *logging.Logger
}

// NewCancelHandler creates a new cancel handler
func NewCancelHandler(store *Store, logger *logging.Logger) *CancelHandler {
	return &CancelHandler{store: store, logger: logger}
}

// Handle implements protocol.Handler
func (h *CancelHandler) Handle(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	ident, ok := protocol.IdentityFromContext(ctx)
	if !ok || ident.UserID == "" {
		return errorMessage("authentication required")
	}

	var req domain.CancelRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return errorMessage("malformed cancel request")
	}

	if _, err := h.store.Cancel(req.ProposalID, ident.UserID); err != nil {
		h.logger.Debug("proposal cancel rejected", "proposal_id", req.ProposalID, "error", err)
		return errorResponse(err)
	}

	return nil, nil
}

// CanHandle implements protocol.Handler
func (h *CancelHandler) CanHandle(messageType domain.MessageType) bool {
	return messageType == domain.MessageTypeCancel
}

// errorResponse converts a typed store error into a proposal_error message.
// Internal details never cross the wire.
func errorResponse(err error) (*domain.Message, error) {
	if e, ok := err.(*errors.Error); ok {
		switch e.Type {
		case errors.ErrorTypeInternal:
			return errorMessage("internal error")
		default:
			reason := e.Message
			if e.Details != "" {
				reason = e.Details
			}
			return errorMessage(reason)
		}
	}
	return errorMessage("internal error")
}

func errorMessage(reason string) (*domain.Message, error) {
	return protocol.NewMessage(domain.MessageTypeProposalError, domain.ProposalErrorMessage{Reason: reason})
}
