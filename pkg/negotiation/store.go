// Package negotiation implements the bilateral wager counter-offer protocol:
// a proposer offers a PAGO or DOY renegotiation to a counterparty, who must
// accept or reject it before a hard expiry.
package negotiation

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/galleralive/realtime/internal/eventbus"
	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/errors"
)

// StoreOptions configures the proposal store.
type StoreOptions struct {
	// MaxPending caps simultaneously pending proposals per proposer.
	MaxPending int
	// DefaultTimeout applies when a create request carries no override.
	DefaultTimeout time.Duration
	// GraceDelay keeps a resolved proposal readable for duplicate acks
	// before it is dropped from the active map.
	GraceDelay time.Duration
}

// DefaultStoreOptions returns the canonical defaults.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		MaxPending:     5,
		DefaultTimeout: 180 * time.Second,
		GraceDelay:     5 * time.Second,
	}
}

// CreateRequest carries the fields of a new proposal.
type CreateRequest struct {
	Kind           domain.ProposalKind
	FightID        string
	BetID          string
	ProposerID     string
	CounterpartyID string
	BaseAmount     float64
	ProposedAmount float64
	Side           string
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

// ResolvedEvent is the bus payload published on every terminal transition.
type ResolvedEvent struct {
	Proposal *domain.Proposal
	Status   domain.ProposalStatus
}

// Store holds active proposals, enforces the per-proposer quota and arms a
// one-shot expiry timer per proposal. Terminal transitions happen exactly
// once: the proposal status is compare-and-swapped, and only the winner of
// that race performs timer disarm, bookkeeping and notification.
type Store struct {
	mu            sync.Mutex
	proposals     map[string]*domain.Proposal
	timers        map[string]*time.Timer
	pendingByUser map[string]int
	resolved      map[domain.ProposalStatus]int64
	closed        bool

	bus     eventbus.Bus
	logger  *logging.Logger
	options StoreOptions
}

// NewStore creates a proposal store. Resolution events are published
// synchronously on the bus.
func NewStore(bus eventbus.Bus, logger *logging.Logger, options StoreOptions) *Store {
	return &Store{
		proposals:     make(map[string]*domain.Proposal),
		timers:        make(map[string]*time.Timer),
		pendingByUser: make(map[string]int),
		resolved:      make(map[domain.ProposalStatus]int64),
		bus:           bus,
		logger:        logger,
		options:       options,
	}
}

// Create validates the request, enforces the quota, stores the proposal as
// pending and arms its expiry timer.
func (s *Store) Create(req CreateRequest) (*domain.Proposal, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.options.DefaultTimeout
	}

	now := time.Now()
	p := &domain.Proposal{
		ID:             xid.New().String(),
		Kind:           req.Kind,
		FightID:        req.FightID,
		BetID:          req.BetID,
		ProposerID:     req.ProposerID,
		CounterpartyID: req.CounterpartyID,
		BaseAmount:     req.BaseAmount,
		ProposedAmount: req.ProposedAmount,
		Side:           req.Side,
		CreatedAt:      now,
		ExpiresAt:      now.Add(timeout),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeInternal, "STORE_CLOSED", "proposal store is shut down")
	}
	if s.pendingByUser[req.ProposerID] >= s.options.MaxPending {
		s.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeQuotaExceeded, "QUOTA_EXCEEDED", "too many pending proposals")
	}

	s.proposals[p.ID] = p
	s.pendingByUser[req.ProposerID]++
	s.timers[p.ID] = time.AfterFunc(timeout, func() { s.expire(p.ID) })
	s.mu.Unlock()

	s.logger.Info("proposal created",
		"proposal_id", p.ID,
		"kind", p.Kind,
		"proposer_id", p.ProposerID,
		"counterparty_id", p.CounterpartyID,
		"expires_at", p.ExpiresAt,
	)

	if s.bus != nil {
		s.bus.Publish(eventbus.NewEvent(eventbus.EventProposalOffered, "negotiation", p).
			WithMetadata("proposal_id", p.ID))
	}

	return p, nil
}

// Respond applies the counterparty's accept or reject decision.
func (s *Store) Respond(proposalID, responderID string, decision domain.ProposalStatus) (*domain.Proposal, error) {
	if decision != domain.StatusAccepted && decision != domain.StatusRejected {
		return nil, errors.New(errors.ErrorTypeValidation, "INVALID_DECISION", "response must be accept or reject")
	}

	p, err := s.get(proposalID)
	if err != nil {
		return nil, err
	}

	if responderID != p.CounterpartyID {
		return nil, errors.New(errors.ErrorTypeUnauthorized, "NOT_COUNTERPARTY", "proposal is not addressed to this user")
	}

	if !p.Resolve(decision) {
		return nil, errors.New(errors.ErrorTypeAlreadyResolved, "ALREADY_RESOLVED", "proposal is no longer pending")
	}

	s.finalize(p, decision)
	return p, nil
}

// Cancel withdraws a pending proposal. Only the original proposer may do it.
func (s *Store) Cancel(proposalID, requesterID string) (*domain.Proposal, error) {
	p, err := s.get(proposalID)
	if err != nil {
		return nil, err
	}

	if requesterID != p.ProposerID {
		return nil, errors.New(errors.ErrorTypeUnauthorized, "NOT_PROPOSER", "only the proposer may cancel")
	}

	if !p.Resolve(domain.StatusCancelled) {
		return nil, errors.New(errors.ErrorTypeAlreadyResolved, "ALREADY_RESOLVED", "proposal is no longer pending")
	}

	s.finalize(p, domain.StatusCancelled)
	return p, nil
}

// expire runs when a proposal's timer fires. Losing the race against an
// explicit response is normal; the timer simply stands down.
func (s *Store) expire(proposalID string) {
	s.mu.Lock()
	p, ok := s.proposals[proposalID]
	s.mu.Unlock()
	if !ok {
		return
	}

	if !p.Resolve(domain.StatusExpired) {
		return
	}

	s.logger.Info("proposal expired", "proposal_id", p.ID)
	s.finalize(p, domain.StatusExpired)
}

// finalize performs the winner-side bookkeeping of a terminal transition:
// disarm the timer, release quota, count the outcome, schedule the grace
// deletion and notify.
func (s *Store) finalize(p *domain.Proposal, status domain.ProposalStatus) {
	s.mu.Lock()
	if timer, ok := s.timers[p.ID]; ok {
		timer.Stop()
		delete(s.timers, p.ID)
	}
	if n := s.pendingByUser[p.ProposerID]; n <= 1 {
		delete(s.pendingByUser, p.ProposerID)
	} else {
		s.pendingByUser[p.ProposerID] = n - 1
	}
	s.resolved[status]++
	closed := s.closed
	s.mu.Unlock()

	if !closed {
		time.AfterFunc(s.options.GraceDelay, func() {
			s.mu.Lock()
			delete(s.proposals, p.ID)
			s.mu.Unlock()
		})
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.NewEvent(eventbus.EventProposalResolved, "negotiation", ResolvedEvent{Proposal: p, Status: status}).
			WithMetadata("proposal_id", p.ID).
			WithMetadata("status", status.String()))
	}
}

// get fetches an active proposal.
func (s *Store) get(proposalID string) (*domain.Proposal, error) {
	s.mu.Lock()
	p, ok := s.proposals[proposalID]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New(errors.ErrorTypeNotFound, "PROPOSAL_NOT_FOUND", "unknown proposal id")
	}
	return p, nil
}

// Get returns an active or grace-window proposal by id.
func (s *Store) Get(proposalID string) (*domain.Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[proposalID]
	return p, ok
}

// PendingFor returns the pending proposals addressed to a user, oldest
// first. Used to replay open offers on reconnect.
func (s *Store) PendingFor(userID string) []*domain.Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*domain.Proposal
	for _, p := range s.proposals {
		if p.CounterpartyID == userID && p.Status() == domain.StatusPending {
			pending = append(pending, p)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// PendingCount returns the proposer's live pending count.
func (s *Store) PendingCount(proposerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingByUser[proposerID]
}

// CountsByStatus returns proposal counts keyed by status name, pending
// included.
func (s *Store) CountsByStatus() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int64, len(s.resolved)+1)
	var pending int64
	for _, p := range s.proposals {
		if p.Status() == domain.StatusPending {
			pending++
		}
	}
	counts[domain.StatusPending.String()] = pending
	for status, n := range s.resolved {
		counts[status.String()] = n
	}
	return counts
}

// Stop disarms every timer and rejects further creates.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func validateCreate(req CreateRequest) error {
	if req.Kind != domain.ProposalPago && req.Kind != domain.ProposalDoy {
		return invalid("unknown proposal kind")
	}
	if req.FightID == "" || req.BetID == "" {
		return invalid("fightId and betId are required")
	}
	if req.ProposerID == "" || req.CounterpartyID == "" {
		return invalid("proposer and counterparty are required")
	}
	if req.ProposerID == req.CounterpartyID {
		return invalid("cannot propose to yourself")
	}
	if req.BaseAmount <= 0 || req.ProposedAmount <= 0 {
		return invalid("amounts must be positive")
	}
	if req.Side == "" {
		return invalid("side is required")
	}
	return nil
}

func invalid(details string) error {
	return errors.New(errors.ErrorTypeValidation, "INVALID_PAYLOAD", "invalid proposal request").WithDetails(details)
}
