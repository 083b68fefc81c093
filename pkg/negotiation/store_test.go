package negotiation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/errors"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

func testStore(opts StoreOptions) *Store {
	return NewStore(nil, testLogger(), opts)
}

func validRequest() CreateRequest {
	return CreateRequest{
		Kind:           domain.ProposalPago,
		FightID:        "f1",
		BetID:          "b1",
		ProposerID:     "u1",
		CounterpartyID: "u2",
		BaseAmount:     100,
		ProposedAmount: 80,
		Side:           "red",
	}
}

func TestStore_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"unknown kind", func(r *CreateRequest) { r.Kind = "APUESTA" }},
		{"missing fight", func(r *CreateRequest) { r.FightID = "" }},
		{"missing bet", func(r *CreateRequest) { r.BetID = "" }},
		{"missing counterparty", func(r *CreateRequest) { r.CounterpartyID = "" }},
		{"self proposal", func(r *CreateRequest) { r.CounterpartyID = "u1" }},
		{"zero amount", func(r *CreateRequest) { r.BaseAmount = 0 }},
		{"negative proposed amount", func(r *CreateRequest) { r.ProposedAmount = -5 }},
		{"missing side", func(r *CreateRequest) { r.Side = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testStore(DefaultStoreOptions())
			defer store.Stop()

			req := validRequest()
			tt.mutate(&req)

			_, err := store.Create(req)
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
		})
	}
}

func TestStore_Create(t *testing.T) {
	store := testStore(DefaultStoreOptions())
	defer store.Stop()

	before := time.Now()
	p, err := store.Create(validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.StatusPending, p.Status())
	assert.Equal(t, 1, store.PendingCount("u1"))

	// default timeout applies when no override is given
	wantExpiry := before.Add(DefaultStoreOptions().DefaultTimeout)
	assert.WithinDuration(t, wantExpiry, p.ExpiresAt, time.Second)
}

func TestStore_QuotaEnforcement(t *testing.T) {
	store := testStore(DefaultStoreOptions())
	defer store.Stop()

	proposals := make([]*domain.Proposal, 0, 5)
	for i := 0; i < 5; i++ {
		req := validRequest()
		req.BetID = fmt.Sprintf("b%d", i)
		p, err := store.Create(req)
		require.NoError(t, err)
		proposals = append(proposals, p)
	}

	_, err := store.Create(validRequest())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeQuotaExceeded, errors.TypeOf(err))

	// resolving any one of the five frees the slot
	_, err = store.Respond(proposals[0].ID, "u2", domain.StatusRejected)
	require.NoError(t, err)

	_, err = store.Create(validRequest())
	assert.NoError(t, err)
}

func TestStore_RespondAuthorization(t *testing.T) {
	tests := []struct {
		name      string
		responder string
		wantType  errors.ErrorType
	}{
		{"stranger", "u3", errors.ErrorTypeUnauthorized},
		{"proposer responding to own proposal", "u1", errors.ErrorTypeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testStore(DefaultStoreOptions())
			defer store.Stop()

			p, err := store.Create(validRequest())
			require.NoError(t, err)

			_, err = store.Respond(p.ID, tt.responder, domain.StatusAccepted)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
			assert.Equal(t, domain.StatusPending, p.Status())
		})
	}
}

func TestStore_RespondUnknownProposal(t *testing.T) {
	store := testStore(DefaultStoreOptions())
	defer store.Stop()

	_, err := store.Respond("missing", "u2", domain.StatusAccepted)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
}

func TestStore_SingleResolution(t *testing.T) {
	store := testStore(DefaultStoreOptions())
	defer store.Stop()

	p, err := store.Create(validRequest())
	require.NoError(t, err)

	_, err = store.Respond(p.ID, "u2", domain.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, p.Status())

	// every further transition attempt loses
	_, err = store.Respond(p.ID, "u2", domain.StatusRejected)
	assert.Equal(t, errors.ErrorTypeAlreadyResolved, errors.TypeOf(err))

	_, err = store.Cancel(p.ID, "u1")
	assert.Equal(t, errors.ErrorTypeAlreadyResolved, errors.TypeOf(err))

	assert.Equal(t, domain.StatusAccepted, p.Status())
}

func TestStore_ConcurrentResolutionRace(t *testing.T) {
	store := testStore(StoreOptions{MaxPending: 5, DefaultTimeout: time.Minute, GraceDelay: time.Minute})
	defer store.Stop()

	p, err := store.Create(validRequest())
	require.NoError(t, err)

	// an accept and a reject race; exactly one must win
	var wg sync.WaitGroup
	outcomes := make(chan error, 2)
	for _, decision := range []domain.ProposalStatus{domain.StatusAccepted, domain.StatusRejected} {
		wg.Add(1)
		go func(d domain.ProposalStatus) {
			defer wg.Done()
			_, err := store.Respond(p.ID, "u2", d)
			outcomes <- err
		}(decision)
	}
	wg.Wait()
	close(outcomes)

	var failures int
	for err := range outcomes {
		if err != nil {
			assert.Equal(t, errors.ErrorTypeAlreadyResolved, errors.TypeOf(err))
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one racer must lose")
	assert.True(t, p.Status().Terminal())
}

func TestStore_Cancel(t *testing.T) {
	store := testStore(DefaultStoreOptions())
	defer store.Stop()

	p, err := store.Create(validRequest())
	require.NoError(t, err)

	_, err = store.Cancel(p.ID, "u2")
	assert.Equal(t, errors.ErrorTypeUnauthorized, errors.TypeOf(err), "only the proposer may cancel")

	_, err = store.Cancel(p.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, p.Status())
	assert.Equal(t, 0, store.PendingCount("u1"))
}

func TestStore_TimeoutExpiry(t *testing.T) {
	store := testStore(StoreOptions{MaxPending: 5, DefaultTimeout: time.Minute, GraceDelay: time.Minute})
	defer store.Stop()

	req := validRequest()
	req.Timeout = 30 * time.Millisecond
	p, err := store.Create(req)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return p.Status() == domain.StatusExpired
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, store.PendingCount("u1"))

	_, err = store.Respond(p.ID, "u2", domain.StatusAccepted)
	assert.Equal(t, errors.ErrorTypeAlreadyResolved, errors.TypeOf(err))
}

func TestStore_RespondDisarmsTimer(t *testing.T) {
	store := testStore(StoreOptions{MaxPending: 5, DefaultTimeout: time.Minute, GraceDelay: time.Minute})
	defer store.Stop()

	req := validRequest()
	req.Timeout = 50 * time.Millisecond
	p, err := store.Create(req)
	require.NoError(t, err)

	_, err = store.Respond(p.ID, "u2", domain.StatusAccepted)
	require.NoError(t, err)

	// wait past the original expiry; the stale timer must not flip status
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, domain.StatusAccepted, p.Status())
}

func TestStore_GraceWindowDeletion(t *testing.T) {
	store := testStore(StoreOptions{MaxPending: 5, DefaultTimeout: time.Minute, GraceDelay: 20 * time.Millisecond})
	defer store.Stop()

	p, err := store.Create(validRequest())
	require.NoError(t, err)

	_, err = store.Respond(p.ID, "u2", domain.StatusAccepted)
	require.NoError(t, err)

	// still readable during the grace window
	_, ok := store.Get(p.ID)
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := store.Get(p.ID)
		return !ok
	}, time.Second, 5*time.Millisecond, "resolved proposal must leave the active map after the grace delay")

	_, err = store.Respond(p.ID, "u2", domain.StatusAccepted)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
}

func TestStore_PendingFor(t *testing.T) {
	store := testStore(DefaultStoreOptions())
	defer store.Stop()

	first, err := store.Create(validRequest())
	require.NoError(t, err)

	reqToOther := validRequest()
	reqToOther.CounterpartyID = "u3"
	_, err = store.Create(reqToOther)
	require.NoError(t, err)

	second := validRequest()
	second.BetID = "b2"
	p2, err := store.Create(second)
	require.NoError(t, err)

	pending := store.PendingFor("u2")
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest first")
	assert.Equal(t, p2.ID, pending[1].ID)

	_, err = store.Respond(first.ID, "u2", domain.StatusRejected)
	require.NoError(t, err)
	assert.Len(t, store.PendingFor("u2"), 1)
}

func TestStore_CountsByStatus(t *testing.T) {
	store := testStore(DefaultStoreOptions())
	defer store.Stop()

	p1, err := store.Create(validRequest())
	require.NoError(t, err)

	second := validRequest()
	second.BetID = "b2"
	p2, err := store.Create(second)
	require.NoError(t, err)

	_, err = store.Respond(p1.ID, "u2", domain.StatusAccepted)
	require.NoError(t, err)
	_, err = store.Cancel(p2.ID, "u1")
	require.NoError(t, err)

	counts := store.CountsByStatus()
	assert.Equal(t, int64(0), counts["pending"])
	assert.Equal(t, int64(1), counts["accepted"])
	assert.Equal(t, int64(1), counts["cancelled"])
}

func TestStore_StopRejectsCreate(t *testing.T) {
	store := testStore(DefaultStoreOptions())
	store.Stop()

	_, err := store.Create(validRequest())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeInternal, errors.TypeOf(err))
}
