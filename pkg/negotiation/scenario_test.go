package negotiation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galleralive/realtime/internal/eventbus"
	"github.com/galleralive/realtime/pkg/domain"
	"github.com/galleralive/realtime/pkg/transport/protocol"
)

// Full negotiation round-trip through the socket protocol: u1 offers a PAGO
// renegotiation to u2 and the result reaches both parties exactly once,
// whether u2 answers in time or lets the offer run out.
func newScenario(t *testing.T) (*protocol.DefaultHandlerRegistry, *Store, *mockSender) {
	t.Helper()

	bus := eventbus.NewInMemoryBus(16)
	sender := newMockSender()
	logger := testLogger()

	store := NewStore(bus, logger, StoreOptions{
		MaxPending:     5,
		DefaultTimeout: time.Minute,
		GraceDelay:     time.Minute,
	})
	t.Cleanup(store.Stop)

	NewNotifier(sender, logger).Attach(bus)
	return NewRouter(store, logger), store, sender
}

func createOverSocket(t *testing.T, router *protocol.DefaultHandlerRegistry, timeoutMs int64) string {
	t.Helper()

	msg := mustMessage(t, domain.MessageTypeCreatePago, domain.CreateProposalRequest{
		FightID:        "f1",
		BetID:          "b1",
		ProposedTo:     "u2",
		Amount:         100,
		ProposedAmount: 80,
		Side:           "red",
		TimeoutMs:      timeoutMs,
	})

	resp, err := router.Handle(identityCtx("u1"), msg)
	require.NoError(t, err)
	require.Equal(t, domain.MessageTypeProposalCreated, resp.Type)

	var created domain.ProposalCreatedResponse
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	return created.ProposalID
}

func TestScenario_AcceptBeforeExpiry(t *testing.T) {
	router, _, sender := newScenario(t)

	proposalID := createOverSocket(t, router, 200)

	offers := sender.received("u2", domain.MessageTypeProposalReceived)
	require.Len(t, offers, 1)
	var offer map[string]interface{}
	require.NoError(t, json.Unmarshal(offers[0].Data, &offer))
	assert.Equal(t, proposalID, offer["proposalId"])

	time.Sleep(50 * time.Millisecond)

	respond := mustMessage(t, domain.MessageTypeRespond, domain.RespondRequest{
		ProposalID: proposalID,
		Response:   "accept",
	})
	resp, err := router.Handle(identityCtx("u2"), respond)
	require.NoError(t, err)
	assert.Nil(t, resp)

	for _, user := range []string{"u1", "u2"} {
		results := sender.received(user, domain.MessageTypeProposalResult)
		require.Len(t, results, 1, "user %s", user)

		var body domain.ProposalResultMessage
		require.NoError(t, json.Unmarshal(results[0].Data, &body))
		assert.Equal(t, "accepted", body.Result)
	}

	// well past the original 200ms expiry; the disarmed timer must stay quiet
	time.Sleep(250 * time.Millisecond)
	assert.Len(t, sender.received("u1", domain.MessageTypeProposalResult), 1)
	assert.Len(t, sender.received("u2", domain.MessageTypeProposalResult), 1)
}

func TestScenario_NoResponseTimesOut(t *testing.T) {
	router, store, sender := newScenario(t)

	proposalID := createOverSocket(t, router, 200)

	require.Eventually(t, func() bool {
		return len(sender.received("u2", domain.MessageTypeProposalResult)) == 1
	}, time.Second, 10*time.Millisecond)

	for _, user := range []string{"u1", "u2"} {
		results := sender.received(user, domain.MessageTypeProposalResult)
		require.Len(t, results, 1, "user %s", user)

		var body domain.ProposalResultMessage
		require.NoError(t, json.Unmarshal(results[0].Data, &body))
		assert.Equal(t, proposalID, body.ProposalID)
		assert.Equal(t, "timeout", body.Result)
		assert.Equal(t, "f1", body.FightID)
	}

	// a late accept gets the duplicate-transition answer
	respond := mustMessage(t, domain.MessageTypeRespond, domain.RespondRequest{
		ProposalID: proposalID,
		Response:   "accept",
	})
	resp, err := router.Handle(identityCtx("u2"), respond)
	require.NoError(t, err)
	assert.Equal(t, "proposal is no longer pending", decodeError(t, resp))

	p, ok := store.Get(proposalID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusExpired, p.Status())
}
