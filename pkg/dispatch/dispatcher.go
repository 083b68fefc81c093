// Package dispatch is the integration seam between the platform's business
// logic and the broadcast hub. Collaborators call the typed helpers here and
// never touch the registry or history directly.
package dispatch

import (
	"context"

	"github.com/galleralive/realtime/internal/logging"
	"github.com/galleralive/realtime/pkg/domain"
)

// Publisher is the hub surface the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, ev domain.Event) int
	PublishToSet(ctx context.Context, channels []string, ev domain.Event) int
}

// Dispatcher translates domain occurrences into typed broadcast events. It
// holds no state of its own.
type Dispatcher struct {
	hub    Publisher
	logger *logging.Logger
}

// NewDispatcher creates a dispatcher publishing through the given hub.
func NewDispatcher(hub Publisher, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, logger: logger}
}

// FightStatusChanged broadcasts a fight status transition to the fight's
// channel and the global mirror.
func (d *Dispatcher) FightStatusChanged(ctx context.Context, fightID, previous, status string) int {
	priority := domain.PriorityHigh
	if status == "finished" || status == "cancelled" {
		priority = domain.PriorityCritical
	}

	ev := domain.NewEvent(
		domain.FightStatusPayload{FightID: fightID, PreviousStatus: previous, Status: status},
		priority,
		domain.Metadata{FightID: fightID},
	)

	return d.hub.PublishToSet(ctx, []string{domain.FightChannel(fightID), domain.ChannelGlobal}, ev)
}

// BetPlaced broadcasts a newly placed bet to the fight channel and the
// betting notification feed.
func (d *Dispatcher) BetPlaced(ctx context.Context, betID, fightID, userID string, amount float64, side string) int {
	ev := domain.NewEvent(
		domain.BetPlacedPayload{BetID: betID, FightID: fightID, UserID: userID, Amount: amount, Side: side},
		domain.PriorityMedium,
		domain.Metadata{UserID: userID, FightID: fightID, BetID: betID},
	)

	return d.hub.PublishToSet(ctx, []string{domain.FightChannel(fightID), domain.ChannelBetting}, ev)
}

// BetMatched broadcasts two bets pairing off.
func (d *Dispatcher) BetMatched(ctx context.Context, betID, matchedBetID, fightID string, amount float64) int {
	ev := domain.NewEvent(
		domain.BetMatchedPayload{BetID: betID, MatchedBetID: matchedBetID, FightID: fightID, Amount: amount},
		domain.PriorityHigh,
		domain.Metadata{FightID: fightID, BetID: betID},
	)

	return d.hub.PublishToSet(ctx, []string{domain.FightChannel(fightID), domain.ChannelBetting}, ev)
}

// OddsUpdated broadcasts an odds refresh to the fight channel.
func (d *Dispatcher) OddsUpdated(ctx context.Context, fightID string, red, blue float64, version int) int {
	ev := domain.NewEvent(
		domain.OddsPayload{FightID: fightID, Red: red, Blue: blue, Version: version},
		domain.PriorityLow,
		domain.Metadata{FightID: fightID},
	)

	return d.hub.Publish(ctx, domain.FightChannel(fightID), ev)
}

// PaymentProcessed broadcasts a processed payment to the betting feed and
// the admin channel.
func (d *Dispatcher) PaymentProcessed(ctx context.Context, paymentID, userID string, amount float64, status string) int {
	ev := domain.NewEvent(
		domain.PaymentPayload{PaymentID: paymentID, UserID: userID, Amount: amount, Status: status},
		domain.PriorityHigh,
		domain.Metadata{UserID: userID},
	)

	return d.hub.PublishToSet(ctx, []string{domain.ChannelBetting, domain.ChannelAdmin}, ev)
}

// SystemNotice broadcasts an operator notice to the admin channel.
func (d *Dispatcher) SystemNotice(ctx context.Context, message string, priority domain.Priority) int {
	ev := domain.NewEvent(
		domain.NoticePayload{Message: message},
		priority,
		domain.Metadata{},
	)

	return d.hub.Publish(ctx, domain.ChannelAdmin, ev)
}
