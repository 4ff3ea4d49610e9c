package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"sealed-auction/internal/domain"
	"sealed-auction/pkg/logger"
)

// Engine enforces the auction lifecycle and runs settlement. It holds
// no auction state of its own; everything goes through the store.
type Engine struct {
	store       domain.AuctionStore
	clock       domain.Clock
	events      domain.EventPublisher
	log         logger.Logger
	hideExpired bool
}

func NewEngine(
	store domain.AuctionStore,
	clock domain.Clock,
	events domain.EventPublisher,
	hideExpired bool,
	log logger.Logger,
) *Engine {
	return &Engine{
		store:       store,
		clock:       clock,
		events:      events,
		log:         log,
		hideExpired: hideExpired,
	}
}

func (e *Engine) CreateAuction(ctx context.Context, owner, title, description string, durationSeconds, reservePrice int64) (uint64, error) {
	if title == "" || description == "" || durationSeconds <= 0 {
		return 0, domain.ErrInvalidParameters
	}

	now := e.clock.Now()
	duration := time.Duration(durationSeconds) * time.Second

	auction, err := e.store.Allocate(ctx, owner, title, description, duration, reservePrice, now)
	if err != nil {
		return 0, err
	}

	e.log.Info("Auction created",
		"auction_id", auction.ID, "owner", owner, "end_time", auction.EndTime)
	e.publish(ctx, &domain.LifecycleEvent{
		Type:      domain.AuctionCreated,
		AuctionID: auction.ID,
		Owner:     owner,
		Timestamp: now,
	})

	return auction.ID, nil
}

// PlaceBid inserts or replaces the caller's sealed bid. An owner may
// bid on their own auction; no event is published since bid contents
// stay private until settlement.
func (e *Engine) PlaceBid(ctx context.Context, auctionID uint64, bidder string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	now := e.clock.Now()
	if err := e.store.UpsertBid(ctx, auctionID, bidder, amount, now); err != nil {
		return err
	}

	e.log.Debug("Bid recorded", "auction_id", auctionID, "bidder", bidder)
	return nil
}

// EndAuction settles an expired auction on behalf of its owner. If a
// concurrent call finalized first, the recorded outcome is returned as
// a success rather than an error.
//
// Settlement computes over a snapshot of the bid set: a bid the store
// accepts between that read and the finalize is retained on the record
// but not part of the outcome. Bids are only guaranteed rejection once
// the finalize is visible.
func (e *Engine) EndAuction(ctx context.Context, auctionID uint64, caller string) (domain.Outcome, error) {
	auction, err := e.store.Get(ctx, auctionID)
	if err != nil {
		return domain.Outcome{}, err
	}

	if auction.Owner != caller {
		return domain.Outcome{}, domain.ErrNotOwner
	}
	if auction.State == domain.StateEnded {
		// Repeated end by the owner reads back the recorded outcome.
		if auction.Outcome == nil {
			return domain.Outcome{}, domain.ErrAlreadyEnded
		}
		return *auction.Outcome, nil
	}

	now := e.clock.Now()
	if now.Before(auction.EndTime) {
		return domain.Outcome{}, domain.ErrTooEarly
	}

	outcome := settle(auction.Bids, auction.ReservePrice)

	if err := e.store.Finalize(ctx, auctionID, outcome); err != nil {
		if errors.Is(err, domain.ErrAlreadyFinalized) {
			return e.recordedOutcome(ctx, auctionID)
		}
		return domain.Outcome{}, err
	}

	e.log.Info("Auction settled",
		"auction_id", auctionID, "winner", outcome.Winner, "price", outcome.Price)
	e.publish(ctx, &domain.LifecycleEvent{
		Type:      domain.AuctionEnded,
		AuctionID: auctionID,
		Owner:     auction.Owner,
		Outcome:   &outcome,
		Timestamp: now,
	})

	return outcome, nil
}

// ActiveAuctions lists records still in the active state. Expired but
// unsettled auctions are included unless hideExpired is set. Bid sets
// are stripped; they are only visible through the settled outcome.
func (e *Engine) ActiveAuctions(ctx context.Context) ([]*domain.Auction, error) {
	auctions, err := e.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	listed := make([]*domain.Auction, 0, len(auctions))
	for _, auction := range auctions {
		if e.hideExpired && auction.Expired(now) {
			continue
		}
		auction.Bids = nil
		listed = append(listed, auction)
	}
	return listed, nil
}

// recordedOutcome resolves a lost finalize race by re-reading the record.
func (e *Engine) recordedOutcome(ctx context.Context, auctionID uint64) (domain.Outcome, error) {
	auction, err := e.store.Get(ctx, auctionID)
	if err != nil {
		return domain.Outcome{}, err
	}
	if auction.Outcome == nil {
		return domain.Outcome{}, domain.ErrAlreadyEnded
	}
	return *auction.Outcome, nil
}

func (e *Engine) publish(ctx context.Context, event *domain.LifecycleEvent) {
	if e.events == nil {
		return
	}
	event.ID = uuid.NewString()
	if err := e.events.PublishLifecycleEvent(ctx, event); err != nil {
		e.log.Warn("Failed to publish lifecycle event",
			"type", event.Type, "auction_id", event.AuctionID, "error", err)
	}
}
