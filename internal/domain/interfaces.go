package domain

import (
	"context"
	"time"
)

// AuctionStore owns the full record set. Implementations must make
// UpsertBid and Finalize atomic per auction ID, and must not let
// operations on different IDs contend with each other. All reads
// return snapshots, never live records.
type AuctionStore interface {
	// Allocate creates a new Active record with a fresh, never-reused ID,
	// StartTime = now and EndTime = now + duration.
	Allocate(ctx context.Context, owner, title, description string, duration time.Duration, reservePrice int64, now time.Time) (*Auction, error)

	// Get returns a snapshot of one record, or ErrAuctionNotFound.
	Get(ctx context.Context, id uint64) (*Auction, error)

	// ListActive returns a stable snapshot of all records in StateActive.
	// No ordering guarantee.
	ListActive(ctx context.Context) ([]*Auction, error)

	// UpsertBid inserts or replaces the bid keyed by bidder, after
	// atomically checking the record is Active and now < EndTime.
	// Rejects with ErrAuctionNotFound or ErrAuctionNotActive.
	UpsertBid(ctx context.Context, id uint64, bidder string, amount int64, now time.Time) error

	// Finalize flips the record to StateEnded and writes outcome, exactly
	// once. A second attempt returns ErrAlreadyFinalized; concurrent
	// attempts produce exactly one success.
	Finalize(ctx context.Context, id uint64, outcome Outcome) error
}

// EventPublisher fans lifecycle events out to whatever is listening.
// Publishing is best-effort; failures must not fail the operation that
// produced the event.
type EventPublisher interface {
	PublishLifecycleEvent(ctx context.Context, event *LifecycleEvent) error
}

// Clock supplies the current time so tests can inject it. The engine
// reads it once per call; expiry is enforced lazily against that value.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
