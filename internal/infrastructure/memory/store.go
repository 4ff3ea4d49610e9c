package memory

import (
	"context"
	"sync"
	"time"

	"sealed-auction/internal/domain"
)

// Store is the in-process AuctionStore. The outer RWMutex only guards
// the map and ID counter; every record carries its own mutex so bids on
// unrelated auctions never contend.
type Store struct {
	mu          sync.RWMutex
	records     map[uint64]*record
	nextID      uint64
	minDuration time.Duration
}

type record struct {
	mu      sync.Mutex
	auction domain.Auction
}

func NewStore(minDuration time.Duration) *Store {
	return &Store{
		records:     make(map[uint64]*record),
		minDuration: minDuration,
	}
}

func (s *Store) Allocate(ctx context.Context, owner, title, description string, duration time.Duration, reservePrice int64, now time.Time) (*domain.Auction, error) {
	if duration < s.minDuration || reservePrice <= 0 {
		return nil, domain.ErrInvalidParameters
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec := &record{
		auction: domain.Auction{
			ID:           s.nextID,
			Owner:        owner,
			Title:        title,
			Description:  description,
			ReservePrice: reservePrice,
			StartTime:    now,
			EndTime:      now.Add(duration),
			State:        domain.StateActive,
			Bids:         make(map[string]domain.Bid),
		},
	}
	s.records[rec.auction.ID] = rec

	return rec.auction.Clone(), nil
}

func (s *Store) Get(ctx context.Context, id uint64) (*domain.Auction, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.auction.Clone(), nil
}

func (s *Store) ListActive(ctx context.Context) ([]*domain.Auction, error) {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	var active []*domain.Auction
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.auction.State == domain.StateActive {
			active = append(active, rec.auction.Clone())
		}
		rec.mu.Unlock()
	}
	return active, nil
}

func (s *Store) UpsertBid(ctx context.Context, id uint64, bidder string, amount int64, now time.Time) error {
	rec, err := s.lookup(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.State != domain.StateActive || rec.auction.Expired(now) {
		return domain.ErrAuctionNotActive
	}

	// One entry per bidder: a later bid replaces the earlier one.
	rec.auction.Bids[bidder] = domain.Bid{
		Bidder:   bidder,
		Amount:   amount,
		PlacedAt: now,
	}
	return nil
}

func (s *Store) Finalize(ctx context.Context, id uint64, outcome domain.Outcome) error {
	rec, err := s.lookup(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.State == domain.StateEnded {
		return domain.ErrAlreadyFinalized
	}
	rec.auction.State = domain.StateEnded
	rec.auction.Outcome = &outcome
	return nil
}

func (s *Store) lookup(id uint64) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return rec, nil
}
