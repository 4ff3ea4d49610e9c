package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed-auction/internal/domain"
	"sealed-auction/internal/infrastructure/memory"
	"sealed-auction/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []*domain.LifecycleEvent
}

func (p *capturingPublisher) PublishLifecycleEvent(_ context.Context, event *domain.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) byType(t domain.EventType) []*domain.LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.LifecycleEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestEngine(t *testing.T, hideExpired bool) (*Engine, *fakeClock, *capturingPublisher) {
	t.Helper()
	clock := newFakeClock()
	events := &capturingPublisher{}
	store := memory.NewStore(60 * time.Second)
	return NewEngine(store, clock, events, hideExpired, logger.NewNop()), clock, events
}

func TestCreateAuction_Validation(t *testing.T) {
	engine, _, _ := newTestEngine(t, false)
	ctx := context.Background()

	cases := []struct {
		name     string
		title    string
		desc     string
		duration int64
		reserve  int64
	}{
		{"empty title", "", "desc", 3600, 100},
		{"empty description", "title", "", 3600, 100},
		{"duration below minimum", "title", "desc", 59, 100},
		{"zero duration", "title", "desc", 0, 100},
		{"zero reserve", "title", "desc", 3600, 0},
		{"negative reserve", "title", "desc", 3600, -5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.CreateAuction(ctx, "owner", tc.title, tc.desc, tc.duration, tc.reserve)
			assert.ErrorIs(t, err, domain.ErrInvalidParameters)
		})
	}
}

func TestCreateAuction_WindowAtLeastMinimum(t *testing.T) {
	engine, clock, events := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 60, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	listed, err := engine.ActiveAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, clock.Now(), listed[0].StartTime)
	assert.GreaterOrEqual(t, listed[0].EndTime.Sub(listed[0].StartTime), 60*time.Second)

	assert.Len(t, events.byType(domain.AuctionCreated), 1)
}

func TestPlaceBid_LatestAmountWins(t *testing.T) {
	engine, clock, _ := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)

	require.NoError(t, engine.PlaceBid(ctx, id, "alice", 200))
	require.NoError(t, engine.PlaceBid(ctx, id, "alice", 70))
	require.NoError(t, engine.PlaceBid(ctx, id, "bob", 60))

	clock.Advance(2 * time.Hour)
	outcome, err := engine.EndAuction(ctx, id, "owner")
	require.NoError(t, err)

	// Alice's first bid of 200 was replaced by 70.
	assert.Equal(t, "alice", outcome.Winner)
	assert.Equal(t, int64(60), outcome.Price)
}

func TestPlaceBid_Rejections(t *testing.T) {
	engine, clock, _ := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)

	assert.ErrorIs(t, engine.PlaceBid(ctx, id, "alice", 0), domain.ErrInvalidAmount)
	assert.ErrorIs(t, engine.PlaceBid(ctx, id, "alice", -10), domain.ErrInvalidAmount)
	assert.ErrorIs(t, engine.PlaceBid(ctx, 999, "alice", 10), domain.ErrAuctionNotFound)

	// Window elapsed but not yet settled: still not biddable.
	clock.Advance(2 * time.Hour)
	assert.ErrorIs(t, engine.PlaceBid(ctx, id, "alice", 10), domain.ErrAuctionNotActive)

	_, err = engine.EndAuction(ctx, id, "owner")
	require.NoError(t, err)
	assert.ErrorIs(t, engine.PlaceBid(ctx, id, "alice", 10), domain.ErrAuctionNotActive)
}

func TestPlaceBid_OwnerMayBid(t *testing.T) {
	engine, _, _ := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)

	assert.NoError(t, engine.PlaceBid(ctx, id, "owner", 75))
}

func TestEndAuction_Rejections(t *testing.T) {
	engine, clock, _ := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)
	require.NoError(t, engine.PlaceBid(ctx, id, "alice", 100))

	_, err = engine.EndAuction(ctx, 999, "owner")
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	_, err = engine.EndAuction(ctx, id, "owner")
	assert.ErrorIs(t, err, domain.ErrTooEarly)

	clock.Advance(2 * time.Hour)

	// Non-owner stays rejected even after expiry.
	_, err = engine.EndAuction(ctx, id, "mallory")
	assert.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestEndAuction_Idempotent(t *testing.T) {
	engine, clock, events := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)
	require.NoError(t, engine.PlaceBid(ctx, id, "alice", 100))
	require.NoError(t, engine.PlaceBid(ctx, id, "bob", 80))

	clock.Advance(2 * time.Hour)

	first, err := engine.EndAuction(ctx, id, "owner")
	require.NoError(t, err)
	second, err := engine.EndAuction(ctx, id, "owner")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "alice", first.Winner)
	assert.Equal(t, int64(80), first.Price)

	// Exactly one settlement event for the single finalize transition.
	assert.Len(t, events.byType(domain.AuctionEnded), 1)
}

func TestEndAuction_ConcurrentCallsAgree(t *testing.T) {
	engine, clock, events := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)
	require.NoError(t, engine.PlaceBid(ctx, id, "alice", 100))
	clock.Advance(2 * time.Hour)

	const callers = 8
	outcomes := make([]domain.Outcome, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = engine.EndAuction(ctx, id, "owner")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, outcomes[0], outcomes[i])
	}
	assert.Len(t, events.byType(domain.AuctionEnded), 1)
}

func TestEndAuction_NoQualifyingWinner(t *testing.T) {
	engine, clock, _ := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)
	require.NoError(t, engine.PlaceBid(ctx, id, "alice", 40))

	clock.Advance(2 * time.Hour)
	outcome, err := engine.EndAuction(ctx, id, "owner")
	require.NoError(t, err)

	assert.False(t, outcome.HasWinner())
}

func TestActiveAuctions_LazyExpiryPassThrough(t *testing.T) {
	engine, clock, _ := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	// Expired but unsettled: still reported as active by default.
	listed, err := engine.ActiveAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "active", listed[0].State.String())

	_, err = engine.EndAuction(ctx, id, "owner")
	require.NoError(t, err)

	listed, err = engine.ActiveAuctions(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestActiveAuctions_HideExpiredFlag(t *testing.T) {
	engine, clock, _ := newTestEngine(t, true)
	ctx := context.Background()

	_, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)
	_, err = engine.CreateAuction(ctx, "owner", "vase", "a cracked vase", 7200, 50)
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)

	listed, err := engine.ActiveAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "vase", listed[0].Title)
}

func TestEngine_PublishFailureDoesNotFailOperations(t *testing.T) {
	clock := newFakeClock()
	store := memory.NewStore(60 * time.Second)
	engine := NewEngine(store, clock, failingPublisher{}, false, logger.NewNop())
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)
	require.NoError(t, engine.PlaceBid(ctx, id, "alice", 100))

	clock.Advance(2 * time.Hour)

	outcome, err := engine.EndAuction(ctx, id, "owner")
	require.NoError(t, err)
	assert.Equal(t, "alice", outcome.Winner)

	// The record still settled despite the dead event sink.
	listed, err := engine.ActiveAuctions(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestActiveAuctions_NeverExposesBids(t *testing.T) {
	engine, _, _ := newTestEngine(t, false)
	ctx := context.Background()

	id, err := engine.CreateAuction(ctx, "owner", "lamp", "an old lamp", 3600, 50)
	require.NoError(t, err)
	require.NoError(t, engine.PlaceBid(ctx, id, "alice", 100))

	listed, err := engine.ActiveAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].Bids)
}
