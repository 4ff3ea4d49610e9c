package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"sealed-auction/internal/domain"
	"sealed-auction/pkg/logger"
)

// ExpiryReporter periodically logs how many active auctions have run
// past their end time without being settled. It only observes: expiry
// is enforced lazily per call and settlement stays with the owner.
type ExpiryReporter struct {
	cron     *cron.Cron
	store    domain.AuctionStore
	clock    domain.Clock
	interval time.Duration
	log      logger.Logger
}

func NewExpiryReporter(store domain.AuctionStore, clock domain.Clock, interval time.Duration, log logger.Logger) *ExpiryReporter {
	return &ExpiryReporter{
		cron:     cron.New(cron.WithSeconds()),
		store:    store,
		clock:    clock,
		interval: interval,
		log:      log,
	}
}

func (r *ExpiryReporter) Start(ctx context.Context) error {
	r.log.Info("Starting expiry reporter", "interval", r.interval)

	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		r.report(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	return nil
}

func (r *ExpiryReporter) Stop() error {
	r.log.Info("Stopping expiry reporter")
	r.cron.Stop()
	return nil
}

func (r *ExpiryReporter) report(ctx context.Context) {
	auctions, err := r.store.ListActive(ctx)
	if err != nil {
		r.log.Error("Failed to list active auctions", "error", err)
		return
	}

	now := r.clock.Now()
	expired := 0
	for _, auction := range auctions {
		if auction.Expired(now) {
			expired++
		}
	}

	r.log.Info("Auction window report",
		"active", len(auctions), "awaiting_settlement", expired)
}
