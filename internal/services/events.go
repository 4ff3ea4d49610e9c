package services

import (
	"context"
	"errors"

	"sealed-auction/internal/domain"
)

// FanoutPublisher delivers each lifecycle event to every configured
// publisher. Delivery is attempted on all of them even when one fails.
type FanoutPublisher struct {
	publishers []domain.EventPublisher
}

func NewFanoutPublisher(publishers ...domain.EventPublisher) *FanoutPublisher {
	return &FanoutPublisher{publishers: publishers}
}

func (f *FanoutPublisher) PublishLifecycleEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	var errs []error
	for _, pub := range f.publishers {
		if err := pub.PublishLifecycleEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher drops events; used when no event sink is configured.
type NopPublisher struct{}

func (NopPublisher) PublishLifecycleEvent(context.Context, *domain.LifecycleEvent) error {
	return nil
}
