// internal/services/expiry_scheduler.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpiryScheduler periodically expires pending orders whose payment session
// was abandoned, for processors that never send the expiry webhook.
type ExpiryScheduler struct {
	orders   *OrderService
	interval time.Duration
	maxAge   time.Duration
	log      *logrus.Entry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewExpiryScheduler(orders *OrderService, interval, maxAge time.Duration) *ExpiryScheduler {
	return &ExpiryScheduler{
		orders:   orders,
		interval: interval,
		maxAge:   maxAge,
		log:      logrus.WithField("component", "expiry_scheduler"),
		stopCh:   make(chan struct{}),
	}
}

func (s *ExpiryScheduler) Start(ctx context.Context) {
	s.log.WithFields(logrus.Fields{
		"interval": s.interval.String(),
		"max_age":  s.maxAge.String(),
	}).Info("Starting order expiry scheduler")

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop ends the loop and waits for a sweep in progress.
func (s *ExpiryScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info("Stopping order expiry scheduler")
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *ExpiryScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.log.Info("Order expiry scheduler cancelled")
			return
		}
	}
}

func (s *ExpiryScheduler) RunOnce(ctx context.Context) int {
	n, err := s.orders.ExpireStalePending(ctx, s.maxAge)
	if err != nil {
		s.log.WithError(err).Error("Order expiry sweep failed")
	}
	return n
}
