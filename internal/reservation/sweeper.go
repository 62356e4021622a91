// internal/reservation/sweeper.go
package reservation

import (
	"context"
	"log"
	"time"
)

// DefaultSweepInterval is how often lapsed holds are reclaimed.
const DefaultSweepInterval = time.Minute

// Sweeper periodically reclaims pending reservations whose confirmation
// deadline has lapsed, so holds nobody revisits do not lock inventory
// forever. It runs on its own timer, independent of request handling, and
// uses the same transition path as manual cancellation.
type Sweeper struct {
	service  Service
	interval time.Duration
}

// NewSweeper creates a sweeper driving the given service. A non-positive
// interval falls back to DefaultSweepInterval.
func NewSweeper(service Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{service: service, interval: interval}
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := s.service.ExpireDue(ctx)
			if err != nil {
				log.Printf("Reservation sweep failed: %v", err)
				continue
			}
			if expired > 0 {
				log.Printf("Reservation sweep expired %d reservation(s)", expired)
			}
		}
	}
}
