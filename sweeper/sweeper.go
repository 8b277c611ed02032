// Package sweeper implements an optional lease-expiry sweeper for the bag
// protocol, run as a background hook with a configurable TTL. It scans a
// bag's processing messages and re-promotes any whose lease has outlived
// the configured TTL back to available.
//
// The facade never depends on this package — a sweeper is an out-of-band
// caller of the same Facade operations any other borrower would use, so it
// cannot observe or create states the facade doesn't already tolerate
// (ReturnMessage reports leaseExpired cleanly when raced by another
// sweeper or an acking borrower).
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"xdao.co/depot/facade"
	"xdao.co/depot/model"
)

// Clock provides authority time for lease-age comparisons. Inject a fake
// in tests rather than depending on time.Now directly.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Sweeper periodically reclaims processing messages whose lease has
// expired for a single bag.
type Sweeper struct {
	facade *facade.Facade
	bag    model.Citation
	ttl    time.Duration
	clock  Clock
	logger *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock overrides the default wall clock.
func WithClock(c Clock) Option {
	return func(s *Sweeper) { s.clock = c }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// New constructs a Sweeper for bag, reclaiming leases older than ttl.
func New(f *facade.Facade, bag model.Citation, ttl time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		facade: f,
		bag:    bag,
		ttl:    ttl,
		clock:  wallClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep scans bag's processing entries and returns each stale one, which
// bumps its version and republishes it as available. It returns the
// number of leases reclaimed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	processing, err := s.facade.ListProcessing(ctx, s.bag)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	reclaimed := 0
	for _, msg := range processing {
		if msg.LeasedAt.IsZero() || now.Sub(msg.LeasedAt) < s.ttl {
			continue
		}
		if _, err := s.facade.ReturnMessage(ctx, msg); err != nil {
			if model.IsKind(err, model.KindLeaseExpired) {
				continue // already reclaimed by another sweeper or borrower
			}
			return reclaimed, err
		}
		reclaimed++
		s.logger.Info("sweeper: reclaimed expired lease", "bag", s.bag.Tag, "message", msg.Citation.Tag)
	}
	return reclaimed, nil
}

// Run sweeps on interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweeper: sweep failed", "bag", s.bag.Tag, "error", err)
			} else if n > 0 {
				s.logger.Info("sweeper: swept expired leases", "bag", s.bag.Tag, "count", n)
			}
		}
	}
}
