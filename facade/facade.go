// Package facade enforces the object protocol and the bag/message state
// machine atop a storage.Driver. It is the one package that knows about
// namespace-crossing invariants — name immutability, the
// draft/document/contract lifecycle, and at-most-once message delivery —
// so that every driver and every caller above it can stay simple.
//
// The facade wraps driver "io" failures with operation context exactly
// once; other error kinds, already typed by the driver, pass through
// unchanged.
package facade

import (
	"time"

	"xdao.co/depot/cache"
	"xdao.co/depot/model"
	"xdao.co/depot/notary"
	"xdao.co/depot/ratelimit"
	"xdao.co/depot/storage"
)

// Clock provides authority time for lease timestamps. Inject a fake in
// tests rather than depending on time.Now directly.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Facade composes a storage.Driver with three read-through caches
// (name→citation, document, contract). Drafts and messages bypass the
// cache entirely — both are mutated too often for a read-through cache to
// pay for itself.
type Facade struct {
	driver storage.Driver
	notary notary.Notary
	clock  Clock

	names     *cache.Cache[model.Citation]
	documents *cache.Cache[model.Document]
	contracts *cache.Cache[model.Contract]

	limiter       *ratelimit.Limiter
	limiterPolicy ratelimit.Policy
}

// Config configures cache capacity per class. Zero uses the cache
// package's default of 256. Clock defaults to the wall clock; override it
// for deterministic lease-sweeper tests.
//
// Limiter, if set, admission-checks every AddMessage call against
// LimiterPolicy before the bag capacity check runs. It narrows the burst
// window under concurrent admission but never replaces the capacity
// check — a Facade constructed without a Limiter behaves exactly as one
// with no rate limiting configured.
type Config struct {
	NameCacheCapacity     int
	DocumentCacheCapacity int
	ContractCacheCapacity int
	Clock                 Clock
	Limiter               *ratelimit.Limiter
	LimiterPolicy         ratelimit.Policy
}

// New constructs a Facade over driver, signing through notary. The cache
// is owned per-instance, never a module global.
func New(driver storage.Driver, n notary.Notary, cfg Config) *Facade {
	clock := cfg.Clock
	if clock == nil {
		clock = wallClock{}
	}
	return &Facade{
		driver:        driver,
		notary:        n,
		clock:         clock,
		names:         cache.New[model.Citation](cfg.NameCacheCapacity),
		documents:     cache.New[model.Document](cfg.DocumentCacheCapacity),
		contracts:     cache.New[model.Contract](cfg.ContractCacheCapacity),
		limiter:       cfg.Limiter,
		limiterPolicy: cfg.LimiterPolicy,
	}
}

func wrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	if k := model.KindOf(err); k != "" && k != model.KindIO {
		return err
	}
	return model.Wrap(op, model.KindIO, "backend I/O failure", err)
}
