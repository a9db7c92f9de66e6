package rate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mtlprog/savebox/internal/domain"
	"github.com/mtlprog/savebox/internal/metrics"
)

const (
	DefaultTTL     = 180 * time.Minute
	DefaultTimeout = 7 * time.Second

	providerFallback = "fallback_env"
	flightKey        = "latest"

	warnStale    = "using cached benchmark rate: source temporarily unavailable"
	warnFallback = "using configured fallback annual rate: source unavailable"
)

// Fetcher performs the external fetch of the latest benchmark rate.
type Fetcher interface {
	FetchLatest(ctx context.Context) (domain.RateSnapshot, error)
}

// ResolveOptions control a single resolution.
type ResolveOptions struct {
	// ForceRefresh skips the fresh-cache short-circuit.
	ForceRefresh bool
	// AllowStale permits an expired snapshot when the fetch fails.
	AllowStale bool
}

// CacheConfig holds the lifecycle parameters of a Cache.
type CacheConfig struct {
	TTL                time.Duration
	Timeout            time.Duration
	FallbackAnnualRate float64
	SeriesCode         string
}

// Cache is a process-wide, time-boxed holder of the last fetched rate.
// Concurrent misses share one in-flight fetch.
type Cache struct {
	fetcher  Fetcher
	ttl      time.Duration
	timeout  time.Duration
	fallback float64
	series   string
	now      func() time.Time

	mu       sync.RWMutex
	snapshot *domain.RateSnapshot
	flight   singleflight.Group
}

// NewCache creates a Cache. Non-positive TTL or timeout select the defaults.
func NewCache(fetcher Fetcher, cfg CacheConfig) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Cache{
		fetcher:  fetcher,
		ttl:      ttl,
		timeout:  timeout,
		fallback: max(cfg.FallbackAnnualRate, 0),
		series:   cfg.SeriesCode,
		now:      time.Now,
	}
}

// Resolve returns the current benchmark rate: a fresh cached snapshot, the
// result of a (shared) fetch, or a fallback when the fetch fails.
// Errors wrap domain.ErrRateUnavailable.
func (c *Cache) Resolve(ctx context.Context, opts ResolveOptions) (domain.RateSnapshot, error) {
	if !opts.ForceRefresh {
		if s, ok := c.fresh(); ok {
			metrics.RateCacheHitsTotal.Inc()
			s.FromCache = true
			return s, nil
		}
	}

	v, err, _ := c.flight.Do(flightKey, func() (any, error) {
		return c.fetch(ctx)
	})
	if err == nil {
		return v.(domain.RateSnapshot), nil
	}

	return c.fallbackFor(err, opts.AllowStale)
}

// Invalidate expires the cached snapshot. It stays available as the stale
// fallback until the next successful fetch replaces it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil {
		c.snapshot.ExpiresAt = c.now()
	}
}

func (c *Cache) fresh() (domain.RateSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil || c.snapshot.Expired(c.now()) {
		return domain.RateSnapshot{}, false
	}
	return *c.snapshot, true
}

// fetch runs detached from the caller's cancellation; only the timeout
// bounds it, so every waiter sees the same outcome.
func (c *Cache) fetch(ctx context.Context) (domain.RateSnapshot, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	s, err := c.fetcher.FetchLatest(fctx)
	if err != nil {
		metrics.RateFetchesTotal.WithLabelValues("error").Inc()
		return domain.RateSnapshot{}, err
	}
	metrics.RateFetchesTotal.WithLabelValues("success").Inc()
	metrics.RateAnnualPercent.Set(s.AnnualRatePercent)

	now := c.now()
	s.FetchedAt = now
	s.ExpiresAt = now.Add(c.ttl)
	s.FromCache = false
	s.Stale = false
	s.Fallback = false
	s.Warning = ""

	c.mu.Lock()
	stored := s
	c.snapshot = &stored
	c.mu.Unlock()

	return s, nil
}

func (c *Cache) fallbackFor(cause error, allowStale bool) (domain.RateSnapshot, error) {
	if allowStale {
		c.mu.RLock()
		prev := c.snapshot
		c.mu.RUnlock()

		if prev != nil {
			s := *prev
			s.FromCache = true
			s.Stale = true
			s.Warning = warnStale
			metrics.RateFallbacksTotal.WithLabelValues("stale").Inc()
			slog.Warn("rate: serving stale benchmark rate", "fetchedAt", s.FetchedAt, "error", cause)
			return s, nil
		}
	}

	if c.fallback > 0 {
		annual := domain.Round6(c.fallback)
		now := c.now()
		metrics.RateFallbacksTotal.WithLabelValues("constant").Inc()
		slog.Warn("rate: serving configured fallback rate", "annualRatePercent", annual, "error", cause)
		return domain.RateSnapshot{
			Provider:          providerFallback,
			SeriesCode:        c.series,
			DailyRatePercent:  domain.Round6(domain.DailyRateFromAnnualPercent(annual) * 100),
			AnnualRatePercent: annual,
			FetchedAt:         now,
			ExpiresAt:         now,
			Stale:             true,
			Fallback:          true,
			Warning:           warnFallback,
		}, nil
	}

	return domain.RateSnapshot{}, fmt.Errorf("%w: %w", domain.ErrRateUnavailable, cause)
}
