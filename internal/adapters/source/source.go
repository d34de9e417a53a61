// Package source implements the per-source fetchers: upstream clients that
// normalize native schemas into RawItems, wrapped with read-through caching,
// single-flight fetch deduplication and a per-source circuit breaker.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/okian/feedmill/internal/domain/model"
	"github.com/okian/feedmill/pkg/logger"
	"github.com/okian/feedmill/pkg/metrics"
)

// Default fetcher configuration.
const (
	defaultFetchTimeout   = 10 * time.Second
	defaultBreakerTimeout = 30 * time.Second

	// breakerFailureThreshold consecutive upstream failures open the
	// breaker.
	breakerFailureThreshold = 5
)

// Upstream performs the physical network fetch for one source and
// normalizes the response. Implementations apply their source-specific
// low-value filters before returning.
type Upstream interface {
	Source() model.Source
	FetchPage(ctx context.Context, page int) ([]model.RawItem, error)
}

// Cache is the tiered cache seen from the fetcher's side.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
}

// Fetcher wraps an Upstream with the fetch contract: idempotent per
// (source, page) within the cache TTL, at most one physical call in flight
// per key, failures propagated to every awaiter without internal retries.
type Fetcher struct {
	upstream Upstream
	cache    Cache
	group    singleflight.Group
	breaker  *gobreaker.CircuitBreaker[[]model.RawItem]
	timeout  time.Duration
	log      logger.Logger
}

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds a single physical fetch.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(f *Fetcher) {
		if log != nil {
			f.log = log
		}
	}
}

// NewFetcher wraps upstream. cache may be nil, which disables the
// read-through layer but keeps single-flight semantics.
func NewFetcher(upstream Upstream, cache Cache, opts ...Option) *Fetcher {
	f := &Fetcher{
		upstream: upstream,
		cache:    cache,
		timeout:  defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Get().Named("source").Named(string(upstream.Source()))
	}

	f.breaker = gobreaker.NewCircuitBreaker[[]model.RawItem](gobreaker.Settings{
		Name:    string(upstream.Source()),
		Timeout: defaultBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
	})

	return f
}

// Source identifies the wrapped provider.
func (f *Fetcher) Source() model.Source {
	return f.upstream.Source()
}

// Fetch returns the normalized items for one page. Cache first, then one
// shared physical call per key; concurrent callers for the same page await
// the same in-flight result.
func (f *Fetcher) Fetch(ctx context.Context, page int) ([]model.RawItem, error) {
	name := string(f.Source())
	key := pageKey(f.Source(), page)

	if f.cache != nil {
		if payload, ok := f.cache.Get(ctx, key); ok {
			var items []model.RawItem
			if err := json.Unmarshal(payload, &items); err == nil {
				metrics.RecordFetch(name, "hit")
				return items, nil
			}
		}
	}

	// The singleflight entry is removed when Do returns, on success and
	// failure alike, so a failed fetch never leaves the key locked.
	result, err, shared := f.group.Do(key, func() (any, error) {
		return f.fetchPhysical(ctx, page, key)
	})
	if shared {
		metrics.RecordFetch(name, "shared")
	}
	if err != nil {
		metrics.RecordFetch(name, "error")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordBreakerRejection(name)
		}
		return nil, fmt.Errorf("%w: %s page %d: %v", ErrUnavailable, name, page, err)
	}

	items, ok := result.([]model.RawItem)
	if !ok {
		return nil, fmt.Errorf("%w: %s page %d: unexpected result type", ErrUnavailable, name, page)
	}
	return items, nil
}

// fetchPhysical performs the single deduplicated upstream call.
func (f *Fetcher) fetchPhysical(ctx context.Context, page int, key string) ([]model.RawItem, error) {
	metrics.RecordFetch(string(f.Source()), "miss")
	start := time.Now()
	defer func() {
		metrics.RecordFetchDuration(string(f.Source()), time.Since(start).Seconds())
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	items, err := f.breaker.Execute(func() ([]model.RawItem, error) {
		return f.upstream.FetchPage(fetchCtx, page)
	})
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if payload, marshalErr := json.Marshal(items); marshalErr == nil {
			f.cache.Set(ctx, key, payload)
		}
	}

	f.log.Debug(ctx, "fetched page",
		logger.Int("page", page),
		logger.Int("items", len(items)),
	)
	return items, nil
}

// pageKey is the cache and single-flight key for one (source, page).
func pageKey(src model.Source, page int) string {
	return fmt.Sprintf("source:%s:page:%d", src, page)
}
