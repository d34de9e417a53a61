// Package cache implements the two-level key/value cache: a fast volatile
// tier backed by a slower durable tier, with per-key-pattern TTL policy and
// read-through rehydration.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/okian/feedmill/pkg/logger"
	"github.com/okian/feedmill/pkg/metrics"
)

// Tier names used in logs and metrics.
const (
	tierMemory  = "memory"
	tierDurable = "durable"
)

// Default TTLs per key namespace. Listings churn fast, AI scores are
// expensive and stable, the mixed snapshot sits in between.
const (
	defaultListingTTL = 5 * time.Minute
	defaultScoreTTL   = 24 * time.Hour
	defaultFeedTTL    = 2 * time.Minute
	defaultTTL        = 10 * time.Minute
)

// Tier is one cache level. Get returns (payload, found, error); Set must
// honor the ttl.
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// Rule maps a key prefix to a TTL.
type Rule struct {
	Prefix string
	TTL    time.Duration
}

// Policy chooses a TTL by key pattern. The first matching prefix wins.
type Policy struct {
	rules      []Rule
	defaultTTL time.Duration
}

// DefaultPolicy returns the standard namespace policy.
func DefaultPolicy() *Policy {
	return &Policy{
		rules: []Rule{
			{Prefix: "source:", TTL: defaultListingTTL},
			{Prefix: "ai:score:", TTL: defaultScoreTTL},
			{Prefix: "feed:", TTL: defaultFeedTTL},
		},
		defaultTTL: defaultTTL,
	}
}

// NewPolicy builds a policy from explicit rules.
func NewPolicy(rules []Rule, fallback time.Duration) *Policy {
	if fallback <= 0 {
		fallback = defaultTTL
	}
	return &Policy{rules: rules, defaultTTL: fallback}
}

// TTLFor returns the TTL for a key.
func (p *Policy) TTLFor(key string) time.Duration {
	for _, r := range p.rules {
		if strings.HasPrefix(key, r.Prefix) {
			return r.TTL
		}
	}
	return p.defaultTTL
}

// Tiered is the two-level cache. Reads check the volatile tier first and
// rehydrate it from the durable tier on a miss. Writes go to both tiers;
// durable failures are logged and swallowed because a cache write must never
// fail the calling operation. A nil durable tier degrades the cache to
// memory-only for the process lifetime.
type Tiered struct {
	memory  Tier
	durable Tier
	policy  *Policy
	log     logger.Logger
}

// Option applies a configuration option to the Tiered cache.
type Option func(*Tiered)

// WithPolicy replaces the TTL policy.
func WithPolicy(p *Policy) Option {
	return func(c *Tiered) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Tiered) {
		if log != nil {
			c.log = log
		}
	}
}

// NewTiered creates the cache. durable may be nil when the durable tier was
// unreachable at startup.
func NewTiered(memory, durable Tier, opts ...Option) *Tiered {
	c := &Tiered{
		memory:  memory,
		durable: durable,
		policy:  DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("cache")
	}
	return c
}

// Get returns the payload for key, or false when absent from every tier.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, found, err := c.memory.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheError(tierMemory)
		c.log.Warn(ctx, "memory tier read failed", logger.String("key", key), logger.Error(err))
	}
	if found {
		metrics.RecordCacheHit(tierMemory)
		return payload, true
	}

	if c.durable == nil {
		metrics.RecordCacheMiss()
		return nil, false
	}

	payload, found, err = c.durable.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheError(tierDurable)
		c.log.Warn(ctx, "durable tier read failed", logger.String("key", key), logger.Error(err))
		metrics.RecordCacheMiss()
		return nil, false
	}
	if !found {
		metrics.RecordCacheMiss()
		return nil, false
	}

	metrics.RecordCacheHit(tierDurable)

	// Rehydrate the fast tier so the next read stays sub-millisecond.
	if err := c.memory.Set(ctx, key, payload, c.policy.TTLFor(key)); err != nil {
		metrics.RecordCacheError(tierMemory)
		c.log.Warn(ctx, "memory tier rehydrate failed", logger.String("key", key), logger.Error(err))
	}
	return payload, true
}

// Set writes to both tiers with the TTL the key policy assigns.
func (c *Tiered) Set(ctx context.Context, key string, payload []byte) {
	c.SetTTL(ctx, key, payload, c.policy.TTLFor(key))
}

// SetTTL writes to both tiers with an explicit TTL.
func (c *Tiered) SetTTL(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := c.memory.Set(ctx, key, payload, ttl); err != nil {
		metrics.RecordCacheError(tierMemory)
		c.log.Warn(ctx, "memory tier write failed", logger.String("key", key), logger.Error(err))
	}
	if c.durable == nil {
		return
	}
	if err := c.durable.Set(ctx, key, payload, ttl); err != nil {
		metrics.RecordCacheError(tierDurable)
		c.log.Warn(ctx, "durable tier write failed", logger.String("key", key), logger.Error(err))
	}
}

// GetJSON reads and unmarshals a typed value.
func GetJSON[T any](ctx context.Context, c *Tiered, key string) (T, bool) {
	var v T
	payload, ok := c.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, false
	}
	return v, true
}

// SetJSON marshals and stores a typed value. Marshal failures are swallowed
// like any other cache write failure.
func SetJSON[T any](ctx context.Context, c *Tiered, key string, v T) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, payload)
}
