// Package relevance assigns AI-assisted relevance signals to raw items, with
// a deterministic keyword fallback when the AI scorer is unavailable.
package relevance

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/feedmill/internal/domain/model"
	"github.com/okian/feedmill/pkg/logger"
	"github.com/okian/feedmill/pkg/metrics"
)

// Default enrichment configuration.
const (
	// MinRelevantScore is the minimum tech score an item needs to count
	// as relevant.
	MinRelevantScore = 61

	defaultConcurrency  = 8
	defaultMaxBodyChars = 2000

	scoreCachePrefix = "ai:score:"
)

// Scorer is the external AI text-scoring contract: (title, body excerpt) in,
// integer 0-100 out. Implementations live in adapters.
type Scorer interface {
	Score(ctx context.Context, title, body string) (int, error)
}

// Cache abstracts the tiered cache from the enricher's point of view.
// Lookups that fail behave as misses; writes never fail the caller.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
}

// cachedScore is the payload stored per item identity. AI scoring is
// expensive, so it is cached on a long TTL chosen by the cache's key policy.
type cachedScore struct {
	Score    int      `json:"score"`
	Keywords []string `json:"keywords"`
	FromAI   bool     `json:"from_ai"`
}

// Enricher produces EnrichedItems. It never returns an error to callers:
// any internal failure degrades to a zero-confidence, non-relevant result so
// downstream ranking can proceed.
type Enricher struct {
	scorer       Scorer
	cache        Cache
	vocabulary   []string
	concurrency  int
	maxBodyChars int
	now          func() time.Time
	log          logger.Logger
}

// Option applies a configuration option to the Enricher.
type Option func(*Enricher)

// WithScorer sets the AI scorer. Without one every item takes the fallback
// path.
func WithScorer(s Scorer) Option {
	return func(e *Enricher) {
		e.scorer = s
	}
}

// WithCache sets the score cache.
func WithCache(c Cache) Option {
	return func(e *Enricher) {
		e.cache = c
	}
}

// WithVocabulary replaces the technical vocabulary used by the fallback
// estimator.
func WithVocabulary(words []string) Option {
	return func(e *Enricher) {
		if len(words) > 0 {
			e.vocabulary = words
		}
	}
}

// WithConcurrency bounds parallel enrichment within a batch.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithMaxBodyChars bounds the body excerpt sent to the AI scorer.
func WithMaxBodyChars(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.maxBodyChars = n
		}
	}
}

// WithNow injects the clock used for EnrichedAt stamps.
func WithNow(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Enricher) {
		if log != nil {
			e.log = log
		}
	}
}

// New creates an Enricher.
func New(opts ...Option) *Enricher {
	e := &Enricher{
		vocabulary:   defaultVocabulary(),
		concurrency:  defaultConcurrency,
		maxBodyChars: defaultMaxBodyChars,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("relevance")
	}
	return e
}

// Enrich produces the enrichment for one item.
func (e *Enricher) Enrich(ctx context.Context, item model.RawItem) model.EnrichedItem {
	start := time.Now()
	defer func() {
		metrics.RecordEnrichmentDuration(time.Since(start).Seconds())
	}()

	score, keywords := e.scoreItem(ctx, item)
	return e.assemble(item, score, keywords)
}

// EnrichBatch enriches items in parallel, preserving input order. A failed
// or cancelled member degrades to the fallback result; the batch itself
// always succeeds.
func (e *Enricher) EnrichBatch(ctx context.Context, items []model.RawItem) []model.EnrichedItem {
	out := make([]model.EnrichedItem, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, item := range items {
		g.Go(func() error {
			out[i] = e.Enrich(gctx, item)
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	return out
}

// scoreItem resolves the tech score and keyword set for an item, consulting
// the cache, then the AI scorer, then the keyword fallback.
func (e *Enricher) scoreItem(ctx context.Context, item model.RawItem) (int, []string) {
	key := scoreCachePrefix + item.Identity()

	if e.cache != nil {
		if payload, ok := e.cache.Get(ctx, key); ok {
			var cached cachedScore
			if err := json.Unmarshal(payload, &cached); err == nil {
				// Fallback verdicts are not cached, but entries written
				// before a scorer was wired may still carry them; re-score
				// those instead of pinning the degraded value.
				if cached.FromAI || e.scorer == nil {
					return cached.Score, cached.Keywords
				}
			}
		}
	}

	keywords := MatchKeywords(e.vocabulary, item.Title, item.Body)

	score, fromAI := e.aiScore(ctx, item)
	if !fromAI {
		score = FallbackScore(len(keywords))
		metrics.RecordEnrichmentFallback()
		return score, keywords
	}
	metrics.RecordEnrichmentAI()

	if e.cache != nil {
		if payload, err := json.Marshal(cachedScore{Score: score, Keywords: keywords, FromAI: true}); err == nil {
			e.cache.Set(ctx, key, payload)
		}
	}

	return score, keywords
}

// aiScore asks the external scorer; ok is false when the caller must fall
// back to the keyword estimator.
func (e *Enricher) aiScore(ctx context.Context, item model.RawItem) (score int, ok bool) {
	if e.scorer == nil || item.Title == "" {
		return 0, false
	}

	body := truncateRunes(item.Body, e.maxBodyChars)

	score, err := e.scorer.Score(ctx, item.Title, body)
	if err != nil {
		e.log.Warn(ctx, "ai scoring failed, using keyword fallback",
			logger.String("item", item.Identity()),
			logger.Error(err),
		)
		return 0, false
	}
	if score < 0 || score > 100 {
		e.log.Warn(ctx, "ai returned out-of-range score, using keyword fallback",
			logger.String("item", item.Identity()),
			logger.Int("score", score),
		)
		return 0, false
	}
	return score, true
}

func (e *Enricher) assemble(item model.RawItem, score int, keywords []string) model.EnrichedItem {
	return model.EnrichedItem{
		Item:       item,
		TechScore:  score,
		Confidence: Confidence(item, score),
		Keywords:   keywords,
		IsRelevant: score >= MinRelevantScore,
		EnrichedAt: e.now(),
	}
}

// Confidence blends body length, title length, comment count and score
// magnitude into a heuristic [0,1] confidence.
func Confidence(item model.RawItem, score int) float64 {
	bodyPart := clamp01(float64(len(item.Body)) / 1000.0)
	titlePart := clamp01(float64(len(item.Title)) / 80.0)
	commentPart := clamp01(float64(item.CommentCount) / 50.0)
	scorePart := clamp01(float64(score) / 100.0)

	return clamp01(0.2*bodyPart + 0.2*titlePart + 0.3*commentPart + 0.3*scorePart)
}

// truncateRunes bounds s to max runes without splitting a UTF-8 sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
