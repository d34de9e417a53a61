// Package app wires the pipeline together: it fans out to the source
// fetchers, enriches and ranks each stream, interleaves the mixed feed and
// serves cursor-paginated pages out of the cached snapshot.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/feedmill/internal/adapters/cache"
	"github.com/okian/feedmill/internal/adapters/store"
	"github.com/okian/feedmill/internal/domain/feed"
	"github.com/okian/feedmill/internal/domain/model"
	"github.com/okian/feedmill/pkg/logger"
	"github.com/okian/feedmill/pkg/metrics"
)

// Service configuration constants.
const (
	MinLimit = 1
	MaxLimit = 10

	feedSnapshotKey = "feed:mixed"

	// defaultStaleWindow bounds how old archived raw items may be when a
	// live fetch fails.
	defaultStaleWindow = 48 * time.Hour
)

// Fetcher retrieves one page of normalized items from a source.
type Fetcher interface {
	Source() model.Source
	Fetch(ctx context.Context, page int) ([]model.RawItem, error)
}

// Highlighter supplies the curated entries woven into the feed.
type Highlighter interface {
	Highlights(ctx context.Context) ([]model.Highlight, error)
}

// Enricher attaches relevance signals to raw items.
type Enricher interface {
	EnrichBatch(ctx context.Context, items []model.RawItem) []model.EnrichedItem
}

// Ranker orders one source's enriched items.
type Ranker interface {
	RankAll(items []model.EnrichedItem) []model.RankedItem
}

// Mixer merges per-source streams and highlights into one feed.
type Mixer interface {
	Interleave(streams [][]model.FeedItem, highlights []model.FeedItem) []model.FeedItem
}

// Archive is the durable fallback and snapshot sink. It may be absent.
type Archive interface {
	RecentRaw(ctx context.Context, source model.Source, window time.Duration) ([]model.RawItem, error)
	StageCounts(ctx context.Context) ([]store.StageCount, error)
}

// FeedPage is one page of the mixed feed plus per-source health.
type FeedPage struct {
	Items      []model.FeedItem
	NextCursor string
	Sources    []model.SourceStatus
}

// feedSnapshot is the cached full mixed feed a page is cut from.
type feedSnapshot struct {
	Items   []model.FeedItem     `json:"items"`
	Sources []model.SourceStatus `json:"sources"`
	BuiltAt time.Time            `json:"built_at"`
}

// Service composes the feed from its collaborators.
type Service struct {
	fetchers    []Fetcher
	highlighter Highlighter
	enricher    Enricher
	ranker      Ranker
	mixer       Mixer
	cache       *cache.Tiered
	archive     Archive
	coordinator *Coordinator

	staleWindow time.Duration
	group       singleflight.Group
	log         logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithHighlighter attaches the curated highlight provider.
func WithHighlighter(h Highlighter) Option {
	return func(s *Service) { s.highlighter = h }
}

// WithArchive attaches durable storage for stale fallback and stats.
func WithArchive(a Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithCoordinator attaches the persistence coordinator.
func WithCoordinator(c *Coordinator) Option {
	return func(s *Service) { s.coordinator = c }
}

// WithStaleWindow overrides how far back the archive fallback reaches.
func WithStaleWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleWindow = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New builds the service. fetchers, enricher, ranker, mixer and tiered are
// required; the rest attach via options.
func New(fetchers []Fetcher, enricher Enricher, ranker Ranker, mixer Mixer, tiered *cache.Tiered, opts ...Option) *Service {
	s := &Service{
		fetchers:    fetchers,
		enricher:    enricher,
		ranker:      ranker,
		mixer:       mixer,
		cache:       tiered,
		staleWindow: defaultStaleWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("app")
	}
	return s
}

// ComposeFeed returns one page of the mixed feed. The full snapshot is
// built at most once per cache window regardless of concurrent callers;
// pagination cuts pages out of the snapshot so cursors stay stable between
// requests that share one.
func (s *Service) ComposeFeed(ctx context.Context, limit int, after string) (FeedPage, error) {
	if limit < MinLimit || limit > MaxLimit {
		return FeedPage{}, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return FeedPage{}, err
	}

	items, next := feed.Page(snapshot.Items, limit, after)
	metrics.RecordFeedItemsServed(len(items))

	return FeedPage{
		Items:      items,
		NextCursor: next,
		Sources:    snapshot.Sources,
	}, nil
}

// snapshot returns the cached mixed feed, building it on a cold cache.
func (s *Service) snapshot(ctx context.Context) (feedSnapshot, error) {
	if snap, ok := cache.GetJSON[feedSnapshot](ctx, s.cache, feedSnapshotKey); ok {
		return snap, nil
	}

	result, err, _ := s.group.Do(feedSnapshotKey, func() (any, error) {
		// Another caller may have filled the cache while we queued.
		if snap, ok := cache.GetJSON[feedSnapshot](ctx, s.cache, feedSnapshotKey); ok {
			return snap, nil
		}
		return s.build(ctx)
	})
	if err != nil {
		return feedSnapshot{}, err
	}

	snap, ok := result.(feedSnapshot)
	if !ok {
		return feedSnapshot{}, fmt.Errorf("unexpected snapshot type %T", result)
	}
	return snap, nil
}

// sourceResult is one source's contribution to a feed build.
type sourceResult struct {
	source   model.Source
	raw      []model.RawItem
	enriched []model.EnrichedItem
	ranked   []model.RankedItem
	stream   []model.FeedItem
	status   model.SourceStatus
}

// build assembles a fresh mixed feed snapshot. Every source is attempted;
// a failed source degrades to archived items when possible and is reported
// in the per-source status either way.
func (s *Service) build(ctx context.Context) (feedSnapshot, error) {
	start := time.Now()
	defer func() {
		metrics.RecordFeedBuildDuration(time.Since(start).Seconds())
	}()
	metrics.RecordFeedBuild()

	results := make([]sourceResult, len(s.fetchers))
	var wg sync.WaitGroup
	for i, f := range s.fetchers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.buildSource(ctx, f)
		}()
	}
	wg.Wait()

	streams := make([][]model.FeedItem, 0, len(results))
	statuses := make([]model.SourceStatus, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, r.status)
		if len(r.stream) > 0 {
			streams = append(streams, r.stream)
		}
	}

	highlights := s.fetchHighlights(ctx)

	mixed := s.mixer.Interleave(streams, highlights)

	snap := feedSnapshot{
		Items:   mixed,
		Sources: statuses,
		BuiltAt: time.Now().UTC(),
	}
	cache.SetJSON(ctx, s.cache, feedSnapshotKey, snap)

	s.archiveBuild(ctx, results, mixed)

	s.log.Info(ctx, "feed snapshot built",
		logger.Int("items", len(mixed)),
		logger.Int("sources", len(statuses)),
		logger.Duration("took", time.Since(start)),
	)
	return snap, nil
}

// buildSource runs one source through fetch, enrich and rank.
func (s *Service) buildSource(ctx context.Context, f Fetcher) sourceResult {
	src := f.Source()
	result := sourceResult{
		source: src,
		status: model.SourceStatus{Name: string(src), OK: true},
	}

	raw, err := f.Fetch(ctx, 1)
	if err != nil {
		result.status.OK = false
		result.status.Error = err.Error()
		s.log.Warn(ctx, "source fetch failed",
			logger.String("source", string(src)),
			logger.Error(err),
		)

		raw = s.staleRaw(ctx, src)
		if len(raw) == 0 {
			return result
		}
		metrics.RecordFetch(string(src), "stale")
	}

	result.raw = raw
	result.enriched = s.enricher.EnrichBatch(ctx, raw)

	relevant := make([]model.EnrichedItem, 0, len(result.enriched))
	for _, e := range result.enriched {
		if e.IsRelevant {
			relevant = append(relevant, e)
		}
	}

	result.ranked = s.ranker.RankAll(relevant)
	result.stream = feedStream(relevant, result.ranked)
	return result
}

// staleRaw pulls recently archived raw items for a source whose live
// fetch failed. Absent archive or empty window means an empty stream.
func (s *Service) staleRaw(ctx context.Context, src model.Source) []model.RawItem {
	if s.archive == nil {
		return nil
	}
	items, err := s.archive.RecentRaw(ctx, src, s.staleWindow)
	if err != nil {
		s.log.Warn(ctx, "stale fallback failed",
			logger.String("source", string(src)),
			logger.Error(err),
		)
		return nil
	}
	return items
}

// fetchHighlights converts curated entries into feed items. Highlight
// failures degrade to a highlight-free feed, never a failed build.
func (s *Service) fetchHighlights(ctx context.Context) []model.FeedItem {
	if s.highlighter == nil {
		return nil
	}
	highlights, err := s.highlighter.Highlights(ctx)
	if err != nil {
		s.log.Warn(ctx, "highlight fetch failed", logger.Error(err))
		return nil
	}

	items := make([]model.FeedItem, 0, len(highlights))
	for _, h := range highlights {
		items = append(items, model.FeedItem{
			Kind:        model.FeedKindHighlight,
			ID:          h.ID,
			Title:       h.Title,
			URL:         h.URL,
			PublishedAt: h.PublishedAt,
		})
	}
	return items
}

// archiveBuild enqueues every stage's snapshots for durable storage. The
// write path is detached from the request path: a slow or down database
// delays nothing here.
func (s *Service) archiveBuild(ctx context.Context, results []sourceResult, mixed []model.FeedItem) {
	if s.coordinator == nil {
		return
	}

	var rawRecords, enrichedRecords, rankedRecords []store.Record
	for _, r := range results {
		for _, item := range r.raw {
			if payload, err := json.Marshal(item); err == nil {
				rawRecords = append(rawRecords, store.Record{
					Source: string(item.Source), ItemID: item.ID, Payload: payload,
				})
			}
		}
		for _, item := range r.enriched {
			if payload, err := json.Marshal(item); err == nil {
				enrichedRecords = append(enrichedRecords, store.Record{
					Source: string(item.Item.Source), ItemID: item.Item.ID, Payload: payload,
				})
			}
		}
		for _, item := range r.ranked {
			if payload, err := json.Marshal(item); err == nil {
				rankedRecords = append(rankedRecords, store.Record{
					Source: string(item.Source), ItemID: item.ItemID, Payload: payload,
				})
			}
		}
	}

	var mixedRecords []store.Record
	for _, item := range mixed {
		if payload, err := json.Marshal(item); err == nil {
			mixedRecords = append(mixedRecords, store.Record{
				Source: store.MixedSource, ItemID: item.ID, Payload: payload,
			})
		}
	}

	s.coordinator.Archive(ctx, store.StageRaw, rawRecords)
	s.coordinator.Archive(ctx, store.StageEnriched, enrichedRecords)
	s.coordinator.Archive(ctx, store.StageRanked, rankedRecords)
	s.coordinator.Archive(ctx, store.StageMixed, mixedRecords)
}

// Stats reports per-stage archive counts.
func (s *Service) Stats(ctx context.Context) ([]store.StageCount, error) {
	if s.archive == nil {
		return []store.StageCount{}, nil
	}
	return s.archive.StageCounts(ctx)
}

// feedStream orders one source's relevant items by rank and shapes them
// for the feed.
func feedStream(enriched []model.EnrichedItem, ranked []model.RankedItem) []model.FeedItem {
	byIdentity := make(map[string]model.EnrichedItem, len(enriched))
	for _, e := range enriched {
		byIdentity[e.Item.Identity()] = e
	}

	ordered := make([]model.RankedItem, len(ranked))
	copy(ordered, ranked)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	stream := make([]model.FeedItem, 0, len(ordered))
	for _, r := range ordered {
		e, ok := byIdentity[string(r.Source)+":"+r.ItemID]
		if !ok {
			continue
		}
		stream = append(stream, model.FeedItem{
			Kind:          model.FeedKindRanked,
			ID:            e.Item.Identity(),
			Source:        e.Item.Source,
			Title:         e.Item.Title,
			Author:        e.Item.Author,
			URL:           e.Item.URL,
			Score:         e.Item.Score,
			CommentCount:  e.Item.CommentCount,
			ComputedScore: r.ComputedScore,
			TechScore:     e.TechScore,
			PublishedAt:   e.Item.PublishedAt,
		})
	}
	return stream
}
