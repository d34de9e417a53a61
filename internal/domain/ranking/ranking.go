// Package ranking converts heterogeneous per-source engagement metrics into
// one comparable score via logarithmic normalization, time decay and
// relevance boosting.
package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/okian/feedmill/internal/domain/model"
)

// Default scoring parameters. Every constant is tunable via options and
// surfaced in configuration; none of them is a hard law.
const (
	defaultLikeWeight           = 1.0
	defaultCommentWeight        = 2.0
	defaultGravity              = 1.5
	defaultAgeOffset            = 4.0
	defaultBoostWeight          = 0.005
	defaultScaleFactor          = 1000.0
	defaultLowEngagementPenalty = 0.2
)

// Params holds the named scoring constants.
type Params struct {
	// LikeWeight and CommentWeight convert native engagement into one
	// engagement number before normalization.
	LikeWeight    float64
	CommentWeight float64

	// Gravity controls how fast old items fall off; AgeOffset keeps
	// brand-new items from dividing by near-zero and widens the fresh
	// window.
	Gravity   float64
	AgeOffset float64

	// BoostWeight scales the multiplicative tech-relevance bonus.
	BoostWeight float64

	// ScaleFactor rescales the logarithmic quotient into a legible
	// integer band.
	ScaleFactor float64

	// LowEngagementPenalty multiplies the score down when an item has no
	// comments, so empty posts cannot ride on recency alone.
	LowEngagementPenalty float64
}

// DefaultParams returns the default scoring constants.
func DefaultParams() Params {
	return Params{
		LikeWeight:           defaultLikeWeight,
		CommentWeight:        defaultCommentWeight,
		Gravity:              defaultGravity,
		AgeOffset:            defaultAgeOffset,
		BoostWeight:          defaultBoostWeight,
		ScaleFactor:          defaultScaleFactor,
		LowEngagementPenalty: defaultLowEngagementPenalty,
	}
}

// SourceWeights override the engagement weights for one source, normalizing
// providers whose native score scales differ wildly.
type SourceWeights struct {
	Like    float64
	Comment float64
}

// Engine computes comparable scores. Score is a pure function: no I/O, no
// shared mutable state.
type Engine struct {
	params        Params
	sourceWeights map[model.Source]SourceWeights
	now           func() time.Time
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithParams replaces the scoring constants.
func WithParams(p Params) Option {
	return func(e *Engine) {
		e.params = p
	}
}

// WithSourceWeights sets per-source engagement weight overrides.
func WithSourceWeights(weights map[model.Source]SourceWeights) Option {
	return func(e *Engine) {
		e.sourceWeights = make(map[model.Source]SourceWeights, len(weights))
		for src, w := range weights {
			e.sourceWeights[src] = w
		}
	}
}

// WithNow injects the clock used for age computation.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine with default parameters.
func New(opts ...Option) *Engine {
	e := &Engine{
		params:        DefaultParams(),
		sourceWeights: make(map[model.Source]SourceWeights),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes the comparable score for one enriched item:
//
//	engagement = score*likeWeight + comments*commentWeight
//	normalized = log10(max(1, engagement))
//	decay      = (ageHours + ageOffset)^gravity
//	techBoost  = 1 + techScore*boostWeight
//	score      = round(normalized / decay * techBoost * scaleFactor)
//
// with the low-engagement penalty applied before rounding when the item has
// zero comments.
func (e *Engine) Score(item model.EnrichedItem) int {
	like, comment := e.weightsFor(item.Item.Source)

	engagement := float64(item.Item.Score)*like + float64(item.Item.CommentCount)*comment
	normalized := math.Log10(math.Max(1, engagement))

	ageHours := e.now().Sub(item.Item.PublishedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	decay := math.Pow(ageHours+e.params.AgeOffset, e.params.Gravity)

	techBoost := 1 + float64(item.TechScore)*e.params.BoostWeight

	score := normalized / decay * techBoost * e.params.ScaleFactor
	if item.Item.CommentCount == 0 {
		score *= e.params.LowEngagementPenalty
	}

	return int(math.Round(score))
}

// RankAll scores a batch from one ranking pass and assigns dense 1..N ranks
// in descending score order. Ties break on recency, then item id, so a pass
// is deterministic for identical input.
func (e *Engine) RankAll(items []model.EnrichedItem) []model.RankedItem {
	type scored struct {
		item  model.EnrichedItem
		score int
	}

	scoredItems := make([]scored, len(items))
	for i, item := range items {
		scoredItems[i] = scored{item: item, score: e.Score(item)}
	}

	sort.SliceStable(scoredItems, func(i, j int) bool {
		if scoredItems[i].score != scoredItems[j].score {
			return scoredItems[i].score > scoredItems[j].score
		}
		if !scoredItems[i].item.Item.PublishedAt.Equal(scoredItems[j].item.Item.PublishedAt) {
			return scoredItems[i].item.Item.PublishedAt.After(scoredItems[j].item.Item.PublishedAt)
		}
		return scoredItems[i].item.Item.ID < scoredItems[j].item.Item.ID
	})

	rankedAt := e.now()
	ranked := make([]model.RankedItem, len(scoredItems))
	for i, s := range scoredItems {
		ranked[i] = model.RankedItem{
			Source:        s.item.Item.Source,
			ItemID:        s.item.Item.ID,
			ComputedScore: s.score,
			OriginalScore: s.item.Item.Score,
			Rank:          i + 1,
			RankedAt:      rankedAt,
		}
	}
	return ranked
}

func (e *Engine) weightsFor(src model.Source) (like, comment float64) {
	if w, ok := e.sourceWeights[src]; ok {
		return w.Like, w.Comment
	}
	return e.params.LikeWeight, e.params.CommentWeight
}
