// Package model contains domain models passed between pipeline stages.
package model

import "time"

// Source identifies one external content provider. It is a closed set: use
// the constants below, never free-form strings.
type Source string

const (
	SourceHackerNews Source = "hackernews"
	SourceLobsters   Source = "lobsters"
	SourceDevTo      Source = "devto"
)

// Sources lists every known source in stable order.
func Sources() []Source {
	return []Source{SourceHackerNews, SourceLobsters, SourceDevTo}
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceHackerNews, SourceLobsters, SourceDevTo:
		return true
	}
	return false
}

// RawItem is an item exactly as normalized from a source's native schema.
// Identity is (Source, ID). Raw items are immutable once fetched; a re-fetch
// supersedes the previous snapshot, it never mutates it.
type RawItem struct {
	ID           string    `json:"id"`
	Source       Source    `json:"source"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	URL          string    `json:"url"`
	Body         string    `json:"body,omitempty"`
	Score        int       `json:"score"`
	CommentCount int       `json:"comment_count"`
	PublishedAt  time.Time `json:"published_at"`
}

// Identity returns the stable cross-stage key for the item.
func (r RawItem) Identity() string {
	return string(r.Source) + ":" + r.ID
}

// EnrichedItem wraps a RawItem with AI-assisted relevance signals. Exactly
// one enrichment exists per RawItem identity.
type EnrichedItem struct {
	Item       RawItem   `json:"item"`
	TechScore  int       `json:"tech_score"`           // 0-100
	Confidence float64   `json:"tech_score_confidence"` // 0-1
	Keywords   []string  `json:"keywords"`
	IsRelevant bool      `json:"is_relevant"`
	EnrichedAt time.Time `json:"enriched_at"`
}

// RankedItem is derived deterministically from an EnrichedItem on every
// ranking pass. It is persisted only as a historical snapshot, never read
// back as authoritative truth.
type RankedItem struct {
	Source        Source    `json:"source"`
	ItemID        string    `json:"item_id"`
	ComputedScore int       `json:"computed_score"`
	OriginalScore int       `json:"original_score"`
	Rank          int       `json:"rank"` // dense 1..N within the source batch
	RankedAt      time.Time `json:"ranked_at"`
}

// Highlight is a sparse curated item interleaved into the feed at a fixed
// cadence rather than ranked.
type Highlight struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Feed item discriminants.
const (
	FeedKindRanked    = "ranked"
	FeedKindHighlight = "highlight"
)

// FeedItem is the externally visible feed entry. Kind discriminates ranked
// items from curated highlights; ordering of a feed page is the boundary
// contract.
type FeedItem struct {
	Kind          string    `json:"kind"`
	ID            string    `json:"id"`
	Source        Source    `json:"source,omitempty"`
	Title         string    `json:"title"`
	Author        string    `json:"author,omitempty"`
	URL           string    `json:"url"`
	Score         int       `json:"score,omitempty"`
	CommentCount  int       `json:"comment_count,omitempty"`
	ComputedScore int       `json:"computed_score,omitempty"`
	TechScore     int       `json:"tech_score,omitempty"`
	PublishedAt   time.Time `json:"published_at"`
}

// SourceStatus reports per-source fetch outcome alongside feed results so
// callers can tell "empty" apart from "degraded".
type SourceStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
