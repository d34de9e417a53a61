// Package feed interleaves per-source ranked streams into one ordered,
// cursor-paginated sequence.
package feed

import (
	"strings"

	"github.com/okian/feedmill/internal/domain/model"
)

// Default mixing configuration.
const (
	// defaultHighlightCadence inserts one curated highlight after every N
	// regular items. Fixed block size; tunable, not a hard law.
	defaultHighlightCadence = 5
)

// Mixer merges ranked streams round-robin so no single prolific source can
// dominate a page, and drops cross-source duplicates of the same story.
type Mixer struct {
	cadence int
}

// Option applies a configuration option to the Mixer.
type Option func(*Mixer)

// WithHighlightCadence sets how many regular items separate two highlights.
func WithHighlightCadence(n int) Option {
	return func(m *Mixer) {
		if n > 0 {
			m.cadence = n
		}
	}
}

// NewMixer creates a Mixer.
func NewMixer(opts ...Option) *Mixer {
	m := &Mixer{cadence: defaultHighlightCadence}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interleave merges streams round-robin: position i of every stream is
// consumed before position i+1 of any stream. Streams are expected to be
// sorted descending by computed score. Items whose URL was already taken by
// an earlier stream are skipped. Highlights, when present, are inserted
// after every cadence regular items until they run out.
func (m *Mixer) Interleave(streams [][]model.FeedItem, highlights []model.FeedItem) []model.FeedItem {
	total := 0
	longest := 0
	for _, s := range streams {
		total += len(s)
		if len(s) > longest {
			longest = len(s)
		}
	}

	merged := make([]model.FeedItem, 0, total)
	seen := newSeenSet(total)

	for i := 0; i < longest; i++ {
		for _, stream := range streams {
			if i >= len(stream) {
				continue
			}
			item := stream[i]
			if seen.taken(urlKey(item.URL)) {
				continue
			}
			merged = append(merged, item)
		}
	}

	if len(highlights) == 0 {
		return merged
	}
	return m.weave(merged, highlights)
}

// weave inserts one highlight after every cadence regular items. Leftover
// highlights past the end of the regular stream are dropped; a page should
// never close on a run of highlights.
func (m *Mixer) weave(regular, highlights []model.FeedItem) []model.FeedItem {
	out := make([]model.FeedItem, 0, len(regular)+len(highlights))
	h := 0
	for i, item := range regular {
		out = append(out, item)
		if (i+1)%m.cadence == 0 && h < len(highlights) {
			out = append(out, highlights[h])
			h++
		}
	}
	return out
}

// seenSet tracks story URLs already placed in the merged sequence so the
// same story syndicated on two aggregators appears once.
type seenSet struct {
	urls map[string]struct{}
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{urls: make(map[string]struct{}, capacity)}
}

// taken records key and reports whether it was already present. Empty keys
// never collide.
func (s *seenSet) taken(key string) bool {
	if key == "" {
		return false
	}
	if _, ok := s.urls[key]; ok {
		return true
	}
	s.urls[key] = struct{}{}
	return false
}

// urlKey normalizes a URL enough to catch the common syndication duplicates
// without fetching anything.
func urlKey(u string) string {
	u = strings.TrimSpace(strings.ToLower(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	return strings.TrimSuffix(u, "/")
}
