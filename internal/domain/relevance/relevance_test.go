package relevance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/feedmill/internal/domain/model"
	"github.com/okian/feedmill/internal/domain/relevance"
	"github.com/okian/feedmill/pkg/logger"
)

type stubScorer struct {
	mu       sync.Mutex
	score    int
	err      error
	calls    int
	lastBody string
}

func (s *stubScorer) Score(ctx context.Context, title, body string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastBody = body
	return s.score, s.err
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(ctx context.Context, key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = payload
}

func rawItem(id, title, body string) model.RawItem {
	return model.RawItem{
		ID:          id,
		Source:      model.SourceHackerNews,
		Title:       title,
		Body:        body,
		PublishedAt: time.Now().Add(-time.Hour),
	}
}

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

func TestEnrich(t *testing.T) {
	Convey("Given an enricher with a working AI scorer", t, func() {
		scorer := &stubScorer{score: 85}
		cache := newMapCache()
		e := relevance.New(
			relevance.WithScorer(scorer),
			relevance.WithCache(cache),
		)
		ctx := context.Background()

		Convey("When enriching an item", func() {
			out := e.Enrich(ctx, rawItem("1", "Profiling goroutine leaks in Go", "a dive into the runtime scheduler"))

			Convey("Then the AI score should be applied", func() {
				So(out.TechScore, ShouldEqual, 85)
				So(out.IsRelevant, ShouldBeTrue)
				So(out.Confidence, ShouldBeBetweenOrEqual, 0, 1)
				So(out.EnrichedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And a second enrichment should reuse the cached score", func() {
				_ = e.Enrich(ctx, rawItem("1", "Profiling goroutine leaks in Go", "a dive into the runtime scheduler"))
				So(scorer.calls, ShouldEqual, 1)
			})
		})

		Convey("When the AI score is below the relevance threshold", func() {
			scorer.score = 60
			out := e.Enrich(ctx, rawItem("2", "My vacation photos", ""))

			Convey("Then the item should not be relevant", func() {
				So(out.IsRelevant, ShouldBeFalse)
			})
		})
	})

	Convey("Given an enricher with an oversized multibyte body", t, func() {
		scorer := &stubScorer{score: 70}
		e := relevance.New(
			relevance.WithScorer(scorer),
			relevance.WithMaxBodyChars(10),
		)

		Convey("When the excerpt is truncated", func() {
			body := "héllo wörld, ünïcode everywhere"
			_ = e.Enrich(context.Background(), rawItem("u1", "unicode handling in go", body))

			Convey("Then it is cut on a rune boundary", func() {
				So(utf8.ValidString(scorer.lastBody), ShouldBeTrue)
				So(utf8.RuneCountInString(scorer.lastBody), ShouldEqual, 10)
			})
		})
	})

	Convey("Given an enricher whose AI scorer always fails", t, func() {
		scorer := &stubScorer{err: errors.New("model overloaded")}
		e := relevance.New(relevance.WithScorer(scorer))
		ctx := context.Background()

		Convey("When enriching a keyword-dense item", func() {
			out := e.Enrich(ctx, rawItem("3",
				"Kubernetes on Postgres with Redis cache",
				"kafka grpc latency benchmark"))

			Convey("Then the fallback estimator should produce the score", func() {
				So(out.TechScore, ShouldEqual, relevance.FallbackScore(len(out.Keywords)))
				So(len(out.Keywords), ShouldBeGreaterThan, 0)
			})

			Convey("And no error should surface to the caller", func() {
				So(out.Item.ID, ShouldEqual, "3")
			})
		})

		Convey("When enriching an item with no technical content", func() {
			out := e.Enrich(ctx, rawItem("4", "Cooking with grandma", "best pasta ever"))

			Convey("Then the result should be non-relevant with zero score", func() {
				So(out.TechScore, ShouldEqual, 0)
				So(out.IsRelevant, ShouldBeFalse)
				So(out.Keywords, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a cache shared across an AI outage", t, func() {
		ctx := context.Background()

		Convey("When scoring fails and the item is enriched again", func() {
			scorer := &stubScorer{err: errors.New("model overloaded")}
			cache := newMapCache()
			e := relevance.New(relevance.WithScorer(scorer), relevance.WithCache(cache))

			item := rawItem("6", "terraform modules for kafka", "")
			first := e.Enrich(ctx, item)

			scorer.mu.Lock()
			scorer.err = nil
			scorer.score = 90
			scorer.mu.Unlock()
			second := e.Enrich(ctx, item)

			Convey("Then the fallback verdict is not pinned by the cache", func() {
				So(first.TechScore, ShouldEqual, relevance.FallbackScore(len(first.Keywords)))
				So(second.TechScore, ShouldEqual, 90)
				So(scorer.calls, ShouldEqual, 2)
			})
		})

		Convey("When a cached entry carries a fallback verdict", func() {
			cache := newMapCache()
			item := rawItem("7", "observability with opentelemetry", "")
			cache.Set(ctx, "ai:score:"+item.Identity(), []byte(`{"score":15,"keywords":["go"],"from_ai":false}`))

			Convey("Then an enricher with a scorer re-scores it", func() {
				scorer := &stubScorer{score: 80}
				e := relevance.New(relevance.WithScorer(scorer), relevance.WithCache(cache))
				out := e.Enrich(ctx, item)
				So(out.TechScore, ShouldEqual, 80)
				So(scorer.calls, ShouldEqual, 1)
			})

			Convey("Then an enricher without a scorer reuses it", func() {
				e := relevance.New(relevance.WithCache(cache))
				out := e.Enrich(ctx, item)
				So(out.TechScore, ShouldEqual, 15)
				So(out.Keywords, ShouldResemble, []string{"go"})
			})
		})
	})

	Convey("Given an enricher with an out-of-range AI scorer", t, func() {
		scorer := &stubScorer{score: 900}
		e := relevance.New(relevance.WithScorer(scorer))

		Convey("Then the fallback path should be taken", func() {
			out := e.Enrich(context.Background(), rawItem("5", "docker and linux", ""))
			So(out.TechScore, ShouldBeLessThanOrEqualTo, 100)
		})
	})
}

func TestEnrichBatch(t *testing.T) {
	Convey("Given an enricher and a batch of items", t, func() {
		e := relevance.New(relevance.WithConcurrency(4))
		items := []model.RawItem{
			rawItem("a", "rust compiler internals", ""),
			rawItem("b", "gardening tips", ""),
			rawItem("c", "distributed cache design", ""),
		}

		out := e.EnrichBatch(context.Background(), items)

		Convey("Then output should preserve input order", func() {
			So(out, ShouldHaveLength, 3)
			So(out[0].Item.ID, ShouldEqual, "a")
			So(out[1].Item.ID, ShouldEqual, "b")
			So(out[2].Item.ID, ShouldEqual, "c")
		})

		Convey("Then an empty batch should return empty", func() {
			So(e.EnrichBatch(context.Background(), nil), ShouldHaveLength, 0)
		})
	})
}

func TestMatchKeywords(t *testing.T) {
	Convey("Given the fallback keyword matcher", t, func() {
		vocab := []string{"go", "rust", "machine learning", "cache"}

		Convey("Then single words should match on word boundaries", func() {
			kw := relevance.MatchKeywords(vocab, "Why Go beats Rust", "")
			So(kw, ShouldResemble, []string{"go", "rust"})
		})

		Convey("Then 'go' inside another word should not match", func() {
			kw := relevance.MatchKeywords(vocab, "Gone with the wind", "")
			So(kw, ShouldBeEmpty)
		})

		Convey("Then multi-word terms should match as phrases", func() {
			kw := relevance.MatchKeywords(vocab, "Intro to machine learning", "")
			So(kw, ShouldResemble, []string{"machine learning"})
		})

		Convey("Then matches should be capped and de-duplicated", func() {
			many := make([]string, 0, 30)
			title := ""
			for _, w := range []string{"a1", "b1", "c1", "d1", "e1", "f1", "g1", "h1", "i1", "j1", "k1", "l1"} {
				many = append(many, w)
				title += w + " "
			}
			kw := relevance.MatchKeywords(many, title, "")
			So(len(kw), ShouldEqual, 10)
		})
	})

	Convey("Given the fallback score function", t, func() {
		So(relevance.FallbackScore(0), ShouldEqual, 0)
		So(relevance.FallbackScore(3), ShouldEqual, 45)
		So(relevance.FallbackScore(50), ShouldEqual, 100)
	})
}
