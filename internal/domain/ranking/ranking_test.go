package ranking_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/feedmill/internal/domain/model"
	"github.com/okian/feedmill/internal/domain/ranking"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func enriched(src model.Source, id string, score, comments, techScore int, ageHours float64) model.EnrichedItem {
	return model.EnrichedItem{
		Item: model.RawItem{
			ID:           id,
			Source:       src,
			Score:        score,
			CommentCount: comments,
			PublishedAt:  fixedNow().Add(-time.Duration(ageHours * float64(time.Hour))),
		},
		TechScore: techScore,
	}
}

func TestEngineScore(t *testing.T) {
	Convey("Given an engine with a fixed clock", t, func() {
		engine := ranking.New(ranking.WithNow(fixedNow))

		Convey("Then score should be non-increasing in age with engagement fixed", func() {
			prev := engine.Score(enriched(model.SourceHackerNews, "a", 200, 40, 50, 1))
			for _, age := range []float64{2, 6, 12, 24, 48, 96} {
				cur := engine.Score(enriched(model.SourceHackerNews, "a", 200, 40, 50, age))
				So(cur, ShouldBeLessThanOrEqualTo, prev)
				prev = cur
			}
		})

		Convey("Then score should be non-decreasing in engagement with age fixed", func() {
			prev := engine.Score(enriched(model.SourceHackerNews, "a", 1, 1, 50, 5))
			for _, nativeScore := range []int{10, 50, 200, 1000, 5000} {
				cur := engine.Score(enriched(model.SourceHackerNews, "a", nativeScore, 1, 50, 5))
				So(cur, ShouldBeGreaterThanOrEqualTo, prev)
				prev = cur
			}
		})

		Convey("Then cross-source normalization should keep small-scale sources comparable", func() {
			// A: huge native score, no relevance boost.
			a := engine.Score(enriched(model.SourceHackerNews, "a", 500, 10, 0, 1))
			// B: tiny native score but strong tech relevance.
			b := engine.Score(enriched(model.SourceLobsters, "b", 14, 4, 85, 1))
			So(b, ShouldBeGreaterThanOrEqualTo, int(0.6*float64(a)))
		})

		Convey("Then zero-comment items should be penalized", func() {
			withComments := engine.Score(enriched(model.SourceDevTo, "a", 100, 1, 50, 2))
			noComments := engine.Score(enriched(model.SourceDevTo, "b", 100, 0, 50, 2))
			So(noComments, ShouldBeLessThan, withComments)
		})

		Convey("Then a higher tech score should boost the result", func() {
			low := engine.Score(enriched(model.SourceHackerNews, "a", 100, 10, 0, 3))
			high := engine.Score(enriched(model.SourceHackerNews, "a", 100, 10, 90, 3))
			So(high, ShouldBeGreaterThan, low)
		})

		Convey("Then items published in the future should not blow up", func() {
			s := engine.Score(enriched(model.SourceHackerNews, "a", 100, 10, 50, -2))
			So(s, ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given per-source weight overrides", t, func() {
		engine := ranking.New(
			ranking.WithNow(fixedNow),
			ranking.WithSourceWeights(map[model.Source]ranking.SourceWeights{
				model.SourceLobsters: {Like: 10, Comment: 20},
			}),
		)

		Convey("Then the override should lift that source's scores", func() {
			base := ranking.New(ranking.WithNow(fixedNow))
			item := enriched(model.SourceLobsters, "x", 10, 5, 0, 2)
			So(engine.Score(item), ShouldBeGreaterThan, base.Score(item))
		})
	})
}

func TestEngineRankAll(t *testing.T) {
	Convey("Given a batch of enriched items", t, func() {
		engine := ranking.New(ranking.WithNow(fixedNow))
		items := []model.EnrichedItem{
			enriched(model.SourceHackerNews, "low", 5, 1, 10, 30),
			enriched(model.SourceHackerNews, "high", 900, 300, 80, 1),
			enriched(model.SourceHackerNews, "mid", 80, 20, 50, 5),
		}

		ranked := engine.RankAll(items)

		Convey("Then ranks should be a dense 1..N sequence", func() {
			So(ranked, ShouldHaveLength, 3)
			for i, r := range ranked {
				So(r.Rank, ShouldEqual, i+1)
			}
		})

		Convey("Then ordering should be descending by computed score", func() {
			So(ranked[0].ItemID, ShouldEqual, "high")
			So(ranked[0].ComputedScore, ShouldBeGreaterThanOrEqualTo, ranked[1].ComputedScore)
			So(ranked[1].ComputedScore, ShouldBeGreaterThanOrEqualTo, ranked[2].ComputedScore)
		})

		Convey("Then the original native score should be preserved", func() {
			So(ranked[0].OriginalScore, ShouldEqual, 900)
		})

		Convey("Then an empty batch should yield an empty result", func() {
			So(engine.RankAll(nil), ShouldHaveLength, 0)
		})
	})
}
