package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/feedmill/pkg/metrics"
)

func TestManager(t *testing.T) {
	Convey("Given a metrics manager on a fresh registry", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(metrics.WithRegistry(reg))
		So(m, ShouldNotBeNil)

		Convey("Then instruments should be gatherable", func() {
			families, err := reg.Gather()
			So(err, ShouldBeNil)
			// Counters without observations are not exported yet, but
			// gauges and histograms register eagerly.
			So(families, ShouldNotBeNil)
		})
	})

	Convey("Given the global manager", t, func() {
		Convey("Then recording helpers should not panic", func() {
			So(func() {
				metrics.RecordFetch("hackernews", "miss")
				metrics.RecordFetchDuration("hackernews", 0.2)
				metrics.RecordBreakerRejection("lobsters")
				metrics.RecordCacheHit("memory")
				metrics.RecordCacheMiss()
				metrics.RecordCacheError("durable")
				metrics.RecordEnrichmentAI()
				metrics.RecordEnrichmentFallback()
				metrics.RecordEnrichmentDuration(0.01)
				metrics.RecordFeedBuild()
				metrics.RecordFeedBuildDuration(0.5)
				metrics.RecordFeedItemsServed(10)
				metrics.RecordPersistSuccess("raw")
				metrics.RecordPersistFailure("ranked")
				metrics.RecordPersistRetry()
				metrics.UpdateQueueDepth(3)
				metrics.UpdateQueueCapacity(100)
				metrics.RecordQueueEnqueueError()
				metrics.RecordHTTPRequest("feed", "GET", "200")
				metrics.RecordHTTPRequestDuration("feed", "GET", "200", 0.05)
			}, ShouldNotPanic)
		})

		Convey("Then the served registry should exist", func() {
			So(metrics.GetRegistry(), ShouldNotBeNil)
		})
	})
}
