package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/feedmill/internal/adapters/cache"
	"github.com/okian/feedmill/pkg/logger"
)

// fakeTier is an in-memory Tier with scriptable failures.
type fakeTier struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	getHits int
}

func newFakeTier() *fakeTier {
	return &fakeTier{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.data[key]
	if ok {
		f.getHits++
	}
	return v, ok, nil
}

func (f *fakeTier) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = payload
	f.ttls[key] = ttl
	return nil
}

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

func TestTiered(t *testing.T) {
	Convey("Given a tiered cache over two healthy tiers", t, func() {
		ctx := context.Background()
		memory := newFakeTier()
		durable := newFakeTier()
		tiered := cache.NewTiered(memory, durable)

		Convey("When a value is set", func() {
			tiered.Set(ctx, "source:hackernews:page:1", []byte("payload"))

			Convey("Then both tiers should hold it", func() {
				v, ok := tiered.Get(ctx, "source:hackernews:page:1")
				So(ok, ShouldBeTrue)
				So(string(v), ShouldEqual, "payload")
				So(durable.data, ShouldContainKey, "source:hackernews:page:1")
			})

			Convey("Then the TTL should follow the key namespace", func() {
				So(memory.ttls["source:hackernews:page:1"], ShouldEqual, 5*time.Minute)
				tiered.Set(ctx, "ai:score:hackernews:1", []byte("90"))
				So(memory.ttls["ai:score:hackernews:1"], ShouldEqual, 24*time.Hour)
			})
		})

		Convey("When the value exists only in the durable tier", func() {
			_ = durable.Set(ctx, "feed:mixed", []byte("snapshot"), time.Minute)

			v, ok := tiered.Get(ctx, "feed:mixed")

			Convey("Then the read should hit through and rehydrate tier one", func() {
				So(ok, ShouldBeTrue)
				So(string(v), ShouldEqual, "snapshot")
				So(memory.data, ShouldContainKey, "feed:mixed")
			})
		})

		Convey("When the key is absent everywhere", func() {
			_, ok := tiered.Get(ctx, "missing")
			So(ok, ShouldBeFalse)
		})

		Convey("When the durable tier fails on write", func() {
			durable.setErr = errors.New("connection refused")

			Convey("Then Set should swallow the failure", func() {
				So(func() { tiered.Set(ctx, "source:x", []byte("v")) }, ShouldNotPanic)
				v, ok := tiered.Get(ctx, "source:x")
				So(ok, ShouldBeTrue)
				So(string(v), ShouldEqual, "v")
			})
		})

		Convey("When the durable tier fails on read", func() {
			durable.getErr = errors.New("timeout")

			Convey("Then a memory miss should report absent, not error", func() {
				_, ok := tiered.Get(ctx, "only-durable")
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given a cache degraded to memory-only", t, func() {
		ctx := context.Background()
		memory := newFakeTier()
		tiered := cache.NewTiered(memory, nil)

		Convey("Then round trips should still work", func() {
			tiered.Set(ctx, "k", []byte("v"))
			v, ok := tiered.Get(ctx, "k")
			So(ok, ShouldBeTrue)
			So(string(v), ShouldEqual, "v")
		})
	})
}

func TestJSONHelpers(t *testing.T) {
	Convey("Given a tiered cache", t, func() {
		ctx := context.Background()
		tiered := cache.NewTiered(newFakeTier(), nil)

		type payload struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}

		Convey("Then typed values should round-trip", func() {
			cache.SetJSON(ctx, tiered, "k", payload{Name: "hn", Count: 3})
			got, ok := cache.GetJSON[payload](ctx, tiered, "k")
			So(ok, ShouldBeTrue)
			So(got, ShouldResemble, payload{Name: "hn", Count: 3})
		})

		Convey("Then a missing key should report absent", func() {
			_, ok := cache.GetJSON[payload](ctx, tiered, "nope")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestMemoryTier(t *testing.T) {
	Convey("Given a memory tier with a controllable clock", t, func() {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		advance := func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		}

		m := cache.NewMemory(cache.WithClock(clock), cache.WithSweepInterval(time.Hour))
		defer m.Close()
		ctx := context.Background()

		Convey("When a value is stored with a TTL", func() {
			So(m.Set(ctx, "k", []byte("v"), time.Minute), ShouldBeNil)

			Convey("Then it should be readable inside the window", func() {
				v, ok, err := m.Get(ctx, "k")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(string(v), ShouldEqual, "v")
			})

			Convey("And absent after expiry", func() {
				advance(2 * time.Minute)
				_, ok, err := m.Get(ctx, "k")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When entries are flushed", func() {
			So(m.Set(ctx, "a", []byte("1"), time.Hour), ShouldBeNil)
			m.Flush()
			So(m.Len(), ShouldEqual, 0)
		})
	})
}
