package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/feedmill/internal/domain/model"
)

func TestHackerNewsFetchPage(t *testing.T) {
	Convey("Given a Hacker News API stub", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[101, 102, 103, 104]`)
		})
		mux.HandleFunc("/item/101.json", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"id":101,"type":"story","by":"alice","title":"Go 1.25 released","url":"https://go.dev/blog/go1.25","score":320,"descendants":140,"time":1756000000}`)
		})
		mux.HandleFunc("/item/102.json", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"id":102,"type":"story","by":"bob","title":"Ask HN: anyone using arenas?","text":"curious","score":40,"descendants":12,"time":1756000100}`)
		})
		mux.HandleFunc("/item/103.json", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"id":103,"type":"story","title":"flagged","dead":true,"time":1756000200}`)
		})
		mux.HandleFunc("/item/104.json", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"id":104,"type":"comment","by":"carol","text":"nice","time":1756000300}`)
		})
		server := httptest.NewServer(mux)
		Reset(server.Close)

		hn := NewHackerNews(WithHNBaseURL(server.URL), WithHNPageSize(4))

		Convey("When the first page is fetched", func() {
			items, err := hn.FetchPage(context.Background(), 1)

			Convey("Then stories survive and dead or non-story entries drop", func() {
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 2)
				So(items[0].ID, ShouldEqual, "101")
				So(items[0].Source, ShouldEqual, model.SourceHackerNews)
				So(items[0].Score, ShouldEqual, 320)
				So(items[0].CommentCount, ShouldEqual, 140)
			})

			Convey("And link-less posts point at the discussion page", func() {
				So(err, ShouldBeNil)
				So(items[1].URL, ShouldEqual, "https://news.ycombinator.com/item?id=102")
			})
		})

		Convey("When the page is past the end of the ID list", func() {
			items, err := hn.FetchPage(context.Background(), 9)

			Convey("Then an empty page comes back without error", func() {
				So(err, ShouldBeNil)
				So(items, ShouldBeEmpty)
			})
		})
	})

	Convey("Given an API returning server errors", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		Reset(server.Close)

		hn := NewHackerNews(WithHNBaseURL(server.URL))

		Convey("When a page is fetched", func() {
			_, err := hn.FetchPage(context.Background(), 1)

			Convey("Then the status error surfaces", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "502")
			})
		})
	})
}

func TestLobstersFetchPage(t *testing.T) {
	Convey("Given a Lobsters API stub", t, func() {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			fmt.Fprint(w, `[
				{"short_id":"abc123","title":"Profiling Go services","url":"https://example.com/profiling","score":25,"comment_count":9,"created_at":"2026-08-30T10:00:00Z","submitter_user":"dana"},
				{"short_id":"def456","title":"A text post","url":"","comments_url":"https://lobste.rs/s/def456","score":4,"comment_count":2,"created_at":"2026-08-30T11:00:00Z","submitter_user":"erin"},
				{"short_id":"bad999","title":"","score":3,"created_at":"2026-08-30T12:00:00Z"}
			]`)
		}))
		Reset(server.Close)

		lob := NewLobsters(WithLobstersBaseURL(server.URL))

		Convey("When the first page is fetched", func() {
			items, err := lob.FetchPage(context.Background(), 1)

			Convey("Then titled stories normalize and untitled ones drop", func() {
				So(err, ShouldBeNil)
				So(gotPath, ShouldEqual, "/hottest.json")
				So(items, ShouldHaveLength, 2)
				So(items[0].ID, ShouldEqual, "abc123")
				So(items[0].Source, ShouldEqual, model.SourceLobsters)
				So(items[0].Author, ShouldEqual, "dana")
				So(items[0].PublishedAt.IsZero(), ShouldBeFalse)
			})

			Convey("And text posts link to the discussion", func() {
				So(err, ShouldBeNil)
				So(items[1].URL, ShouldEqual, "https://lobste.rs/s/def456")
			})
		})
	})
}

func TestDevtoFetchPage(t *testing.T) {
	Convey("Given a DEV API stub", t, func() {
		var gotPath, gotPage string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotPage = r.URL.Query().Get("page")
			fmt.Fprint(w, `[
				{"id":9001,"title":"Understanding goroutine leaks","description":"Leaks and how to find them","url":"https://dev.to/x/goroutine-leaks","published_at":"2026-08-29T08:30:00Z","positive_reactions_count":55,"comments_count":7,"user":{"name":"Frank","username":"frank"}},
				{"id":9002,"title":"My first post","url":"https://dev.to/y/first","published_at":"2026-08-29T09:00:00Z","positive_reactions_count":0,"comments_count":0,"user":{"username":"newbie"}}
			]`)
		}))
		Reset(server.Close)

		dev := NewDevto(WithDevtoBaseURL(server.URL))

		Convey("When a page is fetched", func() {
			items, err := dev.FetchPage(context.Background(), 2)

			Convey("Then zero-engagement posts are filtered out", func() {
				So(err, ShouldBeNil)
				So(gotPath, ShouldEqual, "/api/articles")
				So(gotPage, ShouldEqual, "2")
				So(items, ShouldHaveLength, 1)
				So(items[0].ID, ShouldEqual, "9001")
				So(items[0].Source, ShouldEqual, model.SourceDevTo)
				So(items[0].Author, ShouldEqual, "Frank")
				So(items[0].Score, ShouldEqual, 55)
			})
		})
	})
}
