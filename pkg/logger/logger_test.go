package logger_test

import (
	"context"
	"testing"

	"github.com/okian/feedmill/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("When fetching the global instance", func() {
			l := logger.Get()
			So(l, ShouldNotBeNil)

			Convey("Then logging at every level should not panic", func() {
				ctx := context.Background()
				So(func() {
					l.Debug(ctx, "debug", logger.String("k", "v"))
					l.Info(ctx, "info", logger.Int("n", 1))
					l.Warn(ctx, "warn", logger.Bool("b", true))
					l.Error(ctx, "error", logger.Error(nil))
				}, ShouldNotPanic)
			})

			Convey("And Named should return a distinct child logger", func() {
				named := l.Named("child")
				So(named, ShouldNotBeNil)
				So(named, ShouldNotEqual, l)
			})
		})

		Convey("When setting log levels from strings", func() {
			So(logger.SetLevelString("debug"), ShouldBeNil)
			So(logger.SetLevelString("WARN"), ShouldBeNil)
			So(logger.SetLevelString(""), ShouldBeNil)

			Convey("Then unknown levels should be rejected", func() {
				So(logger.SetLevelString("loud"), ShouldNotBeNil)
			})
		})
	})
}
