package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/stride/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.RefreshQueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.RefreshWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.CalendarBlockDays, convey.ShouldEqual, 14)
			convey.So(cfg.VolumeWeeks, convey.ShouldEqual, 8)
			convey.So(cfg.PacePoints, convey.ShouldEqual, 15)
			convey.So(cfg.Coaching.PeakMileageCapMiles, convey.ShouldEqual, 60)
			convey.So(cfg.Insight.TaperWindowDays, convey.ShouldEqual, 14)
			convey.So(cfg.Metrics.Namespace, convey.ShouldEqual, "stride")
			convey.So(cfg.Metrics.Subsystem, convey.ShouldEqual, "coach")
			convey.So(cfg.Metrics.Buckets, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the week starts on Sunday in the local timezone", func() {
			d, err := cfg.WeekStart()
			convey.So(err, convey.ShouldBeNil)
			convey.So(d, convey.ShouldEqual, time.Sunday)
			loc, err := cfg.Location()
			convey.So(err, convey.ShouldBeNil)
			convey.So(loc, convey.ShouldEqual, time.Local)
		})
	})

	convey.Convey("Given invalid values", t, func() {
		convey.Convey("When the timezone is unknown", func() {
			cfg := config.New()
			cfg.Timezone = "Mars/Olympus"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the week start is not a weekday", func() {
			cfg := config.New()
			cfg.DashboardWeekStart = "someday"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the block length is zero", func() {
			cfg := config.New()
			cfg.CalendarBlockDays = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the rate limit is negative", func() {
			cfg := config.New()
			cfg.RateLimitPerMin = -1
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When brokers are set without a topic", func() {
			cfg := config.New()
			cfg.KafkaBrokers = "localhost:9092"
			cfg.KafkaTopic = " "
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When metric buckets are out of order", func() {
			cfg := config.New()
			cfg.Metrics.Buckets = []float64{0.5, 0.1}
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the log format is unknown", func() {
			cfg := config.New()
			cfg.LogFormat = "xml"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a named timezone", t, func() {
		cfg := config.New()
		cfg.Timezone = "UTC"
		loc, err := cfg.Location()
		convey.So(err, convey.ShouldBeNil)
		convey.So(loc.String(), convey.ShouldEqual, "UTC")
	})
}

func TestConfig_Brokers(t *testing.T) {
	convey.Convey("Given a broker list with blanks", t, func() {
		cfg := config.New()
		cfg.KafkaBrokers = " k1:9092, ,k2:9092,"

		convey.Convey("Then only addresses remain", func() {
			convey.So(cfg.Brokers(), convey.ShouldResemble, []string{"k1:9092", "k2:9092"})
		})
	})

	convey.Convey("Given no brokers", t, func() {
		convey.So(config.New().Brokers(), convey.ShouldBeEmpty)
	})
}
