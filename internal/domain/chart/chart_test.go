package chart_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/okian/stride/internal/domain/chart"
	"github.com/okian/stride/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) // Wednesday

func TestVolumeSeries(t *testing.T) {
	Convey("Given runs in only two of the last eight weeks", t, func() {
		acts := []model.Activity{
			{ID: "cur", StartTime: now.Add(-2 * time.Hour), DistanceMeters: 16093.44},
			{ID: "old", StartTime: now.AddDate(0, 0, -35), DistanceMeters: 8046.72},
			{ID: "ancient", StartTime: now.AddDate(0, 0, -100), DistanceMeters: 50000},
		}
		series := chart.VolumeSeries(acts, now, time.Sunday, chart.DefaultVolumeWeeks)

		Convey("Then the series is dense and ordered oldest first", func() {
			So(len(series), ShouldEqual, 8)
			So(series[7].WeekKey, ShouldEqual, "2024-03-03")
			So(series[0].WeekKey, ShouldEqual, "2024-01-14")
			for i := 1; i < len(series); i++ {
				So(series[i].WeekStart.After(series[i-1].WeekStart), ShouldBeTrue)
			}
		})

		Convey("Then mileage is bucketed per week and empty weeks are zero", func() {
			So(series[7].Miles, ShouldEqual, 10)
			So(series[7].Runs, ShouldEqual, 1)
			So(series[2].Miles, ShouldEqual, 5)
			zero := 0
			for _, p := range series {
				if p.Miles == 0 {
					zero++
				}
			}
			So(zero, ShouldEqual, 6)
		})
	})

	Convey("Given no activities", t, func() {
		series := chart.VolumeSeries(nil, now, time.Sunday, 8)
		So(len(series), ShouldEqual, 8)
	})
}

func TestPaceSeries(t *testing.T) {
	Convey("Given twenty activities, some without pace", t, func() {
		var acts []model.Activity
		for i := 0; i < 20; i++ {
			a := model.Activity{
				ID:             fmt.Sprintf("a%02d", i),
				StartTime:      now.AddDate(0, 0, -i),
				DistanceMeters: 5000,
			}
			if i != 3 {
				a.AveragePaceSecPerKm = model.Float(280 + float64(i))
			}
			acts = append(acts, a)
		}
		series := chart.PaceSeries(acts, chart.DefaultPacePoints)

		Convey("Then the most recent fifteen paced runs are kept in ascending order", func() {
			So(len(series), ShouldEqual, 15)
			So(series[14].ActivityID, ShouldEqual, "a00")
			So(series[0].ActivityID, ShouldEqual, "a15")
			for i := 1; i < len(series); i++ {
				So(series[i].Date.After(series[i-1].Date), ShouldBeTrue)
			}
			for _, p := range series {
				So(p.ActivityID, ShouldNotEqual, "a03")
			}
		})

		Convey("Then the numeric value and the label agree", func() {
			for _, p := range series {
				var m, s int
				_, err := fmt.Sscanf(p.Label, "%d:%d", &m, &s)
				So(err, ShouldBeNil)
				So(s, ShouldBeLessThan, 60)
				So(math.Abs(p.Minutes-float64(m)-float64(s)/60), ShouldBeLessThanOrEqualTo, 0.005)
			}
		})
	})

	Convey("Given a pace whose seconds round to sixty", t, func() {
		// 298.1 s/km is 479.74 s/mile.
		acts := []model.Activity{{ID: "x", StartTime: now, AveragePaceSecPerKm: model.Float(298.1)}}
		p := chart.PaceSeries(acts, 15)[0]

		Convey("Then both representations roll over to 8:00", func() {
			So(p.Label, ShouldEqual, "8:00")
			So(p.Minutes, ShouldEqual, 8)
		})
	})

	Convey("Given no paced activities", t, func() {
		So(chart.PaceSeries([]model.Activity{{ID: "np", StartTime: now}}, 15), ShouldBeEmpty)
	})
}
