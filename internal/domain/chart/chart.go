// Package chart shapes activities into the series plotted on the dashboard.
package chart

import (
	"sort"
	"time"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/units"
	"github.com/okian/stride/internal/domain/window"
)

// Series defaults.
const (
	DefaultVolumeWeeks = 8
	DefaultPacePoints  = 15
	secondsPerMinute   = 60
)

// VolumePoint is the mileage of one week.
type VolumePoint struct {
	WeekStart time.Time `json:"week_start"`
	WeekKey   string    `json:"week_key"`
	Miles     float64   `json:"miles"`
	Runs      int       `json:"runs"`
}

// PacePoint is the pace of one activity. Minutes and Label always describe
// the same whole-second value.
type PacePoint struct {
	ActivityID string    `json:"activity_id"`
	Date       time.Time `json:"date"`
	DateKey    string    `json:"date_key"`
	Minutes    float64   `json:"minutes"`
	Label      string    `json:"label"`
}

// VolumeSeries buckets activities into the last `weeks` anchored weeks,
// oldest first. Weeks without activity are present with zero miles.
func VolumeSeries(activities []model.Activity, now time.Time, anchor time.Weekday, weeks int) []VolumePoint {
	buckets := window.Weeks(now, anchor, weeks)
	out := make([]VolumePoint, len(buckets))
	for i, w := range buckets {
		out[i] = VolumePoint{
			WeekStart: w.Start,
			WeekKey:   window.DateKey(w.Start),
			Miles:     units.Round(units.MetersToMiles(window.SumMeters(activities, w)), 1),
			Runs:      window.Count(activities, w),
		}
	}
	return out
}

// PaceSeries returns the most recent n activities that carry a pace, in
// ascending time order, as per-mile paces.
func PaceSeries(activities []model.Activity, n int) []PacePoint {
	if n <= 0 {
		return []PacePoint{}
	}
	paced := make([]model.Activity, 0, len(activities))
	for _, a := range activities {
		if a.HasPace() {
			paced = append(paced, a)
		}
	}
	sort.SliceStable(paced, func(i, j int) bool {
		return paced[i].StartTime.Before(paced[j].StartTime)
	})
	if len(paced) > n {
		paced = paced[len(paced)-n:]
	}

	out := make([]PacePoint, len(paced))
	for i, a := range paced {
		secPerMile := units.Round(units.SecPerKmToSecPerMile(*a.AveragePaceSecPerKm), 0)
		out[i] = PacePoint{
			ActivityID: a.ID,
			Date:       a.StartTime,
			DateKey:    window.DateKey(a.StartTime),
			Minutes:    units.Round(secPerMile/secondsPerMinute, 2),
			Label:      units.FormatPace(secPerMile),
		}
	}
	return out
}
