package seed

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/units"
	"github.com/okian/stride/internal/domain/window"
)

// raceDistance is a goal distance with plausible finish times.
type raceDistance struct {
	name       string
	meters     float64
	fastSecond int
	slowSecond int
}

var races = []raceDistance{ //nolint:gochecknoglobals // fixed catalogue
	{"5K", 5000, 18 * 60, 35 * 60},
	{"10K", 10000, 38 * 60, 70 * 60},
	{"Half Marathon", 21097.5, 85 * 60, 150 * 60},
	{"Marathon", 42195, 180 * 60, 330 * 60},
}

const (
	minEasyPace     = 300.0 // s/km
	maxEasyPace     = 400.0
	minRunsPerWeek  = 2
	maxRunsPerWeek  = 6
	minRaceWeeks    = 3
	maxRaceWeeks    = 20
	unpacedOneIn    = 10
	targetTimeOneIn = 4
)

// Generate builds n athletes. Activities span the given number of weeks
// before now and plans cover planDays from today. The same seed always
// produces the same athletes.
func Generate(seed int64, n, weeks, planDays int, now time.Time) []Athlete {
	f := gofakeit.New(seed)
	athletes := make([]Athlete, n)
	for i := range athletes {
		athletes[i] = generateAthlete(f, i, weeks, planDays, now)
	}
	return athletes
}

func generateAthlete(f *gofakeit.Faker, index, weeks, planDays int, now time.Time) Athlete {
	userID := fmt.Sprintf("%s-%03d", f.Username(), index)
	race := races[f.Number(0, len(races)-1)]
	easyPace := f.Float64Range(minEasyPace, maxEasyPace)

	a := Athlete{
		UserID: userID,
		Goal:   generateGoal(f, race, now),
	}

	today := window.Midnight(now)
	for w := weeks; w >= 1; w-- {
		weekStart := window.AddDays(today, -w*window.DaysPerWeek)
		runs := f.Number(minRunsPerWeek, maxRunsPerWeek)
		for r := 0; r < runs; r++ {
			day := window.AddDays(weekStart, f.Number(0, window.DaysPerWeek-1))
			start := day.Add(time.Duration(f.Number(5, 19))*time.Hour + time.Duration(f.Number(0, 59))*time.Minute)
			if !start.Before(now) {
				continue
			}
			km := f.Float64Range(3, race.meters/1000*0.6+4)
			act := ActivityInput{
				ID:             f.UUID(),
				StartTime:      start.UTC(),
				DistanceMeters: units.Round(km*1000, 1),
			}
			if f.Number(1, unpacedOneIn) != 1 {
				pace := units.Round(easyPace+f.Float64Range(-30, 30), 1)
				act.AveragePaceSecPerKm = &pace
			}
			a.Activities = append(a.Activities, act)
		}
	}

	a.Plan = generatePlan(f, race, today, planDays)
	return a
}

func generateGoal(f *gofakeit.Faker, race raceDistance, now time.Time) GoalInput {
	raceDay := window.AddDays(window.Midnight(now), f.Number(minRaceWeeks, maxRaceWeeks)*window.DaysPerWeek)
	g := GoalInput{
		RaceDate:       window.DateKey(raceDay),
		DistanceMeters: race.meters,
	}
	if f.Number(1, targetTimeOneIn) != 1 {
		t := f.Number(race.fastSecond, race.slowSecond)
		g.TargetTimeSeconds = &t
	}
	return g
}

// weekTemplate is a Monday-first training week.
var weekTemplate = []model.WorkoutType{ //nolint:gochecknoglobals // fixed template
	model.WorkoutRest,
	model.WorkoutEasy,
	model.WorkoutInterval,
	model.WorkoutRecovery,
	model.WorkoutTempo,
	model.WorkoutRest,
	model.WorkoutLong,
}

var titles = map[model.WorkoutType][]string{ //nolint:gochecknoglobals // fixed catalogue
	model.WorkoutRest:     {"Rest day", "Off", "Mobility and rest"},
	model.WorkoutEasy:     {"Easy run", "Aerobic miles", "Conversational run"},
	model.WorkoutInterval: {"6x800m", "5x1km", "10x400m", "Hill repeats"},
	model.WorkoutRecovery: {"Recovery jog", "Shakeout"},
	model.WorkoutTempo:    {"Tempo run", "Threshold intervals", "Progression run"},
	model.WorkoutLong:     {"Long run", "Long run with fast finish"},
}

var plannedKm = map[model.WorkoutType][2]float64{ //nolint:gochecknoglobals // fixed ranges
	model.WorkoutEasy:     {5, 10},
	model.WorkoutInterval: {6, 10},
	model.WorkoutRecovery: {3, 6},
	model.WorkoutTempo:    {6, 12},
	model.WorkoutLong:     {14, 32},
}

func generatePlan(f *gofakeit.Faker, race raceDistance, today time.Time, days int) []EntryInput {
	var plan []EntryInput
	for i := 0; i < days; i++ {
		day := window.AddDays(today, i)
		kind := weekTemplate[(int(day.Weekday())+6)%window.DaysPerWeek]
		e := EntryInput{
			Date:        window.DateKey(day),
			WorkoutType: string(kind),
			Title:       f.RandomString(titles[kind]),
			Status:      string(model.StatusPlanned),
			Source:      string(model.SourceAICoach),
		}
		if r, ok := plannedKm[kind]; ok {
			hi := r[1]
			if kind == model.WorkoutLong {
				hi = minFloat(hi, race.meters/1000*0.8+r[0])
			}
			m := units.Round(f.Float64Range(r[0], hi)*1000, 1)
			e.PlannedDistanceMeters = &m
			e.Description = f.Sentence(8)
		}
		plan = append(plan, e)
	}
	return plan
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
