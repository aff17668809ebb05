package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/stride/internal/adapters/http/api"
	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/app"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) // Wednesday

// stubDeps answers every call with canned values.
type stubDeps struct {
	dashboard app.Dashboard
	view      app.CalendarView
	err       error
	panics    bool
}

func (s *stubDeps) Dashboard(context.Context, string) (app.Dashboard, error) {
	if s.panics {
		panic("boom")
	}
	return s.dashboard, s.err
}

func (s *stubDeps) Calendar(context.Context, string, string, int) (app.CalendarView, error) {
	return s.view, s.err
}

func (s *stubDeps) UpsertEntry(_ context.Context, _ string, e model.CalendarEntry) (model.CalendarEntry, error) {
	return e, s.err
}

func (s *stubDeps) DeleteEntry(context.Context, string, string) error { return s.err }

func (s *stubDeps) ToggleEntry(context.Context, string, string) (model.CalendarEntry, error) {
	return model.CalendarEntry{}, s.err
}

func (s *stubDeps) SetEntryStatus(context.Context, string, string, model.EntryStatus) error {
	return s.err
}

func (s *stubDeps) IngestActivity(context.Context, string, model.Activity) (bool, error) {
	return s.err == nil, s.err
}

func (s *stubDeps) ListActivities(context.Context, string) ([]model.Activity, error) {
	return nil, s.err
}

func (s *stubDeps) SetGoal(_ context.Context, _ string, g model.Goal) (model.Goal, error) {
	return g, s.err
}

func (s *stubDeps) ActiveGoal(context.Context, string) (*model.Goal, error) { return nil, s.err }

func (s *stubDeps) GetStats(context.Context) app.Stats { return app.Stats{Timezone: "UTC"} }

func newHandler(deps api.Dependencies, stats api.StatsProvider) http.Handler {
	_ = logger.Init(logger.WithWriter(io.Discard))
	return api.NewServer(deps, stats, api.WithLocation(time.UTC)).Handler(context.Background())
}

func do(h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set(api.UserHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestCoachingFlow(t *testing.T) {
	Convey("Given the API over an in-memory service", t, func() {
		svc := app.New(
			app.WithClock(func() time.Time { return now }),
			app.WithLocation(time.UTC),
			app.WithGateway(repository.NewMemoryStore(
				repository.WithLocation(time.UTC),
				repository.WithClock(func() time.Time { return now.AddDate(0, 0, -30) }),
			)),
		)
		h := newHandler(svc, svc)

		Convey("When a goal and a run are posted", func() {
			w := do(h, http.MethodPut, "/goal", "ana", `{"race_date":"2024-05-05","distance_meters":42195,"target_time_seconds":13500}`)
			So(w.Code, ShouldEqual, http.StatusOK)

			run := `{"id":"r1","start_time":"2024-03-06T07:00:00Z","distance_meters":10000,"average_pace_sec_per_km":300}`
			w = do(h, http.MethodPost, "/activities", "ana", run)
			So(w.Code, ShouldEqual, http.StatusCreated)

			Convey("Then replaying the run is acknowledged as a duplicate", func() {
				w := do(h, http.MethodPost, "/activities", "ana", run)
				So(w.Code, ShouldEqual, http.StatusOK)
				var ack struct {
					Duplicate bool `json:"duplicate"`
				}
				decode(w, &ack)
				So(ack.Duplicate, ShouldBeTrue)

				w = do(h, http.MethodGet, "/activities", "ana", "")
				var list struct {
					Activities []model.Activity `json:"activities"`
				}
				decode(w, &list)
				So(len(list.Activities), ShouldEqual, 1)
			})

			Convey("Then the dashboard reflects the goal and the run", func() {
				w := do(h, http.MethodGet, "/dashboard", "ana", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var d app.Dashboard
				decode(w, &d)
				So(d.Stale, ShouldBeFalse)
				So(*d.Metrics.PaceDiffSecPerMile, ShouldEqual, -32)
				So(d.Insight.Rule, ShouldEqual, "ahead_of_pace")
			})

			Convey("Then other users see nothing of it", func() {
				w := do(h, http.MethodGet, "/goal", "", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"goal":null}`)
			})
		})

		Convey("When an entry is planned and toggled", func() {
			w := do(h, http.MethodPut, "/calendar/entries", "ana",
				`{"date":"2024-03-07","workout_type":"tempo","title":"Tempo 6","planned_distance_meters":9656.06}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var e model.CalendarEntry
			decode(w, &e)
			So(e.ID, ShouldNotBeEmpty)

			w = do(h, http.MethodPost, "/calendar/entries/"+e.ID+"/toggle", "ana", "")
			So(w.Code, ShouldEqual, http.StatusOK)

			Convey("Then the grid shows it completed on its date", func() {
				w := do(h, http.MethodGet, "/calendar?start=2024-03-06&days=7", "ana", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var view app.CalendarView
				decode(w, &view)
				So(len(view.Cells), ShouldEqual, 7)
				So(view.Cells[0].DateKey, ShouldEqual, "2024-03-04")
				So(view.Cells[3].Entry, ShouldNotBeNil)
				So(view.Cells[3].EffectiveStatus, ShouldEqual, model.StatusCompleted)
				So(view.Summary.PlannedMiles, ShouldEqual, 6)
			})

			Convey("Then missed cannot be stored through the API", func() {
				w := do(h, http.MethodPut, "/calendar/entries/"+e.ID+"/status", "ana", `{"status":"missed"}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then it can be deleted once", func() {
				So(do(h, http.MethodDelete, "/calendar/entries/"+e.ID, "ana", "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodDelete, "/calendar/entries/"+e.ID, "ana", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When requests are malformed", func() {
			cases := []struct {
				method, path, body string
			}{
				{http.MethodGet, "/calendar?start=yesterday", ""},
				{http.MethodGet, "/calendar?days=-2", ""},
				{http.MethodPut, "/calendar/entries", `{"date":"07.03.2024","workout_type":"easy","title":"x"}`},
				{http.MethodPut, "/calendar/entries", `{"date":"2024-03-07","workout_type":"jog","title":"x"}`},
				{http.MethodPut, "/calendar/entries", `{"date":"2024-03-07","workout_type":"easy","title":"x","bogus":1}`},
				{http.MethodPost, "/activities", `{"id":"x","start_time":"2024-03-06T07:00:00Z","distance_meters":-1}`},
				{http.MethodPut, "/goal", `{"race_date":"2024-05-05","distance_meters":0}`},
				{http.MethodPut, "/goal", `not json`},
			}
			for _, c := range cases {
				w := do(h, c.method, c.path, "ana", c.body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var e struct {
					Code string `json:"code"`
				}
				decode(w, &e)
				So(e.Code, ShouldEqual, "bad_request")
			}
		})

		Convey("Then unknown routes and methods are rejected", func() {
			So(do(h, http.MethodGet, "/leaderboard", "", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodDelete, "/dashboard", "", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestGatewayFailures(t *testing.T) {
	unavailable := fmt.Errorf("%w: list_activities: %w", app.ErrGateway, errors.New("connection refused"))

	Convey("Given a gateway outage", t, func() {
		Convey("When a snapshot is available", func() {
			deps := &stubDeps{
				dashboard: app.Dashboard{UserID: "ana", Stale: true},
				view:      app.CalendarView{Stale: true},
				err:       unavailable,
			}
			h := newHandler(deps, deps)

			Convey("Then the stale result is served with 200", func() {
				w := do(h, http.MethodGet, "/dashboard", "ana", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var d app.Dashboard
				decode(w, &d)
				So(d.Stale, ShouldBeTrue)

				So(do(h, http.MethodGet, "/calendar", "ana", "").Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When nothing was cached", func() {
			deps := &stubDeps{err: unavailable}
			h := newHandler(deps, deps)

			Convey("Then reads and writes answer 503", func() {
				So(do(h, http.MethodGet, "/dashboard", "ana", "").Code, ShouldEqual, http.StatusServiceUnavailable)
				So(do(h, http.MethodGet, "/calendar", "ana", "").Code, ShouldEqual, http.StatusServiceUnavailable)
				So(do(h, http.MethodGet, "/activities", "ana", "").Code, ShouldEqual, http.StatusServiceUnavailable)

				w := do(h, http.MethodPost, "/activities", "ana", `{"id":"a","start_time":"2024-03-06T07:00:00Z","distance_meters":1}`)
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				var e struct {
					Code string `json:"code"`
				}
				decode(w, &e)
				So(e.Code, ShouldEqual, "gateway_unavailable")
			})
		})

		Convey("When the entry is unknown", func() {
			deps := &stubDeps{err: fmt.Errorf("calendar entry %q: %w", "x", repository.ErrNotFound)}
			h := newHandler(deps, deps)
			So(do(h, http.MethodPost, "/calendar/entries/x/toggle", "ana", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &stubDeps{}
		h := newHandler(deps, deps)

		Convey("Then /healthz serves Prometheus metrics by default", func() {
			do(h, http.MethodGet, "/stats", "", "")
			w := do(h, http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "stride_coach_http_requests_total")
		})

		Convey("Then /healthz answers JSON clients with a liveness document", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Accept", "application/json")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"status":"ok"}`)
		})

		Convey("Then /stats returns the service statistics", func() {
			w := do(h, http.MethodGet, "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var st app.Stats
			decode(w, &st)
			So(st.Timezone, ShouldEqual, "UTC")
		})

		Convey("Then a panicking handler yields a 500", func() {
			deps.panics = true
			w := do(h, http.MethodGet, "/dashboard", "", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}
