package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/stride/internal/app"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/window"
)

// CalendarDependencies defines the interface for calendar reads and writes.
type CalendarDependencies interface {
	Calendar(ctx context.Context, userID, startKey string, days int) (app.CalendarView, error)
	UpsertEntry(ctx context.Context, userID string, e model.CalendarEntry) (model.CalendarEntry, error)
	DeleteEntry(ctx context.Context, userID, id string) error
	ToggleEntry(ctx context.Context, userID, id string) (model.CalendarEntry, error)
	SetEntryStatus(ctx context.Context, userID, id string, status model.EntryStatus) error
}

// CalendarHandler handles calendar requests.
type CalendarHandler struct {
	deps CalendarDependencies
	loc  *time.Location
}

// NewCalendarHandler creates a new calendar handler.
func NewCalendarHandler(deps CalendarDependencies, loc *time.Location) *CalendarHandler {
	return &CalendarHandler{deps: deps, loc: loc}
}

// entryRequest mirrors the body of PUT /calendar/entries. Date is "YYYY-MM-DD".
type entryRequest struct {
	ID                     string            `json:"id"`
	Date                   string            `json:"date"`
	WorkoutType            model.WorkoutType `json:"workout_type"`
	Title                  string            `json:"title"`
	Description            string            `json:"description"`
	PlannedDistanceMeters  *float64          `json:"planned_distance_meters"`
	PlannedDurationMinutes *float64          `json:"planned_duration_minutes"`
	PlannedPaceSecPerKm    *float64          `json:"planned_pace_sec_per_km"`
	Status                 model.EntryStatus `json:"status"`
	Source                 model.EntrySource `json:"source"`
}

func (e entryRequest) entry(loc *time.Location) (model.CalendarEntry, error) {
	date, err := window.ParseDateKey(strings.TrimSpace(e.Date), loc)
	if err != nil {
		return model.CalendarEntry{}, &model.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return model.CalendarEntry{
		ID:                     strings.TrimSpace(e.ID),
		Date:                   date,
		WorkoutType:            e.WorkoutType,
		Title:                  e.Title,
		Description:            e.Description,
		PlannedDistanceMeters:  e.PlannedDistanceMeters,
		PlannedDurationMinutes: e.PlannedDurationMinutes,
		PlannedPaceSecPerKm:    e.PlannedPaceSecPerKm,
		Status:                 e.Status,
		Source:                 e.Source,
	}, nil
}

type statusRequest struct {
	Status model.EntryStatus `json:"status"`
}

type statusResponse struct {
	ID     string            `json:"id"`
	Status model.EntryStatus `json:"status"`
}

// HandleGetCalendar handles GET /calendar?start=YYYY-MM-DD&days=N.
func (h *CalendarHandler) HandleGetCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := 0
	if raw := q.Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", &model.ValidationError{Field: "days", Reason: "must be a positive integer"})
			return
		}
		days = n
	}

	view, err := h.deps.Calendar(r.Context(), userID(r), strings.TrimSpace(q.Get("start")), days)
	if err != nil && !view.Stale {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleUpsertEntry handles PUT /calendar/entries.
func (h *CalendarHandler) HandleUpsertEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	e, err := req.entry(h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	saved, err := h.deps.UpsertEntry(r.Context(), userID(r), e)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleDeleteEntry handles DELETE /calendar/entries/{id}.
func (h *CalendarHandler) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	if err := h.deps.DeleteEntry(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleEntry handles POST /calendar/entries/{id}/toggle.
func (h *CalendarHandler) HandleToggleEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	e, err := h.deps.ToggleEntry(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleSetStatus handles PUT /calendar/entries/{id}/status.
func (h *CalendarHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.SetEntryStatus(r.Context(), userID(r), id, req.Status); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{ID: id, Status: req.Status})
}

func entryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return "", false
	}
	return id, true
}
