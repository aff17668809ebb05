package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/stride/internal/domain/model"
)

// ActivityDependencies defines the interface for activity ingest and listing.
type ActivityDependencies interface {
	IngestActivity(ctx context.Context, userID string, a model.Activity) (bool, error)
	ListActivities(ctx context.Context, userID string) ([]model.Activity, error)
}

// ActivityHandler handles activity requests.
type ActivityHandler struct {
	deps ActivityDependencies
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(deps ActivityDependencies) *ActivityHandler {
	return &ActivityHandler{deps: deps}
}

// activityRequest mirrors the body of POST /activities. StartTime is RFC3339.
type activityRequest struct {
	ID                  string    `json:"id"`
	StartTime           time.Time `json:"start_time"`
	DistanceMeters      float64   `json:"distance_meters"`
	AveragePaceSecPerKm *float64  `json:"average_pace_sec_per_km"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type activitiesResponse struct {
	Activities []model.Activity `json:"activities"`
}

// HandlePostActivity handles POST /activities. Replays of a known id are
// acknowledged without being stored again.
func (h *ActivityHandler) HandlePostActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	created, err := h.deps.IngestActivity(r.Context(), userID(r), model.Activity{
		ID:                  req.ID,
		StartTime:           req.StartTime,
		DistanceMeters:      req.DistanceMeters,
		AveragePaceSecPerKm: req.AveragePaceSecPerKm,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "created"})
}

// HandleListActivities handles GET /activities.
func (h *ActivityHandler) HandleListActivities(w http.ResponseWriter, r *http.Request) {
	acts, err := h.deps.ListActivities(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if acts == nil {
		acts = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activitiesResponse{Activities: acts})
}
