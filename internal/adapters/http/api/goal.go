package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/window"
)

// GoalDependencies defines the interface for goal reads and writes.
type GoalDependencies interface {
	SetGoal(ctx context.Context, userID string, g model.Goal) (model.Goal, error)
	ActiveGoal(ctx context.Context, userID string) (*model.Goal, error)
}

// GoalHandler handles goal requests.
type GoalHandler struct {
	deps GoalDependencies
	loc  *time.Location
}

// NewGoalHandler creates a new goal handler.
func NewGoalHandler(deps GoalDependencies, loc *time.Location) *GoalHandler {
	return &GoalHandler{deps: deps, loc: loc}
}

// goalRequest mirrors the body of PUT /goal. RaceDate is "YYYY-MM-DD".
type goalRequest struct {
	RaceDate          string  `json:"race_date"`
	DistanceMeters    float64 `json:"distance_meters"`
	TargetTimeSeconds *int    `json:"target_time_seconds"`
}

type goalResponse struct {
	Goal *model.Goal `json:"goal"`
}

// HandlePutGoal handles PUT /goal.
func (h *GoalHandler) HandlePutGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	raceDate, err := window.ParseDateKey(strings.TrimSpace(req.RaceDate), h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", &model.ValidationError{Field: "race_date", Reason: "must be YYYY-MM-DD"})
		return
	}
	saved, err := h.deps.SetGoal(r.Context(), userID(r), model.Goal{
		RaceDate:          raceDate,
		DistanceMeters:    req.DistanceMeters,
		TargetTimeSeconds: req.TargetTimeSeconds,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goalResponse{Goal: &saved})
}

// HandleGetGoal handles GET /goal. A user without a goal gets {"goal": null}.
func (h *GoalHandler) HandleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := h.deps.ActiveGoal(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goalResponse{Goal: g})
}
