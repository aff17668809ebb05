package api

import (
	"context"
	"net/http"

	"github.com/okian/stride/internal/app"
)

// DashboardDependencies defines the interface for dashboard reads.
type DashboardDependencies interface {
	Dashboard(ctx context.Context, userID string) (app.Dashboard, error)
}

// DashboardHandler handles dashboard requests.
type DashboardHandler struct {
	deps DashboardDependencies
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps DashboardDependencies) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

// HandleDashboard handles GET /dashboard. A stale snapshot is still a 200.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Dashboard(r.Context(), userID(r))
	if err != nil && !d.Stale {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
