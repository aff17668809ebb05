// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/app"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/pkg/logger"
)

const (
	// UserHeader carries the caller's user id.
	UserHeader  = "X-User-ID"
	defaultUser = "default"
	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes  = 1 << 20
	rateKeyPrefix = "stride||rate||"
	tracerService = "stride-api"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	DashboardDependencies
	CalendarDependencies
	ActivityDependencies
	GoalDependencies
}

// Server wires HTTP routes for the coaching API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	dashboardHandler *DashboardHandler
	calendarHandler  *CalendarHandler
	activityHandler  *ActivityHandler
	goalHandler      *GoalHandler
	logger           logger.Logger

	limiter        RequestRateLimiter
	writesPerMin   int
	tracingEnabled bool
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLocation sets the location used to read "YYYY-MM-DD" dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.calendarHandler.loc = loc
			s.goalHandler.loc = loc
		}
	}
}

// WithLogger sets the logger used by the request middleware.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit caps write requests per user and route. perMinute <= 0
// disables the limit.
func WithRateLimit(l RequestRateLimiter, perMinute int) Option {
	return func(s *Server) {
		s.limiter = l
		s.writesPerMin = perMinute
	}
}

// WithTracing wraps every route in an OpenTelemetry server span.
func WithTracing(enabled bool) Option {
	return func(s *Server) {
		s.tracingEnabled = enabled
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		dashboardHandler: NewDashboardHandler(deps),
		calendarHandler:  NewCalendarHandler(deps, time.Local),
		activityHandler:  NewActivityHandler(deps),
		goalHandler:      NewGoalHandler(deps, time.Local),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r. Route names label the request metrics.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", s.healthHandler.HandleHealth).Methods(http.MethodGet).Name("healthz")
	r.HandleFunc("/stats", s.statsHandler.HandleStats).Methods(http.MethodGet).Name("stats")

	r.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard).Methods(http.MethodGet).Name("dashboard")

	r.HandleFunc("/calendar", s.calendarHandler.HandleGetCalendar).Methods(http.MethodGet).Name("calendar")
	r.HandleFunc("/calendar/entries", s.calendarHandler.HandleUpsertEntry).Methods(http.MethodPut).Name("calendar_upsert")
	r.HandleFunc("/calendar/entries/{id}", s.calendarHandler.HandleDeleteEntry).Methods(http.MethodDelete).Name("calendar_delete")
	r.HandleFunc("/calendar/entries/{id}/toggle", s.calendarHandler.HandleToggleEntry).Methods(http.MethodPost).Name("calendar_toggle")
	r.HandleFunc("/calendar/entries/{id}/status", s.calendarHandler.HandleSetStatus).Methods(http.MethodPut).Name("calendar_status")

	r.HandleFunc("/activities", s.activityHandler.HandlePostActivity).Methods(http.MethodPost).Name("activities_post")
	r.HandleFunc("/activities", s.activityHandler.HandleListActivities).Methods(http.MethodGet).Name("activities_list")

	r.HandleFunc("/goal", s.goalHandler.HandlePutGoal).Methods(http.MethodPut).Name("goal_put")
	r.HandleFunc("/goal", s.goalHandler.HandleGetGoal).Methods(http.MethodGet).Name("goal_get")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	log := s.logger
	if log == nil {
		log = logger.Get().Named("api")
	}
	if s.tracingEnabled {
		r.Use(otelmux.Middleware(tracerService))
	}
	r.Use(PanicRecovery(log), MetricsMiddleware())
	if s.limiter != nil && s.writesPerMin > 0 {
		r.Use(RateLimit(s.limiter, s.writesPerMin, writeRoutes...))
	}
	r.Use(DrainAndCloseRequest())
}

// writeRoutes are the routes that change data.
var writeRoutes = []string{ //nolint:gochecknoglobals // fixed route list
	"calendar_upsert",
	"calendar_delete",
	"calendar_toggle",
	"calendar_status",
	"activities_post",
	"goal_put",
}

// Handler returns a router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := mux.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	resp := errorResponse{Code: code, Message: msg}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps service errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, repository.ErrMissedStatus),
		errors.Is(err, repository.ErrInvalidDateKey):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, app.ErrGateway):
		writeError(w, http.StatusServiceUnavailable, "gateway_unavailable", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timeout", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &model.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// userID reads the caller from the X-User-ID header.
func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
		return id
	}
	return defaultUser
}
