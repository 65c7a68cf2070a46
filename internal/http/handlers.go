package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"hordeforge/engine/internal/auth"
	"hordeforge/engine/internal/journal"
	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/session"
)

// ReadinessProvider exposes engine state required for readiness checks.
type ReadinessProvider interface {
	StartupError() error
	Uptime() time.Duration
}

// TokenService issues and checks run tokens.
type TokenService interface {
	Issue(runID, loadout string) (string, time.Time, error)
	VerifyRun(token, runID string) (*auth.RunClaims, error)
}

// Options configures the HandlerSet.
type Options struct {
	Logger         *logging.Logger
	Readiness      ReadinessProvider
	Runs           *session.Registry
	Tokens         TokenService
	RateLimiter    *ClientLimiter
	TimeSource     func() time.Time
	AllowedOrigins []string
	PingInterval   time.Duration
	JournalStats   func() journal.StorageStats
}

// HandlerSet bundles the engine's HTTP and websocket handlers.
type HandlerSet struct {
	logger       *logging.Logger
	readiness    ReadinessProvider
	runs         *session.Registry
	tokens       TokenService
	rateLimiter  *ClientLimiter
	now          func() time.Time
	origins      map[string]struct{}
	pingInterval time.Duration
	journalStats func() journal.StorageStats
	sockets      socketCounter
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	runs := opts.Runs
	if runs == nil {
		runs = session.NewRegistry(session.WithLogger(logger))
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins[strings.ToLower(trimmed)] = struct{}{}
		}
	}
	return &HandlerSet{
		logger:       logger,
		readiness:    opts.Readiness,
		runs:         runs,
		tokens:       opts.Tokens,
		rateLimiter:  opts.RateLimiter,
		now:          now,
		origins:      origins,
		pingInterval: ping,
		journalStats: opts.JournalStats,
	}
}

// Register attaches all handlers to the provided router.
func (h *HandlerSet) Register(router *mux.Router) {
	if router == nil {
		return
	}
	router.HandleFunc("/livez", h.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", h.ReadinessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/catalog", h.CatalogHandler()).Methods(http.MethodGet)
	router.HandleFunc("/loadouts", h.LoadoutsHandler()).Methods(http.MethodGet)

	runs := router.PathPrefix("/runs").Subrouter()
	runs.HandleFunc("", h.StartRunHandler()).Methods(http.MethodPost)
	runs.HandleFunc("/{id}", h.withRun(h.snapshotRun)).Methods(http.MethodGet)
	runs.HandleFunc("/{id}", h.withRun(h.finishRun)).Methods(http.MethodDelete)
	runs.HandleFunc("/{id}/levelup", h.withRun(h.levelUp)).Methods(http.MethodPost)
	runs.HandleFunc("/{id}/choose", h.withRun(h.choose)).Methods(http.MethodPost)
	runs.HandleFunc("/{id}/decline", h.withRun(h.decline)).Methods(http.MethodPost)
	runs.HandleFunc("/{id}/kill", h.withRun(h.kill)).Methods(http.MethodPost)
	runs.HandleFunc("/{id}/ws", h.withRun(h.serveRunSocket)).Methods(http.MethodGet)
}

// Router builds a router with every handler and the trace middleware installed.
func (h *HandlerSet) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(logging.HTTPTraceMiddleware(h.logger)))
	h.Register(router)
	return router
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports engine readiness, including run counts and startup status.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Runs          int     `json:"runs"`
		Catalog       int     `json:"catalog"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok", Runs: h.runs.Len(), Catalog: h.runs.Catalog().Len()}
		if h.readiness != nil {
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := h.runs.Stats()
		var uptime float64
		if h.readiness != nil {
			uptime = h.readiness.Uptime().Seconds()
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "# HELP hordeforge_uptime_seconds Engine uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE hordeforge_uptime_seconds gauge\n")
		fmt.Fprintf(w, "hordeforge_uptime_seconds %.0f\n", uptime)

		fmt.Fprintf(w, "# HELP hordeforge_runs_active Runs currently tracked.\n")
		fmt.Fprintf(w, "# TYPE hordeforge_runs_active gauge\n")
		fmt.Fprintf(w, "hordeforge_runs_active %d\n", stats.Active)

		fmt.Fprintf(w, "# HELP hordeforge_runs_started_total Runs started since boot.\n")
		fmt.Fprintf(w, "# TYPE hordeforge_runs_started_total counter\n")
		fmt.Fprintf(w, "hordeforge_runs_started_total %d\n", stats.Started)

		fmt.Fprintf(w, "# HELP hordeforge_runs_finished_total Runs finished since boot.\n")
		fmt.Fprintf(w, "# TYPE hordeforge_runs_finished_total counter\n")
		fmt.Fprintf(w, "hordeforge_runs_finished_total %d\n", stats.Finished)

		fmt.Fprintf(w, "# HELP hordeforge_upgrade_choices_total Upgrades applied across all runs.\n")
		fmt.Fprintf(w, "# TYPE hordeforge_upgrade_choices_total counter\n")
		fmt.Fprintf(w, "hordeforge_upgrade_choices_total %d\n", stats.Choices)

		fmt.Fprintf(w, "# HELP hordeforge_run_sockets Open websocket run channels.\n")
		fmt.Fprintf(w, "# TYPE hordeforge_run_sockets gauge\n")
		fmt.Fprintf(w, "hordeforge_run_sockets %d\n", h.sockets.Load())

		fmt.Fprintf(w, "# HELP hordeforge_catalog_malformed Catalog entries that can never be offered.\n")
		fmt.Fprintf(w, "# TYPE hordeforge_catalog_malformed gauge\n")
		fmt.Fprintf(w, "hordeforge_catalog_malformed %d\n", len(h.runs.Catalog().Malformed()))

		if h.journalStats != nil {
			js := h.journalStats()
			fmt.Fprintf(w, "# HELP hordeforge_journal_runs Journal bundles on disk.\n")
			fmt.Fprintf(w, "# TYPE hordeforge_journal_runs gauge\n")
			fmt.Fprintf(w, "hordeforge_journal_runs %d\n", js.Runs)
			fmt.Fprintf(w, "# HELP hordeforge_journal_bytes Journal storage footprint in bytes.\n")
			fmt.Fprintf(w, "# TYPE hordeforge_journal_bytes gauge\n")
			fmt.Fprintf(w, "hordeforge_journal_bytes %d\n", js.Bytes)
			fmt.Fprintf(w, "# HELP hordeforge_journal_removed_total Journal bundles removed by retention.\n")
			fmt.Fprintf(w, "# TYPE hordeforge_journal_removed_total counter\n")
			fmt.Fprintf(w, "hordeforge_journal_removed_total %d\n", js.Removed)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
