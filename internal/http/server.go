package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// RecurringRunner triggers recurring generation.
type RecurringRunner interface {
	GenerateForUser(ctx context.Context, userID string) (services.GenerateResult, error)
	SweepAll(ctx context.Context) (services.SweepReport, error)
}

// TemplateManager is the user-facing template surface.
type TemplateManager interface {
	CreateTemplate(ctx context.Context, userID string, t core.Template) (core.Template, error)
	UpdateTemplate(ctx context.Context, userID, id string, t core.Template) (core.Template, error)
	ListTemplates(ctx context.Context, userID string) ([]core.Template, error)
	DeleteTemplate(ctx context.Context, userID, id string) error
	ListInstances(ctx context.Context, userID, templateID string) ([]core.Instance, error)
	CreateInstance(ctx context.Context, userID, templateID string, date core.Date) (core.Instance, error)
	DeleteInstance(ctx context.Context, userID, id string) error
	SetTimezone(ctx context.Context, userID, timezone string) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes to. Metrics and Ready are
// optional.
type Deps struct {
	Recurring RecurringRunner
	Templates TemplateManager
	Ready     Pinger
	Metrics   http.Handler
	Observer  trace.Observer
	Logger    *applog.Logger
}

// Options tunes the server.
type Options struct {
	// OnDemandPerMinute limits generate calls per user.
	OnDemandPerMinute int
	// SweepTimeout bounds an operator-triggered full sweep.
	SweepTimeout time.Duration
}

type Server struct {
	http.Server
	recurring RecurringRunner
	templates TemplateManager
	ready     Pinger
	logger    *applog.Logger
	started   time.Time

	onDemand     *ratelimit.Limiter
	sweepTimeout time.Duration
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Default().WithComponent(applog.ComponentHTTP)
	}
	if opts.SweepTimeout <= 0 {
		opts.SweepTimeout = 5 * time.Minute
	}

	s := &Server{
		recurring:    deps.Recurring,
		templates:    deps.Templates,
		ready:        deps.Ready,
		logger:       logger,
		started:      time.Now(),
		sweepTimeout: opts.SweepTimeout,
		onDemand: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.OnDemandPerMinute,
			Burst:             1,
		}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	limitUser := s.onDemand.Middleware(
		func(r *http.Request) string { return r.PathValue("userID") },
		s.handleRateLimited)
	mux.Handle("POST /api/users/{userID}/recurring/generate", limitUser(http.HandlerFunc(s.handleGenerate)))
	mux.HandleFunc("POST /api/recurring/sweep", s.handleSweep)

	mux.HandleFunc("POST /api/users/{userID}/templates", s.handleCreateTemplate)
	mux.HandleFunc("GET /api/users/{userID}/templates", s.handleListTemplates)
	mux.HandleFunc("PUT /api/users/{userID}/templates/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("DELETE /api/users/{userID}/templates/{id}", s.handleDeleteTemplate)
	mux.HandleFunc("GET /api/users/{userID}/templates/{id}/instances", s.handleListInstances)
	mux.HandleFunc("POST /api/users/{userID}/templates/{id}/instances", s.handleCreateInstance)
	mux.HandleFunc("DELETE /api/users/{userID}/instances/{id}", s.handleDeleteInstance)
	mux.HandleFunc("PUT /api/users/{userID}/timezone", s.handleSetTimezone)

	ips := security.NewClientIPExtractor()
	tracer := trace.NewMiddleware(ips.ExtractClientIP, deps.Observer, logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.onDemand.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
