package http

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/trace"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"storage": "not_configured"}
	if s.ready != nil {
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			checks["storage"] = "failed"
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	NewJSONResponse(map[string]any{"status": status, "checks": checks}).Status(code).Write(w)
}

// handleGenerate runs an on-demand sweep for one user.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		s.writeError(w, r, core.ErrEmptyUser)
		return
	}

	result, err := s.recurring.GenerateForUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "On-demand generation finished",
		applog.FieldRequestID, trace.GetRequestID(r.Context()),
		applog.FieldUserID, userID,
		applog.FieldCreated, result.CreatedCount)
	NewJSONResponse(result).Write(w)
}

// handleSweep runs a full sweep and returns its report. The sweep is
// detached from the client connection so a dropped request does not cut it
// short.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.sweepTimeout)
	defer cancel()

	report, err := s.recurring.SweepAll(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse(report).Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldRequestID, trace.GetRequestID(r.Context()),
		applog.FieldUserID, userIDFrom(r),
		"retry_after", retryAfter.Round(time.Second).String())
	NewJSONResponse(errorBody{
		Error:     "too many generation requests, try again later",
		RequestID: trace.GetRequestID(r.Context()),
	}).Status(http.StatusTooManyRequests).Write(w)
}
