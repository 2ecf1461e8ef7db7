package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/c360/gqlbridge/errors"
)

// routes builds the chi router for the REST surface:
//
//	GET  /api/v1/resources/{name}            cached payload by subscription name
//	GET  /api/v1/resources?path=...          cached payload by resource path
//	GET  /api/v1/subscriptions               active subscription list
//	GET  /api/v1/subscriptions/status        full status document
//	POST /api/v1/subscriptions/{name}/start  start one subscription
//	POST /api/v1/subscriptions/{name}/stop   stop one subscription
//	GET  /api/v1/diagnostics                 troubleshooting document
//	POST /api/v1/probe                       single-shot subscription test
//	GET  /health                             aggregated component health
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.trackRequests)

	r.Get("/api/v1/resources", s.handleResourceByPath)
	r.Get("/api/v1/resources/{name}", s.handleResource)
	r.Get("/api/v1/subscriptions", s.handleSubscriptions)
	r.Get("/api/v1/subscriptions/status", s.handleStatus)
	r.Post("/api/v1/subscriptions/{name}/start", s.handleStart)
	r.Post("/api/v1/subscriptions/{name}/stop", s.handleStop)
	r.Get("/api/v1/diagnostics", s.handleDiagnostics)
	r.Post("/api/v1/probe", s.handleProbe)
	r.Get("/health", s.handleHealth)

	return r
}

// trackRequests counts every request before routing.
func (s *Server) trackRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requestsTotal.Add(1)
		next.ServeHTTP(w, r)
	})
}

// startRequest is the optional body for the start endpoint.
type startRequest struct {
	Variables map[string]any `json:"variables,omitempty"`
}

// probeRequest is the body for the probe endpoint.
type probeRequest struct {
	Query string `json:"query"`
}

// handleResource serves the cached payload for one subscription. Reads
// never block on the push side: a subscription that has not produced
// data yet is a 404, not a wait.
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	s.ensureAutostart(r)

	name := chi.URLParam(r, "name")
	payload, ok := s.manager.Data(name)
	if !ok {
		s.writeError(w, http.StatusNotFound,
			fmt.Sprintf("no data yet for subscription %q", name))
		return
	}

	s.writeJSON(w, http.StatusOK, payload)
}

// handleResourceByPath serves the cached payload for a resource path
// such as "docker/events".
func (s *Server) handleResourceByPath(w http.ResponseWriter, r *http.Request) {
	s.ensureAutostart(r)

	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	payload, ok := s.manager.DataByResource(path)
	if !ok {
		s.writeError(w, http.StatusNotFound,
			fmt.Sprintf("no data yet for resource path %q", path))
		return
	}

	s.writeJSON(w, http.StatusOK, payload)
}

// handleSubscriptions lists the currently active subscriptions.
func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	active := s.manager.ListActive()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": active,
		"count":         len(active),
	})
}

// handleStatus serves the full per-subscription status document.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.Status())
}

// handleStart launches a catalog subscription, with optional variables
// from the request body. Starting an already-active subscription is a
// no-op and succeeds.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req startRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	if err := s.manager.StartSubscription(r.Context(), name, req.Variables); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	state := s.manager.Status()[name].Runtime.ConnectionState
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":           "started",
		"subscription":     name,
		"connection_state": state,
	})
}

// handleStop stops a subscription. Stopping something inactive or
// unknown is a no-op; the endpoint reports 200 either way.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	response := map[string]any{
		"status":       "stopped",
		"subscription": name,
	}
	if err := s.manager.StopSubscription(name); err != nil {
		// Cancel was delivered but the task missed the stop window.
		response["warning"] = err.Error()
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleDiagnostics serves the full troubleshooting document.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.Diagnostics())
}

// handleProbe runs a single-shot subscription test against the live
// endpoint. A quiet server reports no_immediate_response with 200; only
// connection and auth faults are errors.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req probeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := s.manager.Probe(r.Context(), req.Query)
	if err != nil {
		s.writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleHealth serves the aggregated health snapshot. Subscription
// entries are refreshed from the engine first, so the monitor never
// reports stale runtime state. Error messages in the snapshot are
// sanitized before they leave the process.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.monitor.SyncSubscriptions(s.manager.Status())
	overall := s.monitor.AggregateHealth("gqlbridge")

	status := http.StatusOK
	if overall.IsUnhealthy() {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, overall)
}

// ensureAutostart triggers the lazy auto-start sweep. The sweep itself
// hangs subscriptions off the manager's context, so the request context
// only bounds the trigger, not the tasks.
func (s *Server) ensureAutostart(r *http.Request) {
	if s.sequencer != nil {
		s.sequencer.Ensure(r.Context())
	}
}

// readBody reads the request body under the configured size cap. On
// failure it writes the error response itself and returns false.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()

	bodyReader := io.LimitReader(r.Body, s.config.MaxRequestSize+1)
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}

	if int64(len(body)) > s.config.MaxRequestSize {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds maximum size of %d bytes", s.config.MaxRequestSize))
		return nil, false
	}

	return body, true
}

// writeJSON writes a success response and bumps the success counter.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response write failed", "error", err)
	}
	s.requestsSuccess.Add(1)
}

// writeError writes an error response and bumps the failure counter.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("error response write failed", "error", err)
	}
	s.requestsFailed.Add(1)
}

// mapErrorToHTTPStatus translates classified errors to status codes.
func mapErrorToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusInternalServerError
	}

	if errors.IsInvalid(err) {
		return http.StatusBadRequest
	}
	if errors.IsTransient(err) {
		if strings.Contains(err.Error(), "timeout") {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	}
	if errors.IsFatal(err) {
		return http.StatusInternalServerError
	}

	errStr := err.Error()
	if strings.Contains(errStr, "unknown subscription") || strings.Contains(errStr, "not found") {
		return http.StatusNotFound
	}
	if strings.Contains(errStr, "authentication") || strings.Contains(errStr, "unauthorized") {
		return http.StatusForbidden
	}

	return http.StatusInternalServerError
}
