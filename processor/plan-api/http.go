package planapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/plan"
	"github.com/hexlight/docuflow/session"
)

// RegisterHTTPHandlers registers HTTP handlers for the plan-api
// component. The prefix includes the trailing slash (e.g.,
// "/plan-api/").
func (c *Component) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	mux.HandleFunc(prefix+"plans", c.handleSubmitPlan)
	mux.HandleFunc(prefix+"sessions/", c.handleSessions)
	mux.Handle(prefix+"metrics", promhttp.Handler())
}

// SubmitRequest is a plan submission. Mode and AllowOverride apply to
// both validation and the run itself.
type SubmitRequest struct {
	plan.Plan
	Mode          string `json:"mode,omitempty"`
	AllowOverride bool   `json:"allowOverride,omitempty"`
}

// SubmitResponse is the acceptance reply for a plan submission. The
// subjects tell callers where to watch events and send decisions.
type SubmitResponse struct {
	SessionID       string `json:"sessionId"`
	EventsSubject   string `json:"eventsSubject"`
	DecisionSubject string `json:"decisionSubject"`
}

// errorBody is the generic error reply shape.
type errorBody struct {
	Error string `json:"error"`
}

// handleSubmitPlan handles POST /plans.
// Shape errors return 400, admission failures 422 with the full
// failure list, and accepted plans 202 with the session coordinates.
func (c *Component) handleSubmitPlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c.plansSubmitted.Add(1)
	c.updateLastActivity()

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	if err := req.CheckShape(); err != nil {
		c.plansRejected.Add(1)
		writeJSON(w, http.StatusBadRequest, &errorBody{Error: err.Error()})
		return
	}

	if err := c.buildPipeline(r.Context()); err != nil {
		c.logger.Error("Generation pipeline unavailable", "error", err)
		writeJSON(w, http.StatusInternalServerError, &errorBody{Error: "generation pipeline unavailable: " + err.Error()})
		return
	}

	mode := c.defaultMode
	if req.Mode != "" {
		mode = admission.ParseMode(req.Mode)
	}
	opts := admission.Options{Mode: mode, AllowOverride: req.AllowOverride}

	c.pipeMu.RLock()
	validator := c.validator
	c.pipeMu.RUnlock()

	result, err := validator.Validate(r.Context(), &req.Plan, opts)
	if err != nil {
		c.logger.Error("Plan validation failed", "project_id", req.ProjectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, &errorBody{Error: "plan validation failed: " + err.Error()})
		return
	}
	if !result.OK {
		c.plansRejected.Add(1)
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	sessionID := uuid.New().String()
	c.launchRun(sessionID, &req.Plan, opts)

	c.logger.Info("Plan accepted",
		"session_id", sessionID,
		"project_id", req.ProjectID,
		"steps", len(req.Steps),
		"docs", req.TotalDocs())

	writeJSON(w, http.StatusAccepted, &SubmitResponse{
		SessionID:       sessionID,
		EventsSubject:   session.EventsSubject(sessionID),
		DecisionSubject: session.DecisionSubject(sessionID),
	})
}

// handleSessions routes GET /sessions/{id} and POST
// /sessions/{id}/decision.
func (c *Component) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessionID, endpoint := extractSessionAndEndpoint(r.URL.Path)
	if sessionID == "" {
		http.Error(w, "Session id required", http.StatusBadRequest)
		return
	}

	switch {
	case endpoint == "" && r.Method == http.MethodGet:
		c.handleGetSession(w, r, sessionID)
	case endpoint == "decision" && r.Method == http.MethodPost:
		c.handlePostDecision(w, r, sessionID)
	case endpoint == "" || endpoint == "decision":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(w, "Unknown endpoint", http.StatusNotFound)
	}
}

// handleGetSession returns the session's current status.
func (c *Component) handleGetSession(w http.ResponseWriter, _ *http.Request, sessionID string) {
	info := c.sessionStatus(sessionID)
	if info == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handlePostDecision validates the decision and publishes it to the
// session's decision subject.
func (c *Component) handlePostDecision(w http.ResponseWriter, r *http.Request, sessionID string) {
	if c.sessionStatus(sessionID) == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, &errorBody{Error: "read request body: " + err.Error()})
		return
	}

	decision, err := session.ParseDecision(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, &errorBody{Error: err.Error()})
		return
	}

	if err := c.publishDecision(r.Context(), sessionID, decision); err != nil {
		c.logger.Error("Failed to publish decision", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, &errorBody{Error: "failed to publish decision"})
		return
	}

	c.updateLastActivity()
	c.logger.Debug("Decision relayed", "session_id", sessionID, "type", decision.Type)
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// extractSessionAndEndpoint extracts the session id and endpoint from a
// path like /plan-api/sessions/{id}/decision.
func extractSessionAndEndpoint(path string) (sessionID, endpoint string) {
	idx := strings.Index(path, "/sessions/")
	if idx == -1 {
		return "", ""
	}

	remainder := path[idx+len("/sessions/"):]
	parts := strings.SplitN(remainder, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", ""
	}

	sessionID = parts[0]
	if len(parts) > 1 {
		endpoint = strings.TrimSuffix(parts[1], "/")
	}
	return sessionID, endpoint
}
