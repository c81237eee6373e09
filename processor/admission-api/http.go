package admissionapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/hexlight/docuflow/admission"
	"github.com/hexlight/docuflow/constraint"
)

// RegisterHTTPHandlers registers HTTP handlers for the admission-api
// component. The prefix includes the trailing slash (e.g.,
// "/admission-api/").
func (c *Component) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	mux.HandleFunc(prefix+"check", c.handleCheck)
	mux.HandleFunc(prefix+"projects/", c.handleGetProjectState)
}

// httpCheckResponse is the HTTP shape of an admission check. A blocked
// request carries the verdict under details; a proceed-with-warning
// carries it under warnings; a clean proceed under verdict.
type httpCheckResponse struct {
	Allowed  bool               `json:"allowed"`
	Details  *admission.Verdict `json:"details,omitempty"`
	Warnings *admission.Verdict `json:"warnings,omitempty"`
	Verdict  *admission.Verdict `json:"verdict,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// handleCheck handles POST /check.
// Returns 200 when generation may proceed and 422 when it is blocked;
// the body carries the full verdict either way.
func (c *Component) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &httpCheckResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, &httpCheckResponse{Error: err.Error()})
		return
	}

	c.requestsProcessed.Add(1)
	c.updateLastActivity()

	resp, err := c.check(r.Context(), &req)
	if err != nil {
		c.logger.Error("Admission check failed", "doc_type", req.DocType, "project_id", req.ProjectID, "error", err)
		writeJSON(w, http.StatusInternalServerError, &httpCheckResponse{Error: "admission check failed: " + err.Error()})
		return
	}

	body := &httpCheckResponse{Allowed: resp.Allowed}
	switch {
	case !resp.Allowed:
		body.Details = resp.Verdict
	case resp.Verdict != nil && (resp.Verdict.WarningMessage != "" || !resp.Verdict.Satisfied):
		body.Warnings = resp.Verdict
	default:
		body.Verdict = resp.Verdict
	}

	status := http.StatusOK
	if !resp.Allowed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, body)
}

// handleGetProjectState handles GET /projects/{id}/state.
// Returns the derived document state for the project.
func (c *Component) handleGetProjectState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID, endpoint := extractProjectAndEndpoint(r.URL.Path)
	if projectID <= 0 {
		http.Error(w, "Project id required", http.StatusBadRequest)
		return
	}
	if endpoint != "state" {
		http.Error(w, "Unknown endpoint", http.StatusNotFound)
		return
	}

	if _, err := c.getEvaluator(r.Context()); err != nil {
		c.logger.Error("Failed to open file record store", "error", err)
		http.Error(w, "Project state not available", http.StatusInternalServerError)
		return
	}

	c.evalMu.RLock()
	inspector := c.inspector
	c.evalMu.RUnlock()

	state, err := inspector.Inspect(r.Context(), projectID)
	if err != nil {
		c.logger.Error("Failed to inspect project", "project_id", projectID, "error", err)
		http.Error(w, "Failed to inspect project", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, &stateResponse{
		ProjectID: state.ProjectID,
		DocTypes:  state.DocTypes,
		Paths:     state.Paths,
	})
}

// stateResponse is the wire shape of a project's derived state.
type stateResponse struct {
	ProjectID int                           `json:"projectId"`
	DocTypes  []constraint.DocType          `json:"docTypes"`
	Paths     map[constraint.DocType]string `json:"paths"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// extractProjectAndEndpoint extracts the project id and endpoint from a
// path like /admission-api/projects/{id}/state.
func extractProjectAndEndpoint(path string) (projectID int, endpoint string) {
	idx := strings.Index(path, "/projects/")
	if idx == -1 {
		return 0, ""
	}

	remainder := path[idx+len("/projects/"):]
	parts := strings.SplitN(remainder, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return 0, ""
	}

	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, ""
	}
	if len(parts) > 1 {
		endpoint = strings.TrimSuffix(parts[1], "/")
	}
	return id, endpoint
}
