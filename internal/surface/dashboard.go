// Dashboard REST surface: read-only GET endpoints over the Audit Log and
// Agent Registry. http.ServeMux with Go 1.22+ method-prefixed patterns,
// writeJSON/writeError helpers, r.PathValue.
package surface

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sentinel-governance/sentinel/internal/sentinelerr"
)

// Dashboard serves the collateral read-only REST surface over the same
// Facade the other two surfaces use.
type Dashboard struct {
	facade *Facade
}

// NewDashboard builds a Dashboard over facade.
func NewDashboard(facade *Facade) *Dashboard {
	return &Dashboard{facade: facade}
}

// Handler builds the net/http.Handler serving the dashboard's six
// endpoints.
func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/evaluations", d.handleEvaluations)
	mux.HandleFunc("GET /api/evaluations/{id}", d.handleEvaluationByID)
	mux.HandleFunc("GET /api/metrics", d.handleMetrics)
	mux.HandleFunc("GET /api/resources/{id}/risk", d.handleResourceRisk)
	mux.HandleFunc("GET /api/agents", d.handleAgents)
	mux.HandleFunc("GET /api/agents/{name}/history", d.handleAgentHistory)
	return mux
}

func (d *Dashboard) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))
	resourceID := r.URL.Query().Get("resource_id")
	verdicts, err := d.facade.GetRecentDecisions(r.Context(), limit, resourceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, verdicts)
}

func (d *Dashboard) handleEvaluationByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	verdict, err := d.facade.auditLog.GetByID(r.Context(), id)
	if err != nil {
		if sentinelerr.IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (d *Dashboard) handleMetrics(w http.ResponseWriter, r *http.Request) {
	agg, err := d.facade.auditLog.Aggregate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (d *Dashboard) handleResourceRisk(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := parseLimit(r.URL.Query().Get("limit"))
	profile, err := d.facade.GetRiskProfile(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (d *Dashboard) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := d.facade.agents.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (d *Dashboard) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	limit := parseLimit(r.URL.Query().Get("limit"))
	hist, err := d.facade.agents.History(r.Context(), name, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// parseLimit reads the limit query param: a value in [1, 100] is used as
// given; a missing, malformed or out-of-range value yields the default, 20.
func parseLimit(raw string) int {
	if raw == "" {
		return 20
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return 20
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
