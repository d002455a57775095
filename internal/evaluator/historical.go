package evaluator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sentinel-governance/sentinel/internal/incident"
	"github.com/sentinel-governance/sentinel/internal/model"
)

const similarityThreshold = 0.30

var severityWeightTable = map[model.Severity]float64{
	model.SeverityCritical: 100,
	model.SeverityHigh:     75,
	model.SeverityMedium:   40,
	model.SeverityLow:      10,
}

// actionKeywords maps each action type to the keywords the
// tag-intersection similarity dimension matches against an incident's tags.
var actionKeywords = map[model.ActionType][]string{
	model.ActionScaleUp:        {"scale", "capacity", "sku", "scaling"},
	model.ActionScaleDown:      {"scale", "downsize", "scaling", "cost"},
	model.ActionDeleteResource: {"delete", "deprovision", "removal", "decommission"},
	model.ActionRestartService: {"restart", "reboot", "outage"},
	model.ActionModifyNSG:      {"nsg", "firewall", "network", "security"},
	model.ActionCreateResource: {"create", "provision"},
	model.ActionUpdateConfig:   {"config", "configuration", "update"},
}

// Historical is the Historical Evaluator (SRI:Historical).
type Historical struct {
	incidents incident.Store
}

// NewHistorical builds a Historical Evaluator over the given Incident Store.
func NewHistorical(incidents incident.Store) *Historical {
	return &Historical{incidents: incidents}
}

// Evaluate computes SRI:Historical. It produces an
// identical score for the same (action, returned incidents) tuple regardless
// of the Incident Store's backend: all similarity math happens here, not in
// the store.
func (h *Historical) Evaluate(ctx context.Context, action *model.ProposedAction) (*model.HistoricalResult, error) {
	candidates, err := h.incidents.Candidates(ctx, string(action.ActionType), action.Target.ResourceType)
	if err != nil {
		return nil, err
	}

	type scored struct {
		inc model.Incident
		sim float64
	}
	var relevant []scored
	for _, inc := range candidates {
		sim := similarity(action, inc)
		if sim >= similarityThreshold {
			relevant = append(relevant, scored{inc: inc, sim: sim})
		}
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		if relevant[i].sim != relevant[j].sim {
			return relevant[i].sim > relevant[j].sim
		}
		return relevant[i].inc.IncidentID < relevant[j].inc.IncidentID
	})

	if len(relevant) == 0 {
		return &model.HistoricalResult{Score: 0, Reasoning: "no comparable precedent in incident history"}, nil
	}

	similarIncidents := make([]model.SimilarIncident, len(relevant))
	for i, r := range relevant {
		similarIncidents[i] = model.SimilarIncident{
			IncidentID: r.inc.IncidentID,
			Similarity: r.sim,
			Severity:   string(r.inc.Severity),
			Summary:    r.inc.Summary,
		}
	}

	best := relevant[0]
	score := best.sim * best.inc.Severity.Weight(severityWeightTable)
	for _, r := range relevant[1:] {
		score += r.sim * r.inc.Severity.Weight(severityWeightTable) * 0.20
	}
	score = model.Clamp(score, 0, 100)

	result := &model.HistoricalResult{
		Score:                score,
		SimilarIncidents:     similarIncidents,
		MostRelevantIncident: &similarIncidents[0],
		Reasoning: fmt.Sprintf(
			"%d similar incident(s) found; most relevant is %s (similarity=%.2f, severity=%s)",
			len(relevant), best.inc.IncidentID, best.sim, best.inc.Severity,
		),
	}
	if best.inc.RecommendedProcedure != "" {
		proc := best.inc.RecommendedProcedure
		result.RecommendedProcedure = &proc
	}
	return result, nil
}

// similarity is the weighted sum of four match contributions. Resource-name
// substring matching is case-insensitive: the proposing agent's resource_id
// and an incident's free text carry no shared casing convention.
func similarity(action *model.ProposedAction, inc model.Incident) float64 {
	var sim float64

	if string(action.ActionType) == inc.ActionType {
		sim += 0.40
	}
	if action.Target.ResourceType == inc.ResourceType {
		sim += 0.30
	}
	if nameMatches(action.Target.ResourceID, inc) {
		sim += 0.20
	}
	if keywordsIntersect(action.ActionType, inc.Tags) {
		sim += 0.10
	}
	return sim
}

func nameMatches(resourceID string, inc model.Incident) bool {
	if resourceID == "" {
		return false
	}
	name := strings.ToLower(resourceID)
	haystacks := []string{inc.Title, inc.Summary, inc.ResourceName}
	haystacks = append(haystacks, inc.Tags...)
	for _, h := range haystacks {
		if h != "" && strings.Contains(strings.ToLower(h), name) {
			return true
		}
	}
	return false
}

func keywordsIntersect(actionType model.ActionType, tags []string) bool {
	keywords := actionKeywords[actionType]
	if len(keywords) == 0 {
		return false
	}
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[strings.ToLower(t)] = true
	}
	for _, kw := range keywords {
		if tagSet[kw] {
			return true
		}
	}
	return false
}
