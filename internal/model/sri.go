package model

// SRI holds the Sentinel Risk Index: four independent sub-scores and the
// composite the Decision Engine derives from them. Each field is clamped to
// [0, 100].
type SRI struct {
	Infrastructure float64 `json:"infrastructure"`
	Policy         float64 `json:"policy"`
	Historical     float64 `json:"historical"`
	Cost           float64 `json:"cost"`
	Composite      float64 `json:"composite"`
}

// BlastRadiusResult is the Blast-Radius Evaluator's typed output.
type BlastRadiusResult struct {
	Score                 float64  `json:"score"`
	AffectedResources     []string `json:"affected_resources"`
	AffectedServices      []string `json:"affected_services"`
	SinglePointsOfFailure []string `json:"single_points_of_failure"`
	AffectedZones         []string `json:"affected_zones"`
	Reasoning             string   `json:"reasoning"`
}

// PolicyViolation is one fired policy predicate.
type PolicyViolation struct {
	PolicyID    string `json:"policy_id"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// PolicyResult is the Policy Evaluator's typed output.
type PolicyResult struct {
	Score                float64           `json:"score"`
	Violations           []PolicyViolation `json:"violations"`
	HasCriticalViolation bool              `json:"has_critical_violation"`
	Reasoning            string            `json:"reasoning"`
}

// SimilarIncident is one incident the Historical Evaluator judged similar
// enough to the proposed action to report.
type SimilarIncident struct {
	IncidentID string  `json:"incident_id"`
	Similarity float64 `json:"similarity"`
	Severity   string  `json:"severity"`
	Summary    string  `json:"summary"`
}

// HistoricalResult is the Historical Evaluator's typed output.
type HistoricalResult struct {
	Score                float64           `json:"score"`
	SimilarIncidents     []SimilarIncident `json:"similar_incidents"`
	MostRelevantIncident *SimilarIncident  `json:"most_relevant_incident,omitempty"`
	RecommendedProcedure *string           `json:"recommended_procedure,omitempty"`
	Reasoning            string            `json:"reasoning"`
}

// OverOptimization describes the risk of a cost-cutting action on a target
// whose failure would be expensive to recover from.
type OverOptimization struct {
	Triggered bool    `json:"triggered"`
	RiskUSD   float64 `json:"risk_usd,omitempty"`
	Rationale string  `json:"rationale,omitempty"`
}

// FinancialResult is the Financial Evaluator's typed output.
type FinancialResult struct {
	Score            float64          `json:"score"`
	MonthlyChange    float64          `json:"monthly_change"`
	Projected90d     float64          `json:"projected_90d"`
	CostUncertain    bool             `json:"cost_uncertain"`
	OverOptimization OverOptimization `json:"over_optimization"`
	Reasoning        string           `json:"reasoning"`
}

// SubResults bundles the four evaluators' typed outputs as carried on a
// GovernanceVerdict.
type SubResults struct {
	BlastRadius *BlastRadiusResult `json:"blast_radius"`
	Policy      *PolicyResult      `json:"policy"`
	Historical  *HistoricalResult  `json:"historical"`
	Financial   *FinancialResult   `json:"financial"`
}
