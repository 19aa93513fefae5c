package score

// Factor identifies one of the five weighted scoring dimensions.
type Factor string

const (
	FactorDocumentation Factor = "documentation_quality"
	FactorTransparency  Factor = "transparency"
	FactorSecurity      Factor = "security_documentation"
	FactorCommunity     Factor = "community_engagement"
	FactorTechnical     Factor = "technical_implementation"
)

// RedFlag identifies a negative signal detected during analysis.
type RedFlag string

const (
	RedFlagActiveExploit    RedFlag = "active_exploit"
	RedFlagFakeTeam         RedFlag = "fake_team"
	RedFlagPlagiarizedDocs  RedFlag = "plagiarized_docs"
	RedFlagAnonymousTeam    RedFlag = "anonymous_team"
	RedFlagNoContactInfo    RedFlag = "no_contact_info"
	RedFlagMisleadingClaims RedFlag = "misleading_claims"
	RedFlagBrokenLinks      RedFlag = "broken_links"
	RedFlagNoHTTPS          RedFlag = "no_https"
)

// PositiveIndicator identifies a trust-building signal detected during analysis.
type PositiveIndicator string

const (
	IndicatorSecurityAudit      PositiveIndicator = "security_audit"
	IndicatorBugBounty          PositiveIndicator = "bug_bounty"
	IndicatorOpenSource         PositiveIndicator = "open_source"
	IndicatorEstablishedHistory PositiveIndicator = "established_history"
	IndicatorClearPolicies      PositiveIndicator = "clear_policies"
)

// RiskLevel classifies a final score into a user-facing risk bucket.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "HIGH"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskLow     RiskLevel = "LOW"
	RiskTrusted RiskLevel = "TRUSTED"
)

// AdjustmentType distinguishes the three kinds of score adjustments.
type AdjustmentType string

const (
	AdjustmentPenalty AdjustmentType = "penalty"
	AdjustmentBonus   AdjustmentType = "bonus"
	AdjustmentCap     AdjustmentType = "cap"
)

// Severity grades how strongly an adjustment signals risk.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Adjustment records one applied score modification so the rendered report
// can explain exactly how the final score was derived.
type Adjustment struct {
	Factor   string         `json:"factor"`
	Amount   float64        `json:"amount"`
	Reason   string         `json:"reason"`
	Type     AdjustmentType `json:"type"`
	Severity Severity       `json:"severity"`
}

// AnalysisInput is the raw factor data produced by the analysis step.
type AnalysisInput struct {
	// Factors holds the five dimension scores, each expected in [0,100].
	// Out-of-range values are clamped; missing factors score zero.
	Factors map[Factor]float64 `json:"factors"`

	// RedFlags lists negative signals detected in the content.
	RedFlags []RedFlag `json:"red_flags,omitempty"`

	// PositiveIndicators lists trust-building signals detected in the content.
	PositiveIndicators []PositiveIndicator `json:"positive_indicators,omitempty"`

	// ContentCompleteness estimates how much usable content backed the
	// analysis, in [0,1]. Sparse input lowers confidence, not the score.
	ContentCompleteness float64 `json:"content_completeness"`
}

// Result is the immutable output of one trust score calculation.
type Result struct {
	FinalScore  float64            `json:"final_score"`
	RiskLevel   RiskLevel          `json:"risk_level"`
	Confidence  float64            `json:"confidence"`
	BaseScore   float64            `json:"base_score"`
	Breakdown   map[Factor]float64 `json:"breakdown"`
	Adjustments []Adjustment       `json:"adjustments"`
}
