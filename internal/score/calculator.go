package score

import (
	"fmt"
	"math"
)

// Factor weights. They must sum to 1.0; checked by tests.
var factorWeights = map[Factor]float64{
	FactorDocumentation: 0.25,
	FactorTransparency:  0.20,
	FactorSecurity:      0.25,
	FactorCommunity:     0.15,
	FactorTechnical:     0.15,
}

// redFlagPenalties maps each red flag to its penalty amount and severity.
var redFlagPenalties = map[RedFlag]struct {
	amount   float64
	severity Severity
	reason   string
}{
	RedFlagActiveExploit:    {25, SeverityCritical, "evidence of an actively exploited vulnerability"},
	RedFlagFakeTeam:         {20, SeverityCritical, "team identities appear fabricated"},
	RedFlagPlagiarizedDocs:  {15, SeverityHigh, "documentation appears copied from another project"},
	RedFlagAnonymousTeam:    {10, SeverityMedium, "no identifiable team information"},
	RedFlagNoContactInfo:    {8, SeverityMedium, "no contact or support channel published"},
	RedFlagMisleadingClaims: {12, SeverityHigh, "claims contradicted by observable evidence"},
	RedFlagBrokenLinks:      {5, SeverityLow, "multiple broken outbound links"},
	RedFlagNoHTTPS:          {10, SeverityMedium, "site served without TLS"},
}

// positiveBonuses maps each indicator to its bonus amount.
var positiveBonuses = map[PositiveIndicator]struct {
	amount float64
	reason string
}{
	IndicatorSecurityAudit:      {8, "published third-party security audit"},
	IndicatorBugBounty:          {5, "active bug bounty program"},
	IndicatorOpenSource:         {5, "source code publicly available"},
	IndicatorEstablishedHistory: {4, "verifiable operating history"},
	IndicatorClearPolicies:      {3, "clear legal and privacy policies"},
}

// criticalCaps lists red flags that force the final score below a hard
// ceiling regardless of other factors. Caps are applied after bonuses and
// are monotonic: they only ever lower the score.
var criticalCaps = map[RedFlag]float64{
	RedFlagActiveExploit:   20,
	RedFlagFakeTeam:        30,
	RedFlagPlagiarizedDocs: 35,
}

// MinCompleteness is the content completeness below which confidence is
// capped low and the orchestrator attaches a sparse-content warning.
const MinCompleteness = 0.2

// sparseConfidenceCap bounds confidence when input is below MinCompleteness.
const sparseConfidenceCap = 40.0

// adjustment application order. Fixed so identical input always yields the
// same adjustment list: penalties, then bonuses, then critical caps.
var penaltyOrder = []RedFlag{
	RedFlagActiveExploit,
	RedFlagFakeTeam,
	RedFlagPlagiarizedDocs,
	RedFlagMisleadingClaims,
	RedFlagAnonymousTeam,
	RedFlagNoHTTPS,
	RedFlagNoContactInfo,
	RedFlagBrokenLinks,
}

var bonusOrder = []PositiveIndicator{
	IndicatorSecurityAudit,
	IndicatorBugBounty,
	IndicatorOpenSource,
	IndicatorEstablishedHistory,
	IndicatorClearPolicies,
}

var capOrder = []RedFlag{
	RedFlagActiveExploit,
	RedFlagFakeTeam,
	RedFlagPlagiarizedDocs,
}

// Calculate turns raw analysis factors into a bounded, explainable trust
// score. It is pure and deterministic: identical input always produces an
// identical Result, including adjustment ordering.
func Calculate(input AnalysisInput) Result {
	breakdown := make(map[Factor]float64, len(factorWeights))

	// Base score: weighted sum of the five clamped factor scores
	base := 0.0
	for factor, weight := range factorWeights {
		value := clamp(input.Factors[factor], 0, 100)
		breakdown[factor] = value
		base += value * weight
	}

	score := base
	adjustments := make([]Adjustment, 0)

	// Red-flag penalties, in fixed order
	flags := flagSet(input.RedFlags)
	for _, flag := range penaltyOrder {
		if !flags[flag] {
			continue
		}
		p := redFlagPenalties[flag]
		score -= p.amount
		adjustments = append(adjustments, Adjustment{
			Factor:   string(flag),
			Amount:   -p.amount,
			Reason:   p.reason,
			Type:     AdjustmentPenalty,
			Severity: p.severity,
		})
	}

	// Positive-indicator bonuses, in fixed order
	indicators := indicatorSet(input.PositiveIndicators)
	for _, indicator := range bonusOrder {
		if !indicators[indicator] {
			continue
		}
		b := positiveBonuses[indicator]
		score += b.amount
		adjustments = append(adjustments, Adjustment{
			Factor:   string(indicator),
			Amount:   b.amount,
			Reason:   b.reason,
			Type:     AdjustmentBonus,
			Severity: SeverityLow,
		})
	}

	// Critical caps last: they can only lower the score
	for _, flag := range capOrder {
		if !flags[flag] {
			continue
		}
		ceiling := criticalCaps[flag]
		if score > ceiling {
			adjustments = append(adjustments, Adjustment{
				Factor:   string(flag),
				Amount:   ceiling - score,
				Reason:   fmt.Sprintf("critical flag %s caps the score at %.0f", flag, ceiling),
				Type:     AdjustmentCap,
				Severity: SeverityCritical,
			})
			score = ceiling
		}
	}

	final := clamp(score, 0, 100)

	return Result{
		FinalScore:  round1(final),
		RiskLevel:   riskLevelFor(final),
		Confidence:  round1(confidenceFor(input.ContentCompleteness)),
		BaseScore:   round1(base),
		Breakdown:   breakdown,
		Adjustments: adjustments,
	}
}

// riskLevelFor maps a final score to its risk bucket using fixed thresholds.
func riskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskTrusted
	case score >= 60:
		return RiskLow
	case score >= 40:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// confidenceFor derives confidence from content completeness. Even empty
// input retains a floor of 30 (the pipeline did run), but sparse input is
// capped low regardless of how the factors scored.
func confidenceFor(completeness float64) float64 {
	completeness = clamp(completeness, 0, 1)
	confidence := 30 + completeness*70
	if completeness < MinCompleteness && confidence > sparseConfidenceCap {
		confidence = sparseConfidenceCap
	}
	return confidence
}

func flagSet(flags []RedFlag) map[RedFlag]bool {
	set := make(map[RedFlag]bool, len(flags))
	for _, f := range flags {
		set[f] = true
	}
	return set
}

func indicatorSet(indicators []PositiveIndicator) map[PositiveIndicator]bool {
	set := make(map[PositiveIndicator]bool, len(indicators))
	for _, i := range indicators {
		set[i] = true
	}
	return set
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
