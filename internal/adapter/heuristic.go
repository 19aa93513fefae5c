package adapter

import (
	"context"
	"strings"

	"github.com/amansir99/trustscan-ai-sub001/internal/score"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// HeuristicAnalyzer is the reduced-fidelity fallback used when the LLM
// analyzer exhausts its retries. It derives factor scores from structural
// content features alone, so it is deterministic and never calls out.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer creates a HeuristicAnalyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

// Analyze scores the content from observable structure. The detailed flag
// is ignored; the heuristic has a single fidelity level.
func (h *HeuristicAnalyzer) Analyze(ctx context.Context, content *Content, detailed bool) (*score.AnalysisInput, error) {
	if content == nil {
		return nil, types.NewError(types.VALIDATION_ERROR, "no content to analyze")
	}

	documentation := 30.0
	if content.Title != "" {
		documentation += 10
	}
	if content.Description != "" {
		documentation += 10
	}
	documentation += float64(len(content.Headings)) * 4
	if content.WordCount > 500 {
		documentation += 10
	}
	if content.WordCount > 1500 {
		documentation += 10
	}

	transparency := 25.0
	if content.HasContactInfo {
		transparency += 25
	}
	if content.HasTeamPage {
		transparency += 20
	}
	if content.HasPrivacyPolicy {
		transparency += 15
	}

	security := 20.0
	if content.HTTPS {
		security += 25
	}
	if content.HasSecurityPage {
		security += 35
	}
	if containsAny(content.Text, "audit", "penetration test", "bug bounty") {
		security += 10
	}

	community := 20.0
	if containsAny(content.Text, "github", "discord", "forum", "community", "twitter") {
		community += 30
	}
	if content.LinkCount > 20 {
		community += 10
	}

	technical := 30.0
	if content.HTTPS {
		technical += 15
	}
	if content.ScriptCount > 0 && content.ScriptCount < 30 {
		technical += 10
	}
	if len(content.Headings) >= 3 {
		technical += 10
	}

	input := &score.AnalysisInput{
		Factors: map[score.Factor]float64{
			score.FactorDocumentation: cap100(documentation),
			score.FactorTransparency:  cap100(transparency),
			score.FactorSecurity:      cap100(security),
			score.FactorCommunity:     cap100(community),
			score.FactorTechnical:     cap100(technical),
		},
		ContentCompleteness: content.Completeness(),
	}

	if !content.HTTPS {
		input.RedFlags = append(input.RedFlags, score.RedFlagNoHTTPS)
	}
	if !content.HasContactInfo {
		input.RedFlags = append(input.RedFlags, score.RedFlagNoContactInfo)
	}
	if content.HasPrivacyPolicy {
		input.PositiveIndicators = append(input.PositiveIndicators, score.IndicatorClearPolicies)
	}
	if containsAny(content.Text, "open source", "github.com") {
		input.PositiveIndicators = append(input.PositiveIndicators, score.IndicatorOpenSource)
	}

	return input, nil
}

func containsAny(text string, needles ...string) bool {
	lower := strings.ToLower(text)
	for _, needle := range needles {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

func cap100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
