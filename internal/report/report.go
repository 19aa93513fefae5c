// Package report renders the user-facing audit report from the score
// calculator's output and the extracted content. Building a report is pure:
// identical inputs always produce identical reports.
package report

import (
	"fmt"
	"time"

	"github.com/amansir99/trustscan-ai-sub001/internal/adapter"
	"github.com/amansir99/trustscan-ai-sub001/internal/score"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// FactorDetail is one scored dimension with its weight-adjusted contribution.
type FactorDetail struct {
	Factor score.Factor `json:"factor"`
	Score  float64      `json:"score"`
}

// Report is the full audit report returned to the caller and optionally
// persisted by the report store.
type Report struct {
	AuditID     types.AuditID      `json:"audit_id"`
	URL         string             `json:"url"`
	Title       string             `json:"title,omitempty"`
	FinalScore  float64            `json:"final_score"`
	RiskLevel   score.RiskLevel    `json:"risk_level"`
	Confidence  float64            `json:"confidence"`
	BaseScore   float64            `json:"base_score"`
	Factors     []FactorDetail     `json:"factors"`
	Adjustments []score.Adjustment `json:"adjustments"`
	Narrative   string             `json:"narrative"`
	ContentHash string             `json:"content_hash"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Summary is the compact form of a report, suitable for list views and
// ledger digests.
type Summary struct {
	AuditID    types.AuditID   `json:"audit_id"`
	URL        string          `json:"url"`
	FinalScore float64         `json:"final_score"`
	RiskLevel  score.RiskLevel `json:"risk_level"`
	Confidence float64         `json:"confidence"`
	Headline   string          `json:"headline"`
}

// factorOrder fixes the rendering order of the five dimensions.
var factorOrder = []score.Factor{
	score.FactorDocumentation,
	score.FactorTransparency,
	score.FactorSecurity,
	score.FactorCommunity,
	score.FactorTechnical,
}

// Build assembles the full report and its summary. The GeneratedAt
// timestamp is the only non-deterministic field.
func Build(auditID types.AuditID, content *adapter.Content, result score.Result) (*Report, *Summary) {
	factors := make([]FactorDetail, 0, len(factorOrder))
	for _, factor := range factorOrder {
		factors = append(factors, FactorDetail{Factor: factor, Score: result.Breakdown[factor]})
	}

	contentHash := ""
	url := ""
	title := ""
	if content != nil {
		url = content.URL
		title = content.Title
		contentHash = adapter.DigestHash(adapter.AuditDigest{
			URL:         content.URL,
			ContentHash: fmt.Sprintf("%d:%d", content.WordCount, content.LinkCount),
		})
	}

	r := &Report{
		AuditID:     auditID,
		URL:         url,
		Title:       title,
		FinalScore:  result.FinalScore,
		RiskLevel:   result.RiskLevel,
		Confidence:  result.Confidence,
		BaseScore:   result.BaseScore,
		Factors:     factors,
		Adjustments: result.Adjustments,
		Narrative:   narrative(result),
		ContentHash: contentHash,
		GeneratedAt: time.Now().UTC(),
	}

	s := &Summary{
		AuditID:    auditID,
		URL:        url,
		FinalScore: result.FinalScore,
		RiskLevel:  result.RiskLevel,
		Confidence: result.Confidence,
		Headline:   headline(result),
	}

	return r, s
}

// narrative renders a short human-readable explanation of the result.
func narrative(result score.Result) string {
	base := fmt.Sprintf("The site scored %.1f out of 100 (%s risk, %.0f%% confidence). "+
		"The base score of %.1f reflects the weighted factor assessment",
		result.FinalScore, result.RiskLevel, result.Confidence, result.BaseScore)

	penalties, bonuses, caps := 0, 0, 0
	for _, adj := range result.Adjustments {
		switch adj.Type {
		case score.AdjustmentPenalty:
			penalties++
		case score.AdjustmentBonus:
			bonuses++
		case score.AdjustmentCap:
			caps++
		}
	}

	if penalties == 0 && bonuses == 0 && caps == 0 {
		return base + "; no adjustments were applied."
	}

	detail := fmt.Sprintf("; %d penalties and %d bonuses were applied", penalties, bonuses)
	if caps > 0 {
		detail += fmt.Sprintf(", and %d critical finding(s) capped the final score", caps)
	}
	return base + detail + "."
}

// headline renders the one-line summary shown in list views.
func headline(result score.Result) string {
	switch result.RiskLevel {
	case score.RiskTrusted:
		return fmt.Sprintf("Trusted (%.1f/100)", result.FinalScore)
	case score.RiskLow:
		return fmt.Sprintf("Low risk (%.1f/100)", result.FinalScore)
	case score.RiskMedium:
		return fmt.Sprintf("Medium risk (%.1f/100) - review before engaging", result.FinalScore)
	default:
		return fmt.Sprintf("High risk (%.1f/100) - significant concerns found", result.FinalScore)
	}
}
