package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amansir99/trustscan-ai-sub001/internal/adapter"
	"github.com/amansir99/trustscan-ai-sub001/internal/score"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

func sampleResult() score.Result {
	return score.Calculate(score.AnalysisInput{
		Factors: map[score.Factor]float64{
			score.FactorDocumentation: 85,
			score.FactorTransparency:  80,
			score.FactorSecurity:      90,
			score.FactorCommunity:     75,
			score.FactorTechnical:     85,
		},
		PositiveIndicators:  []score.PositiveIndicator{score.IndicatorSecurityAudit},
		ContentCompleteness: 0.9,
	})
}

func TestBuild(t *testing.T) {
	auditID := types.NewAuditID()
	content := &adapter.Content{
		URL:       "https://example.com",
		Title:     "Example",
		WordCount: 1500,
		LinkCount: 12,
	}

	result := sampleResult()
	r, s := Build(auditID, content, result)

	require.NotNil(t, r)
	require.NotNil(t, s)

	assert.Equal(t, auditID, r.AuditID)
	assert.Equal(t, "https://example.com", r.URL)
	assert.Equal(t, result.FinalScore, r.FinalScore)
	assert.Equal(t, result.RiskLevel, r.RiskLevel)
	assert.Len(t, r.Factors, 5)
	assert.NotEmpty(t, r.Narrative)
	assert.NotEmpty(t, r.ContentHash)
	assert.False(t, r.GeneratedAt.IsZero())

	assert.Equal(t, auditID, s.AuditID)
	assert.Equal(t, result.FinalScore, s.FinalScore)
	assert.Contains(t, s.Headline, "Trusted")
}

func TestBuild_FactorOrderIsFixed(t *testing.T) {
	r, _ := Build(types.NewAuditID(), nil, sampleResult())

	expected := []score.Factor{
		score.FactorDocumentation,
		score.FactorTransparency,
		score.FactorSecurity,
		score.FactorCommunity,
		score.FactorTechnical,
	}
	for i, detail := range r.Factors {
		assert.Equal(t, expected[i], detail.Factor)
	}
}

func TestBuild_NilContent(t *testing.T) {
	r, s := Build(types.NewAuditID(), nil, sampleResult())

	assert.Empty(t, r.URL)
	assert.Empty(t, r.ContentHash)
	assert.Empty(t, s.URL)
}

func TestNarrative_MentionsCaps(t *testing.T) {
	capped := score.Calculate(score.AnalysisInput{
		Factors: map[score.Factor]float64{
			score.FactorDocumentation: 95,
			score.FactorTransparency:  95,
			score.FactorSecurity:      95,
			score.FactorCommunity:     95,
			score.FactorTechnical:     95,
		},
		RedFlags:            []score.RedFlag{score.RedFlagActiveExploit},
		ContentCompleteness: 1.0,
	})

	r, s := Build(types.NewAuditID(), nil, capped)
	assert.Contains(t, r.Narrative, "capped")
	assert.Contains(t, s.Headline, "High risk")
}
