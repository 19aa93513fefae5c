// Package adapter defines the collaborator boundary of the audit pipeline:
// thin interfaces for content extraction, AI analysis, ledger anchoring,
// report persistence, and authentication, plus their default
// implementations. The orchestrator treats every adapter as fallible and
// latency-variable and assumes no particular success rate.
package adapter

import (
	"context"
	"time"

	"github.com/amansir99/trustscan-ai-sub001/internal/score"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// Content is the structured result of extracting a website's content.
type Content struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Headings    []string  `json:"headings"`
	Text        string    `json:"text"`
	WordCount   int       `json:"word_count"`
	LinkCount   int       `json:"link_count"`
	ScriptCount int       `json:"script_count"`
	HTTPS       bool      `json:"https"`
	StatusCode  int       `json:"status_code"`
	FetchedAt   time.Time `json:"fetched_at"`

	// Page hints used by the heuristic analyzer and the score confidence
	HasSecurityPage  bool `json:"has_security_page"`
	HasPrivacyPolicy bool `json:"has_privacy_policy"`
	HasContactInfo   bool `json:"has_contact_info"`
	HasTeamPage      bool `json:"has_team_page"`
}

// Completeness estimates how much usable content the extraction produced,
// in [0,1]. It feeds the score calculator's confidence derivation.
func (c *Content) Completeness() float64 {
	if c == nil {
		return 0
	}

	// 2000 words of visible text counts as fully complete
	completeness := float64(c.WordCount) / 2000
	if completeness > 1 {
		completeness = 1
	}

	// Structural signals compensate for short but well-formed pages
	if c.Title != "" {
		completeness += 0.05
	}
	if c.Description != "" {
		completeness += 0.05
	}
	if len(c.Headings) >= 3 {
		completeness += 0.05
	}
	if completeness > 1 {
		completeness = 1
	}

	return completeness
}

// AuditDigest is the tamper-evidence summary submitted to the ledger.
type AuditDigest struct {
	AuditID     types.AuditID `json:"audit_id"`
	URL         string        `json:"url"`
	FinalScore  float64       `json:"final_score"`
	RiskLevel   string        `json:"risk_level"`
	ContentHash string        `json:"content_hash"`
	CompletedAt time.Time     `json:"completed_at"`
}

// UserIdentity identifies an authenticated caller.
type UserIdentity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

// Extractor fetches and parses a website's content.
type Extractor interface {
	Extract(ctx context.Context, url string) (*Content, error)
}

// Analyzer turns extracted content into the five factor scores and the
// red flag / positive indicator signals the score calculator consumes.
type Analyzer interface {
	Analyze(ctx context.Context, content *Content, detailed bool) (*score.AnalysisInput, error)
}

// Ledger anchors an audit digest on a distributed ledger and returns the
// resulting transaction id.
type Ledger interface {
	Anchor(ctx context.Context, digest AuditDigest) (string, error)
}

// ReportStore persists final reports. Optional in this deployment; the
// orchestrator treats a nil store as a no-op.
type ReportStore interface {
	Persist(ctx context.Context, auditID types.AuditID, report any) error
}

// Authenticator resolves a bearer token into a caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*UserIdentity, error)
}
