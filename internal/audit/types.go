package audit

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/amansir99/trustscan-ai-sub001/internal/report"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// DurationMs is a time.Duration that crosses the wire as integer
// milliseconds.
type DurationMs time.Duration

// MarshalJSON implements json.Marshaler.
func (d DurationMs) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DurationMs) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*d = DurationMs(time.Duration(ms) * time.Millisecond)
	return nil
}

// Step names one stage of the audit pipeline. The pipeline is linear: a
// step never begins before its predecessor completes, and a failed step
// prevents all later steps from running.
type Step string

const (
	StepValidating Step = "validating"
	StepExtracting Step = "extracting"
	StepAnalyzing  Step = "analyzing"
	StepScoring    Step = "scoring"
	StepReporting  Step = "reporting"
	StepAnchoring  Step = "anchoring"
	StepCaching    Step = "caching"
)

// Options are the caller-supplied knobs for one audit request.
type Options struct {
	// AnchorOnLedger requests tamper-evidence anchoring of the result.
	AnchorOnLedger bool `json:"anchorOnLedger,omitempty"`

	// DetailedAnalysis asks the analyzer for its higher-fidelity mode.
	DetailedAnalysis bool `json:"detailedAnalysis,omitempty"`

	// Priority orders the request in the queue; higher drains first.
	Priority int `json:"priority,omitempty"`

	// Timeout bounds the whole workflow run. Zero uses the configured
	// default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries bounds retry attempts per step. Zero or negative uses
	// the configured default.
	MaxRetries int `json:"maxRetries,omitempty"`
}

// Request describes one audit. It is immutable once accepted: the
// orchestrator reads it but never writes it.
type Request struct {
	URL     string  `json:"url"`
	UserID  string  `json:"userId,omitempty"`
	Options Options `json:"options"`
}

// Validate checks the request's target URL.
func (r *Request) Validate() error {
	if r.URL == "" {
		return types.NewError(types.VALIDATION_ERROR, "url is required")
	}

	parsed, err := url.Parse(r.URL)
	if err != nil || parsed.Host == "" {
		return types.NewError(types.VALIDATION_ERROR, fmt.Sprintf("invalid url: %q", r.URL))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return types.NewError(types.VALIDATION_ERROR,
			fmt.Sprintf("unsupported url scheme: %q", parsed.Scheme))
	}

	return nil
}

// StepRecord captures the execution of one pipeline step. Records are
// appended as steps run and never mutated after completion.
type StepRecord struct {
	Step         Step            `json:"step"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
	Success      bool            `json:"success"`
	Attempts     int             `json:"attempts"`
	FallbackUsed bool            `json:"fallbackUsed"`
	Cached       bool            `json:"cached"`
	ErrorCode    types.ErrorCode `json:"errorCode,omitempty"`
}

// Duration returns the wall time the step took.
func (r StepRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Metadata aggregates everything observed during one workflow run.
type Metadata struct {
	ProcessingTime DurationMs     `json:"processingTimeMs"`
	Steps          []StepRecord   `json:"steps"`
	Warnings       []string       `json:"warnings,omitempty"`
	FallbacksUsed  []string       `json:"fallbacksUsed,omitempty"`
	Performance    map[Step]int64 `json:"performance"` // step -> milliseconds
	CachedResult   bool           `json:"cachedResult,omitempty"`
}

// Result is the terminal state of one workflow run. It is owned by that
// run alone and never shared across requests. Failures carry exactly one
// error, chosen by the first terminal failing step.
type Result struct {
	Success    bool              `json:"success"`
	AuditID    types.AuditID     `json:"auditId"`
	Report     *report.Report    `json:"report,omitempty"`
	Summary    *report.Summary   `json:"summary,omitempty"`
	LedgerTxID string            `json:"ledgerTransactionId,omitempty"`
	Err        *types.AuditError `json:"-"`
	Metadata   Metadata          `json:"metadata"`
}

// snapshot returns a copy safe to hand to other goroutines. The metadata
// collections are cloned; Report and Summary are shared, as neither is
// written after the reporting step builds them.
func (r *Result) snapshot() *Result {
	copied := *r
	copied.Metadata.Steps = append([]StepRecord(nil), r.Metadata.Steps...)
	copied.Metadata.Warnings = append([]string(nil), r.Metadata.Warnings...)
	copied.Metadata.FallbacksUsed = append([]string(nil), r.Metadata.FallbacksUsed...)
	if r.Metadata.Performance != nil {
		perf := make(map[Step]int64, len(r.Metadata.Performance))
		for step, ms := range r.Metadata.Performance {
			perf[step] = ms
		}
		copied.Metadata.Performance = perf
	}
	return &copied
}
