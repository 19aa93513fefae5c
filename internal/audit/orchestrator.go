package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amansir99/trustscan-ai-sub001/internal/adapter"
	"github.com/amansir99/trustscan-ai-sub001/internal/cache"
	"github.com/amansir99/trustscan-ai-sub001/internal/report"
	"github.com/amansir99/trustscan-ai-sub001/internal/score"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// Config configures the workflow orchestrator.
type Config struct {
	// DefaultTimeout bounds a workflow run when the request sets none.
	DefaultTimeout time.Duration

	// MaxTimeout caps the per-request timeout option.
	MaxTimeout time.Duration

	// DefaultMaxRetries applies when the request sets a negative value.
	DefaultMaxRetries int

	// RetryBaseDelay seeds exponential backoff between attempts.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps any single backoff delay.
	RetryMaxDelay time.Duration

	// ExtractTTL, AnalyzeTTL, and ResultTTL are the write-through cache
	// lifetimes for the extraction step, the analysis step, and the full
	// audit result.
	ExtractTTL time.Duration
	AnalyzeTTL time.Duration
	ResultTTL  time.Duration
}

// DefaultConfig returns production orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:    60 * time.Second,
		MaxTimeout:        5 * time.Minute,
		DefaultMaxRetries: 2,
		RetryBaseDelay:    200 * time.Millisecond,
		RetryMaxDelay:     5 * time.Second,
		ExtractTTL:        15 * time.Minute,
		AnalyzeTTL:        30 * time.Minute,
		ResultTTL:         30 * time.Minute,
	}
}

// Orchestrator drives one audit request through the pipeline:
// validate, extract, analyze, score, report, optionally anchor, cache.
// Every step runs under the uniform timeout/retry/fallback policy, and
// every failure is captured into the Result rather than returned.
type Orchestrator struct {
	cfg       Config
	extractor adapter.Extractor
	analyzer  adapter.Analyzer
	fallback  adapter.Analyzer
	ledger    adapter.Ledger
	reports   adapter.ReportStore
	store     cache.Store
	logger    *slog.Logger
	tracer    trace.Tracer
	stats     *Stats
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithFallbackAnalyzer sets the reduced-fidelity analyzer used when the
// primary analyzer exhausts its retries.
func WithFallbackAnalyzer(a adapter.Analyzer) Option {
	return func(o *Orchestrator) { o.fallback = a }
}

// WithLedger enables ledger anchoring.
func WithLedger(l adapter.Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithReportStore enables report persistence.
func WithReportStore(r adapter.ReportStore) Option {
	return func(o *Orchestrator) { o.reports = r }
}

// WithTracer overrides the default tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// New creates an Orchestrator. extractor, analyzer, and store are
// required; the remaining collaborators are optional.
func New(
	cfg Config,
	extractor adapter.Extractor,
	analyzer adapter.Analyzer,
	store cache.Store,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		cfg:       cfg,
		extractor: extractor,
		analyzer:  analyzer,
		store:     store,
		logger:    logger,
		tracer:    otel.Tracer("trustscan/audit"),
		stats:     NewStats(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Stats returns the orchestrator's aggregated run statistics.
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.stats.Snapshot()
}

// CachedResult retrieves a previously completed workflow result by audit
// id, if it is still within its TTL.
func (o *Orchestrator) CachedResult(id types.AuditID) (*Result, bool) {
	v, ok := o.store.Get(resultKey(id))
	if !ok {
		return nil, false
	}
	result, ok := v.(*Result)
	return result, ok
}

// runState carries the mutable state of one workflow run.
type runState struct {
	req      Request
	result   *Result
	start    time.Time
	deadline time.Time

	// timed steps not yet executed, for apportioning the remaining budget
	remainingTimed int

	maxRetries int
}

// Run executes the workflow for one request. It never returns a Go
// error: every failure lands in Result.Err with a classified code, and
// the Result always carries the step records accumulated before the
// failure.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Result {
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "audit.run",
		trace.WithAttributes(
			attribute.String("audit.url", req.URL),
			attribute.Bool("audit.anchor", req.Options.AnchorOnLedger),
		),
	)
	defer span.End()

	rs := &runState{
		req:   req,
		start: start,
		result: &Result{
			AuditID:  types.NewAuditID(),
			Metadata: Metadata{Performance: make(map[Step]int64)},
		},
		remainingTimed: 3, // extract, analyze, anchor
		maxRetries:     req.Options.MaxRetries,
	}
	if rs.maxRetries <= 0 {
		rs.maxRetries = o.cfg.DefaultMaxRetries
	}

	budget := req.Options.Timeout
	if budget <= 0 {
		budget = o.cfg.DefaultTimeout
	}
	if o.cfg.MaxTimeout > 0 && budget > o.cfg.MaxTimeout {
		budget = o.cfg.MaxTimeout
	}
	rs.deadline = start.Add(budget)

	ctx, cancel := context.WithDeadline(ctx, rs.deadline)
	defer cancel()

	span.SetAttributes(attribute.String("audit.id", rs.result.AuditID.String()))

	o.logger.Info("audit run started",
		"audit_id", rs.result.AuditID,
		"url", req.URL,
		"user_id", req.UserID,
		"timeout", budget,
	)

	o.execute(ctx, rs)

	rs.result.Metadata.ProcessingTime = DurationMs(time.Since(start))
	o.stats.Record(rs.result)

	if rs.result.Err != nil {
		span.SetStatus(codes.Error, rs.result.Err.Error())
		span.RecordError(rs.result.Err)
		o.logger.Error("audit run failed",
			"audit_id", rs.result.AuditID,
			"url", req.URL,
			"error", rs.result.Err,
			"duration", time.Duration(rs.result.Metadata.ProcessingTime),
		)
	} else {
		span.SetStatus(codes.Ok, "audit completed")
		o.logger.Info("audit run completed",
			"audit_id", rs.result.AuditID,
			"url", req.URL,
			"score", rs.result.Report.FinalScore,
			"risk", rs.result.Report.RiskLevel,
			"duration", time.Duration(rs.result.Metadata.ProcessingTime),
		)
	}

	return rs.result
}

// execute walks the pipeline's state machine in order, stopping at the
// first terminal failure.
func (o *Orchestrator) execute(ctx context.Context, rs *runState) {
	// Validating
	if !o.validate(ctx, rs) {
		return
	}

	// A full cached result short-circuits the rest of the pipeline
	if o.reuseCachedResult(rs) {
		return
	}

	// Extracting
	content, ok := runStep(ctx, o, rs, stepSpec[*adapter.Content]{
		step:     StepExtracting,
		cacheKey: cache.Fingerprint("extract", rs.req.URL),
		ttl:      o.cfg.ExtractTTL,
		fn: func(ctx context.Context) (*adapter.Content, error) {
			return o.extractor.Extract(ctx, rs.req.URL)
		},
	})
	if !ok {
		return
	}

	// Analyzing, with the reduced-fidelity fallback when configured
	spec := stepSpec[*score.AnalysisInput]{
		step:     StepAnalyzing,
		cacheKey: cache.Fingerprint("analyze", rs.req.URL, fmt.Sprintf("detailed=%t", rs.req.Options.DetailedAnalysis)),
		ttl:      o.cfg.AnalyzeTTL,
		fn: func(ctx context.Context) (*score.AnalysisInput, error) {
			return o.analyzer.Analyze(ctx, content, rs.req.Options.DetailedAnalysis)
		},
	}
	if o.fallback != nil {
		spec.fallback = func(ctx context.Context) (*score.AnalysisInput, error) {
			return o.fallback.Analyze(ctx, content, rs.req.Options.DetailedAnalysis)
		}
		spec.fallbackName = "analyzing: reduced-fidelity heuristic analysis"
	}
	input, ok := runStep(ctx, o, rs, spec)
	if !ok {
		return
	}

	// Scoring: pure and synchronous
	scored := o.runScoring(rs, input)

	// Reporting
	o.runReporting(ctx, rs, content, scored)

	// Anchoring: optional and never fatal
	if rs.req.Options.AnchorOnLedger {
		o.runAnchoring(ctx, rs)
	}

	// Caching the finished result
	rs.result.Success = true
	o.runCaching(rs)
}

// validate runs the Validating step synchronously; its failures are
// terminal and never retried.
func (o *Orchestrator) validate(ctx context.Context, rs *runState) bool {
	started := time.Now()
	err := rs.req.Validate()
	o.record(rs, StepRecord{
		Step:       StepValidating,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Success:    err == nil,
		Attempts:   1,
		ErrorCode:  errorCodeOrEmpty(err),
	})
	if err != nil {
		o.fail(rs, err)
		return false
	}
	return true
}

// reuseCachedResult serves an identical request from the full-result
// cache when one is still live. The cached run's metadata is preserved;
// only the cached marker differs.
func (o *Orchestrator) reuseCachedResult(rs *runState) bool {
	v, ok := o.store.Get(auditFingerprint(rs.req))
	if !ok {
		return false
	}
	cached, ok := v.(*Result)
	if !ok || !cached.Success {
		return false
	}

	copied := *cached
	copied.Metadata.CachedResult = true
	*rs.result = copied
	return true
}

// runScoring executes the Scoring step. The calculator is pure, so the
// step cannot fail; sparse input still surfaces a warning.
func (o *Orchestrator) runScoring(rs *runState, input *score.AnalysisInput) score.Result {
	started := time.Now()
	scored := score.Calculate(*input)
	o.record(rs, StepRecord{
		Step:       StepScoring,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Success:    true,
		Attempts:   1,
	})

	if input.ContentCompleteness < score.MinCompleteness {
		o.warn(rs, fmt.Sprintf(
			"extracted content was sparse (completeness %.2f); confidence capped at %.0f",
			input.ContentCompleteness, scored.Confidence))
	}

	return scored
}

// runReporting builds the report and summary and persists them when a
// report store is configured. Persistence failures degrade to warnings.
func (o *Orchestrator) runReporting(ctx context.Context, rs *runState, content *adapter.Content, scored score.Result) {
	started := time.Now()
	rs.result.Report, rs.result.Summary = report.Build(rs.result.AuditID, content, scored)
	o.record(rs, StepRecord{
		Step:       StepReporting,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Success:    true,
		Attempts:   1,
	})

	if o.reports != nil {
		if err := o.reports.Persist(ctx, rs.result.AuditID, rs.result.Report); err != nil {
			o.warn(rs, fmt.Sprintf("report persistence failed: %v", err))
		}
	}
}

// runAnchoring submits the audit digest to the ledger under the step
// policy. Anchoring failures are recorded as warnings, never as workflow
// failures: the caller still receives the full report.
func (o *Orchestrator) runAnchoring(ctx context.Context, rs *runState) {
	started := time.Now()

	if o.ledger == nil {
		o.warn(rs, "ledger anchoring requested but no ledger is configured")
		return
	}

	digest := adapter.AuditDigest{
		AuditID:     rs.result.AuditID,
		URL:         rs.req.URL,
		FinalScore:  rs.result.Report.FinalScore,
		RiskLevel:   string(rs.result.Report.RiskLevel),
		ContentHash: rs.result.Report.ContentHash,
		CompletedAt: time.Now().UTC(),
	}

	txID, outcome := executeWithPolicy(ctx, o.policyFor(rs), func(ctx context.Context) (string, error) {
		return o.ledger.Anchor(ctx, digest)
	}, nil)
	rs.remainingTimed--

	record := StepRecord{
		Step:       StepAnchoring,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Success:    outcome.err == nil,
		Attempts:   outcome.attempts,
		ErrorCode:  errorCodeOrEmpty(outcome.err),
	}
	o.record(rs, record)

	if outcome.err != nil {
		o.warn(rs, fmt.Sprintf("ledger anchoring failed: %v", outcome.err))
		return
	}

	rs.result.LedgerTxID = txID
}

// runCaching stores the finished result under both its request
// fingerprint and its audit id. The cached value is an immutable
// snapshot: the run's own Result still receives final metadata after
// this step, while concurrent identical requests may already be reading
// the cached copy.
func (o *Orchestrator) runCaching(rs *runState) {
	started := time.Now()
	o.record(rs, StepRecord{
		Step:       StepCaching,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Success:    true,
		Attempts:   1,
	})

	snapshot := rs.result.snapshot()
	snapshot.Metadata.ProcessingTime = DurationMs(time.Since(rs.start))
	o.store.Set(auditFingerprint(rs.req), snapshot, o.cfg.ResultTTL)
	o.store.Set(resultKey(rs.result.AuditID), snapshot, o.cfg.ResultTTL)
}

// stepSpec describes one timed pipeline step for runStep.
type stepSpec[T any] struct {
	step         Step
	cacheKey     string
	ttl          time.Duration
	fn           func(ctx context.Context) (T, error)
	fallback     func(ctx context.Context) (T, error)
	fallbackName string
}

// runStep applies the uniform per-step policy: cache-first lookup, the
// timeout/retry/backoff race, fallback, and write-through caching. It
// returns false when the step failed terminally, in which case the
// workflow stops and the result carries the step's error.
func runStep[T any](ctx context.Context, o *Orchestrator, rs *runState, spec stepSpec[T]) (T, bool) {
	var zero T
	started := time.Now()

	ctx, span := o.tracer.Start(ctx, "audit.step",
		trace.WithAttributes(attribute.String("step", string(spec.step))),
	)
	defer span.End()

	// Cache-first: a hit skips the adapter entirely
	if spec.cacheKey != "" {
		if v, ok := o.store.Get(spec.cacheKey); ok {
			if hit, ok := v.(T); ok {
				o.record(rs, StepRecord{
					Step:       spec.step,
					StartedAt:  started,
					FinishedAt: time.Now(),
					Success:    true,
					Attempts:   0,
					Cached:     true,
				})
				span.SetAttributes(attribute.Bool("cached", true))
				span.SetStatus(codes.Ok, "cache hit")
				rs.remainingTimed--
				return hit, true
			}
		}
	}

	result, outcome := executeWithPolicy(ctx, o.policyFor(rs), spec.fn, spec.fallback)
	rs.remainingTimed--

	record := StepRecord{
		Step:         spec.step,
		StartedAt:    started,
		FinishedAt:   time.Now(),
		Success:      outcome.err == nil,
		Attempts:     outcome.attempts,
		FallbackUsed: outcome.fallbackUsed,
		ErrorCode:    errorCodeOrEmpty(outcome.err),
	}
	o.record(rs, record)

	if outcome.err != nil {
		span.SetStatus(codes.Error, outcome.err.Error())
		span.RecordError(outcome.err)
		o.fail(rs, outcome.err)
		return zero, false
	}

	if outcome.fallbackUsed {
		rs.result.Metadata.FallbacksUsed = append(rs.result.Metadata.FallbacksUsed, spec.fallbackName)
		o.logger.Warn("step fell back to degraded path",
			"audit_id", rs.result.AuditID,
			"step", spec.step,
			"attempts", outcome.attempts,
		)
	}

	// Write-through: later identical requests skip this adapter
	if spec.cacheKey != "" && !outcome.fallbackUsed {
		o.store.Set(spec.cacheKey, result, spec.ttl)
	}

	span.SetStatus(codes.Ok, "step completed")
	return result, true
}

// policyFor derives the step policy from the run's remaining budget,
// apportioned across the timed steps not yet executed.
func (o *Orchestrator) policyFor(rs *runState) Policy {
	remaining := time.Until(rs.deadline)
	steps := rs.remainingTimed
	if steps < 1 {
		steps = 1
	}

	stepTimeout := remaining / time.Duration(steps)
	if stepTimeout < 0 {
		stepTimeout = time.Millisecond
	}

	return Policy{
		MaxRetries:  rs.maxRetries,
		BaseDelay:   o.cfg.RetryBaseDelay,
		MaxDelay:    o.cfg.RetryMaxDelay,
		StepTimeout: stepTimeout,
	}
}

// record appends a completed step record; records are never mutated
// afterwards.
func (o *Orchestrator) record(rs *runState, record StepRecord) {
	rs.result.Metadata.Steps = append(rs.result.Metadata.Steps, record)
	rs.result.Metadata.Performance[record.Step] = record.Duration().Milliseconds()
}

// fail marks the run failed with the first terminal error. Later calls
// keep the original error: earlier steps take precedence.
func (o *Orchestrator) fail(rs *runState, err error) {
	if rs.result.Err != nil {
		return
	}

	var auditErr *types.AuditError
	if ae, ok := err.(*types.AuditError); ok {
		auditErr = ae
	} else {
		auditErr = types.WrapError(types.CodeOf(err), "workflow step failed", err)
	}
	rs.result.Err = auditErr
	rs.result.Success = false
}

// warn appends a non-fatal warning to the run's metadata.
func (o *Orchestrator) warn(rs *runState, message string) {
	rs.result.Metadata.Warnings = append(rs.result.Metadata.Warnings, message)
	o.logger.Warn("audit warning", "audit_id", rs.result.AuditID, "warning", message)
}

// auditFingerprint keys the full-result cache by the request's content.
func auditFingerprint(req Request) string {
	return cache.Fingerprint("audit", req.URL,
		fmt.Sprintf("detailed=%t", req.Options.DetailedAnalysis),
		fmt.Sprintf("anchor=%t", req.Options.AnchorOnLedger),
	)
}

// resultKey keys the by-id result cache for GET /audit/{id}.
func resultKey(id types.AuditID) string {
	return "result:" + id.String()
}

func errorCodeOrEmpty(err error) types.ErrorCode {
	if err == nil {
		return ""
	}
	return types.CodeOf(err)
}
