package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amansir99/trustscan-ai-sub001/internal/adapter"
	"github.com/amansir99/trustscan-ai-sub001/internal/cache"
	"github.com/amansir99/trustscan-ai-sub001/internal/score"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

type fakeExtractor struct {
	calls   atomic.Int64
	content *adapter.Content
	err     error
	block   bool
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) (*adapter.Content, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

type fakeAnalyzer struct {
	calls atomic.Int64
	input *score.AnalysisInput
	err   error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, content *adapter.Content, detailed bool) (*score.AnalysisInput, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.input, nil
}

type fakeLedger struct {
	calls atomic.Int64
	txID  string
	err   error
}

func (f *fakeLedger) Anchor(ctx context.Context, digest adapter.AuditDigest) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.txID, nil
}

func goodContent() *adapter.Content {
	return &adapter.Content{
		URL:              "https://example.com",
		Title:            "Example",
		Description:      "An example site",
		Headings:         []string{"About", "Security", "Contact"},
		WordCount:        2500,
		LinkCount:        20,
		HTTPS:            true,
		StatusCode:       200,
		HasSecurityPage:  true,
		HasPrivacyPolicy: true,
		HasContactInfo:   true,
	}
}

func goodInput() *score.AnalysisInput {
	return &score.AnalysisInput{
		Factors: map[score.Factor]float64{
			score.FactorDocumentation: 90,
			score.FactorTransparency:  85,
			score.FactorSecurity:      90,
			score.FactorCommunity:     80,
			score.FactorTechnical:     85,
		},
		PositiveIndicators:  []score.PositiveIndicator{score.IndicatorSecurityAudit},
		ContentCompleteness: 0.95,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DefaultTimeout = 5 * time.Second
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond
	return cfg
}

func newTestOrchestrator(t *testing.T, extractor adapter.Extractor, analyzer adapter.Analyzer, opts ...Option) (*Orchestrator, cache.Store) {
	t.Helper()
	store := cache.NewMemoryStore(0)
	t.Cleanup(store.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(testConfig(), extractor, analyzer, store, logger, opts...), store
}

func stepNames(result *Result) []Step {
	steps := make([]Step, 0, len(result.Metadata.Steps))
	for _, record := range result.Metadata.Steps {
		steps = append(steps, record.Step)
	}
	return steps
}

func TestRun_SuccessPath(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	analyzer := &fakeAnalyzer{input: goodInput()}
	o, _ := newTestOrchestrator(t, extractor, analyzer)

	result := o.Run(context.Background(), Request{URL: "https://example.com"})

	require.True(t, result.Success)
	require.Nil(t, result.Err)
	require.NotNil(t, result.Report)
	require.NotNil(t, result.Summary)
	assert.False(t, result.AuditID.IsZero())
	assert.Equal(t, score.RiskTrusted, result.Report.RiskLevel)
	assert.Empty(t, result.LedgerTxID)

	assert.Equal(t, []Step{
		StepValidating, StepExtracting, StepAnalyzing,
		StepScoring, StepReporting, StepCaching,
	}, stepNames(result))
	for _, record := range result.Metadata.Steps {
		assert.True(t, record.Success, "step %s", record.Step)
	}
	assert.Positive(t, result.Metadata.ProcessingTime)
}

func TestRun_ValidationFailureStopsPipeline(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()})

	result := o.Run(context.Background(), Request{URL: "ftp://example.com"})

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, types.VALIDATION_ERROR, result.Err.Code)
	assert.Equal(t, []Step{StepValidating}, stepNames(result))
	assert.Zero(t, extractor.calls.Load())
}

func TestRun_ExtractionTimeout(t *testing.T) {
	extractor := &fakeExtractor{block: true}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()})

	result := o.Run(context.Background(), Request{
		URL:     "https://slow.example.com",
		Options: Options{Timeout: 150 * time.Millisecond, MaxRetries: 2},
	})

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, types.TIMEOUT_ERROR, result.Err.Code)

	steps := stepNames(result)
	assert.Equal(t, []Step{StepValidating, StepExtracting}, steps)

	extracting := result.Metadata.Steps[1]
	assert.False(t, extracting.Success)
	assert.Equal(t, types.TIMEOUT_ERROR, extracting.ErrorCode)
	assert.GreaterOrEqual(t, extracting.Attempts, 1)
	assert.LessOrEqual(t, extracting.Attempts, 3)
}

func TestRun_NonRetryableFailureShortCircuits(t *testing.T) {
	extractor := &fakeExtractor{err: types.NewError(types.SCRAPING_NOT_FOUND, "404 from origin")}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()})

	result := o.Run(context.Background(), Request{URL: "https://example.com/missing"})

	require.False(t, result.Success)
	assert.Equal(t, types.SCRAPING_NOT_FOUND, result.Err.Code)
	assert.Equal(t, int64(1), extractor.calls.Load())
	assert.Equal(t, 1, result.Metadata.Steps[1].Attempts)
}

func TestRun_RetryableFailureExhaustsRetries(t *testing.T) {
	extractor := &fakeExtractor{err: types.NewRetryableError(types.NETWORK_ERROR, "connection reset")}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()})

	result := o.Run(context.Background(), Request{
		URL:     "https://example.com",
		Options: Options{MaxRetries: 2},
	})

	require.False(t, result.Success)
	assert.Equal(t, types.NETWORK_ERROR, result.Err.Code)
	assert.Equal(t, int64(3), extractor.calls.Load())
	assert.Equal(t, 3, result.Metadata.Steps[1].Attempts)
}

func TestRun_AnalyzerFallback(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	primary := &fakeAnalyzer{err: types.NewRetryableError(types.AI_ANALYSIS_ERROR, "provider unavailable")}
	fallback := &fakeAnalyzer{input: goodInput()}
	o, _ := newTestOrchestrator(t, extractor, primary, WithFallbackAnalyzer(fallback))

	result := o.Run(context.Background(), Request{
		URL:     "https://example.com",
		Options: Options{MaxRetries: 1},
	})

	require.True(t, result.Success)
	assert.Equal(t, int64(2), primary.calls.Load())
	assert.Equal(t, int64(1), fallback.calls.Load())
	assert.NotEmpty(t, result.Metadata.FallbacksUsed)

	analyzing := result.Metadata.Steps[2]
	assert.Equal(t, StepAnalyzing, analyzing.Step)
	assert.True(t, analyzing.FallbackUsed)
}

func TestRun_FallbackFailureKeepsPrimaryError(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	primary := &fakeAnalyzer{err: types.NewRetryableError(types.AI_ANALYSIS_ERROR, "provider unavailable")}
	fallback := &fakeAnalyzer{err: types.NewError(types.INTERNAL_ERROR, "heuristics crashed")}
	o, _ := newTestOrchestrator(t, extractor, primary, WithFallbackAnalyzer(fallback))

	result := o.Run(context.Background(), Request{
		URL:     "https://example.com",
		Options: Options{MaxRetries: 1},
	})

	require.False(t, result.Success)
	assert.Equal(t, types.AI_ANALYSIS_ERROR, result.Err.Code)
}

func TestRun_LedgerFailureDowngradesToWarning(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	ledger := &fakeLedger{err: types.NewError(types.LEDGER_ERROR, "node unreachable")}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()}, WithLedger(ledger))

	result := o.Run(context.Background(), Request{
		URL:     "https://example.com",
		Options: Options{AnchorOnLedger: true},
	})

	require.True(t, result.Success)
	assert.Empty(t, result.LedgerTxID)
	require.NotEmpty(t, result.Metadata.Warnings)
	assert.Contains(t, result.Metadata.Warnings[0], "ledger anchoring failed")

	var anchoring *StepRecord
	for i := range result.Metadata.Steps {
		if result.Metadata.Steps[i].Step == StepAnchoring {
			anchoring = &result.Metadata.Steps[i]
		}
	}
	require.NotNil(t, anchoring)
	assert.False(t, anchoring.Success)
	assert.Equal(t, types.LEDGER_ERROR, anchoring.ErrorCode)
}

func TestRun_LedgerSuccessRecordsTransaction(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	ledger := &fakeLedger{txID: "0xabc123"}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()}, WithLedger(ledger))

	result := o.Run(context.Background(), Request{
		URL:     "https://example.com",
		Options: Options{AnchorOnLedger: true},
	})

	require.True(t, result.Success)
	assert.Equal(t, "0xabc123", result.LedgerTxID)
	assert.Empty(t, result.Metadata.Warnings)
}

func TestRun_AnchorWithoutLedgerWarns(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()})

	result := o.Run(context.Background(), Request{
		URL:     "https://example.com",
		Options: Options{AnchorOnLedger: true},
	})

	require.True(t, result.Success)
	require.NotEmpty(t, result.Metadata.Warnings)
	assert.Contains(t, result.Metadata.Warnings[0], "no ledger is configured")
}

func TestRun_SecondIdenticalRequestServedFromCache(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	analyzer := &fakeAnalyzer{input: goodInput()}
	o, _ := newTestOrchestrator(t, extractor, analyzer)

	req := Request{URL: "https://example.com"}

	first := o.Run(context.Background(), req)
	require.True(t, first.Success)
	assert.False(t, first.Metadata.CachedResult)

	second := o.Run(context.Background(), req)
	require.True(t, second.Success)
	assert.True(t, second.Metadata.CachedResult)
	assert.Equal(t, first.AuditID, second.AuditID)
	assert.Equal(t, first.Report.FinalScore, second.Report.FinalScore)

	assert.Equal(t, int64(1), extractor.calls.Load())
	assert.Equal(t, int64(1), analyzer.calls.Load())
}

func TestRun_DifferentOptionsBypassResultCache(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	analyzer := &fakeAnalyzer{input: goodInput()}
	o, _ := newTestOrchestrator(t, extractor, analyzer)

	first := o.Run(context.Background(), Request{URL: "https://example.com"})
	require.True(t, first.Success)

	second := o.Run(context.Background(), Request{
		URL:     "https://example.com",
		Options: Options{DetailedAnalysis: true},
	})
	require.True(t, second.Success)
	assert.False(t, second.Metadata.CachedResult)
	assert.NotEqual(t, first.AuditID, second.AuditID)

	// Extraction is keyed on the URL alone, so it is still reused
	assert.Equal(t, int64(1), extractor.calls.Load())
	assert.Equal(t, int64(2), analyzer.calls.Load())

	extracting := second.Metadata.Steps[1]
	assert.True(t, extracting.Cached)
	assert.Zero(t, extracting.Attempts)
}

func TestRun_ConcurrentIdenticalRequests(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	analyzer := &fakeAnalyzer{input: goodInput()}
	o, _ := newTestOrchestrator(t, extractor, analyzer)

	req := Request{URL: "https://example.com"}

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// staggered starts so some runs overlap the first run's
			// publish and others hit the finished cache entry
			time.Sleep(time.Duration(i) * time.Millisecond)
			results[i] = o.Run(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		require.True(t, result.Success, "run %d", i)
		require.NotNil(t, result.Report, "run %d", i)
		assert.Equal(t, results[0].Report.FinalScore, result.Report.FinalScore, "run %d", i)
	}
}

func TestRun_CachedResultIsImmutableSnapshot(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()})

	first := o.Run(context.Background(), Request{URL: "https://example.com"})
	require.True(t, first.Success)

	cached, ok := o.CachedResult(first.AuditID)
	require.True(t, ok)
	require.NotSame(t, first, cached)
	assert.True(t, cached.Success)
	assert.Equal(t, stepNames(first), stepNames(cached))

	// Mutating the returned result must not leak into the cached copy
	first.Metadata.Warnings = append(first.Metadata.Warnings, "local note")
	first.Metadata.Steps[0].Attempts = 99

	refetched, ok := o.CachedResult(first.AuditID)
	require.True(t, ok)
	assert.Empty(t, refetched.Metadata.Warnings)
	assert.Equal(t, 1, refetched.Metadata.Steps[0].Attempts)
}

func TestCachedResult_ByAuditID(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()})

	result := o.Run(context.Background(), Request{URL: "https://example.com"})
	require.True(t, result.Success)

	cached, ok := o.CachedResult(result.AuditID)
	require.True(t, ok)
	assert.Equal(t, result.AuditID, cached.AuditID)

	_, ok = o.CachedResult(types.NewAuditID())
	assert.False(t, ok)
}

func TestRun_SparseContentWarns(t *testing.T) {
	extractor := &fakeExtractor{content: &adapter.Content{
		URL:        "https://thin.example.com",
		WordCount:  50,
		StatusCode: 200,
	}}
	sparse := goodInput()
	sparse.ContentCompleteness = 0.1
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: sparse})

	result := o.Run(context.Background(), Request{URL: "https://thin.example.com"})

	require.True(t, result.Success)
	require.NotEmpty(t, result.Metadata.Warnings)
	assert.Contains(t, result.Metadata.Warnings[0], "sparse")
	assert.LessOrEqual(t, result.Report.Confidence, 40.0)
}

func TestStats_AggregatesRuns(t *testing.T) {
	extractor := &fakeExtractor{content: goodContent()}
	o, _ := newTestOrchestrator(t, extractor, &fakeAnalyzer{input: goodInput()})

	o.Run(context.Background(), Request{URL: "https://example.com"})
	o.Run(context.Background(), Request{URL: "ftp://bad"})

	snap := o.Stats()
	assert.Equal(t, int64(2), snap.TotalRuns)
	assert.Equal(t, int64(1), snap.Succeeded)
	assert.Equal(t, int64(1), snap.Failed)
	assert.InDelta(t, 0.5, snap.SuccessRate, 0.001)
	assert.Equal(t, int64(1), snap.FailuresByCode[string(types.VALIDATION_ERROR)])

	validating := snap.Steps[StepValidating]
	assert.Equal(t, int64(2), validating.Runs)
	assert.Equal(t, int64(1), validating.Failures)
}
