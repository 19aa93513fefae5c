package audit

import (
	"sync"
	"time"
)

// StepStats aggregates timing and failure counts for one pipeline step.
type StepStats struct {
	Runs      int64      `json:"runs"`
	Failures  int64      `json:"failures"`
	CacheHits int64      `json:"cacheHits"`
	AvgTime   DurationMs `json:"avgTimeMs"`
}

// StatsSnapshot is a point-in-time copy of the orchestrator's counters.
type StatsSnapshot struct {
	TotalRuns         int64              `json:"totalRuns"`
	Succeeded         int64              `json:"succeeded"`
	Failed            int64              `json:"failed"`
	CachedResults     int64              `json:"cachedResults"`
	SuccessRate       float64            `json:"successRate"`
	AvgProcessingTime DurationMs         `json:"avgProcessingTimeMs"`
	Steps             map[Step]StepStats `json:"steps"`
	FailuresByCode    map[string]int64   `json:"failuresByCode,omitempty"`
}

// stepAccum is the internal mutable accumulator behind StepStats.
type stepAccum struct {
	runs      int64
	failures  int64
	cacheHits int64
	totalTime time.Duration
}

// Stats accumulates workflow run outcomes. Safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	totalRuns     int64
	succeeded     int64
	failed        int64
	cachedResults int64
	totalTime     time.Duration

	steps    map[Step]*stepAccum
	failures map[string]int64
}

// NewStats creates an empty accumulator.
func NewStats() *Stats {
	return &Stats{
		steps:    make(map[Step]*stepAccum),
		failures: make(map[string]int64),
	}
}

// Record folds one completed run into the counters.
func (s *Stats) Record(result *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRuns++
	s.totalTime += time.Duration(result.Metadata.ProcessingTime)

	if result.Success {
		s.succeeded++
	} else {
		s.failed++
		if result.Err != nil {
			s.failures[string(result.Err.Code)]++
		}
	}
	if result.Metadata.CachedResult {
		s.cachedResults++
	}

	for _, record := range result.Metadata.Steps {
		accum := s.steps[record.Step]
		if accum == nil {
			accum = &stepAccum{}
			s.steps[record.Step] = accum
		}
		accum.runs++
		accum.totalTime += record.Duration()
		if !record.Success {
			accum.failures++
		}
		if record.Cached {
			accum.cacheHits++
		}
	}
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		TotalRuns:     s.totalRuns,
		Succeeded:     s.succeeded,
		Failed:        s.failed,
		CachedResults: s.cachedResults,
		Steps:         make(map[Step]StepStats, len(s.steps)),
	}

	if s.totalRuns > 0 {
		snap.SuccessRate = float64(s.succeeded) / float64(s.totalRuns)
		snap.AvgProcessingTime = DurationMs(s.totalTime / time.Duration(s.totalRuns))
	}

	for step, accum := range s.steps {
		stat := StepStats{
			Runs:      accum.runs,
			Failures:  accum.failures,
			CacheHits: accum.cacheHits,
		}
		if accum.runs > 0 {
			stat.AvgTime = DurationMs(accum.totalTime / time.Duration(accum.runs))
		}
		snap.Steps[step] = stat
	}

	if len(s.failures) > 0 {
		snap.FailuresByCode = make(map[string]int64, len(s.failures))
		for code, count := range s.failures {
			snap.FailuresByCode[code] = count
		}
	}

	return snap
}
