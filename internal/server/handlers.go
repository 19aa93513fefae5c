package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/amansir99/trustscan-ai-sub001/internal/audit"
	"github.com/amansir99/trustscan-ai-sub001/internal/queue"
	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// analyzeOptions is the wire form of audit.Options. Timeouts cross the
// wire in milliseconds.
type analyzeOptions struct {
	AnchorOnLedger   bool  `json:"anchorOnLedger"`
	DetailedAnalysis bool  `json:"detailedAnalysis"`
	Priority         int   `json:"priority"`
	TimeoutMs        int64 `json:"timeoutMs"`
	MaxRetries       int   `json:"maxRetries"`
}

func (o analyzeOptions) toAudit() audit.Options {
	return audit.Options{
		AnchorOnLedger:   o.AnchorOnLedger,
		DetailedAnalysis: o.DetailedAnalysis,
		Priority:         o.Priority,
		Timeout:          time.Duration(o.TimeoutMs) * time.Millisecond,
		MaxRetries:       o.MaxRetries,
	}
}

type analyzeRequest struct {
	URL     string         `json:"url"`
	Options analyzeOptions `json:"options"`
}

type debugRequest struct {
	analyzeRequest
	TestMode bool `json:"testMode"`
}

// traceEntry is the verbose per-step record in debug responses.
type traceEntry struct {
	Step         audit.Step      `json:"step"`
	DurationMs   int64           `json:"durationMs"`
	Success      bool            `json:"success"`
	Attempts     int             `json:"attempts"`
	FallbackUsed bool            `json:"fallbackUsed,omitempty"`
	Cached       bool            `json:"cached,omitempty"`
	ErrorCode    types.ErrorCode `json:"errorCode,omitempty"`
}

type debugResponse struct {
	*audit.Result
	Trace []traceEntry `json:"trace"`
}

type healthResponse struct {
	Status    types.HealthStatus  `json:"status"`
	Workflows audit.StatsSnapshot `json:"workflows"`
	Queue     queue.Stats         `json:"queue"`
	RateLimit map[string]int      `json:"rateLimitActiveKeys"`
}

// handleAnalyze accepts an audit submission and runs it through the
// request queue. The response is either the full workflow result or the
// error envelope carrying the first failing step's code.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.WrapError(types.VALIDATION_ERROR, "invalid request body", err))
		return
	}

	s.runAudit(w, r, req)
}

// handleDebug is the analyze pipeline with a verbose per-step trace in
// the response. testMode requests skip authentication so integration
// environments can exercise the pipeline without credentials.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	var req debugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.WrapError(types.VALIDATION_ERROR, "invalid request body", err))
		return
	}

	if !req.TestMode {
		identity, err := s.authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := withIdentity(r.Context(), identity)
		r = r.WithContext(ctx)
	}

	result, err := s.execute(r, req.analyzeRequest)
	if err != nil {
		writeError(w, err)
		return
	}

	trace := make([]traceEntry, 0, len(result.Metadata.Steps))
	for _, record := range result.Metadata.Steps {
		trace = append(trace, traceEntry{
			Step:         record.Step,
			DurationMs:   record.Duration().Milliseconds(),
			Success:      record.Success,
			Attempts:     record.Attempts,
			FallbackUsed: record.FallbackUsed,
			Cached:       record.Cached,
			ErrorCode:    record.ErrorCode,
		})
	}

	if result.Err != nil {
		status := types.HTTPStatus(result.Err.Code)
		writeJSON(w, status, debugResponse{Result: result, Trace: trace})
		return
	}
	writeJSON(w, http.StatusOK, debugResponse{Result: result, Trace: trace})
}

// handleHealth reports workflow statistics, queue activity, and limiter
// load, with an overall state derived from the recent success rate.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	workflows := s.orchestrator.Stats()

	status := types.Healthy("")
	if workflows.TotalRuns >= 10 {
		message := fmt.Sprintf("workflow success rate %.0f%%", workflows.SuccessRate*100)
		switch {
		case workflows.SuccessRate < 0.5:
			status = types.Unhealthy(message)
		case workflows.SuccessRate < 0.9:
			status = types.Degraded(message)
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Workflows: workflows,
		Queue:     s.queue.Stats(),
		RateLimit: map[string]int{
			classAudit: s.auditLimiter.ActiveKeys(),
			classAPI:   s.apiLimiter.ActiveKeys(),
		},
	})
}

// handleGetResult serves a previously completed audit from the result
// cache. Expired or unknown ids return 404.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseAuditID(r.PathValue("id"))
	if err != nil {
		writeError(w, types.NewError(types.VALIDATION_ERROR, "invalid audit id"))
		return
	}

	result, ok := s.orchestrator.CachedResult(id)
	if !ok {
		writeError(w, types.NewError(types.SCRAPING_NOT_FOUND, "audit result not found or expired"))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// runAudit executes the request and writes the standard analyze response.
func (s *Server) runAudit(w http.ResponseWriter, r *http.Request, req analyzeRequest) {
	result, err := s.execute(r, req)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Err != nil {
		status := types.HTTPStatus(result.Err.Code)
		writeJSON(w, status, errorEnvelope(result.Err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// execute submits the orchestrator run through the request queue with
// the caller's priority and identity.
func (s *Server) execute(r *http.Request, req analyzeRequest) (*audit.Result, error) {
	auditReq := audit.Request{
		URL:     req.URL,
		Options: req.Options.toAudit(),
	}
	if identity := identityFrom(r.Context()); identity != nil {
		auditReq.UserID = identity.UserID
	}

	value, err := s.queue.Enqueue(r.Context(), auditReq.Options.Priority,
		func(ctx context.Context) (any, error) {
			return s.orchestrator.Run(ctx, auditReq), nil
		})
	if err != nil {
		return nil, err
	}

	return value.(*audit.Result), nil
}
