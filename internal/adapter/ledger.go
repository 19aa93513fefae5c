package adapter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// LedgerConfig configures the HTTP ledger client.
type LedgerConfig struct {
	// Endpoint is the anchor submission URL.
	Endpoint string

	// APIKey authenticates to the anchoring service.
	APIKey string
}

// HTTPLedger implements Ledger by POSTing a sha256 digest of the audit
// summary to an external anchoring service. Every failure maps to
// LEDGER_ERROR; the orchestrator downgrades those to warnings so anchoring
// can never fail an audit.
type HTTPLedger struct {
	client *http.Client
	cfg    LedgerConfig
}

// NewHTTPLedger creates an HTTPLedger. A nil client uses a default with a
// conservative timeout.
func NewHTTPLedger(client *http.Client, cfg LedgerConfig) *HTTPLedger {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPLedger{client: client, cfg: cfg}
}

// anchorRequest is the wire shape submitted to the anchoring service.
type anchorRequest struct {
	Digest    string    `json:"digest"`
	AuditID   string    `json:"audit_id"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// anchorResponse is the wire shape returned by the anchoring service.
type anchorResponse struct {
	TransactionID string `json:"transaction_id"`
}

// Anchor submits the digest and returns the ledger transaction id.
func (l *HTTPLedger) Anchor(ctx context.Context, digest AuditDigest) (string, error) {
	if l.cfg.Endpoint == "" {
		return "", types.NewError(types.LEDGER_ERROR, "no ledger endpoint configured")
	}

	payload, err := json.Marshal(anchorRequest{
		Digest:    DigestHash(digest),
		AuditID:   digest.AuditID.String(),
		URL:       digest.URL,
		Timestamp: digest.CompletedAt,
	})
	if err != nil {
		return "", types.WrapError(types.LEDGER_ERROR, "encoding anchor request failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.WrapError(types.LEDGER_ERROR, "building anchor request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", types.WrapRetryableError(types.LEDGER_ERROR, "anchor submission failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", types.NewRetryableError(types.LEDGER_ERROR,
			fmt.Sprintf("anchoring service returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", types.WrapRetryableError(types.LEDGER_ERROR, "reading anchor response failed", err)
	}

	var parsed anchorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", types.WrapError(types.LEDGER_ERROR, "anchor response was not valid JSON", err)
	}
	if parsed.TransactionID == "" {
		return "", types.NewError(types.LEDGER_ERROR, "anchoring service returned no transaction id")
	}

	return parsed.TransactionID, nil
}

// DigestHash computes the canonical sha256 hex digest of an audit summary.
// The JSON encoding of AuditDigest is the canonical form: fixed field
// order, no indentation.
func DigestHash(digest AuditDigest) string {
	encoded, err := json.Marshal(digest)
	if err != nil {
		// AuditDigest contains only marshalable fields
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
