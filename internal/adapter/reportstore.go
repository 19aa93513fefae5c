package adapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// SQLiteReportStore implements ReportStore on a local SQLite database.
// Report persistence is optional in this deployment; failures surface as
// DATABASE_ERROR values which the orchestrator downgrades to warnings.
type SQLiteReportStore struct {
	db *sql.DB
}

// NewSQLiteReportStore opens (or creates) the report database at path and
// ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteReportStore(path string) (*SQLiteReportStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.DATABASE_ERROR, "opening report database failed", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, types.WrapError(types.DATABASE_ERROR, "report database unreachable", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS reports (
	audit_id   TEXT PRIMARY KEY,
	report     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, types.WrapError(types.DATABASE_ERROR, "creating report schema failed", err)
	}

	return &SQLiteReportStore{db: db}, nil
}

// Persist stores the JSON encoding of a report keyed by audit id.
// Re-persisting the same audit id replaces the stored report.
func (s *SQLiteReportStore) Persist(ctx context.Context, auditID types.AuditID, report any) error {
	encoded, err := json.Marshal(report)
	if err != nil {
		return types.WrapError(types.DATABASE_ERROR, "encoding report failed", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (audit_id, report) VALUES (?, ?)
		 ON CONFLICT(audit_id) DO UPDATE SET report = excluded.report`,
		auditID.String(), string(encoded))
	if err != nil {
		return types.WrapRetryableError(types.DATABASE_ERROR, "persisting report failed", err)
	}

	return nil
}

// Load retrieves a persisted report's JSON by audit id. Returns false when
// no report exists for the id.
func (s *SQLiteReportStore) Load(ctx context.Context, auditID types.AuditID) (json.RawMessage, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM reports WHERE audit_id = ?`, auditID.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, types.WrapRetryableError(types.DATABASE_ERROR, "loading report failed", err)
	}
	return json.RawMessage(raw), true, nil
}

// Close releases the underlying database handle.
func (s *SQLiteReportStore) Close() error {
	return s.db.Close()
}
