// Package ledger provides a SQLite-backed idempotency ledger for plan
// publications.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store records processed plan identifiers so duplicate triggering events
// publish at most one plan.
type Store struct {
	db        *sql.DB
	retention time.Duration
	logger    *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS processed_plans (
	plan_id      TEXT PRIMARY KEY,
	processed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processed_plans_at ON processed_plans(processed_at);
`

// Open opens (creating if needed) the ledger database at dsn.
func Open(dsn string, retention time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}

	return &Store{db: db, retention: retention, logger: logger}, nil
}

// AlreadyProcessed reports whether planID has already been recorded.
// Read failures are treated as "not processed" so a broken ledger degrades
// to duplicate publications rather than suppressed ones.
func (s *Store) AlreadyProcessed(ctx context.Context, planID string) bool {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_plans WHERE plan_id = ?`, planID).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false
	case err != nil:
		s.logger.Warn("Ledger read failed, treating as unprocessed",
			"plan_id", planID,
			"error", err)
		return false
	}
	return true
}

// MarkProcessed records planID atomically. A duplicate key means another
// path already recorded it, which counts as success.
func (s *Store) MarkProcessed(ctx context.Context, planID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_plans (plan_id, processed_at) VALUES (?, ?)`,
		planID, time.Now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("record plan %s: %w", planID, err)
	}
	return nil
}

// Sweep deletes records older than the retention window and returns how many
// were removed.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_plans WHERE processed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep ledger: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RunSweeper periodically sweeps expired records until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("Ledger sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("Swept expired plan records", "removed", n)
			}
		}
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures in the error text.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
