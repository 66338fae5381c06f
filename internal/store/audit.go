package store

import (
	"context"
	"fmt"

	"github.com/aaronsb/screentimed/internal/domain"
)

// AppendAudit inserts an append-only enforcement record. Store write
// failures here are logged and swallowed by the caller per spec 7 — the
// audit table itself has no special-cased failure path inside the store.
func (s *Store) AppendAudit(ctx context.Context, a domain.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit(timestamp, user, pid, process_name, pattern_id, reason, signal_sent, signal_name, exit_observed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Timestamp, a.User, a.PID, a.ProcessName, a.PatternID, a.Reason, a.SignalSent, a.SignalName, boolToInt(a.ExitObserved))
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit returns audit rows for user newest-first, for the admin
// "audit" dump.
func (s *Store) ListAudit(ctx context.Context, user string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, user, pid, process_name, pattern_id, reason, signal_sent, signal_name, exit_observed
		FROM audit WHERE user = ? ORDER BY timestamp DESC LIMIT ?
	`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var a domain.AuditEntry
		var exitObserved int
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.User, &a.PID, &a.ProcessName, &a.PatternID,
			&a.Reason, &a.SignalSent, &a.SignalName, &exitObserved); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		a.ExitObserved = exitObserved != 0
		out = append(out, a)
	}
	return out, rows.Err()
}
