package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronsb/screentimed/internal/config"
)

// Maintenance runs the retention policy named in spec §4.1: stale
// discovery candidates (the only "events" rows the schema accumulates
// outside sessions/message_log/audit) older than RetentionEventsDays
// are purged, closed sessions older than RetentionSessionsDays are
// purged, and message_log rows older than RetentionMessageLogDays are
// purged. daily_summary and audit are retained indefinitely and never
// touched here.
func (s *Store) Maintenance(ctx context.Context, cfg config.DatabaseConfig) error {
	now := time.Now()

	eventsCutoff := now.AddDate(0, 0, -cfg.RetentionEventsDays)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM discovery_candidates WHERE last_seen < ?`, eventsCutoff); err != nil {
		return fmt.Errorf("purge discovery candidates: %w", err)
	}

	sessionsCutoff := now.AddDate(0, 0, -cfg.RetentionSessionsDays)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?`, sessionsCutoff); err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}

	messageLogCutoff := now.AddDate(0, 0, -cfg.RetentionMessageLogDays)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM message_log WHERE timestamp < ?`, messageLogCutoff); err != nil {
		return fmt.Errorf("purge message log: %w", err)
	}

	s.log.Info("maintenance complete",
		"events_cutoff", eventsCutoff, "sessions_cutoff", sessionsCutoff, "message_log_cutoff", messageLogCutoff)
	return nil
}
