package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/google/uuid"
)

// OpenSession inserts a new in-flight session row (ended_at = NULL).
func (s *Store) OpenSession(ctx context.Context, user string, patternID int64, startedAt time.Time, projectHint string) (*domain.Session, error) {
	sess := &domain.Session{
		ID:          uuid.NewString(),
		User:        user,
		PatternID:   patternID,
		StartedAt:   startedAt,
		ProjectHint: projectHint,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, user, pattern_id, started_at, project_hint)
		VALUES (?, ?, ?, ?, ?)
	`, sess.ID, sess.User, sess.PatternID, sess.StartedAt, sess.ProjectHint)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return sess, nil
}

// CloseSession seals an in-flight session with the given reason and end
// timestamp, computing duration_sec = ended_at - started_at.
func (s *Store) CloseSession(ctx context.Context, id string, endedAt time.Time, reason domain.EndReason) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET ended_at = ?, end_reason = ?, duration_sec = CAST(strftime('%s', ?) AS INTEGER) - CAST(strftime('%s', started_at) AS INTEGER)
		WHERE id = ?
	`, endedAt, reason, endedAt, id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// OpenSessionsForUser returns every in-flight (ended_at IS NULL) session
// for user, used by the kernel to seal sessions on deactivation and by
// shutdown to seal everything still open.
func (s *Store) OpenSessionsForUser(ctx context.Context, user string) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user, pattern_id, started_at, COALESCE(project_hint, '')
		FROM sessions WHERE user = ? AND ended_at IS NULL
	`, user)
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// AllOpenSessions returns every in-flight session across all users, used
// by the Daemon Loop at shutdown to seal everything with end_reason
// logout/unknown (spec 5).
func (s *Store) AllOpenSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user, pattern_id, started_at, COALESCE(project_hint, '')
		FROM sessions WHERE ended_at IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("list all open sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]domain.Session, error) {
	var out []domain.Session
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(&sess.ID, &sess.User, &sess.PatternID, &sess.StartedAt, &sess.ProjectHint); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ListSessions returns sessions for user within [since, until), newest
// first, for the admin "sessions" style listing.
func (s *Store) ListSessions(ctx context.Context, user string, since, until time.Time) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user, pattern_id, started_at, ended_at, duration_sec, COALESCE(end_reason,''), COALESCE(project_hint,'')
		FROM sessions
		WHERE user = ? AND started_at >= ? AND started_at < ?
		ORDER BY started_at DESC
	`, user, since, until)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var sess domain.Session
		var endedAt sql.NullTime
		var durationSec sql.NullInt64
		if err := rows.Scan(&sess.ID, &sess.User, &sess.PatternID, &sess.StartedAt, &endedAt, &durationSec, &sess.EndReason, &sess.ProjectHint); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			sess.EndedAt = &t
		}
		if durationSec.Valid {
			d := durationSec.Int64
			sess.DurationSec = &d
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
