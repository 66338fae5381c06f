package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aaronsb/screentimed/internal/domain"
)

// LoadDailySummary returns the (user, date) row, or nil if none exists
// yet (created lazily on first observed activity per spec 3).
func (s *Store) LoadDailySummary(ctx context.Context, user, date string) (*domain.DailySummary, error) {
	var d domain.DailySummary
	d.User, d.Date = user, date
	var gamingActive, totalActive int
	var warned30, warned15, warned5 int
	var gamingStartedAt, graceStartedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT state, gaming_active, total_active, gaming_time_sec, total_time_sec, gaming_started_at,
		       grace_started_at, last_poll_at, warned_30, warned_15, warned_5, last_state_change
		FROM daily_summary WHERE user = ? AND date = ?
	`, user, date).Scan(&d.State, &gamingActive, &totalActive, &d.GamingTimeSec, &d.TotalTimeSec,
		&gamingStartedAt, &graceStartedAt, &d.LastPollAt, &warned30, &warned15, &warned5, &d.LastStateChange)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load daily summary: %w", err)
	}

	d.GamingActive = gamingActive != 0
	d.TotalActive = totalActive != 0
	d.Warned30, d.Warned15, d.Warned5 = warned30 != 0, warned15 != 0, warned5 != 0
	if gamingStartedAt.Valid {
		t := gamingStartedAt.Time
		d.GamingStartedAt = &t
	}
	if graceStartedAt.Valid {
		t := graceStartedAt.Time
		d.GraceStartedAt = &t
	}
	return &d, nil
}

// SaveDailySummary is an UPSERT keyed by (user, date), enforcing the
// invariant that exactly one row exists per (user, date) (spec 3, 4.1).
func (s *Store) SaveDailySummary(ctx context.Context, d domain.DailySummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_summary(user, date, state, gaming_active, total_active, gaming_time_sec, total_time_sec,
			gaming_started_at, grace_started_at, last_poll_at, warned_30, warned_15, warned_5, last_state_change)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user, date) DO UPDATE SET
			state             = excluded.state,
			gaming_active     = excluded.gaming_active,
			total_active      = excluded.total_active,
			gaming_time_sec   = excluded.gaming_time_sec,
			total_time_sec    = excluded.total_time_sec,
			gaming_started_at = excluded.gaming_started_at,
			grace_started_at  = excluded.grace_started_at,
			last_poll_at      = excluded.last_poll_at,
			warned_30         = excluded.warned_30,
			warned_15         = excluded.warned_15,
			warned_5          = excluded.warned_5,
			last_state_change = excluded.last_state_change
	`, d.User, d.Date, d.State, boolToInt(d.GamingActive), boolToInt(d.TotalActive), d.GamingTimeSec, d.TotalTimeSec,
		nullableTime(d.GamingStartedAt), nullableTime(d.GraceStartedAt), d.LastPollAt,
		boolToInt(d.Warned30), boolToInt(d.Warned15), boolToInt(d.Warned5), d.LastStateChange)
	if err != nil {
		return fmt.Errorf("save daily summary: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
