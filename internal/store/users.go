package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/internal/errkind"
)

// GetUsers returns every configured user, enabled or not.
func (s *Store) GetUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, system_uid, enabled, created_at, updated_at FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		var enabled int
		if err := rows.Scan(&u.Name, &u.SystemUID, &enabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Enabled = enabled != 0
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpsertUser creates or updates a user row.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users(name, system_uid, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				system_uid = excluded.system_uid,
				enabled    = excluded.enabled,
				updated_at = excluded.updated_at
		`, u.Name, u.SystemUID, boolToInt(u.Enabled), now, now)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return bumpEpoch(ctx, tx)
	})
}

// SetLimits creates or replaces the Limits row for user. An empty
// schedule is stored as the all-allowed grid.
func (s *Store) SetLimits(ctx context.Context, l domain.Limits) error {
	if l.Schedule == "" {
		l.Schedule = allOnesSchedule()
	}
	if !domain.ValidateSchedule(l.Schedule) {
		return fmt.Errorf("%w: schedule must be 168 characters of 0/1", errkind.ScheduleMalformed)
	}
	perDay, err := json.Marshal(l.PerDayGamingLimitMin)
	if err != nil {
		return fmt.Errorf("encode per-day limits: %w", err)
	}
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO limits(user, gaming_limit_min, per_day_gaming_limit_min, daily_total_min, grace_period_sec, schedule)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user) DO UPDATE SET
				gaming_limit_min = excluded.gaming_limit_min,
				per_day_gaming_limit_min = excluded.per_day_gaming_limit_min,
				daily_total_min = excluded.daily_total_min,
				grace_period_sec = excluded.grace_period_sec,
				schedule = excluded.schedule
		`, l.User, l.GamingLimitMin, string(perDay), nullableInt(l.DailyTotalMin), l.GracePeriodSec, l.Schedule)
		if err != nil {
			return fmt.Errorf("set limits: %w", err)
		}
		return bumpEpoch(ctx, tx)
	})
}

// GetLimits loads the Limits row for user, if any.
func (s *Store) GetLimits(ctx context.Context, user string) (*domain.Limits, error) {
	var l domain.Limits
	l.User = user
	var perDayJSON string
	var dailyTotal sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT gaming_limit_min, per_day_gaming_limit_min, daily_total_min, grace_period_sec, schedule
		FROM limits WHERE user = ?
	`, user).Scan(&l.GamingLimitMin, &perDayJSON, &dailyTotal, &l.GracePeriodSec, &l.Schedule)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get limits: %w", err)
	}
	if perDayJSON != "" {
		if err := json.Unmarshal([]byte(perDayJSON), &l.PerDayGamingLimitMin); err != nil {
			return nil, fmt.Errorf("decode per-day limits: %w", err)
		}
	}
	if dailyTotal.Valid {
		v := int(dailyTotal.Int64)
		l.DailyTotalMin = &v
	}
	return &l, nil
}

// GetSchedule returns the raw 168-character schedule string for user, or
// an all-allowed grid if none is configured (spec 4.5: "a missing
// schedule is treated as all-allowed").
func (s *Store) GetSchedule(ctx context.Context, user string) (string, error) {
	l, err := s.GetLimits(ctx, user)
	if err != nil {
		return "", err
	}
	if l == nil || l.Schedule == "" {
		return allOnesSchedule(), nil
	}
	return l.Schedule, nil
}

// SetScheduleSlot flips a single hour-of-week slot for user.
func (s *Store) SetScheduleSlot(ctx context.Context, user string, slot int, allowed bool) error {
	if slot < 0 || slot >= 168 {
		return fmt.Errorf("%w: slot index must be 0-167", errkind.ScheduleMalformed)
	}
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var sched string
		err := tx.QueryRowContext(ctx, `SELECT schedule FROM limits WHERE user = ?`, user).Scan(&sched)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: user %s has no limits configured", errkind.ScheduleMalformed, user)
		}
		if err != nil {
			return fmt.Errorf("read schedule: %w", err)
		}
		b := []byte(sched)
		if allowed {
			b[slot] = '1'
		} else {
			b[slot] = '0'
		}
		if _, err := tx.ExecContext(ctx, `UPDATE limits SET schedule = ? WHERE user = ?`, string(b), user); err != nil {
			return fmt.Errorf("write schedule: %w", err)
		}
		return bumpEpoch(ctx, tx)
	})
}

// SetSchedule replaces the entire 168-character schedule for user
// atomically, used by schedule import (spec 6).
func (s *Store) SetSchedule(ctx context.Context, user, schedule string) error {
	if !domain.ValidateSchedule(schedule) {
		return fmt.Errorf("%w: schedule must be 168 characters of 0/1", errkind.ScheduleMalformed)
	}
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE limits SET schedule = ? WHERE user = ?`, schedule, user)
		if err != nil {
			return fmt.Errorf("write schedule: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: user %s not found", errkind.ScheduleMalformed, user)
		}
		return bumpEpoch(ctx, tx)
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
