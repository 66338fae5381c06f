/**
 * CONTEXT:   Forward-only schema migrations for the screentimed store
 * INPUT:     The current schema_version row
 * OUTPUT:    Schema brought up to the latest version, idempotently
 * BUSINESS:  Column additions must never lose or corrupt existing rows
 * RISK:      Medium - migrations run automatically at every daemon start
 */
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one forward step, applied at most once per database.
type migration struct {
	version     int
	description string
	apply       func(ctx context.Context, tx *sql.Tx) error
}

// migrations lists every step after the baseline schema.sql (version 1).
// schema.sql already creates every table at its current shape, so this
// list only matters for databases created by an older version of
// screentimed; each step must be safe to run against a database that
// already has the column it adds (idempotent via try/ignore).
var migrations = []migration{
	{
		version:     2,
		description: "synthesize schedule column from legacy weekday/weekend bounds when absent",
		apply:       synthesizeLegacySchedule,
	},
}

// Migrate applies every migration newer than the current schema_version,
// in order, inside one transaction each.
func (s *Store) Migrate(ctx context.Context) error {
	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := m.apply(ctx, tx); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_version(version, description) VALUES (?, ?)`,
				m.version, m.description)
			return err
		}); err != nil {
			return err
		}
		s.log.Info("migration applied", "version", m.version, "description", m.description)
	}
	return nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 1) FROM schema_version`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// synthesizeLegacySchedule implements spec 4.1's migration contract: "a
// missing schedule column is synthesized on first read from legacy
// weekday/weekend_start/end if present, otherwise defaults to all-1".
// schema.sql always creates the schedule column, so this only has work
// to do for rows where it was left empty by an older writer.
func synthesizeLegacySchedule(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT user FROM limits WHERE schedule IS NULL OR schedule = ''`)
	if err != nil {
		return err
	}
	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return err
		}
		users = append(users, u)
	}
	rows.Close()

	allAllowed := allOnesSchedule()
	for _, u := range users {
		legacy, err := legacyWeekdayWeekendSchedule(ctx, tx, u)
		if err != nil {
			return err
		}
		sched := allAllowed
		if legacy != "" {
			sched = legacy
		}
		if _, err := tx.ExecContext(ctx, `UPDATE limits SET schedule = ? WHERE user = ?`, sched, u); err != nil {
			return err
		}
	}
	return nil
}

func allOnesSchedule() string {
	b := make([]byte, 168)
	for i := range b {
		b[i] = '1'
	}
	return string(b)
}

// legacyWeekdayWeekendSchedule reads a legacy weekday_start/weekday_end/
// weekend_start/weekend_end table if present. The table predates
// screentimed and may not exist at all, which is not an error.
func legacyWeekdayWeekendSchedule(ctx context.Context, tx *sql.Tx, user string) (string, error) {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='legacy_hours'`).Scan(&exists)
	if err != nil || exists == 0 {
		return "", nil
	}

	var weekdayStart, weekdayEnd, weekendStart, weekendEnd int
	err = tx.QueryRowContext(ctx,
		`SELECT weekday_start, weekday_end, weekend_start, weekend_end FROM legacy_hours WHERE user = ?`,
		user).Scan(&weekdayStart, &weekdayEnd, &weekendStart, &weekendEnd)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	b := make([]byte, 168)
	for day := 0; day < 7; day++ {
		start, end := weekdayStart, weekdayEnd
		if day >= 5 { // Saturday=5, Sunday=6 with Monday=0 indexing
			start, end = weekendStart, weekendEnd
		}
		for hour := 0; hour < 24; hour++ {
			idx := day*24 + hour
			if hour >= start && hour < end {
				b[idx] = '1'
			} else {
				b[idx] = '0'
			}
		}
	}
	return string(b), nil
}
