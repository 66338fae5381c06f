package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/internal/errkind"
)

// ListPatterns returns every pattern owned by owner ("" for global
// patterns), ordered the way the Pattern Engine needs: active before
// discovered before ignored, then by priority, then by id (spec 4.2).
func (s *Store) ListPatterns(ctx context.Context, owner string) ([]domain.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern_type, pattern_regex, display_name, category, owner, monitor_state,
		       COALESCE(browser, ''), cpu_threshold, sample_window_sec, min_samples,
		       COALESCE(discovered_cmdline, ''), priority, created_at, updated_at
		FROM patterns
		WHERE owner = ?
		ORDER BY
			CASE monitor_state WHEN 'active' THEN 0 WHEN 'discovered' THEN 1 ELSE 2 END,
			priority ASC, id ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()
	return scanPatterns(rows)
}

// ListAllPatterns returns every pattern regardless of owner, for admin
// listing and for the Pattern Engine's cache rebuild.
func (s *Store) ListAllPatterns(ctx context.Context) ([]domain.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern_type, pattern_regex, display_name, category, owner, monitor_state,
		       COALESCE(browser, ''), cpu_threshold, sample_window_sec, min_samples,
		       COALESCE(discovered_cmdline, ''), priority, created_at, updated_at
		FROM patterns
		ORDER BY
			owner DESC, -- user-specific before global within active, handled by caller too
			CASE monitor_state WHEN 'active' THEN 0 WHEN 'discovered' THEN 1 ELSE 2 END,
			priority ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all patterns: %w", err)
	}
	defer rows.Close()
	return scanPatterns(rows)
}

func scanPatterns(rows *sql.Rows) ([]domain.Pattern, error) {
	var out []domain.Pattern
	for rows.Next() {
		var p domain.Pattern
		var cpu sql.NullFloat64
		var window, minSamples sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Type, &p.Regex, &p.DisplayName, &p.Category, &p.Owner,
			&p.MonitorState, &p.Browser, &cpu, &window, &minSamples, &p.DiscoveredCmdline,
			&p.Priority, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if cpu.Valid {
			v := cpu.Float64
			p.CPUThreshold = &v
		}
		if window.Valid {
			v := int(window.Int64)
			p.SampleWindowSec = &v
		}
		if minSamples.Valid {
			v := int(minSamples.Int64)
			p.MinSamples = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertPattern validates the regex compiles, then inserts the pattern.
// A regex that fails to compile is rejected (spec 7: PatternRegexInvalid).
func (s *Store) InsertPattern(ctx context.Context, p domain.Pattern) (int64, error) {
	if _, err := regexp.Compile(p.Regex); err != nil {
		return 0, fmt.Errorf("%w: %v", errkind.PatternRegexInvalid, err)
	}
	if p.MonitorState == "" {
		p.MonitorState = domain.MonitorStateActive
	}

	var id int64
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO patterns(pattern_type, pattern_regex, display_name, category, owner,
				monitor_state, browser, cpu_threshold, sample_window_sec, min_samples,
				discovered_cmdline, priority, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.Type, p.Regex, p.DisplayName, p.Category, p.Owner, p.MonitorState, p.Browser,
			nullableFloat(p.CPUThreshold), nullableInt(p.SampleWindowSec), nullableInt(p.MinSamples),
			p.DiscoveredCmdline, p.Priority, now, now)
		if err != nil {
			return fmt.Errorf("insert pattern: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		return bumpEpoch(ctx, tx)
	})
	return id, err
}

// SetPatternState flips a pattern's monitor_state (e.g. promoting to
// active, or retiring to ignored). Patterns are never deleted silently
// (spec 3): this is the only mutation path for lifecycle changes besides
// category/name edits.
func (s *Store) SetPatternState(ctx context.Context, id int64, state domain.MonitorState) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE patterns SET monitor_state = ?, updated_at = ? WHERE id = ?`,
			state, time.Now(), id)
		if err != nil {
			return fmt.Errorf("set pattern state: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: pattern %d not found", errkind.StoreConflict, id)
		}
		return bumpEpoch(ctx, tx)
	})
}

// UpdatePatternDetails edits a pattern's category and display name,
// leaving its regex, owner, and lifecycle state untouched.
func (s *Store) UpdatePatternDetails(ctx context.Context, id int64, category domain.Category, displayName string) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE patterns SET category = ?, display_name = ?, updated_at = ? WHERE id = ?`,
			category, displayName, time.Now(), id)
		if err != nil {
			return fmt.Errorf("update pattern: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: pattern %d not found", errkind.StoreConflict, id)
		}
		return bumpEpoch(ctx, tx)
	})
}

// RecordCandidateSample upserts a discovery candidate's sample count and
// accumulated runtime (spec 4.2: record_observation).
func (s *Store) RecordCandidateSample(ctx context.Context, owner string, patternType domain.PatternType, key string, runtimeDelta int64, at time.Time) (*domain.DiscoveryCandidate, error) {
	var cand domain.DiscoveryCandidate
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var firstSeen time.Time
		err := tx.QueryRowContext(ctx, `
			SELECT first_seen FROM discovery_candidates WHERE owner = ? AND pattern_type = ? AND key = ?
		`, owner, patternType, key).Scan(&firstSeen)

		if err == sql.ErrNoRows {
			firstSeen = at
			_, err = tx.ExecContext(ctx, `
				INSERT INTO discovery_candidates(owner, pattern_type, key, first_seen, last_seen, samples, accumulated_runtime_sec)
				VALUES (?, ?, ?, ?, ?, 1, ?)
			`, owner, patternType, key, firstSeen, at, runtimeDelta)
			if err != nil {
				return fmt.Errorf("insert candidate: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("read candidate: %w", err)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE discovery_candidates
				SET last_seen = ?, samples = samples + 1, accumulated_runtime_sec = accumulated_runtime_sec + ?
				WHERE owner = ? AND pattern_type = ? AND key = ?
			`, at, runtimeDelta, owner, patternType, key)
			if err != nil {
				return fmt.Errorf("update candidate: %w", err)
			}
		}

		return tx.QueryRowContext(ctx, `
			SELECT owner, pattern_type, key, first_seen, last_seen, samples, accumulated_runtime_sec
			FROM discovery_candidates WHERE owner = ? AND pattern_type = ? AND key = ?
		`, owner, patternType, key).Scan(&cand.Owner, &cand.PatternType, &cand.Key,
			&cand.FirstSeen, &cand.LastSeen, &cand.Samples, &cand.AccumulatedRuntimeSec)
	})
	if err != nil {
		return nil, err
	}
	return &cand, nil
}

// ListDiscoveryCandidates returns every pending candidate for the admin
// "discover list" operation.
func (s *Store) ListDiscoveryCandidates(ctx context.Context) ([]domain.DiscoveryCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, pattern_type, key, first_seen, last_seen, samples, accumulated_runtime_sec
		FROM discovery_candidates ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list discovery candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.DiscoveryCandidate
	for rows.Next() {
		var c domain.DiscoveryCandidate
		if err := rows.Scan(&c.Owner, &c.PatternType, &c.Key, &c.FirstSeen, &c.LastSeen, &c.Samples, &c.AccumulatedRuntimeSec); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PromoteDiscovery atomically creates a discovered pattern from a
// candidate and removes the candidate row (spec 4.2).
func (s *Store) PromoteDiscovery(ctx context.Context, cand domain.DiscoveryCandidate, category domain.Category, displayName string) (int64, error) {
	var id int64
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO patterns(pattern_type, pattern_regex, display_name, category, owner,
				monitor_state, discovered_cmdline, priority, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 'discovered', ?, 0, ?, ?)
		`, cand.PatternType, regexp.QuoteMeta(cand.Key), displayName, category, cand.Owner, cand.Key, now, now)
		if err != nil {
			return fmt.Errorf("insert discovered pattern: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM discovery_candidates WHERE owner = ? AND pattern_type = ? AND key = ?
		`, cand.Owner, cand.PatternType, cand.Key)
		if err != nil {
			return fmt.Errorf("clear candidate: %w", err)
		}
		return bumpEpoch(ctx, tx)
	})
	return id, err
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
