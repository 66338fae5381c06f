package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/pkg/events"
)

// ListTemplates returns the enabled variants for intention, ordered by
// id so callers get deterministic round-robin/first-match behavior.
func (s *Store) ListTemplates(ctx context.Context, intention string) ([]domain.MessageTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intention, variant, title, body, COALESCE(icon, ''), urgency, enabled
		FROM message_templates WHERE intention = ? AND enabled = 1 ORDER BY id
	`, intention)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.MessageTemplate
	for rows.Next() {
		var t domain.MessageTemplate
		var enabled int
		if err := rows.Scan(&t.ID, &t.Intention, &t.Variant, &t.Title, &t.Body, &t.Icon, &t.Urgency, &enabled); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.Enabled = enabled != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAllTemplates returns every template regardless of enabled state,
// for the admin "message list" operation.
func (s *Store) ListAllTemplates(ctx context.Context) ([]domain.MessageTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intention, variant, title, body, COALESCE(icon, ''), urgency, enabled
		FROM message_templates ORDER BY intention, variant
	`)
	if err != nil {
		return nil, fmt.Errorf("list all templates: %w", err)
	}
	defer rows.Close()

	var out []domain.MessageTemplate
	for rows.Next() {
		var t domain.MessageTemplate
		var enabled int
		if err := rows.Scan(&t.ID, &t.Intention, &t.Variant, &t.Title, &t.Body, &t.Icon, &t.Urgency, &enabled); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.Enabled = enabled != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTemplate adds a new variant for an intention, used by "message
// add" and by SeedDefaultTemplates.
func (s *Store) InsertTemplate(ctx context.Context, t domain.MessageTemplate) (int64, error) {
	var id int64
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO message_templates(intention, variant, title, body, icon, urgency, enabled)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(intention, variant) DO UPDATE SET
				title = excluded.title, body = excluded.body, icon = excluded.icon,
				urgency = excluded.urgency, enabled = excluded.enabled
		`, t.Intention, t.Variant, t.Title, t.Body, t.Icon, int(t.Urgency), boolToInt(t.Enabled))
		if err != nil {
			return fmt.Errorf("insert template: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		return bumpEpoch(ctx, tx)
	})
	return id, err
}

// SetTemplateEnabled toggles a template's enabled flag.
func (s *Store) SetTemplateEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE message_templates SET enabled = ? WHERE id = ?`, boolToInt(enabled), id); err != nil {
			return fmt.Errorf("set template enabled: %w", err)
		}
		return bumpEpoch(ctx, tx)
	})
}

// defaultTemplate is the seed body/title pair for one (intention, variant).
type defaultTemplate struct {
	intention string
	variant   string
	title     string
	body      string
	icon      string
	urgency   domain.Urgency
}

// defaultTemplates holds exactly one enabled "default" variant per
// Intention, satisfying the invariant that at least one enabled variant
// exists for every intention at first start (spec §3).
var defaultTemplates = []defaultTemplate{
	{string(events.IntentionTimeWarning30), "default", "30 minutes left",
		"{{.user}} has about 30 minutes of gaming time remaining today.", "dialog-information", domain.UrgencyNormal},
	{string(events.IntentionTimeWarning15), "default", "15 minutes left",
		"{{.user}} has about 15 minutes of gaming time remaining today.", "dialog-information", domain.UrgencyNormal},
	{string(events.IntentionTimeWarning5), "default", "5 minutes left",
		"{{.user}}, 5 minutes of gaming time remain. Wrap it up.", "dialog-warning", domain.UrgencyNormal},
	{string(events.IntentionTimeExpired), "default", "Time's up",
		"{{.process}} is closing — today's gaming time is used up.", "dialog-warning", domain.UrgencyCritical},
	{string(events.IntentionEnforcement), "default", "Closing application",
		"{{.process}} was closed: {{.category}} limit reached.", "dialog-warning", domain.UrgencyCritical},
	{string(events.IntentionOutsideHours), "default", "Outside allowed hours",
		"{{.process}} is not allowed right now on {{.day}}.", "dialog-warning", domain.UrgencyCritical},
	{string(events.IntentionBlockedLaunch), "default", "Blocked",
		"{{.process}} can't start — no gaming time left today.", "dialog-error", domain.UrgencyCritical},
	{string(events.IntentionDayReset), "default", "New day, fresh time",
		"{{.user}}'s gaming time has reset for {{.day}}.", "dialog-information", domain.UrgencyLow},
}

// SeedDefaultTemplates ensures every intention has at least one enabled
// variant, inserting the built-in default wherever no row exists yet.
// Called once by Store.initialize() after migrations run.
func (s *Store) SeedDefaultTemplates(ctx context.Context) error {
	for _, d := range defaultTemplates {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM message_templates WHERE intention = ? AND enabled = 1`, d.intention,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check templates for %s: %w", d.intention, err)
		}
		if exists > 0 {
			continue
		}
		_, err = s.InsertTemplate(ctx, domain.MessageTemplate{
			Intention: d.intention,
			Variant:   d.variant,
			Title:     d.title,
			Body:      d.body,
			Icon:      d.icon,
			Urgency:   d.urgency,
			Enabled:   true,
		})
		if err != nil {
			return fmt.Errorf("seed template for %s: %w", d.intention, err)
		}
	}
	return nil
}
