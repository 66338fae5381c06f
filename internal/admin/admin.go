// Package admin implements the Admin Surface (spec §4.10): operations
// on patterns, users, schedule, discovery queue, templates, and audit,
// transport-agnostic at this layer. Every write here runs through the
// Store, whose own transactions bump the change-epoch the Daemon Loop
// polls at the top of each tick.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aaronsb/screentimed/internal/config"
	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/internal/schedule"
	"github.com/aaronsb/screentimed/internal/store"
)

// Surface exposes every admin operation named in spec §4.10 as a plain
// Go method, independent of the HTTP transport in http.go.
type Surface struct {
	store *store.Store
}

func New(st *store.Store) *Surface {
	return &Surface{store: st}
}

func (s *Surface) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.GetUsers(ctx)
}

func (s *Surface) AddUser(ctx context.Context, u domain.User) error {
	return s.store.UpsertUser(ctx, u)
}

func (s *Surface) SetLimits(ctx context.Context, l domain.Limits) error {
	return s.store.SetLimits(ctx, l)
}

func (s *Surface) GetLimits(ctx context.Context, user string) (*domain.Limits, error) {
	return s.store.GetLimits(ctx, user)
}

func (s *Surface) ListPatterns(ctx context.Context, owner string) ([]domain.Pattern, error) {
	if owner == "" {
		return s.store.ListAllPatterns(ctx)
	}
	return s.store.ListPatterns(ctx, owner)
}

func (s *Surface) AddPattern(ctx context.Context, p domain.Pattern) (int64, error) {
	return s.store.InsertPattern(ctx, p)
}

func (s *Surface) SetPatternState(ctx context.Context, id int64, state domain.MonitorState) error {
	return s.store.SetPatternState(ctx, id, state)
}

func (s *Surface) ModifyPattern(ctx context.Context, id int64, category domain.Category, displayName string) error {
	return s.store.UpdatePatternDetails(ctx, id, category, displayName)
}

// GetSchedule returns the raw 168-char grid for user.
func (s *Surface) GetSchedule(ctx context.Context, user string) (string, error) {
	return s.store.GetSchedule(ctx, user)
}

// SetScheduleSlot flips one hour-of-week slot.
func (s *Surface) SetScheduleSlot(ctx context.Context, user string, slot int, allowed bool) error {
	return s.store.SetScheduleSlot(ctx, user, slot, allowed)
}

// ImportSchedule replaces user's entire 168-char grid, validating it
// first via the same rule the Schedule Oracle applies at read time.
func (s *Surface) ImportSchedule(ctx context.Context, user, grid string) error {
	if !domain.ValidateSchedule(grid) {
		return fmt.Errorf("schedule must be exactly 168 characters of '0'/'1'")
	}
	return s.store.SetSchedule(ctx, user, grid)
}

// ExportSchedule returns the grid alongside a slot-allowed preview for
// the given reference day, purely for CLI rendering convenience.
func (s *Surface) ExportSchedule(ctx context.Context, user string, reference time.Time) (grid string, allowedNow bool, err error) {
	grid, err = s.store.GetSchedule(ctx, user)
	if err != nil {
		return "", false, err
	}
	return grid, schedule.SlotAllowed(grid, reference), nil
}

func (s *Surface) ListDiscoveryCandidates(ctx context.Context) ([]domain.DiscoveryCandidate, error) {
	return s.store.ListDiscoveryCandidates(ctx)
}

// PromoteCandidate turns a pending discovery candidate into an active
// pattern.
func (s *Surface) PromoteCandidate(ctx context.Context, cand domain.DiscoveryCandidate, category domain.Category, displayName string) (int64, error) {
	id, err := s.store.PromoteDiscovery(ctx, cand, category, displayName)
	if err != nil {
		return 0, err
	}
	if err := s.store.SetPatternState(ctx, id, domain.MonitorStateActive); err != nil {
		return id, err
	}
	return id, nil
}

// IgnoreCandidate promotes a candidate straight to the ignored state
// so it stops accumulating samples without becoming an active rule.
func (s *Surface) IgnoreCandidate(ctx context.Context, cand domain.DiscoveryCandidate) (int64, error) {
	id, err := s.store.PromoteDiscovery(ctx, cand, domain.CategoryIgnored, cand.Key)
	if err != nil {
		return 0, err
	}
	if err := s.store.SetPatternState(ctx, id, domain.MonitorStateIgnored); err != nil {
		return id, err
	}
	return id, nil
}

func (s *Surface) ListTemplates(ctx context.Context) ([]domain.MessageTemplate, error) {
	return s.store.ListAllTemplates(ctx)
}

func (s *Surface) AddTemplate(ctx context.Context, t domain.MessageTemplate) (int64, error) {
	return s.store.InsertTemplate(ctx, t)
}

func (s *Surface) SetTemplateEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.store.SetTemplateEnabled(ctx, id, enabled)
}

// TestRenderTemplate renders intention's picked variant against vars
// without dispatching anything, for the CLI "message test" operation.
func (s *Surface) TestRenderTemplate(ctx context.Context, intention string, vars map[string]string) (title, body string, err error) {
	templates, err := s.store.ListTemplates(ctx, intention)
	if err != nil {
		return "", "", err
	}
	if len(templates) == 0 {
		return "", "", fmt.Errorf("no enabled template variants for intention %s", intention)
	}
	tmpl := templates[0]
	title, body = tmpl.Title, tmpl.Body
	for k, v := range vars {
		placeholder := "{{." + k + "}}"
		title = strings.ReplaceAll(title, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return title, body, nil
}

func (s *Surface) ListAudit(ctx context.Context, user string, limit int) ([]domain.AuditEntry, error) {
	return s.store.ListAudit(ctx, user, limit)
}

// UserStatus is the snapshot screentimectl's "status" command renders:
// today's accounting state alongside the limit and schedule that govern
// it right now.
type UserStatus struct {
	User        domain.User
	Limits      *domain.Limits
	Summary     *domain.DailySummary
	AllowedNow  bool
}

// Status reports today's enforcement snapshot for every enabled user,
// or for a single user when user is non-empty.
func (s *Surface) Status(ctx context.Context, user string, date string) ([]UserStatus, error) {
	users, err := s.store.GetUsers(ctx)
	if err != nil {
		return nil, err
	}

	var out []UserStatus
	for _, u := range users {
		if user != "" && u.Name != user {
			continue
		}
		if user == "" && !u.Enabled {
			continue
		}
		limits, err := s.store.GetLimits(ctx, u.Name)
		if err != nil {
			return nil, err
		}
		summary, err := s.store.LoadDailySummary(ctx, u.Name, date)
		if err != nil {
			return nil, err
		}
		grid, err := s.store.GetSchedule(ctx, u.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, UserStatus{
			User:       u,
			Limits:     limits,
			Summary:    summary,
			AllowedNow: schedule.SlotAllowed(grid, time.Now()),
		})
	}
	return out, nil
}

func (s *Surface) TriggerMaintenance(ctx context.Context, cfg config.DatabaseConfig) error {
	return s.store.Maintenance(ctx, cfg)
}
