// Package schedule implements the weekly allow/deny grid that decides
// whether a user may be actively gaming at a given instant.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronsb/screentimed/internal/domain"
)

// Store is the subset of the store the Oracle needs.
type Store interface {
	GetSchedule(ctx context.Context, user string) (string, error)
}

// Oracle answers is_allowed queries against the 168-slot weekly grid
// (spec §4.5). It caches nothing itself — the Daemon Loop's own
// change-epoch invalidation covers it, since GetSchedule always reads
// through to the store.
type Oracle struct {
	store Store
}

func New(store Store) *Oracle {
	return &Oracle{store: store}
}

// IsAllowed reports whether user may be gaming at instant, per
// schedule[weekday*24+hour] where weekday is Monday-indexed (Monday=0)
// to match the grid's storage layout. A missing schedule is treated
// as all-allowed (spec §4.5).
func (o *Oracle) IsAllowed(ctx context.Context, user string, instant time.Time) (bool, error) {
	grid, err := o.store.GetSchedule(ctx, user)
	if err != nil {
		return false, fmt.Errorf("load schedule for %s: %w", user, err)
	}
	return SlotAllowed(grid, instant), nil
}

// SlotAllowed evaluates a raw 168-character grid directly, without a
// store round-trip — used by the admin surface for the allowed-now
// preview in schedule export and status snapshots.
func SlotAllowed(grid string, instant time.Time) bool {
	if !domain.ValidateSchedule(grid) {
		return true
	}
	slot := Slot(instant)
	return grid[slot] == '1'
}

// Slot maps an instant to its 0-167 index in the weekly grid,
// Monday*24+hour.
func Slot(instant time.Time) int {
	weekday := (int(instant.Weekday()) + 6) % 7 // time.Sunday==0 -> Monday==0
	return weekday*24 + instant.Hour()
}
