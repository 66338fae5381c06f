// Package accountant implements the per-tick wall-clock time
// accumulation described in spec §4.4: gaming_time_sec and
// total_time_sec bookkeeping, plus the session open/seal transitions
// that ride on the same gaming-active edge.
package accountant

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/pkg/logger"
)

// GamingActivity is one currently-active gaming-category activity,
// identified by the pattern that classified it, used to open a
// Session when gaming transitions from inactive to active.
type GamingActivity struct {
	PatternID   int64
	ProjectHint string
}

// Store is the subset of the store the Accountant needs.
type Store interface {
	OpenSession(ctx context.Context, user string, patternID int64, startedAt time.Time, projectHint string) (*domain.Session, error)
	CloseSession(ctx context.Context, id string, endedAt time.Time, reason domain.EndReason) error
	OpenSessionsForUser(ctx context.Context, user string) ([]domain.Session, error)
}

// Accountant advances a DailySummary by one tick's worth of elapsed
// time, given the current tick's classified activity.
type Accountant struct {
	store      Store
	log        logger.Logger
	tickPeriod time.Duration
}

func New(store Store, log logger.Logger, tickPeriod time.Duration) *Accountant {
	return &Accountant{store: store, log: log, tickPeriod: tickPeriod}
}

// Tick advances summary in place for user at now, given whether any
// gaming-category activity is active this tick (isGamingActive, with
// the concrete activities in gamingActivities so sessions can be
// opened), whether any tracked category at all is active
// (anyTrackedActive, which feeds total_time_sec), and whether this
// tick's gaming stop was caused by enforcement (closedByEnforcement —
// governs the sealed session's end_reason).
func (a *Accountant) Tick(ctx context.Context, user string, summary *domain.DailySummary, now time.Time, isGamingActive, anyTrackedActive bool, gamingActivities []GamingActivity, closedByEnforcement bool) error {
	elapsed := now.Sub(summary.LastPollAt)
	if elapsed < 0 {
		elapsed = 0
	}
	clampCap := 2 * a.tickPeriod
	if elapsed > clampCap {
		a.log.Info("clamping elapsed time on suspend/resume", "user", user, "elapsed", elapsed, "cap", clampCap)
		elapsed = clampCap
	}

	wasGamingActive := summary.GamingActive
	wasTotalActive := summary.TotalActive

	switch {
	case wasGamingActive && isGamingActive:
		summary.GamingTimeSec += int64(elapsed.Seconds())

	case isGamingActive && !wasGamingActive:
		summary.GamingStartedAt = &now
		for _, ga := range gamingActivities {
			if _, err := a.store.OpenSession(ctx, user, ga.PatternID, now, ga.ProjectHint); err != nil {
				return fmt.Errorf("open session for %s: %w", user, err)
			}
		}

	case !isGamingActive && wasGamingActive:
		summary.GamingTimeSec += int64(elapsed.Seconds())
		reason := domain.EndReasonNatural
		if closedByEnforcement {
			reason = domain.EndReasonEnforced
		}
		open, err := a.store.OpenSessionsForUser(ctx, user)
		if err != nil {
			return fmt.Errorf("list open sessions for %s: %w", user, err)
		}
		for _, sess := range open {
			if err := a.store.CloseSession(ctx, sess.ID, now, reason); err != nil {
				return fmt.Errorf("seal session %s: %w", sess.ID, err)
			}
		}
		summary.GamingStartedAt = nil
	}

	summary.GamingActive = isGamingActive

	// Mirrors the gaming edge logic above: elapsed counts toward the
	// total only when tracked activity was already active entering this
	// tick (continuing or just-stopped), never on the rising edge.
	if wasTotalActive {
		summary.TotalTimeSec += int64(elapsed.Seconds())
	}
	summary.TotalActive = anyTrackedActive

	summary.LastPollAt = now
	return nil
}
