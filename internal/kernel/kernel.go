// Package kernel implements the tick-driven enforcement state machine:
// AVAILABLE, GRACE, ENFORCING, OUTSIDE_HOURS, their transition
// priority, the kill protocol, and event emission.
package kernel

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/pkg/events"
	"github.com/aaronsb/screentimed/pkg/logger"
)

// Classified is one activity already resolved to a pattern/category by
// the Pattern Engine, carrying enough identity to kill it if needed.
type Classified struct {
	PID       int
	Key       string
	PatternID int64
	Category  domain.Category
	Owner     string // pattern owner: "" for global, else the user name
}

// Store is the subset of the store the Kernel needs.
type Store interface {
	AppendAudit(ctx context.Context, a domain.AuditEntry) error
}

// Mode selects passthrough behavior.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModePassthrough Mode = "passthrough"
)

// Kernel runs the per-user, per-tick enforcement state machine.
type Kernel struct {
	store        Store
	log          logger.Logger
	mode         Mode
	gracePeriod  time.Duration
	resetHour    int
	warningMins  []int
	killer       Killer
	killStage    map[int]string // pid -> "terminated" once SIGTERM has been sent and we're waiting one tick
}

// Killer sends the escalating termination signal sequence to a
// process group. Abstracted so tests can substitute a no-op.
type Killer interface {
	Terminate(pid int) error
	Kill(pid int) error
	StillAlive(pid int) bool
}

// New constructs a Kernel. warningMins is stored on the Kernel but does
// not change which warnings fire: warningEvents checks the fixed
// 30/15/5-minute thresholds recorded by the summary's Warned30/15/5 flags.
func New(store Store, log logger.Logger, mode Mode, gracePeriod time.Duration, resetHour int, warningMins []int, killer Killer) *Kernel {
	return &Kernel{store: store, log: log, mode: mode, gracePeriod: gracePeriod, resetHour: resetHour, warningMins: warningMins, killer: killer, killStage: make(map[int]string)}
}

// Result is what one Tick call produces: any events to route and
// whether a gaming PID was signalled this tick. Tick updates the
// summary it is given in place.
type Result struct {
	Events  []events.Event
	Killed  bool // true if any gaming PID was terminated or attempted this tick
}

// Tick runs one user's state machine transition. now is the tick's
// wall-clock snapshot; allowed is the Schedule Oracle's verdict for
// now; gamingActive reports whether any gaming-category activity is
// currently present; limitMin is the effective daily limit in minutes
// for today; activities are every currently classified, non-ignored
// activity for this user (global and user-owned patterns both count,
// per spec §4.6 "owned by the user directly or globally").
func (k *Kernel) Tick(ctx context.Context, user string, summary *domain.DailySummary, now time.Time, allowed bool, gamingActive bool, limitMin int, activities []Classified) (Result, error) {
	var res Result

	// The Daemon Loop buckets summaries by dayKey(now, resetHour) before
	// Tick ever sees them, so summary.Date always already matches the
	// current bucket here; the Loop detects the bucket change itself
	// and emits day_reset (spec §4.6 "day rollover"). This only fills
	// in Date for a caller that hands Tick a bare zero-value summary.
	if summary.Date == "" {
		summary.Date = now.Format("2006-01-02")
	}

	// Priority 1: outside allowed hours while gaming active.
	if !allowed && gamingActive {
		entering := summary.State != domain.StateOutsideHours
		summary.State = domain.StateOutsideHours
		if entering {
			res.Events = append(res.Events, events.NewEvent(events.IntentionOutsideHours, user, now))
		}
		killed, err := k.killGaming(ctx, user, now, activities, "outside_hours")
		if err != nil {
			return res, err
		}
		res.Killed = killed
		return res, nil
	}

	effectiveLimitSec := int64(limitMin) * 60

	// Priority 2: time budget exhaustion / grace / enforcement.
	switch summary.State {
	case domain.StateAvailable:
		if summary.GamingTimeSec >= effectiveLimitSec {
			summary.State = domain.StateGrace
			t := now
			summary.GraceStartedAt = &t
			res.Events = append(res.Events, events.NewEvent(events.IntentionTimeExpired, user, now))
			return res, nil
		}

	case domain.StateGrace:
		if !gamingActive {
			summary.State = domain.StateAvailable
			summary.GraceStartedAt = nil
			return res, nil
		}
		if summary.GraceStartedAt != nil && now.Sub(*summary.GraceStartedAt) >= k.gracePeriod {
			summary.State = domain.StateEnforcing
			res.Events = append(res.Events, events.NewEvent(events.IntentionEnforcement, user, now))
			killed, err := k.killGaming(ctx, user, now, activities, "enforcement")
			if err != nil {
				return res, err
			}
			res.Killed = killed
		}
		return res, nil

	case domain.StateEnforcing:
		if gamingActive {
			killed, err := k.killGaming(ctx, user, now, activities, "enforcement")
			if err != nil {
				return res, err
			}
			res.Killed = killed
		} else if summary.GamingTimeSec < effectiveLimitSec {
			summary.State = domain.StateAvailable
		}
		return res, nil
	}

	// Priority 4: AVAILABLE, emit warnings.
	summary.State = domain.StateAvailable
	if gamingActive {
		minutesLeft := int((effectiveLimitSec - summary.GamingTimeSec) / 60)
		res.Events = append(res.Events, k.warningEvents(user, now, minutesLeft, summary)...)
	}
	return res, nil
}

// warningEvents emits the time_warning_{N} events whose flag is unset
// and whose threshold has been crossed, in descending N order, setting
// the flag atomically with the emission (spec §4.6).
func (k *Kernel) warningEvents(user string, now time.Time, minutesLeft int, summary *domain.DailySummary) []events.Event {
	var out []events.Event
	check := func(threshold int, flag *bool, intention events.Intention) {
		if *flag || minutesLeft > threshold {
			return
		}
		*flag = true
		out = append(out, *events.NewEvent(intention, user, now).WithVar(events.VarTimeLeft, fmt.Sprintf("%d", minutesLeft)))
	}
	check(30, &summary.Warned30, events.IntentionTimeWarning30)
	check(15, &summary.Warned15, events.IntentionTimeWarning15)
	check(5, &summary.Warned5, events.IntentionTimeWarning5)
	return out
}

// killGaming applies the kill protocol to every currently classified
// gaming-category activity owned by user (directly or globally).
// Launcher-category activities are tracked but never killed. In
// passthrough mode the kernel still computes state and events but
// skips the actual signal delivery.
//
// Escalation spans two ticks: the first tick a PID is seen here sends
// SIGTERM and records "terminated"; the next tick, if the PID is still
// alive, escalates to SIGKILL (spec §4.6: "wait one tick; if still
// present, escalate"). Each attempt appends its own AuditEntry.
func (k *Kernel) killGaming(ctx context.Context, user string, now time.Time, activities []Classified, reason string) (bool, error) {
	seen := make(map[int]struct{}, len(activities))
	var killedAny bool

	for _, a := range activities {
		if a.Category != domain.CategoryGaming {
			continue
		}
		if a.Owner != "" && a.Owner != user {
			continue
		}
		if k.mode == ModePassthrough {
			continue
		}
		seen[a.PID] = struct{}{}
		killedAny = true

		stage := k.killStage[a.PID]
		switch stage {
		case "terminated":
			if k.killer.StillAlive(a.PID) {
				if err := k.killer.Kill(a.PID); err != nil {
					k.log.Warn("kill failed", "pid", a.PID, "error", err)
				}
				exitObserved := !k.killer.StillAlive(a.PID)
				k.auditKill(ctx, user, now, a, reason, "SIGKILL", int(unix.SIGKILL), exitObserved)
				if exitObserved {
					delete(k.killStage, a.PID)
				} else {
					k.killStage[a.PID] = "killed"
				}
			} else {
				delete(k.killStage, a.PID)
			}
		case "killed":
			// already escalated; nothing further to send this protocol covers.
		default:
			if err := k.killer.Terminate(a.PID); err != nil {
				k.log.Warn("terminate failed", "pid", a.PID, "error", err)
			}
			exitObserved := !k.killer.StillAlive(a.PID)
			k.auditKill(ctx, user, now, a, reason, "SIGTERM", int(unix.SIGTERM), exitObserved)
			if exitObserved {
				delete(k.killStage, a.PID)
			} else {
				k.killStage[a.PID] = "terminated"
			}
		}
	}

	for pid := range k.killStage {
		if _, stillTracked := seen[pid]; !stillTracked {
			delete(k.killStage, pid)
		}
	}

	return killedAny, nil
}

func (k *Kernel) auditKill(ctx context.Context, user string, now time.Time, a Classified, reason, signalName string, signalSent int, exitObserved bool) {
	if err := k.store.AppendAudit(ctx, domain.AuditEntry{
		Timestamp:    now,
		User:         user,
		PID:          a.PID,
		ProcessName:  a.Key,
		PatternID:    a.PatternID,
		Reason:       reason,
		SignalSent:   signalSent,
		SignalName:   signalName,
		ExitObserved: exitObserved,
	}); err != nil {
		k.log.Warn("append audit failed", "pid", a.PID, "error", err)
	}
}

// BlockedLaunch handles a tracked gaming activity that starts while
// the user is already ENFORCING or OUTSIDE_HOURS: it fires a
// blocked_launch event and kills the activity immediately (spec §4.6).
// In passthrough mode it returns the event without killing; the Daemon
// Loop does not call it at all in that mode.
func (k *Kernel) BlockedLaunch(ctx context.Context, user string, now time.Time, activity Classified) (events.Event, error) {
	ev := events.NewEvent(events.IntentionBlockedLaunch, user, now).WithVar(events.VarProcess, activity.Key)
	if k.mode == ModePassthrough {
		return *ev, nil
	}
	if _, err := k.killGaming(ctx, user, now, []Classified{activity}, "blocked_launch"); err != nil {
		return *ev, fmt.Errorf("blocked launch kill for %s: %w", user, err)
	}
	return *ev, nil
}
