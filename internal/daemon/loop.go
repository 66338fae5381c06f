// Package daemon wires the Store, Pattern Engine, detection workers,
// Time Accountant, Schedule Oracle, Enforcement Kernel, Message
// Router, and Notification Dispatcher into the single-threaded
// cooperative polling loop described in spec §4.9 and §5.
package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aaronsb/screentimed/internal/accountant"
	"github.com/aaronsb/screentimed/internal/config"
	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/internal/kernel"
	"github.com/aaronsb/screentimed/internal/patterns"
	"github.com/aaronsb/screentimed/internal/router"
	"github.com/aaronsb/screentimed/internal/schedule"
	"github.com/aaronsb/screentimed/internal/store"
	"github.com/aaronsb/screentimed/internal/workers"
	"github.com/aaronsb/screentimed/pkg/events"
	"github.com/aaronsb/screentimed/pkg/logger"
)

// Loop is the daemon's tick-driven core. It owns the in-memory caches
// (compiled pattern set, per-user state snapshot) that admin writes
// invalidate via the Store's change-epoch counter.
type Loop struct {
	cfg     *config.DaemonConfig
	store   *store.Store
	engine  *patterns.Engine
	oracle  *schedule.Oracle
	account *accountant.Accountant
	kernel  *kernel.Kernel
	router  *router.Router
	workers []workers.Worker
	log     logger.Logger

	mu              sync.Mutex
	lastEpoch       int64
	cronSched       *cron.Cron
	priorGamingPIDs map[string]map[int]struct{} // user -> gaming PIDs seen on the previous tick
	lastDayKey      map[string]string           // user -> dayKey bucket seen on the previous tick
}

// New assembles a Loop from its already-constructed collaborators.
func New(cfg *config.DaemonConfig, st *store.Store, engine *patterns.Engine, oracle *schedule.Oracle,
	acct *accountant.Accountant, k *kernel.Kernel, r *router.Router, ws []workers.Worker, log logger.Logger) *Loop {
	return &Loop{
		cfg: cfg, store: st, engine: engine, oracle: oracle,
		account: acct, kernel: k, router: r, workers: ws, log: log,
		priorGamingPIDs: make(map[string]map[int]struct{}),
		lastDayKey:      make(map[string]string),
	}
}

// Run blocks, ticking on cfg.PollInterval until ctx is cancelled. On
// return, every still-open session is sealed with end_reason=unknown
// (spec §5: shutdown seals in-flight sessions).
func (l *Loop) Run(ctx context.Context) error {
	if err := l.engine.Reload(ctx); err != nil {
		return err
	}
	epoch, err := l.store.ChangeEpoch(ctx)
	if err != nil {
		return err
	}
	l.lastEpoch = epoch

	l.cronSched = cron.New()
	if _, err := l.cronSched.AddFunc("@daily", func() {
		if err := l.store.Maintenance(context.Background(), l.cfg.Database); err != nil {
			l.log.Warn("maintenance failed", "error", err)
		}
	}); err != nil {
		return err
	}
	l.cronSched.Start()
	defer l.cronSched.Stop()

	ticker := time.NewTicker(l.cfg.PollInterval())
	defer ticker.Stop()

	l.log.Info("daemon loop started", "poll_interval", l.cfg.PollInterval())

	for {
		select {
		case <-ctx.Done():
			l.sealAllOnShutdown(context.Background())
			return nil
		case <-ticker.C:
			if err := l.tick(ctx); err != nil {
				l.log.Warn("tick failed", "error", err)
			}
		}
	}
}

// tick runs one full pass: refresh caches if the change-epoch moved,
// then process every enabled user.
func (l *Loop) tick(ctx context.Context) error {
	now := time.Now()

	epoch, err := l.store.ChangeEpoch(ctx)
	if err != nil {
		return err
	}
	if epoch != l.lastEpoch {
		if err := l.engine.Reload(ctx); err != nil {
			l.log.Warn("pattern reload failed", "error", err)
		} else {
			l.lastEpoch = epoch
		}
	}

	users, err := l.store.GetUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if !u.Enabled {
			continue
		}
		if err := l.tickUser(ctx, u, now); err != nil {
			l.log.Warn("tick user failed", "user", u.Name, "error", err)
		}
	}
	return nil
}

func (l *Loop) tickUser(ctx context.Context, user domain.User, now time.Time) error {
	activities := workers.ScanAll(ctx, user, l.workers, func(worker string, err error) {
		l.log.Warn("worker scan failed", "worker", worker, "user", user.Name, "error", err)
	})

	var classified []kernel.Classified
	var gamingActivities []accountant.GamingActivity
	var anyTracked, gamingActive bool

	for _, act := range activities {
		match, ok := l.engine.Classify(user.Name, act.Key)
		if !ok {
			if err := l.engine.RecordObservation(ctx, user.Name, inferPatternType(act), act.Key, int64(l.cfg.PollInterval().Seconds()), domain.CategoryGaming, now); err != nil {
				l.log.Warn("record observation failed", "user", user.Name, "key", act.Key, "error", err)
			}
			continue
		}
		if match.Category == domain.CategoryIgnored {
			continue
		}
		anyTracked = true
		c := kernel.Classified{PID: act.PID, Key: act.Key, PatternID: match.Pattern.ID, Category: match.Category, Owner: match.Pattern.Owner}
		classified = append(classified, c)
		if match.Category == domain.CategoryGaming {
			gamingActive = true
			hint := act.Metadata["project_hint"]
			gamingActivities = append(gamingActivities, accountant.GamingActivity{PatternID: match.Pattern.ID, ProjectHint: hint})
		}
	}

	date := dayKey(now, l.cfg.Daemon.ResetHour)
	rolledOver := l.noteDayRollover(user.Name, date)

	summary, err := l.store.LoadDailySummary(ctx, user.Name, date)
	if err != nil {
		return err
	}
	if summary == nil {
		summary = &domain.DailySummary{User: user.Name, Date: date, State: domain.StateAvailable, LastPollAt: now, LastStateChange: now}
	}

	if rolledOver {
		if err := l.router.Route(ctx, *events.NewEvent(events.IntentionDayReset, user.Name, now)); err != nil {
			l.log.Warn("route day_reset failed", "user", user.Name, "error", err)
		}
	}

	allowed, err := l.oracle.IsAllowed(ctx, user.Name, now)
	if err != nil {
		return err
	}

	limits, err := l.store.GetLimits(ctx, user.Name)
	limitMin := 0
	if err == nil && limits != nil {
		limitMin = limits.EffectiveGamingLimitMin((int(now.Weekday()) + 6) % 7)
	}

	wasEnforcingOrOutside := summary.State == domain.StateEnforcing || summary.State == domain.StateOutsideHours

	if wasEnforcingOrOutside {
		if err := l.blockNewGamingLaunches(ctx, user.Name, now, classified); err != nil {
			l.log.Warn("blocked launch failed", "user", user.Name, "error", err)
		}
	}
	l.rememberGamingPIDs(user.Name, classified)

	if err := l.account.Tick(ctx, user.Name, summary, now, gamingActive, anyTracked, gamingActivities, wasEnforcingOrOutside); err != nil {
		return err
	}

	res, err := l.kernel.Tick(ctx, user.Name, summary, now, allowed, gamingActive, limitMin, classified)
	if err != nil {
		return err
	}

	if err := l.store.SaveDailySummary(ctx, *summary); err != nil {
		return err
	}

	for _, ev := range res.Events {
		if err := l.router.Route(ctx, ev); err != nil {
			l.log.Warn("route event failed", "user", user.Name, "intention", ev.Intention, "error", err)
		}
	}
	return nil
}

// blockNewGamingLaunches fires blocked_launch for every gaming PID that
// is present this tick but was not present on the previous tick, since
// the user is already ENFORCING or OUTSIDE_HOURS (spec §4.6: "a
// tracked gaming process started while the user is in ENFORCING/
// OUTSIDE_HOURS fires a blocked_launch event and is immediately
// killed"). Re-entrant processes already known from the prior tick are
// left to the ordinary kill-escalation path in kernel.Tick. In
// passthrough mode nothing is fired or killed here.
func (l *Loop) blockNewGamingLaunches(ctx context.Context, user string, now time.Time, classified []kernel.Classified) error {
	if l.cfg.Daemon.Mode == config.ModePassthrough {
		return nil
	}
	prior := l.priorGamingPIDs[user]
	for _, c := range classified {
		if c.Category != domain.CategoryGaming {
			continue
		}
		if _, seen := prior[c.PID]; seen {
			continue
		}
		ev, err := l.kernel.BlockedLaunch(ctx, user, now, c)
		if err != nil {
			return err
		}
		if err := l.router.Route(ctx, ev); err != nil {
			l.log.Warn("route blocked_launch failed", "user", user, "error", err)
		}
	}
	return nil
}

// rememberGamingPIDs records this tick's gaming PIDs as the baseline
// blockNewGamingLaunches diffs the next tick against.
func (l *Loop) rememberGamingPIDs(user string, classified []kernel.Classified) {
	current := make(map[int]struct{})
	for _, c := range classified {
		if c.Category == domain.CategoryGaming {
			current[c.PID] = struct{}{}
		}
	}
	l.priorGamingPIDs[user] = current
}

func inferPatternType(act domain.DetectedActivity) domain.PatternType {
	if act.PID != 0 {
		return domain.PatternTypeProcess
	}
	return domain.PatternTypeBrowserDomain
}

// dayKey computes the YYYY-MM-DD bucket an instant belongs to, local
// to resetHour: a tick before resetHour still belongs to the previous
// calendar day's bucket.
func dayKey(t time.Time, resetHour int) string {
	if t.Hour() < resetHour {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format("2006-01-02")
}

// noteDayRollover reports whether date is a new bucket for user
// compared to the bucket last observed for them, and records date as
// the new baseline. The first tick ever seen for a user never counts
// as a rollover, since there is no prior bucket to reset from.
func (l *Loop) noteDayRollover(user, date string) bool {
	prev, seen := l.lastDayKey[user]
	l.lastDayKey[user] = date
	return seen && prev != date
}

func (l *Loop) sealAllOnShutdown(ctx context.Context) {
	sessions, err := l.store.AllOpenSessions(ctx)
	if err != nil {
		l.log.Warn("list open sessions on shutdown failed", "error", err)
		return
	}
	now := time.Now()
	for _, s := range sessions {
		if err := l.store.CloseSession(ctx, s.ID, now, domain.EndReasonUnknown); err != nil {
			l.log.Warn("seal session on shutdown failed", "session", s.ID, "error", err)
		}
	}
	l.log.Info("sealed open sessions on shutdown", "count", len(sessions))
}
