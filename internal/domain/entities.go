// Package domain holds the persistent entities and enumerations described
// in the data model: users, limits, patterns, discovery candidates, daily
// summaries, sessions, audit entries, and message templates/log rows. It
// has no dependency on the store or any detection worker — it is pure
// data plus the small validation/helper methods that do not require
// external state.
package domain

import "time"

// Category classifies a Pattern. Only Gaming counts against the gaming
// budget and is subject to termination.
type Category string

const (
	CategoryGaming      Category = "gaming"
	CategoryEducational Category = "educational"
	CategorySocial      Category = "social"
	CategoryLauncher    Category = "launcher"
	CategoryIgnored     Category = "ignored"
)

// PatternType is the kind of activity key a Pattern's regex matches
// against.
type PatternType string

const (
	PatternTypeProcess      PatternType = "process"
	PatternTypeBrowserDomain PatternType = "browser_domain"
)

// MonitorState controls whether a Pattern participates in enforcement
// matching. Discovered and Ignored patterns never match during
// enforcement; only Active does.
type MonitorState string

const (
	MonitorStateActive     MonitorState = "active"
	MonitorStateDiscovered MonitorState = "discovered"
	MonitorStateIgnored    MonitorState = "ignored"
)

// KernelState is one of the four enforcement kernel states.
type KernelState string

const (
	StateAvailable    KernelState = "AVAILABLE"
	StateGrace        KernelState = "GRACE"
	StateEnforcing    KernelState = "ENFORCING"
	StateOutsideHours KernelState = "OUTSIDE_HOURS"
)

// EndReason explains why a Session was sealed.
type EndReason string

const (
	EndReasonNatural  EndReason = "natural"
	EndReasonEnforced EndReason = "enforced"
	EndReasonLogout   EndReason = "logout"
	EndReasonUnknown  EndReason = "unknown"
)

// Urgency maps to the freedesktop notification urgency levels
// (low=0, normal=1, critical=2 per spec §6).
type Urgency int

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// User is a monitored system account. A user is monitored only if Enabled
// and SystemUID resolves to a real account (checked by the caller, not
// this type).
type User struct {
	Name      string
	SystemUID int
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Limits is 1:1 with User. PerDayGamingLimitMin holds an optional
// override for each of the seven weekdays (Monday=0); a nil entry falls
// back to GamingLimitMin.
type Limits struct {
	User               string
	GamingLimitMin     int
	PerDayGamingLimitMin [7]*int
	DailyTotalMin      *int
	GracePeriodSec     int
	Schedule           string // 168 chars of '0'/'1', Monday*24+hour indexed
}

// EffectiveGamingLimitMin returns the limit in minutes that applies on
// weekday (time.Monday == 0 here, matching the schedule's Monday=0
// indexing rather than Go's time.Weekday Sunday=0).
func (l *Limits) EffectiveGamingLimitMin(weekday int) int {
	if weekday >= 0 && weekday < 7 && l.PerDayGamingLimitMin[weekday] != nil {
		return *l.PerDayGamingLimitMin[weekday]
	}
	return l.GamingLimitMin
}

// ValidateSchedule reports whether s is a well-formed 168-character
// allow/deny grid.
func ValidateSchedule(s string) bool {
	if len(s) != 168 {
		return false
	}
	for _, c := range s {
		if c != '0' && c != '1' {
			return false
		}
	}
	return true
}

// Pattern is an ordered classification rule.
type Pattern struct {
	ID               int64
	Type             PatternType
	Regex            string
	DisplayName      string
	Category         Category
	Owner            string // user name, or "" for global
	MonitorState     MonitorState
	Browser          string // set when Type == PatternTypeBrowserDomain
	CPUThreshold     *float64
	SampleWindowSec  *int
	MinSamples       *int
	DiscoveredCmdline string
	Priority         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsGlobal reports whether the pattern applies to every user.
func (p *Pattern) IsGlobal() bool { return p.Owner == "" }

// ParticipatesInEnforcement reports whether this pattern is eligible to
// win a classification match during enforcement (spec §4.2: discovered
// and ignored patterns never participate).
func (p *Pattern) ParticipatesInEnforcement() bool {
	return p.MonitorState == MonitorStateActive
}

// DiscoveryCandidate tracks an unclassified activity on its way to
// becoming a discovered Pattern.
type DiscoveryCandidate struct {
	Owner                string
	PatternType          PatternType
	Key                  string
	FirstSeen            time.Time
	LastSeen             time.Time
	Samples              int
	AccumulatedRuntimeSec int64
}

// ReadyForPromotion reports whether the candidate has accrued enough
// samples within the configured sample window to become a Pattern.
func (d *DiscoveryCandidate) ReadyForPromotion(minSamples, sampleWindowSec int) bool {
	if d.Samples < minSamples {
		return false
	}
	window := d.LastSeen.Sub(d.FirstSeen)
	return window <= time.Duration(sampleWindowSec)*time.Second
}

// DailySummary is the per-(user,date) accounting row the kernel owns
// exclusively.
type DailySummary struct {
	User             string
	Date             string // YYYY-MM-DD, local to reset_hour rollover
	State            KernelState
	GamingActive     bool
	TotalActive      bool
	GamingTimeSec    int64
	TotalTimeSec     int64
	GamingStartedAt  *time.Time
	GraceStartedAt   *time.Time
	LastPollAt       time.Time
	Warned30         bool
	Warned15         bool
	Warned5          bool
	LastStateChange  time.Time
}

// Session is one contiguous run of a tracked activity.
type Session struct {
	ID          string
	User        string
	PatternID   int64
	StartedAt   time.Time
	EndedAt     *time.Time
	DurationSec *int64
	EndReason   EndReason
	ProjectHint string
}

// Seal closes the session at `at` with the given reason, computing
// DurationSec per the invariant ended_at set => duration_sec =
// ended_at - started_at.
func (s *Session) Seal(at time.Time, reason EndReason) {
	s.EndedAt = &at
	s.EndReason = reason
	d := int64(at.Sub(s.StartedAt).Seconds())
	if d < 0 {
		d = 0
	}
	s.DurationSec = &d
}

// IsOpen reports whether the session has not yet been sealed.
func (s *Session) IsOpen() bool { return s.EndedAt == nil }

// AuditEntry records a single enforcement action. Append-only.
type AuditEntry struct {
	ID            int64
	Timestamp     time.Time
	User          string
	PID           int
	ProcessName   string
	PatternID     int64
	Reason        string
	SignalSent    int
	SignalName    string
	ExitObserved  bool
}

// MessageTemplate is one rendering variant for an Intention.
type MessageTemplate struct {
	ID        int64
	Intention string
	Variant   string
	Title     string
	Body      string
	Icon      string
	Urgency   Urgency
	Enabled   bool
}

// DetectedActivity is one activity observed by a detection worker in a
// single tick, before classification.
type DetectedActivity struct {
	Key        string // canonical activity key: process basename, registrable domain, or extracted .exe basename
	Source     string // worker name that produced this activity
	PID        int    // 0 if not process-backed (e.g. a browser tab)
	CPUPercent float64
	Metadata   map[string]string
}

// MessageLog records a dispatched notification.
type MessageLog struct {
	ID             int64
	Timestamp      time.Time
	User           string
	Intention      string
	TemplateID     int64
	RenderedTitle  string
	RenderedBody   string
	Backend        string
	NotificationID string
}
