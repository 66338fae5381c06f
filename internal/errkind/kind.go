// Package errkind defines the error taxonomy shared by every screentimed
// component so callers can branch on failure category with errors.Is
// instead of string matching.
package errkind

import "errors"

// Kind is a sentinel error identifying a failure category. Wrap it with
// fmt.Errorf("...: %w", errkind.StoreConflict) to preserve both the kind
// and the underlying cause.
type Kind error

var (
	// ConfigInvalid marks a malformed or out-of-range configuration value.
	ConfigInvalid Kind = errors.New("config invalid")

	// StoreUnavailable marks a failure to open or reach the store. The
	// daemon treats this as fatal.
	StoreUnavailable Kind = errors.New("store unavailable")

	// StoreConflict marks a write that violated a store invariant
	// (unique constraint, stale epoch, etc).
	StoreConflict Kind = errors.New("store conflict")

	// WorkerTimeout marks a detection worker exceeding its per-tick
	// deadline. The worker's result degrades to empty.
	WorkerTimeout Kind = errors.New("worker timeout")

	// WorkerUnavailable marks a detection worker whose backing system
	// (compositor, history db, /proc) could not be reached this tick.
	WorkerUnavailable Kind = errors.New("worker unavailable")

	// ClassifyUnknown is not a failure: it routes an activity to
	// discovery instead of enforcement.
	ClassifyUnknown Kind = errors.New("activity unclassified")

	// NotificationUnavailable marks every backend in the dispatch chain
	// refusing or failing a send.
	NotificationUnavailable Kind = errors.New("notification unavailable")

	// ProcessNotFound marks a kill attempt against a PID that already
	// exited; benign.
	ProcessNotFound Kind = errors.New("process not found")

	// ProcessKillFailed marks a signal delivery failure, retryable once
	// per tick.
	ProcessKillFailed Kind = errors.New("process kill failed")

	// PatternRegexInvalid marks a pattern insert whose regex failed to
	// compile; the insert is rejected.
	PatternRegexInvalid Kind = errors.New("pattern regex invalid")

	// ScheduleMalformed marks a schedule import/slot write that failed
	// validation; rejected before any write.
	ScheduleMalformed Kind = errors.New("schedule malformed")

	// Shutdown marks the daemon's own cooperative shutdown signal.
	Shutdown Kind = errors.New("shutdown")
)

// Is reports whether err (or any error it wraps) matches kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
