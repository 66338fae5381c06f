// Package workers implements the detection worker contract: each
// worker enumerates one kind of user activity per tick and reports it
// as a DetectedActivity keyed by a canonical string the Pattern Engine
// can classify.
package workers

import (
	"context"

	"github.com/aaronsb/screentimed/internal/domain"
)

// Worker is the unified contract every detection worker satisfies
// (spec §4.3).
type Worker interface {
	Scan(ctx context.Context, user domain.User) ([]domain.DetectedActivity, error)
	IsAvailable() bool
	Name() string
}

// ScanAll runs every worker for user in sequence and merges their
// activities into one slice. A worker that reports unavailable is
// skipped without failing the tick; a worker that errors is logged by
// the caller and likewise skipped, since one failed source must not
// blind the others (spec §4.9: "run all detection workers in sequence,
// merge activities").
func ScanAll(ctx context.Context, user domain.User, ws []Worker, onError func(worker string, err error)) []domain.DetectedActivity {
	var merged []domain.DetectedActivity
	for _, w := range ws {
		if !w.IsAvailable() {
			continue
		}
		activities, err := w.Scan(ctx, user)
		if err != nil {
			if onError != nil {
				onError(w.Name(), err)
			}
			continue
		}
		merged = append(merged, activities...)
	}
	return merged
}
