package errkind

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesWrappedKind(t *testing.T) {
	err := fmt.Errorf("insert pattern: %w", PatternRegexInvalid)
	assert.True(t, Is(err, PatternRegexInvalid))
	assert.False(t, Is(err, ScheduleMalformed))
}

func TestIs_DoesNotMatchUnrelatedErrors(t *testing.T) {
	assert.False(t, Is(fmt.Errorf("boom"), StoreUnavailable))
}

func TestKinds_AreDistinctSentinels(t *testing.T) {
	kinds := []Kind{
		ConfigInvalid, StoreUnavailable, StoreConflict, WorkerTimeout,
		WorkerUnavailable, ClassifyUnknown, NotificationUnavailable,
		ProcessNotFound, ProcessKillFailed, PatternRegexInvalid,
		ScheduleMalformed, Shutdown,
	}
	for i, a := range kinds {
		for j, b := range kinds {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "%v should not match %v", a, b)
		}
	}
}
