package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/internal/kernel"
)

func TestDayKey_BeforeResetHourBelongsToPreviousDay(t *testing.T) {
	t3am := time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-07-29", dayKey(t3am, 4))
}

func TestDayKey_AtOrAfterResetHourBelongsToCurrentDay(t *testing.T) {
	t4am := time.Date(2026, 7, 30, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-07-30", dayKey(t4am, 4))

	t11pm := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-07-30", dayKey(t11pm, 4))
}

func TestInferPatternType_ProcessBackedActivityIsProcessType(t *testing.T) {
	act := domain.DetectedActivity{Key: "steam", PID: 1234}
	assert.Equal(t, domain.PatternTypeProcess, inferPatternType(act))
}

func TestInferPatternType_NonProcessBackedActivityIsBrowserDomain(t *testing.T) {
	act := domain.DetectedActivity{Key: "reddit.com", PID: 0}
	assert.Equal(t, domain.PatternTypeBrowserDomain, inferPatternType(act))
}

func TestNoteDayRollover_FirstTickForUserIsNeverARollover(t *testing.T) {
	l := &Loop{lastDayKey: make(map[string]string)}
	assert.False(t, l.noteDayRollover("alice", "2026-07-30"))
}

func TestNoteDayRollover_SameBucketTwiceIsNotARollover(t *testing.T) {
	l := &Loop{lastDayKey: make(map[string]string)}
	l.noteDayRollover("alice", "2026-07-30")
	assert.False(t, l.noteDayRollover("alice", "2026-07-30"))
}

func TestNoteDayRollover_BucketChangeIsARollover(t *testing.T) {
	l := &Loop{lastDayKey: make(map[string]string)}
	l.noteDayRollover("alice", "2026-07-30")
	assert.True(t, l.noteDayRollover("alice", "2026-07-31"))
}

func TestNoteDayRollover_TracksEachUserIndependently(t *testing.T) {
	l := &Loop{lastDayKey: make(map[string]string)}
	l.noteDayRollover("alice", "2026-07-30")
	assert.False(t, l.noteDayRollover("bob", "2026-07-30"))
}

func TestRememberGamingPIDs_OnlyTracksGamingCategory(t *testing.T) {
	l := &Loop{priorGamingPIDs: make(map[string]map[int]struct{})}
	l.rememberGamingPIDs("alice", []kernel.Classified{
		{PID: 111, Category: domain.CategoryGaming},
		{PID: 222, Category: domain.CategorySocial},
	})
	_, trackedGaming := l.priorGamingPIDs["alice"][111]
	_, trackedSocial := l.priorGamingPIDs["alice"][222]
	assert.True(t, trackedGaming)
	assert.False(t, trackedSocial)
}

func TestRememberGamingPIDs_ReplacesThePreviousSnapshotEachCall(t *testing.T) {
	l := &Loop{priorGamingPIDs: make(map[string]map[int]struct{})}
	l.rememberGamingPIDs("alice", []kernel.Classified{{PID: 111, Category: domain.CategoryGaming}})
	l.rememberGamingPIDs("alice", []kernel.Classified{{PID: 222, Category: domain.CategoryGaming}})

	_, stillHas111 := l.priorGamingPIDs["alice"][111]
	_, has222 := l.priorGamingPIDs["alice"][222]
	assert.False(t, stillHas111)
	assert.True(t, has222)
}
