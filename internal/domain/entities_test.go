package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateSchedule_RequiresExactly168BinaryDigits(t *testing.T) {
	assert.True(t, ValidateSchedule(strings.Repeat("1", 168)))
	assert.False(t, ValidateSchedule(strings.Repeat("1", 167)))
	assert.False(t, ValidateSchedule(strings.Repeat("2", 168)))
}

func TestEffectiveGamingLimitMin_FallsBackWhenNoPerDayOverride(t *testing.T) {
	l := &Limits{GamingLimitMin: 60}
	assert.Equal(t, 60, l.EffectiveGamingLimitMin(0))
}

func TestEffectiveGamingLimitMin_UsesPerDayOverrideWhenPresent(t *testing.T) {
	override := 90
	l := &Limits{GamingLimitMin: 60}
	l.PerDayGamingLimitMin[5] = &override
	assert.Equal(t, 90, l.EffectiveGamingLimitMin(5))
	assert.Equal(t, 60, l.EffectiveGamingLimitMin(4))
}

func TestEffectiveGamingLimitMin_OutOfRangeWeekdayFallsBack(t *testing.T) {
	l := &Limits{GamingLimitMin: 60}
	assert.Equal(t, 60, l.EffectiveGamingLimitMin(7))
	assert.Equal(t, 60, l.EffectiveGamingLimitMin(-1))
}

func TestPattern_IsGlobalAndParticipatesInEnforcement(t *testing.T) {
	global := &Pattern{Owner: "", MonitorState: MonitorStateActive}
	assert.True(t, global.IsGlobal())
	assert.True(t, global.ParticipatesInEnforcement())

	scoped := &Pattern{Owner: "alice", MonitorState: MonitorStateDiscovered}
	assert.False(t, scoped.IsGlobal())
	assert.False(t, scoped.ParticipatesInEnforcement())
}

func TestDiscoveryCandidate_ReadyForPromotion(t *testing.T) {
	now := time.Now()
	ready := &DiscoveryCandidate{Samples: 3, FirstSeen: now.Add(-time.Hour), LastSeen: now}
	assert.True(t, ready.ReadyForPromotion(3, 3600))

	tooFew := &DiscoveryCandidate{Samples: 2, FirstSeen: now.Add(-time.Hour), LastSeen: now}
	assert.False(t, tooFew.ReadyForPromotion(3, 3600))

	tooSpreadOut := &DiscoveryCandidate{Samples: 5, FirstSeen: now.Add(-2 * time.Hour), LastSeen: now}
	assert.False(t, tooSpreadOut.ReadyForPromotion(3, 3600))
}

func TestSession_SealComputesNonNegativeDuration(t *testing.T) {
	start := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s := &Session{StartedAt: start}
	assert.True(t, s.IsOpen())

	s.Seal(start.Add(90*time.Second), EndReasonNatural)
	assert.False(t, s.IsOpen())
	assert.EqualValues(t, 90, *s.DurationSec)
	assert.Equal(t, EndReasonNatural, s.EndReason)
}

func TestSession_SealClampsNegativeDurationToZero(t *testing.T) {
	start := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s := &Session{StartedAt: start}
	s.Seal(start.Add(-time.Second), EndReasonUnknown)
	assert.EqualValues(t, 0, *s.DurationSec)
}
