package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/pkg/logger"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) AppendAudit(ctx context.Context, a domain.AuditEntry) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

type mockKiller struct {
	mock.Mock
	alive map[int]bool
}

func newMockKiller() *mockKiller {
	return &mockKiller{alive: make(map[int]bool)}
}

func (m *mockKiller) Terminate(pid int) error {
	args := m.Called(pid)
	return args.Error(0)
}

func (m *mockKiller) Kill(pid int) error {
	args := m.Called(pid)
	return args.Error(0)
}

func (m *mockKiller) StillAlive(pid int) bool {
	return m.alive[pid]
}

func newTestKernel(store Store, killer Killer, warningMins []int) *Kernel {
	return New(store, logger.NewNop(), ModeNormal, 60*time.Second, 4, warningMins, killer)
}

func TestTick_WarningsEmittedDescendingAndOnce(t *testing.T) {
	st := &mockStore{}
	killer := newMockKiller()
	k := newTestKernel(st, killer, []int{30, 15, 5})

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	summary := &domain.DailySummary{User: "alice", Date: "2026-07-30", State: domain.StateAvailable, GamingTimeSec: 0}

	// 70 minutes used of a 100-minute limit leaves 30 minutes -> crosses
	// the 30-minute threshold exactly.
	summary.GamingTimeSec = 70 * 60
	res, err := k.Tick(context.Background(), "alice", summary, now, true, true, 100, nil)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "time_warning_30", string(res.Events[0].Intention))
	assert.True(t, summary.Warned30)

	// A second tick at the same budget must not re-emit the 30m warning.
	res, err = k.Tick(context.Background(), "alice", summary, now.Add(time.Second), true, true, 100, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Events)
}

func TestTick_BudgetExhaustionEntersGrace(t *testing.T) {
	st := &mockStore{}
	killer := newMockKiller()
	k := newTestKernel(st, killer, []int{30, 15, 5})

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	summary := &domain.DailySummary{User: "alice", Date: "2026-07-30", State: domain.StateAvailable, GamingTimeSec: 100 * 60}

	res, err := k.Tick(context.Background(), "alice", summary, now, true, true, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StateGrace, summary.State)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "time_expired", string(res.Events[0].Intention))
	require.NotNil(t, summary.GraceStartedAt)
}

func TestTick_GraceExpiresIntoEnforcementAndKills(t *testing.T) {
	st := &mockStore{}
	st.On("AppendAudit", mock.Anything, mock.Anything).Return(nil)
	killer := newMockKiller()
	killer.alive[111] = true
	killer.On("Terminate", 111).Return(nil)
	killer.On("StillAlive", 111).Return(true).Once()

	k := newTestKernel(st, killer, []int{30, 15, 5})

	graceStart := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	now := graceStart.Add(90 * time.Second)
	summary := &domain.DailySummary{
		User: "alice", Date: "2026-07-30", State: domain.StateGrace,
		GamingTimeSec: 100 * 60, GraceStartedAt: &graceStart,
	}
	activities := []Classified{{PID: 111, Key: "steam", Category: domain.CategoryGaming}}

	res, err := k.Tick(context.Background(), "alice", summary, now, true, true, 100, activities)
	require.NoError(t, err)
	assert.Equal(t, domain.StateEnforcing, summary.State)
	assert.True(t, res.Killed)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "enforcement", string(res.Events[0].Intention))
	st.AssertExpectations(t)
}

func TestTick_GraceReturnsToAvailableWhenGamingStops(t *testing.T) {
	st := &mockStore{}
	killer := newMockKiller()
	k := newTestKernel(st, killer, []int{30, 15, 5})

	graceStart := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	summary := &domain.DailySummary{
		User: "alice", Date: "2026-07-30", State: domain.StateGrace,
		GamingTimeSec: 100 * 60, GraceStartedAt: &graceStart,
	}

	res, err := k.Tick(context.Background(), "alice", summary, graceStart.Add(10*time.Second), true, false, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAvailable, summary.State)
	assert.Nil(t, summary.GraceStartedAt)
	assert.Empty(t, res.Events)
}

func TestTick_OutsideHoursTakesPriorityOverEnforcement(t *testing.T) {
	st := &mockStore{}
	st.On("AppendAudit", mock.Anything, mock.Anything).Return(nil)
	killer := newMockKiller()
	killer.alive[222] = true
	killer.On("Terminate", 222).Return(nil)
	killer.On("StillAlive", 222).Return(true).Once()

	k := newTestKernel(st, killer, []int{30, 15, 5})

	now := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	summary := &domain.DailySummary{User: "alice", Date: "2026-07-30", State: domain.StateAvailable}
	activities := []Classified{{PID: 222, Key: "steam", Category: domain.CategoryGaming}}

	res, err := k.Tick(context.Background(), "alice", summary, now, false, true, 100, activities)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOutsideHours, summary.State)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "outside_hours_enter", string(res.Events[0].Intention))
}

func TestTick_FillsInDateWhenSummaryHasNoneYet(t *testing.T) {
	st := &mockStore{}
	killer := newMockKiller()
	k := newTestKernel(st, killer, []int{30, 15, 5})

	now := time.Date(2026, 7, 31, 4, 0, 0, 0, time.UTC)
	summary := &domain.DailySummary{User: "alice", State: domain.StateAvailable}

	_, err := k.Tick(context.Background(), "alice", summary, now, true, false, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-31", summary.Date)
}

func TestKillGaming_EscalatesOnlyAfterASubsequentTick(t *testing.T) {
	st := &mockStore{}
	st.On("AppendAudit", mock.Anything, mock.Anything).Return(nil)
	killer := newMockKiller()
	killer.alive[333] = true
	killer.On("Terminate", 333).Return(nil)
	killer.On("StillAlive", 333).Return(true)
	killer.On("Kill", 333).Return(nil)

	k := newTestKernel(st, killer, []int{30, 15, 5})
	activities := []Classified{{PID: 333, Key: "game.exe", Category: domain.CategoryGaming}}
	now := time.Now()

	killedFirst, err := k.killGaming(context.Background(), "alice", now, activities, "enforcement")
	require.NoError(t, err)
	assert.True(t, killedFirst)
	killer.AssertNumberOfCalls(t, "Kill", 0)
	assert.Equal(t, "terminated", k.killStage[333])

	killedSecond, err := k.killGaming(context.Background(), "alice", now, activities, "enforcement")
	require.NoError(t, err)
	assert.True(t, killedSecond)
	killer.AssertNumberOfCalls(t, "Kill", 1)
	assert.Equal(t, "killed", k.killStage[333])
}

func TestKillGaming_SkipsActivitiesOwnedByAnotherUser(t *testing.T) {
	st := &mockStore{}
	killer := newMockKiller()
	k := newTestKernel(st, killer, []int{30, 15, 5})

	activities := []Classified{{PID: 444, Key: "game.exe", Category: domain.CategoryGaming, Owner: "bob"}}
	killedAny, err := k.killGaming(context.Background(), "alice", time.Now(), activities, "enforcement")
	require.NoError(t, err)
	assert.False(t, killedAny)
	killer.AssertNotCalled(t, "Terminate", mock.Anything)
}

func TestKillGaming_PassthroughModeSkipsSignals(t *testing.T) {
	st := &mockStore{}
	killer := newMockKiller()
	k := New(st, logger.NewNop(), ModePassthrough, 60*time.Second, 4, []int{30, 15, 5}, killer)

	activities := []Classified{{PID: 555, Key: "game.exe", Category: domain.CategoryGaming}}
	killedAny, err := k.killGaming(context.Background(), "alice", time.Now(), activities, "enforcement")
	require.NoError(t, err)
	assert.False(t, killedAny)
	killer.AssertNotCalled(t, "Terminate", mock.Anything)
}
