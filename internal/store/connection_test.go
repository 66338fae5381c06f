package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/pkg/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(DefaultConfig(dbPath), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen_AppliesSchemaAndSeedsTemplates(t *testing.T) {
	st := openTestStore(t)

	templates, err := st.ListAllTemplates(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, templates, "schema init must seed default message templates")
}

func TestOpen_RejectsEmptyPath(t *testing.T) {
	_, err := Open(DefaultConfig(""), logger.NewNop())
	assert.Error(t, err)
}

func TestChangeEpoch_BumpsOnUserWrite(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	before, err := st.ChangeEpoch(ctx)
	require.NoError(t, err)

	require.NoError(t, st.UpsertUser(ctx, domain.User{Name: "alice", SystemUID: 1000, Enabled: true}))

	after, err := st.ChangeEpoch(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestUpsertUser_RoundTripsThroughGetUsers(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertUser(ctx, domain.User{Name: "alice", SystemUID: 1000, Enabled: true}))
	require.NoError(t, st.UpsertUser(ctx, domain.User{Name: "alice", SystemUID: 1001, Enabled: false}))

	users, err := st.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 1001, users[0].SystemUID)
	assert.False(t, users[0].Enabled)
}

func TestLimits_SetAndGetRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, domain.User{Name: "alice", SystemUID: 1000, Enabled: true}))

	dailyTotal := 240
	grid := allOnesSchedule()
	l := domain.Limits{User: "alice", GamingLimitMin: 120, DailyTotalMin: &dailyTotal, GracePeriodSec: 60, Schedule: grid}
	require.NoError(t, st.SetLimits(ctx, l))

	got, err := st.GetLimits(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 120, got.GamingLimitMin)
	require.NotNil(t, got.DailyTotalMin)
	assert.Equal(t, 240, *got.DailyTotalMin)
	assert.Equal(t, grid, got.Schedule)
}

func TestSetLimits_RejectsMalformedSchedule(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	err := st.SetLimits(ctx, domain.Limits{User: "alice", Schedule: "too-short"})
	assert.Error(t, err)
}

func TestGetSchedule_DefaultsToAllAllowedWhenUnconfigured(t *testing.T) {
	st := openTestStore(t)
	grid, err := st.GetSchedule(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, allOnesSchedule(), grid)
}

func TestSetScheduleSlot_FlipsExactlyOneBit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, domain.User{Name: "alice", SystemUID: 1000, Enabled: true}))
	require.NoError(t, st.SetLimits(ctx, domain.Limits{User: "alice", Schedule: allOnesSchedule()}))

	require.NoError(t, st.SetScheduleSlot(ctx, "alice", 40, false))
	grid, err := st.GetSchedule(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, byte('0'), grid[40])
	assert.Equal(t, byte('1'), grid[39])
	assert.Equal(t, byte('1'), grid[41])
}

func TestSetScheduleSlot_RejectsOutOfRangeIndex(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, domain.User{Name: "alice", SystemUID: 1000, Enabled: true}))
	require.NoError(t, st.SetLimits(ctx, domain.Limits{User: "alice", Schedule: allOnesSchedule()}))

	err := st.SetScheduleSlot(ctx, "alice", 168, false)
	assert.Error(t, err)
}

func TestSessions_OpenCloseAndListOpenForUser(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, domain.User{Name: "alice", SystemUID: 1000, Enabled: true}))

	_, err := st.InsertPattern(ctx, domain.Pattern{Regex: "^steam$", Category: domain.CategoryGaming, MonitorState: domain.MonitorStateActive})
	require.NoError(t, err)

	sess, err := st.OpenSession(ctx, "alice", 1, time.Now(), "half-life-3")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	open, err := st.OpenSessionsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, st.CloseSession(ctx, sess.ID, time.Now(), domain.EndReasonNatural))

	open, err = st.OpenSessionsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestAudit_AppendAndListOrdersDescending(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, domain.User{Name: "alice", SystemUID: 1000, Enabled: true}))

	first := domain.AuditEntry{Timestamp: time.Now(), User: "alice", PID: 100, ProcessName: "game1", Reason: "enforcement"}
	second := domain.AuditEntry{Timestamp: time.Now().Add(time.Second), User: "alice", PID: 200, ProcessName: "game2", Reason: "enforcement"}
	require.NoError(t, st.AppendAudit(ctx, first))
	require.NoError(t, st.AppendAudit(ctx, second))

	entries, err := st.ListAudit(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "game2", entries[0].ProcessName, "most recent entry should list first")
}

func TestPatterns_ListAllIncludesEveryMonitorState(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.InsertPattern(ctx, domain.Pattern{Regex: "^steam$", Category: domain.CategoryGaming, MonitorState: domain.MonitorStateActive})
	require.NoError(t, err)
	_, err = st.InsertPattern(ctx, domain.Pattern{Regex: "^firefox$", Category: domain.CategoryIgnored, MonitorState: domain.MonitorStateIgnored})
	require.NoError(t, err)

	all, err := st.ListAllPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecordCandidateSample_AccumulatesAcrossCalls(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	cand, err := st.RecordCandidateSample(ctx, "alice", domain.PatternTypeProcess, "newgame", 30, now)
	require.NoError(t, err)
	assert.Equal(t, 1, cand.Samples)

	cand, err = st.RecordCandidateSample(ctx, "alice", domain.PatternTypeProcess, "newgame", 30, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, cand.Samples)
	assert.EqualValues(t, 60, cand.AccumulatedRuntimeSec)
}
