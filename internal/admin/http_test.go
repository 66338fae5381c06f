package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronsb/screentimed/internal/config"
	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/internal/store"
	"github.com/aaronsb/screentimed/pkg/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(store.DefaultConfig(dbPath), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewServer(New(st), config.DatabaseConfig{}, logger.NewNop())
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleAddUser_ThenListUsersReturnsIt(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/users", domain.User{Name: "alice", Enabled: true})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var users []domain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Name)
}

func TestHandleAddUser_MalformedBodyIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetLimits_UnknownUserIsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/users/ghost/limits", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSetLimits_ThenGetLimitsRoundTrips(t *testing.T) {
	s := newTestServer(t)
	doRequest(t, s, http.MethodPost, "/users", domain.User{Name: "alice", Enabled: true})

	rec := doRequest(t, s, http.MethodPut, "/users/alice/limits", domain.Limits{GamingLimitMin: 45})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/users/alice/limits", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var limits domain.Limits
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &limits))
	assert.Equal(t, 45, limits.GamingLimitMin)
	assert.Equal(t, "alice", limits.User)
}

func TestHandleImportSchedule_RejectsMalformedGrid(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPut, "/users/alice/schedule", map[string]string{"schedule": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSetScheduleSlot_FlipsTheRequestedSlot(t *testing.T) {
	s := newTestServer(t)
	doRequest(t, s, http.MethodPost, "/users", domain.User{Name: "alice", Enabled: true})
	doRequest(t, s, http.MethodPut, "/users/alice/limits", domain.Limits{GamingLimitMin: 45})

	rec := doRequest(t, s, http.MethodPut, "/users/alice/schedule/12", map[string]bool{"allowed": false})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/users/alice/schedule", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, byte('0'), body["schedule"][12])
}

func TestHandleSetScheduleSlot_NonNumericSlotIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPut, "/users/alice/schedule/notanumber", map[string]bool{"allowed": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAddPattern_ThenListPatternsReturnsIt(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/patterns", domain.Pattern{
		Type: domain.PatternTypeProcess, Regex: "steam", Category: domain.CategoryGaming,
		MonitorState: domain.MonitorStateActive,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/patterns", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var patterns []domain.Pattern
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patterns))
	require.Len(t, patterns, 1)
}

func TestHandleListDiscovery_EmptyQueueReturnsEmptyArray(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/discovery", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandlePromoteDiscovery_CreatesAPattern(t *testing.T) {
	s := newTestServer(t)
	body := map[string]interface{}{
		"candidate":    domain.DiscoveryCandidate{Key: "newgame.exe", PatternType: domain.PatternTypeProcess},
		"category":     domain.CategoryGaming,
		"display_name": "New Game",
	}
	rec := doRequest(t, s, http.MethodPost, "/discovery/promote", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandleListTemplates_ReturnsSeededDefaults(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/templates", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var templates []domain.MessageTemplate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &templates))
	assert.NotEmpty(t, templates)
}

func TestHandleStatus_DefaultsDateToToday(t *testing.T) {
	s := newTestServer(t)
	doRequest(t, s, http.MethodPost, "/users", domain.User{Name: "alice", Enabled: true})

	rec := doRequest(t, s, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
