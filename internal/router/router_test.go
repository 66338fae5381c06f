package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/internal/notify"
	"github.com/aaronsb/screentimed/pkg/events"
	"github.com/aaronsb/screentimed/pkg/logger"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListTemplates(ctx context.Context, intention string) ([]domain.MessageTemplate, error) {
	args := m.Called(ctx, intention)
	t, _ := args.Get(0).([]domain.MessageTemplate)
	return t, args.Error(1)
}

func (m *mockStore) AppendMessageLog(ctx context.Context, msg domain.MessageLog) (int64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(int64), args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Send(r notify.Rendered) (string, string, error) {
	args := m.Called(r)
	return args.String(0), args.String(1), args.Error(2)
}

func TestRoute_RendersTemplatePlaceholdersAndLogs(t *testing.T) {
	st := &mockStore{}
	st.On("ListTemplates", mock.Anything, "time_warning_30").Return([]domain.MessageTemplate{
		{ID: 9, Intention: "time_warning_30", Title: "Heads up {{.user}}", Body: "{{.remaining}} minutes left", Enabled: true},
	}, nil)
	st.On("AppendMessageLog", mock.Anything, mock.MatchedBy(func(m domain.MessageLog) bool {
		return m.RenderedTitle == "Heads up alice" && m.RenderedBody == "30 minutes left"
	})).Return(int64(1), nil)

	disp := &mockDispatcher{}
	disp.On("Send", mock.MatchedBy(func(r notify.Rendered) bool {
		return r.Title == "Heads up alice" && r.Body == "30 minutes left"
	})).Return("log_only", "n1", nil)

	r := New(st, disp, logger.NewNop(), VariantRandom)
	ev := events.Event{
		Intention: "time_warning_30", User: "alice", Timestamp: time.Now(),
		TemplateVars: map[string]string{"user": "alice", "remaining": "30"},
	}
	err := r.Route(context.Background(), ev)
	require.NoError(t, err)
	st.AssertExpectations(t)
	disp.AssertExpectations(t)
}

func TestRoute_MissingPlaceholderLeftLiteral(t *testing.T) {
	st := &mockStore{}
	st.On("ListTemplates", mock.Anything, "enforcement").Return([]domain.MessageTemplate{
		{ID: 1, Intention: "enforcement", Title: "Bye {{.unknown}}", Body: "done", Enabled: true},
	}, nil)
	st.On("AppendMessageLog", mock.Anything, mock.Anything).Return(int64(1), nil)

	disp := &mockDispatcher{}
	disp.On("Send", mock.Anything).Return("log_only", "n1", nil)

	r := New(st, disp, logger.NewNop(), VariantRandom)
	ev := events.Event{Intention: "enforcement", User: "alice", Timestamp: time.Now(), TemplateVars: map[string]string{}}
	err := r.Route(context.Background(), ev)
	require.NoError(t, err)

	sent := disp.Calls[0].Arguments[0].(notify.Rendered)
	assert.Equal(t, "Bye {{.unknown}}", sent.Title)
}

func TestRoute_NoEnabledTemplatesIsAnError(t *testing.T) {
	st := &mockStore{}
	st.On("ListTemplates", mock.Anything, "enforcement").Return(nil, nil)
	disp := &mockDispatcher{}

	r := New(st, disp, logger.NewNop(), VariantRandom)
	ev := events.Event{Intention: "enforcement", User: "alice", Timestamp: time.Now()}
	err := r.Route(context.Background(), ev)
	assert.Error(t, err)
	disp.AssertNotCalled(t, "Send", mock.Anything)
}

func TestRoute_SequentialSelectionCyclesVariants(t *testing.T) {
	st := &mockStore{}
	templates := []domain.MessageTemplate{
		{ID: 1, Intention: "enforcement", Title: "A", Body: "a", Enabled: true},
		{ID: 2, Intention: "enforcement", Title: "B", Body: "b", Enabled: true},
	}
	st.On("ListTemplates", mock.Anything, "enforcement").Return(templates, nil)
	st.On("AppendMessageLog", mock.Anything, mock.Anything).Return(int64(1), nil)

	disp := &mockDispatcher{}
	disp.On("Send", mock.Anything).Return("log_only", "n1", nil)

	r := New(st, disp, logger.NewNop(), VariantSequential)
	ev := events.Event{Intention: "enforcement", User: "alice", Timestamp: time.Now()}

	require.NoError(t, r.Route(context.Background(), ev))
	first := disp.Calls[0].Arguments[0].(notify.Rendered).Title

	require.NoError(t, r.Route(context.Background(), ev))
	second := disp.Calls[1].Arguments[0].(notify.Rendered).Title

	assert.NotEqual(t, first, second)
}

func TestRoute_DispatchFailurePropagatesAndSkipsLogging(t *testing.T) {
	st := &mockStore{}
	st.On("ListTemplates", mock.Anything, "enforcement").Return([]domain.MessageTemplate{
		{ID: 1, Intention: "enforcement", Title: "A", Body: "a", Enabled: true},
	}, nil)

	disp := &mockDispatcher{}
	disp.On("Send", mock.Anything).Return("", "", assert.AnError)

	r := New(st, disp, logger.NewNop(), VariantRandom)
	ev := events.Event{Intention: "enforcement", User: "alice", Timestamp: time.Now()}
	err := r.Route(context.Background(), ev)
	assert.Error(t, err)
	st.AssertNotCalled(t, "AppendMessageLog", mock.Anything, mock.Anything)
}
