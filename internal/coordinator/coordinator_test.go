package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/roadan/incubator-amaterasu/internal/action"
	"github.com/roadan/incubator-amaterasu/internal/dispatch"
	"github.com/roadan/incubator-amaterasu/internal/launcher/local"
	"github.com/roadan/incubator-amaterasu/internal/repository"
	"github.com/roadan/incubator-amaterasu/internal/runner"
	"github.com/roadan/incubator-amaterasu/internal/runner/shell"
)

// MockRepository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) RecordDispatch(ctx context.Context, rec *repository.ActionRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *MockRepository) UpdateStatus(ctx context.Context, jobID, act string, status repository.Status, message string) error {
	return m.Called(ctx, jobID, act, status, message).Error(0)
}
func (m *MockRepository) GetAction(ctx context.Context, jobID, act string) (*repository.ActionRecord, error) {
	args := m.Called(ctx, jobID, act)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ActionRecord), args.Error(1)
}
func (m *MockRepository) ListActions(ctx context.Context, filter repository.ActionFilter) ([]*repository.ActionRecord, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*repository.ActionRecord), args.Error(1)
}
func (m *MockRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*repository.ActionRecord, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.ActionRecord), args.Error(1)
}
func (m *MockRepository) Close() error {
	return m.Called().Error(0)
}

// MockLauncher for testing
type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Kind() string { return "mock" }
func (m *MockLauncher) Launch(ctx context.Context, pkg *dispatch.Package) (string, error) {
	args := m.Called(ctx, pkg)
	return args.String(0), args.Error(1)
}
func (m *MockLauncher) Cancel(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type repoPathResolver struct{}

func (repoPathResolver) ResolveExecutable(ctx context.Context, jobID string, act action.Action) (string, error) {
	return "repo/src/" + act.Src, nil
}

func newTestCoordinator(repo repository.Repository, l *MockLauncher) *Coordinator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := runner.NewRegistry()
	registry.Register(shell.TypeID, shell.New())

	cfg := Config{
		Registry:     registry,
		Builder:      dispatch.NewBuilder(repoPathResolver{}, nil, logger),
		Repository:   repo,
		CallbackBase: "http://coordinator:8080/callback",
		Secret:       "secret",
	}
	if l != nil {
		cfg.Launcher = l
	}
	return New(logger, cfg)
}

func tokenFrom(t *testing.T, callback string) string {
	t.Helper()
	u, err := url.Parse(callback)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

var step1 = action.Action{Name: "step1", Src: "run.sh", TypeID: shell.TypeID}

func TestPrepare(t *testing.T) {
	c := newTestCoordinator(new(MockRepository), nil)

	pkg, err := c.Prepare(context.Background(), "job1", step1, "")
	require.NoError(t, err)

	_, err = uuid.Parse(pkg.ExecutorID)
	assert.NoError(t, err, "generated executor id is a uuid")
	assert.True(t, strings.HasPrefix(pkg.CallbackAddress, "http://coordinator:8080/callback?token="))
	assert.Equal(t, "repo/src/run.sh", pkg.ExecutablePath)

	claims, err := c.ValidateToken(tokenFrom(t, pkg.CallbackAddress))
	require.NoError(t, err)
	assert.Equal(t, Claims{JobID: "job1", Action: "step1", ExecutorID: pkg.ExecutorID}, claims)

	pkg, err = c.Prepare(context.Background(), "job1", step1, "exec-fixed")
	require.NoError(t, err)
	assert.Equal(t, "exec-fixed", pkg.ExecutorID)
}

func TestPrepare_UnknownRunner(t *testing.T) {
	c := newTestCoordinator(new(MockRepository), nil)

	_, err := c.Prepare(context.Background(), "job1", action.Action{Name: "step1", Src: "x", TypeID: "cobol"}, "")
	assert.ErrorIs(t, err, runner.ErrUnknownRunner)
}

func TestValidateToken(t *testing.T) {
	c := newTestCoordinator(new(MockRepository), nil)

	token, err := c.generateToken(Claims{JobID: "job1", Action: "step1", ExecutorID: "e"})
	require.NoError(t, err)

	other := newTestCoordinator(new(MockRepository), nil)
	other.jwtSecret = []byte("another secret")
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = c.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired token")

	_, err = c.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	l := new(MockLauncher)
	c := newTestCoordinator(repo, l)
	events := c.SubscribeStatus("")
	defer c.UnsubscribeStatus(events)

	l.On("Launch", ctx, mock.AnythingOfType("*dispatch.Package")).Return("mock-1", nil)
	repo.On("RecordDispatch", ctx, mock.MatchedBy(func(rec *repository.ActionRecord) bool {
		return rec.JobID == "job1" && rec.Action == "step1" &&
			rec.DispatchID == "mock-1" && rec.Launcher == "mock" &&
			rec.Status == repository.StatusDispatched &&
			strings.Contains(rec.Command, "token=[REDACTED]")
	})).Return(nil)

	rec, err := c.Dispatch(ctx, "job1", step1)
	require.NoError(t, err)
	assert.Equal(t, "mock-1", rec.DispatchID)

	select {
	case ev := <-events:
		assert.Equal(t, repository.StatusDispatched, ev.Status)
		assert.Equal(t, rec.ExecutorID, ev.ExecutorID)
	default:
		t.Fatal("expected a status event")
	}

	repo.AssertExpectations(t)
	l.AssertExpectations(t)
}

func TestDispatch_RecordFailureCancelsLaunch(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	l := new(MockLauncher)
	c := newTestCoordinator(repo, l)

	l.On("Launch", ctx, mock.Anything).Return("mock-1", nil)
	l.On("Cancel", mock.Anything, "mock-1").Return(nil)
	repo.On("RecordDispatch", ctx, mock.Anything).Return(errors.New("disk full"))

	_, err := c.Dispatch(ctx, "job1", step1)
	assert.ErrorContains(t, err, "disk full")
	l.AssertExpectations(t)
}

func TestDispatch_NoLauncher(t *testing.T) {
	c := newTestCoordinator(new(MockRepository), nil)
	_, err := c.Dispatch(context.Background(), "job1", step1)
	assert.ErrorIs(t, err, ErrNoLauncher)
}

func TestReportStatus(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	c := newTestCoordinator(repo, nil)

	pkg, err := c.Prepare(ctx, "job1", step1, "exec-1")
	require.NoError(t, err)
	token := tokenFrom(t, pkg.CallbackAddress)

	t.Run("success", func(t *testing.T) {
		repo.On("GetAction", ctx, "job1", "step1").Return(&repository.ActionRecord{
			JobID: "job1", Action: "step1", ExecutorID: "exec-1", Status: repository.StatusRunning,
		}, nil).Once()
		repo.On("UpdateStatus", ctx, "job1", "step1", repository.StatusSuccess, "ok").Return(nil).Once()

		require.NoError(t, c.ReportStatus(ctx, token, repository.StatusSuccess, "ok"))
	})

	t.Run("stale executor", func(t *testing.T) {
		repo.On("GetAction", ctx, "job1", "step1").Return(&repository.ActionRecord{
			JobID: "job1", Action: "step1", ExecutorID: "exec-2", Status: repository.StatusDispatched,
		}, nil).Once()

		err := c.ReportStatus(ctx, token, repository.StatusSuccess, "ok")
		assert.ErrorIs(t, err, ErrStaleExecutor)
	})

	t.Run("already finished", func(t *testing.T) {
		repo.On("GetAction", ctx, "job1", "step1").Return(&repository.ActionRecord{
			JobID: "job1", Action: "step1", ExecutorID: "exec-1", Status: repository.StatusError,
		}, nil).Once()

		err := c.ReportStatus(ctx, token, repository.StatusRunning, "")
		assert.ErrorIs(t, err, ErrFinalStatus)
	})

	t.Run("bad token", func(t *testing.T) {
		err := c.ReportStatus(ctx, "garbage", repository.StatusSuccess, "")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	repo.AssertExpectations(t)
}

func TestReapStale(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := new(MockRepository)
		l := new(MockLauncher)
		c := newTestCoordinator(repo, l)

		stale := []*repository.ActionRecord{
			{JobID: "job1", Action: "step1", Launcher: "mock", DispatchID: "mock-1"},
			{JobID: "job1", Action: "step2", Launcher: "nomad", DispatchID: "nomad-1"},
		}
		repo.On("ListStale", ctx, mock.Anything, 10).Return(stale, nil)
		l.On("Cancel", ctx, "mock-1").Return(nil)
		repo.On("UpdateStatus", ctx, "job1", "step1", repository.StatusError, mock.Anything).Return(nil)
		repo.On("UpdateStatus", ctx, "job1", "step2", repository.StatusError, mock.Anything).Return(nil)

		count, err := c.ReapStale(ctx, time.Now(), 10)
		assert.NoError(t, err)
		assert.Equal(t, 2, count)

		repo.AssertExpectations(t)
		l.AssertExpectations(t)
	})

	t.Run("cancel failure", func(t *testing.T) {
		repo := new(MockRepository)
		l := new(MockLauncher)
		c := newTestCoordinator(repo, l)

		repo.On("ListStale", ctx, mock.Anything, 10).Return([]*repository.ActionRecord{
			{JobID: "job1", Action: "step1", Launcher: "mock", DispatchID: "mock-1"},
		}, nil)
		l.On("Cancel", ctx, "mock-1").Return(errors.New("backend down"))

		count, err := c.ReapStale(ctx, time.Now(), 10)
		assert.NoError(t, err)
		assert.Equal(t, 0, count)

		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		l.AssertExpectations(t)
	})

	t.Run("local worker from an earlier process", func(t *testing.T) {
		repo := new(MockRepository)
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		c := New(logger, Config{
			Registry:   runner.NewRegistry(),
			Launcher:   local.New(t.TempDir(), logger),
			Repository: repo,
			Secret:     "secret",
		})

		repo.On("ListStale", ctx, mock.Anything, 10).Return([]*repository.ActionRecord{
			{JobID: "job1", Action: "step1", Launcher: "local", DispatchID: "local-from-earlier-process"},
		}, nil)
		repo.On("UpdateStatus", ctx, "job1", "step1", repository.StatusError, mock.Anything).Return(nil)

		count, err := c.ReapStale(ctx, time.Now(), 10)
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
		repo.AssertExpectations(t)
	})

	t.Run("list failure", func(t *testing.T) {
		repo := new(MockRepository)
		c := newTestCoordinator(repo, nil)
		repo.On("ListStale", ctx, mock.Anything, 10).Return(nil, errors.New("db locked"))

		_, err := c.ReapStale(ctx, time.Now(), 10)
		assert.ErrorContains(t, err, "db locked")
	})
}

func TestStatusFeed(t *testing.T) {
	f := NewStatusFeed(slog.New(slog.NewTextHandler(io.Discard, nil)))
	all := f.Subscribe("")
	job2 := f.Subscribe("job2")
	assert.Equal(t, 2, f.Subscribers())

	assert.Equal(t, 1, f.Publish(StatusEvent{JobID: "job1", Action: "step1"}))
	assert.Equal(t, "step1", (<-all).Action)
	assert.Equal(t, 2, f.Publish(StatusEvent{JobID: "job2", Action: "step2"}))
	assert.Equal(t, "step2", (<-all).Action)
	assert.Equal(t, "step2", (<-job2).Action)

	f.Unsubscribe(all)
	_, open := <-all
	assert.False(t, open)
	assert.Equal(t, 1, f.Subscribers())
	f.Unsubscribe(all)
}

func TestStatusFeed_FullSubscriberMissesEvents(t *testing.T) {
	f := NewStatusFeed(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ch := f.Subscribe("")
	for range statusFeedBuffer {
		f.Publish(StatusEvent{JobID: "job1"})
	}
	assert.Equal(t, 0, f.Publish(StatusEvent{JobID: "job1", Action: "late"}))
	assert.Len(t, ch, statusFeedBuffer)
	f.Unsubscribe(ch)
}
