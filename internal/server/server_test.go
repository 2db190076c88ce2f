package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadan/incubator-amaterasu/internal/coordinator"
	"github.com/roadan/incubator-amaterasu/internal/repository"
)

type fakeCoordinator struct {
	mu      sync.Mutex
	filters []repository.ActionFilter
	records []*repository.ActionRecord
	events  *coordinator.StatusFeed
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{events: coordinator.NewStatusFeed(slog.New(slog.NewTextHandler(io.Discard, nil)))}
}

func (f *fakeCoordinator) ListActions(ctx context.Context, filter repository.ActionFilter) ([]*repository.ActionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	return f.records, nil
}

func (f *fakeCoordinator) SubscribeStatus(jobID string) chan coordinator.StatusEvent {
	return f.events.Subscribe(jobID)
}

func (f *fakeCoordinator) UnsubscribeStatus(ch chan coordinator.StatusEvent) {
	f.events.Unsubscribe(ch)
}

func newTestServer(t *testing.T, c Coordinator) *httptest.Server {
	t.Helper()
	auth := NewAuthMiddleware(&AuthConfig{AdminUsername: "admin", AdminPassword: "pw"})
	s := NewHttpServer("", c, auth, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestListActionsRequiresAuth(t *testing.T) {
	ts := newTestServer(t, newFakeCoordinator())

	resp, err := http.Get(ts.URL + "/api/actions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListActionsUnconfiguredAuthDenies(t *testing.T) {
	s := NewHttpServer("", newFakeCoordinator(), NewAuthMiddleware(&AuthConfig{}), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/actions", nil)
	req.SetBasicAuth("", "")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListActions(t *testing.T) {
	fc := newFakeCoordinator()
	fc.records = []*repository.ActionRecord{{JobID: "job1", Action: "step1", Status: repository.StatusRunning}}
	ts := newTestServer(t, fc)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/actions?job_id=job1&status=running&limit=5&offset=2", nil)
	req.SetBasicAuth("admin", "pw")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []repository.ActionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "step1", got[0].Action)

	require.Len(t, fc.filters, 1)
	f := fc.filters[0]
	require.NotNil(t, f.JobID)
	require.NotNil(t, f.Status)
	assert.Equal(t, "job1", *f.JobID)
	assert.Equal(t, repository.StatusRunning, *f.Status)
	assert.Equal(t, 5, f.Limit)
	assert.Equal(t, 2, f.Offset)
}

func TestListActionsBadQuery(t *testing.T) {
	ts := newTestServer(t, newFakeCoordinator())

	for _, q := range []string{"status=nope", "limit=-1", "offset=x"} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/actions?"+q, nil)
		req.SetBasicAuth("admin", "pw")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestStatusStream(t *testing.T) {
	fc := newFakeCoordinator()
	ts := newTestServer(t, fc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/status-stream?job_id=job1", nil)
	req.SetBasicAuth("admin", "pw")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return fc.events.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, fc.events.Publish(coordinator.StatusEvent{JobID: "job2", Action: "other"}))
	fc.events.Publish(coordinator.StatusEvent{JobID: "job1", Action: "step1", Status: repository.StatusSuccess})

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	assert.Equal(t, "event: status", sc.Text())
	require.True(t, sc.Scan())
	data, ok := strings.CutPrefix(sc.Text(), "data: ")
	require.True(t, ok)

	var ev coordinator.StatusEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "step1", ev.Action)
	assert.Equal(t, repository.StatusSuccess, ev.Status)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, newFakeCoordinator())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}
