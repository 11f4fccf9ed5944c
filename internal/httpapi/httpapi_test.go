package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjzl/valorant-instalock/internal/hub"
	"github.com/kjzl/valorant-instalock/internal/metrics"
	"github.com/kjzl/valorant-instalock/internal/session"
	ptypes "github.com/kjzl/valorant-instalock/pkg/types"
)

type fakeSession struct {
	mu    sync.Mutex
	cmds  []string
	err   error
	ended chan struct{}
}

func (s *fakeSession) record(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.cmds = append(s.cmds, cmd)
	return nil
}

func (s *fakeSession) QuitPregame(context.Context) error { return s.record("pregame") }
func (s *fakeSession) QuitMatch(context.Context) error   { return s.record("match") }
func (s *fakeSession) Ended() <-chan struct{}            { return s.ended }
func (s *fakeSession) Close() error                      { return nil }

func (s *fakeSession) Status() ptypes.Status {
	return ptypes.Status{Running: true, Phase: "PREGAME", MatchID: "m1", Region: "eu", Shard: "eu"}
}

type sessions struct{ s hub.Session }

func (f sessions) Current(context.Context) (hub.Session, error) {
	if f.s == nil {
		return nil, hub.ErrNoSession
	}
	return f.s, nil
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQuitCommandsAreAccepted(t *testing.T) {
	fake := &fakeSession{}
	h := SetupRoutes(sessions{s: fake}, &session.Interrupt{})

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/pregame/quit").Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/match/quit").Code)
	assert.Equal(t, []string{"pregame", "match"}, fake.cmds)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/pregame/quit").Code)
}

func TestQuitWithoutSession(t *testing.T) {
	h := SetupRoutes(sessions{}, &session.Interrupt{})

	rec := do(t, h, http.MethodPost, "/match/quit")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), hub.ErrNoSession.Error())
}

func TestQuitOnClosedSession(t *testing.T) {
	h := SetupRoutes(sessions{s: &fakeSession{err: session.ErrClosed}}, &session.Interrupt{})

	rec := do(t, h, http.MethodPost, "/pregame/quit")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "session closed")
}

func TestPauseResumeStatus(t *testing.T) {
	intr := &session.Interrupt{}
	h := SetupRoutes(sessions{}, intr)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/pause").Code)
	assert.True(t, intr.IsSet())

	rec := do(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var got ptypes.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, ptypes.Status{Paused: true}, got)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/resume").Code)
	assert.False(t, intr.IsSet())
}

func TestStatusOfRunningSession(t *testing.T) {
	h := SetupRoutes(sessions{s: &fakeSession{}}, &session.Interrupt{})

	rec := do(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"running":true,"phase":"PREGAME","match_id":"m1","region":"eu","shard":"eu","paused":false}`, rec.Body.String())
}

func TestHealthzAndMetrics(t *testing.T) {
	h := SetupRoutes(sessions{}, &session.Interrupt{})
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz").Code)

	metrics.RecordRetry()
	rec := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "instalock_http_retries_total"))
}
