package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kjzl/valorant-instalock/internal/lockfile"
	ptypes "github.com/kjzl/valorant-instalock/pkg/types"
)

type fakeSession struct {
	port   int
	ended  chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func newFakeSession(port int) *fakeSession {
	return &fakeSession{port: port, ended: make(chan struct{})}
}

func (s *fakeSession) QuitPregame(context.Context) error { return nil }
func (s *fakeSession) QuitMatch(context.Context) error   { return nil }
func (s *fakeSession) Status() ptypes.Status             { return ptypes.Status{Running: true} }
func (s *fakeSession) Ended() <-chan struct{}            { return s.ended }

func (s *fakeSession) end() { s.once.Do(func() { close(s.ended) }) }

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	s.end()
	return nil
}

// starter fails the first failures calls and records every session it made.
type starter struct {
	mu       sync.Mutex
	failures int
	calls    []lockfile.Descriptor
	sessions []*fakeSession
}

func (st *starter) start(ctx context.Context, d lockfile.Descriptor) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.calls = append(st.calls, d)
	if st.failures > 0 {
		st.failures--
		return nil, errors.New("client not ready")
	}
	s := newFakeSession(d.Port)
	st.sessions = append(st.sessions, s)
	return s, nil
}

func (st *starter) callCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.calls)
}

func (st *starter) session(i int) *fakeSession {
	st.mu.Lock()
	defer st.mu.Unlock()
	if i >= len(st.sessions) {
		return nil
	}
	return st.sessions[i]
}

func desc(port int) lockfile.Descriptor {
	return lockfile.Descriptor{Name: "Riot Client", PID: 1, Port: port, Password: "pw", Protocol: "https"}
}

func newTestHub(t *testing.T, st *starter) *Hub {
	t.Helper()
	return NewHub(context.Background(), Options{Start: st.start, RetryAfter: 20 * time.Millisecond})
}

func currentPort(h *Hub) int {
	s, err := h.Current(context.Background())
	if err != nil {
		return 0
	}
	return s.(*fakeSession).port
}

func TestHubStartsSessionForDescriptor(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	st := &starter{}
	h := newTestHub(t, st)
	defer h.Close()

	_, err := h.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)

	h.inbox <- DescriptorAvailable{Descriptor: desc(1000)}
	require.Eventually(t, func() bool { return currentPort(h) == 1000 }, time.Second, 5*time.Millisecond)

	// rewriting the same lockfile keeps the session
	h.inbox <- DescriptorAvailable{Descriptor: desc(1000)}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, st.callCount())
	assert.Equal(t, 1000, currentPort(h))
}

func TestHubReplacesSessionOnNewDescriptor(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	st := &starter{}
	h := newTestHub(t, st)
	defer h.Close()

	h.inbox <- DescriptorAvailable{Descriptor: desc(1000)}
	require.Eventually(t, func() bool { return currentPort(h) == 1000 }, time.Second, 5*time.Millisecond)

	h.inbox <- DescriptorAvailable{Descriptor: desc(2000)}
	require.Eventually(t, func() bool { return currentPort(h) == 2000 }, time.Second, 5*time.Millisecond)
	assert.True(t, st.session(0).closed.Load())
	assert.False(t, st.session(1).closed.Load())
}

func TestHubClosesSessionOnRemoved(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	st := &starter{}
	h := newTestHub(t, st)
	defer h.Close()

	h.inbox <- DescriptorAvailable{Descriptor: desc(1000)}
	require.Eventually(t, func() bool { return currentPort(h) == 1000 }, time.Second, 5*time.Millisecond)

	h.inbox <- DescriptorRemoved{}
	_, err := h.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.True(t, st.session(0).closed.Load())
}

func TestHubRetriesFailedStart(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	st := &starter{failures: 2}
	h := newTestHub(t, st)
	defer h.Close()

	h.inbox <- DescriptorAvailable{Descriptor: desc(1000)}
	require.Eventually(t, func() bool { return currentPort(h) == 1000 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, st.callCount())
}

func TestHubDropsRetryAfterRemoved(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	st := &starter{failures: 1}
	h := newTestHub(t, st)
	defer h.Close()

	h.inbox <- DescriptorAvailable{Descriptor: desc(1000)}
	require.Eventually(t, func() bool { return st.callCount() == 1 }, time.Second, 5*time.Millisecond)
	h.inbox <- DescriptorRemoved{}

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, st.callCount())
	_, err := h.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestHubRestartsEndedSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	st := &starter{}
	h := newTestHub(t, st)
	defer h.Close()

	h.inbox <- DescriptorAvailable{Descriptor: desc(1000)}
	require.Eventually(t, func() bool { return currentPort(h) == 1000 }, time.Second, 5*time.Millisecond)

	st.session(0).end()
	require.Eventually(t, func() bool { return st.session(1) != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1000, currentPort(h))
}

func TestHubFollowAndClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	st := &starter{}
	h := newTestHub(t, st)

	events := make(chan lockfile.Event, 2)
	events <- lockfile.Event{Type: lockfile.EventAvailable, Descriptor: desc(1000)}
	close(events)
	h.Follow(events)

	require.Eventually(t, func() bool { return currentPort(h) == 1000 }, time.Second, 5*time.Millisecond)
	h.Close()
	assert.True(t, st.session(0).closed.Load())

	_, err := h.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}
