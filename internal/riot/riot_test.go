package riot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjzl/valorant-instalock/internal/lockfile"
	"github.com/kjzl/valorant-instalock/internal/types"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// scriptedDoer answers each call with the next scripted result.
type scriptedDoer struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.results) && d.results[i] != nil {
		return nil, &url.Error{Op: req.Method, URL: req.URL.String(), Err: d.results[i]}
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"MatchID":"m1"}`)),
		Header:     http.Header{},
	}, nil
}

func buildGet(ctx context.Context) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid/x", nil)
}

func TestSendRetriesOnceOnTimeout(t *testing.T) {
	doer := &scriptedDoer{results: []error{timeoutErr{}}}

	resp, err := Send(context.Background(), doer, buildGet)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 2, doer.calls)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSendGivesUpAfterSecondTimeout(t *testing.T) {
	doer := &scriptedDoer{results: []error{timeoutErr{}, timeoutErr{}, nil}}

	_, err := Send(context.Background(), doer, buildGet)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, 2, doer.calls)
}

func TestSendDoesNotRetryOtherErrors(t *testing.T) {
	doer := &scriptedDoer{results: []error{errors.New("connection refused"), nil}}

	_, err := Send(context.Background(), doer, buildGet)
	require.Error(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestSendDoesNotRetryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doer := &scriptedDoer{results: []error{timeoutErr{}, nil}}

	_, err := Send(ctx, doer, buildGet)
	require.Error(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestStatusErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewGameClient(GameClientOptions{Subject: "p1", BaseURL: srv.URL + "/"}, srv.Client())
	_, err := c.CurrentPregame(context.Background(), types.Credentials{AccessToken: "a", EntitlementToken: "e"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "current pregame", statusErr.Op)
	assert.Equal(t, int32(1), calls.Load())
}

type recorded struct {
	method string
	path   string
	header http.Header
}

func newGameServer(t *testing.T) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var seen []recorded
	record := func(r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone()})
	}

	r := chi.NewRouter()
	r.Get("/pregame/v1/players/{puuid}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"Subject":"p1","MatchID":"pre-1","Version":1}`)
	})
	r.Get("/core-game/v1/players/{puuid}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"Subject":"p1","MatchID":"game-1","Version":1}`)
	})
	r.Get("/pregame/v1/matches/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"ID":"`+chi.URLParam(r, "id")+`","MapID":"/Game/Maps/Ascent/Ascent"}`)
	})
	r.Post("/pregame/v1/matches/{id}/lock/{agent}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/pregame/v1/matches/{id}/quit", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/core-game/v1/players/{puuid}/disassociate/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), seen...)
	}
}

func TestGameClientEndpoints(t *testing.T) {
	srv, seen := newGameServer(t)
	creds := types.Credentials{AccessToken: "access", EntitlementToken: "entitlement"}
	c := NewGameClient(GameClientOptions{
		Subject:       "p1",
		ClientVersion: "release-09.00",
		BaseURL:       srv.URL + "/",
	}, srv.Client())
	ctx := context.Background()

	pre, err := c.CurrentPregame(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, "pre-1", pre)

	match, err := c.CurrentMatch(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, "game-1", match)

	pm, err := c.PregameMatch(ctx, creds, "pre-1")
	require.NoError(t, err)
	assert.Equal(t, PregameMatch{ID: "pre-1", MapID: "/Game/Maps/Ascent/Ascent"}, pm)

	require.NoError(t, c.LockCharacter(ctx, creds, "pre-1", "agent-a"))
	require.NoError(t, c.QuitPregame(ctx, creds, "pre-1"))
	require.NoError(t, c.QuitMatch(ctx, creds, "game-1"))

	wantPaths := []string{
		"GET /pregame/v1/players/p1",
		"GET /core-game/v1/players/p1",
		"GET /pregame/v1/matches/pre-1",
		"POST /pregame/v1/matches/pre-1/lock/agent-a",
		"POST /pregame/v1/matches/pre-1/quit",
		"POST /core-game/v1/players/p1/disassociate/game-1",
	}
	got := seen()
	require.Len(t, got, len(wantPaths))
	for i, rec := range got {
		assert.Equal(t, wantPaths[i], rec.method+" "+rec.path)
		assert.Equal(t, "Bearer access", rec.header.Get("Authorization"))
		assert.Equal(t, "entitlement", rec.header.Get("X-Riot-Entitlements-JWT"))
		assert.Equal(t, "release-09.00", rec.header.Get("X-Riot-ClientVersion"))
		assert.Equal(t, ClientPlatform, rec.header.Get("X-Riot-ClientPlatform"))
	}
}

func TestRegionalURL(t *testing.T) {
	assert.Equal(t, "https://glz-eu-1.eu.a.pvp.net/", RegionalURL(types.Binding{Region: "eu", Shard: "eu"}))
	assert.Equal(t, "https://glz-latam-1.na.a.pvp.net/", RegionalURL(types.Binding{Region: "latam", Shard: "na"}))
}

func descriptorFor(t *testing.T, srv *httptest.Server) lockfile.Descriptor {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return lockfile.Descriptor{Name: "Riot Client", PID: 1, Port: port, Password: "pw", Protocol: "http"}
}

func TestLocalClient(t *testing.T) {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "riot" || pass != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/entitlements/v1/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"accessToken":"access","entitlements":[],"issuer":"x","subject":"p1","token":"entitlement"}`)
	})
	r.Get("/product-session/v1/external-sessions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"host_app": {"productId": "riot_client", "version": "1", "launchConfiguration": {"arguments": []}},
			"abc": {"productId": "valorant", "version": "release-09.00-shipping-1", "launchConfiguration": {"arguments": [
				"-ares-deployment=eu",
				"-config-endpoint=https://shared.eu.a.pvp.net",
				"-remoting-auth-token=x"
			]}}
		}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := NewLocalClient(descriptorFor(t, srv), srv.Client())
	ctx := context.Background()

	ent, err := c.Entitlements(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", ent.Subject)
	assert.Equal(t, types.Credentials{AccessToken: "access", EntitlementToken: "entitlement"}, ent.Credentials())

	gs, err := c.GameSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Binding{Shard: "eu", Region: "eu"}, gs.Binding)
	assert.Equal(t, "release-09.00-shipping-1", gs.Version)
}

func TestSessionInfoErrors(t *testing.T) {
	_, err := sessionInfo(ExternalSession{ProductID: "valorant", LaunchConfiguration: LaunchConfiguration{
		Arguments: []string{"-config-endpoint=https://shared.na.a.pvp.net"},
	}})
	require.ErrorIs(t, err, ErrNoRegion)

	_, err = sessionInfo(ExternalSession{ProductID: "valorant", LaunchConfiguration: LaunchConfiguration{
		Arguments: []string{"-ares-deployment=na"},
	}})
	require.ErrorIs(t, err, ErrNoShard)
}

func TestGameSessionMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"host_app": {"productId": "riot_client", "version": "1", "launchConfiguration": {"arguments": []}}}`)
	}))
	defer srv.Close()

	_, err := NewLocalClient(descriptorFor(t, srv), srv.Client()).GameSession(context.Background())
	require.ErrorIs(t, err, ErrNoGameSession)
}
