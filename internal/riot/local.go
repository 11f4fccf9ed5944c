package riot

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kjzl/valorant-instalock/internal/lockfile"
	"github.com/kjzl/valorant-instalock/internal/types"
)

var (
	ErrNoGameSession = errors.New("no valorant session on local client")
	ErrNoRegion      = errors.New("no region in session launch arguments")
	ErrNoShard       = errors.New("no shard in session launch arguments")
)

// RequestTimeout bounds every attempt of a local or remote call.
const RequestTimeout = 1500 * time.Millisecond

const (
	productValorant = "valorant"
	regionArgPrefix = "-ares-deployment="
	configArgPrefix = "-config-endpoint="
	configURLPrefix = "https://shared."
	configURLSuffix = ".a.pvp.net"
)

// NewHTTPClient returns the client used for local and remote calls. The local
// client serves a self-signed certificate.
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local self-signed cert
	return &http.Client{Timeout: RequestTimeout, Transport: transport}
}

// Entitlements is the local token endpoint payload.
type Entitlements struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	Subject     string `json:"subject"`
}

func (e Entitlements) Credentials() types.Credentials {
	return types.Credentials{AccessToken: e.AccessToken, EntitlementToken: e.Token}
}

type LaunchConfiguration struct {
	Arguments []string `json:"arguments"`
}

// ExternalSession is one product session reported by the local client.
type ExternalSession struct {
	ProductID           string              `json:"productId"`
	Version             string              `json:"version"`
	LaunchConfiguration LaunchConfiguration `json:"launchConfiguration"`
}

// Region reads the -ares-deployment launch argument.
func (c LaunchConfiguration) Region() (string, bool) {
	for _, arg := range c.Arguments {
		if v, ok := strings.CutPrefix(arg, regionArgPrefix); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Shard reads the shard out of -config-endpoint=https://shared.<shard>.a.pvp.net.
func (c LaunchConfiguration) Shard() (string, bool) {
	for _, arg := range c.Arguments {
		endpoint, ok := strings.CutPrefix(arg, configArgPrefix)
		if !ok {
			continue
		}
		endpoint = strings.TrimSuffix(endpoint, "/")
		rest, ok := strings.CutPrefix(endpoint, configURLPrefix)
		if !ok {
			continue
		}
		shard, ok := strings.CutSuffix(rest, configURLSuffix)
		if ok && shard != "" {
			return shard, true
		}
	}
	return "", false
}

// GameSession is what bootstrap needs from the running game.
type GameSession struct {
	Binding types.Binding
	Version string
}

// LocalClient talks to the REST API the game client exposes on 127.0.0.1.
type LocalClient struct {
	baseURL string
	auth    string
	http    Doer
}

func NewLocalClient(d lockfile.Descriptor, doer Doer) *LocalClient {
	return &LocalClient{
		baseURL: d.HTTPURL(),
		auth:    d.AuthorizationHeader(),
		http:    doer,
	}
}

func (c *LocalClient) get(path string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.auth)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
}

// Entitlements fetches the current token pair and the player's subject.
func (c *LocalClient) Entitlements(ctx context.Context) (Entitlements, error) {
	var out Entitlements
	if err := doJSON(ctx, c.http, "entitlements", c.get("entitlements/v1/token"), &out); err != nil {
		return Entitlements{}, err
	}
	return out, nil
}

// Sessions lists the product sessions keyed by session id.
func (c *LocalClient) Sessions(ctx context.Context) (map[string]ExternalSession, error) {
	out := map[string]ExternalSession{}
	if err := doJSON(ctx, c.http, "external sessions", c.get("product-session/v1/external-sessions"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GameSession finds the running valorant session and extracts its binding.
func (c *LocalClient) GameSession(ctx context.Context) (GameSession, error) {
	sessions, err := c.Sessions(ctx)
	if err != nil {
		return GameSession{}, err
	}
	for _, s := range sessions {
		if s.ProductID != productValorant {
			continue
		}
		return sessionInfo(s)
	}
	return GameSession{}, ErrNoGameSession
}

func sessionInfo(s ExternalSession) (GameSession, error) {
	region, ok := s.LaunchConfiguration.Region()
	if !ok {
		return GameSession{}, ErrNoRegion
	}
	shard, ok := s.LaunchConfiguration.Shard()
	if !ok {
		return GameSession{}, ErrNoShard
	}
	return GameSession{
		Binding: types.Binding{Shard: shard, Region: region},
		Version: s.Version,
	}, nil
}
