package riot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kjzl/valorant-instalock/internal/types"
)

// ClientPlatform is the fixed base64 platform descriptor the game servers expect.
const ClientPlatform = "ew0KCSJwbGF0Zm9ybVR5cGUiOiAiUEMiLA0KCSJwbGF0Zm9ybU9TIjogIldpbmRvd3MiLA0KCSJwbGF0Zm9ybU9TVmVyc2lvbiI6ICIxMC4wLjE5MDQyLjEuMjU2LjY0Yml0IiwNCgkicGxhdGZvcm1DaGlwc2V0IjogIlVua25vd24iDQp9"

// RegionalURL is the game-server cluster base for a binding.
func RegionalURL(b types.Binding) string {
	return fmt.Sprintf("https://glz-%s-1.%s.a.pvp.net/", b.Region, b.Shard)
}

type PlayerMatch struct {
	MatchID string `json:"MatchID"`
}

type PregameMatch struct {
	ID    string `json:"ID"`
	MapID string `json:"MapID"`
}

// GameClient calls the regional game servers on behalf of one player.
// Credentials are passed per call because they rotate during a session.
type GameClient struct {
	baseURL       string
	subject       string
	clientVersion string
	http          Doer
}

type GameClientOptions struct {
	Binding       types.Binding
	Subject       string
	ClientVersion string
	BaseURL       string // overrides the regional URL; must end in '/'
}

func NewGameClient(opts GameClientOptions, doer Doer) *GameClient {
	base := opts.BaseURL
	if base == "" {
		base = RegionalURL(opts.Binding)
	}
	return &GameClient{
		baseURL:       base,
		subject:       opts.Subject,
		clientVersion: opts.ClientVersion,
		http:          doer,
	}
}

func (c *GameClient) Subject() string { return c.subject }

func (c *GameClient) request(method, path string, creds types.Credentials) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		req.Header.Set("X-Riot-Entitlements-JWT", creds.EntitlementToken)
		req.Header.Set("X-Riot-ClientVersion", c.clientVersion)
		req.Header.Set("X-Riot-ClientPlatform", ClientPlatform)
		return req, nil
	}
}

// CurrentPregame returns the pregame match id of the player, if any.
func (c *GameClient) CurrentPregame(ctx context.Context, creds types.Credentials) (string, error) {
	var out PlayerMatch
	path := "pregame/v1/players/" + url.PathEscape(c.subject)
	if err := doJSON(ctx, c.http, "current pregame", c.request(http.MethodGet, path, creds), &out); err != nil {
		return "", err
	}
	return out.MatchID, nil
}

// CurrentMatch returns the in-game match id of the player, if any.
func (c *GameClient) CurrentMatch(ctx context.Context, creds types.Credentials) (string, error) {
	var out PlayerMatch
	path := "core-game/v1/players/" + url.PathEscape(c.subject)
	if err := doJSON(ctx, c.http, "current match", c.request(http.MethodGet, path, creds), &out); err != nil {
		return "", err
	}
	return out.MatchID, nil
}

func (c *GameClient) PregameMatch(ctx context.Context, creds types.Credentials, matchID string) (PregameMatch, error) {
	var out PregameMatch
	path := "pregame/v1/matches/" + url.PathEscape(matchID)
	if err := doJSON(ctx, c.http, "pregame match", c.request(http.MethodGet, path, creds), &out); err != nil {
		return PregameMatch{}, err
	}
	return out, nil
}

// LockCharacter locks agentID for the player in the pregame match.
func (c *GameClient) LockCharacter(ctx context.Context, creds types.Credentials, matchID, agentID string) error {
	path := fmt.Sprintf("pregame/v1/matches/%s/lock/%s", url.PathEscape(matchID), url.PathEscape(agentID))
	return doJSON(ctx, c.http, "lock character", c.request(http.MethodPost, path, creds), nil)
}

// QuitPregame dodges the pregame match.
func (c *GameClient) QuitPregame(ctx context.Context, creds types.Credentials, matchID string) error {
	path := fmt.Sprintf("pregame/v1/matches/%s/quit", url.PathEscape(matchID))
	return doJSON(ctx, c.http, "quit pregame", c.request(http.MethodPost, path, creds), nil)
}

// QuitMatch disassociates the player from the running match.
func (c *GameClient) QuitMatch(ctx context.Context, creds types.Credentials, matchID string) error {
	path := fmt.Sprintf("core-game/v1/players/%s/disassociate/%s", url.PathEscape(c.subject), url.PathEscape(matchID))
	return doJSON(ctx, c.http, "quit match", c.request(http.MethodPost, path, creds), nil)
}
