package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
)

const (
	DefaultBaseURL = "https://valorant-api.com"
	FetchTimeout   = 2 * time.Second

	versionFile = "version.json"
	agentsFile  = "agents.json"
	mapsFile    = "maps.json"
)

type Version struct {
	Version           string `json:"version"`
	RiotClientVersion string `json:"riotClientVersion"`
	BuildDate         string `json:"buildDate"`
}

type Agent struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type Map struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	URL  string `json:"map_url"`
}

// Catalog is the static reference data: client version, playable agents and
// maps. Agents and maps are sorted by display name. The zero value is an
// empty catalog.
type Catalog struct {
	Version Version
	Agents  []Agent
	Maps    []Map
}

// FoldName normalizes a display name for case-insensitive comparison.
func FoldName(name string) string {
	// a Caser is stateful and not shared
	return cases.Fold().String(strings.TrimSpace(name))
}

func (c Catalog) AgentByName(name string) (Agent, bool) {
	want := FoldName(name)
	for _, a := range c.Agents {
		if FoldName(a.Name) == want {
			return a, true
		}
	}
	return Agent{}, false
}

// MapByURL resolves the asset path a pregame match reports, e.g. /Game/Maps/Ascent/Ascent.
func (c Catalog) MapByURL(url string) (Map, bool) {
	for _, m := range c.Maps {
		if m.URL == url {
			return m, true
		}
	}
	return Map{}, false
}

func (c Catalog) Empty() bool {
	return len(c.Agents) == 0 && len(c.Maps) == 0
}

// envelope is the valorant-api.com response wrapper.
type envelope[T any] struct {
	Status int `json:"status"`
	Data   T   `json:"data"`
}

type apiAgent struct {
	UUID                string `json:"uuid"`
	DisplayName         string `json:"displayName"`
	IsPlayableCharacter bool   `json:"isPlayableCharacter"`
}

type apiMap struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayName"`
	MapURL      string `json:"mapUrl"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: FetchTimeout},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Fetch downloads version, agents and maps concurrently. Any failure fails
// the whole fetch.
func (c *Client) Fetch(ctx context.Context) (Catalog, error) {
	var (
		version envelope[Version]
		agents  envelope[[]apiAgent]
		maps    envelope[[]apiMap]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.get(gctx, "/v1/version", &version) })
	g.Go(func() error { return c.get(gctx, "/v1/agents?isPlayableCharacter=true", &agents) })
	g.Go(func() error { return c.get(gctx, "/v1/maps", &maps) })
	if err := g.Wait(); err != nil {
		return Catalog{}, err
	}

	for _, status := range []int{version.Status, agents.Status, maps.Status} {
		if status < 200 || status >= 300 {
			return Catalog{}, fmt.Errorf("valorant-api status %d", status)
		}
	}

	cat := Catalog{Version: version.Data}
	for _, a := range agents.Data {
		if !a.IsPlayableCharacter {
			continue
		}
		cat.Agents = append(cat.Agents, Agent{UUID: a.UUID, Name: a.DisplayName})
	}
	for _, m := range maps.Data {
		cat.Maps = append(cat.Maps, Map{UUID: m.UUID, Name: m.DisplayName, URL: m.MapURL})
	}
	sort.Slice(cat.Agents, func(i, j int) bool { return cat.Agents[i].Name < cat.Agents[j].Name })
	sort.Slice(cat.Maps, func(i, j int) bool { return cat.Maps[i].Name < cat.Maps[j].Name })
	return cat, nil
}

// Load fetches the catalog and refreshes the cache in dir. When the fetch
// fails the cached copy is used, and when that fails too an empty catalog.
func Load(ctx context.Context, c *Client, dir string, logger *zap.Logger) Catalog {
	log := logger.Named("catalog")

	cat, err := c.Fetch(ctx)
	if err == nil {
		if dir != "" {
			if err := WriteCache(dir, cat); err != nil {
				log.Warn("failed to write catalog cache", zap.String("dir", dir), zap.Error(err))
			}
		}
		log.Debug("catalog fetched", zap.Int("agents", len(cat.Agents)), zap.Int("maps", len(cat.Maps)))
		return cat
	}
	log.Warn("failed to fetch catalog, trying cache", zap.Error(err))

	cat, err = ReadCache(dir)
	if err != nil {
		log.Warn("failed to load catalog cache, proceeding without reference data", zap.Error(err))
		return Catalog{}
	}
	return cat
}

func WriteCache(dir string, cat Catalog) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	var errs error
	errs = multierr.Append(errs, writeJSON(filepath.Join(dir, versionFile), cat.Version))
	errs = multierr.Append(errs, writeJSON(filepath.Join(dir, agentsFile), cat.Agents))
	errs = multierr.Append(errs, writeJSON(filepath.Join(dir, mapsFile), cat.Maps))
	return errs
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, b)
}

func ReadCache(dir string) (Catalog, error) {
	if dir == "" {
		return Catalog{}, errors.New("no cache dir configured")
	}
	var cat Catalog
	err := multierr.Combine(
		readJSON(filepath.Join(dir, versionFile), &cat.Version),
		readJSON(filepath.Join(dir, agentsFile), &cat.Agents),
		readJSON(filepath.Join(dir, mapsFile), &cat.Maps),
	)
	if err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
