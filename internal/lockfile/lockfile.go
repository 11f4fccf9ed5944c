package lockfile

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("malformed lockfile")

const localUser = "riot"

// Descriptor is the parsed content of the game client's lockfile. It is
// immutable and replaced wholesale whenever the lockfile changes.
type Descriptor struct {
	Name     string
	PID      int
	Port     int
	Password string
	Protocol string
}

// Parse reads "name:pid:port:password:protocol". Fields are taken from the
// right so a name containing ':' still parses.
func Parse(raw string) (Descriptor, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 5 {
		return Descriptor{}, fmt.Errorf("%w: want 5 fields, got %d", ErrMalformed, len(parts))
	}
	n := len(parts)

	port, err := strconv.Atoi(parts[n-3])
	if err != nil || port <= 0 || port > 65535 {
		return Descriptor{}, fmt.Errorf("%w: bad port %q", ErrMalformed, parts[n-3])
	}
	pid, err := strconv.Atoi(parts[n-4])
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: bad pid %q", ErrMalformed, parts[n-4])
	}

	d := Descriptor{
		Name:     strings.Join(parts[:n-4], ":"),
		PID:      pid,
		Port:     port,
		Password: parts[n-2],
		Protocol: parts[n-1],
	}
	if d.Protocol == "" {
		return Descriptor{}, fmt.Errorf("%w: empty protocol", ErrMalformed)
	}
	return d, nil
}

func ReadFile(path string) (Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read lockfile: %w", err)
	}
	return Parse(string(b))
}

// HTTPURL is the local REST base, always ending in '/'.
func (d Descriptor) HTTPURL() string {
	return fmt.Sprintf("%s://127.0.0.1:%d/", d.Protocol, d.Port)
}

// WebsocketURL is the local event channel; https maps to wss.
func (d Descriptor) WebsocketURL() string {
	scheme := "wss"
	if d.Protocol == "http" {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://127.0.0.1:%d/", scheme, d.Port)
}

func (d Descriptor) BasicAuth() (user, password string) {
	return localUser, d.Password
}

// AuthorizationHeader is the value for the Authorization header of local calls.
func (d Descriptor) AuthorizationHeader() string {
	user, password := d.BasicAuth()
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// DefaultPath is where the Riot Client writes its lockfile on Windows.
func DefaultPath() string {
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			base = dir
		}
	}
	return filepath.Join(base, "Riot Games", "Riot Client", "Config", "lockfile")
}
