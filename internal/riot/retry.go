package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/kjzl/valorant-instalock/internal/metrics"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestFunc builds a fresh request for every attempt so bodies are never reused.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// StatusError is returned when the server answers outside 2xx.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Body)
}

// Send performs the request and retries it exactly once when the first
// attempt timed out. Any other failure, or a timeout on the retry, is returned.
func Send(ctx context.Context, doer Doer, build RequestFunc) (*http.Response, error) {
	resp, err := sendOnce(ctx, doer, build)
	if err == nil || !IsTimeout(err) || ctx.Err() != nil {
		return resp, err
	}

	metrics.RecordRetry()
	return sendOnce(ctx, doer, build)
}

func sendOnce(ctx context.Context, doer Doer, build RequestFunc) (*http.Response, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return doer.Do(req)
}

// IsTimeout reports whether err is a client side request timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// doJSON sends the request through Send, checks the status and decodes the
// body into out when out is non-nil.
func doJSON(ctx context.Context, doer Doer, op string, build RequestFunc, out any) error {
	resp, err := Send(ctx, doer, build)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
