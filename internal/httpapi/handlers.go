package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kjzl/valorant-instalock/internal/hub"
	"github.com/kjzl/valorant-instalock/internal/ws"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

// enqueue answers 202 once the command is queued; the outcome is only logged
// by the session.
func enqueue(h ws.Sessions, send func(ctx context.Context, s hub.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.Current(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		if err := send(r.Context(), s); err != nil {
			code := http.StatusServiceUnavailable
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				code = http.StatusRequestTimeout
			}
			writeError(w, code, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func QuitPregame(h ws.Sessions) http.HandlerFunc {
	return enqueue(h, func(ctx context.Context, s hub.Session) error { return s.QuitPregame(ctx) })
}

func QuitMatch(h ws.Sessions) http.HandlerFunc {
	return enqueue(h, func(ctx context.Context, s hub.Session) error { return s.QuitMatch(ctx) })
}

func Pause(p ws.Pauser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.Set()
		w.WriteHeader(http.StatusNoContent)
	}
}

func Resume(p ws.Pauser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}

func Status(h ws.Sessions, p ws.Pauser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ws.CurrentStatus(r.Context(), h, p))
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
