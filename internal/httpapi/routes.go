package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjzl/valorant-instalock/internal/ws"
)

func SetupRoutes(h ws.Sessions, p ws.Pauser) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/pregame/quit", QuitPregame(h))
	r.Post("/match/quit", QuitMatch(h))
	r.Post("/pause", Pause(p))
	r.Post("/resume", Resume(p))
	r.Get("/status", Status(h, p))
	r.Get("/ws", ws.Handler(h, p))
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}
