// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the latest snapshot, cached recordings and device
// controls over HTTP and a websocket feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/camsync/internal/health"
	"github.com/ManuGH/camsync/internal/history"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/poller"
)

// SnapshotSource is the poller as seen by the API.
type SnapshotSource interface {
	Latest() *poller.Snapshot
	Trigger() bool
	Busy() bool
}

// HistoryReader lists recent sync attempts and their totals per outcome.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Event, error)
	CountByOutcome(ctx context.Context) (map[string]int, error)
}

// DeviceControl is the subset of the device client the API drives.
type DeviceControl interface {
	SetMotionDetection(ctx context.Context, enabled bool) error
	SnapPicture(ctx context.Context) ([]byte, error)
}

// Config controls the HTTP surface.
type Config struct {
	// RateLimit is requests per minute per client IP on /api/v1; zero
	// disables limiting.
	RateLimit int
	// Tracing wraps the router with OpenTelemetry spans.
	Tracing bool
}

// Deps are the API collaborators. History and Device may be nil, in which
// case their routes answer 503.
type Deps struct {
	Snapshots SnapshotSource
	History   HistoryReader
	Device    DeviceControl
	Health    *health.Manager
	Hub       *Hub
}

type Server struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Snapshots.Latest)
	}
	return &Server{cfg: cfg, deps: deps}
}

// Hub returns the websocket hub so it can be subscribed to snapshots.
func (s *Server) Hub() *Hub { return s.deps.Hub }

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(xglog.Middleware())

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(rateLimit(s.cfg.RateLimit, time.Minute))
		}
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/recordings", s.handleRecordings)
		r.Get("/recordings/{index}/video", s.handleRecordingFile(false))
		r.Get("/recordings/{index}/thumbnail", s.handleRecordingFile(true))
		r.Get("/history", s.handleHistory)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/motion", s.handleMotion)
		r.Get("/live.jpg", s.handleLiveImage)
		r.Get("/ws", s.deps.Hub.ServeWS)
	})

	if !s.cfg.Tracing {
		return r
	}
	return otelhttp.NewHandler(r, "camsync-api",
		otelhttp.WithFilter(func(req *http.Request) bool {
			switch req.URL.Path {
			case "/healthz", "/readyz", "/api/v1/ws":
				return false
			}
			return true
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error:  "rate_limit_exceeded",
				Detail: "too many requests, try again later",
			})
		}),
	)
}
