// Package api wires the HTTP surface: scenario ingest, frame sampling, orbit
// paths, diagnostics, the SSE frame stream, probes and metrics.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/gorilla/mux"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/auth"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/engine"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/health"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/metrics"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/playback"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/scenario"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/stream"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/timeline"
)

// maxScenarioBody caps the scenario ingest body (64 MiB covers dense sample
// clouds with generous margin).
const maxScenarioBody = 64 << 20

// Server is the HTTP API server.
type Server struct {
	engine  *engine.Engine
	store   *scenario.Store
	streams *stream.Handler
	auth    auth.Config
	logger  *slog.Logger
	addr    string
}

// Config holds the server wiring.
type Config struct {
	Addr      string
	AuthToken string
}

// NewServer assembles the API server around an engine and a stream handler.
func NewServer(cfg Config, eng *engine.Engine, store *scenario.Store, streams *stream.Handler, logger *slog.Logger) *Server {
	return &Server{
		engine:  eng,
		store:   store,
		streams: streams,
		auth:    auth.Config{Token: cfg.AuthToken},
		logger:  logger,
		addr:    cfg.Addr,
	}
}

// Router builds the route table with the middleware chain applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", health.Healthz).Methods(http.MethodGet)
	r.Handle("/readyz", health.Readyz(func() bool {
		return s.engine.Current() != nil
	})).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/scenario", s.handleLoadScenario).Methods(http.MethodPost)
	v1.HandleFunc("/scenario", s.handleGetScenario).Methods(http.MethodGet)
	v1.HandleFunc("/frame", s.handleFrame).Methods(http.MethodGet)
	v1.HandleFunc("/orbit/{body}", s.handleOrbitPath).Methods(http.MethodGet)
	v1.HandleFunc("/diagnostics", s.handleDiagnostics).Methods(http.MethodGet)
	v1.HandleFunc("/stream/frames", s.streams.HandleFrames).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = auth.Middleware(s.auth)(handler)
	handler = s.loggingMiddleware(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns a configured *http.Server. WriteTimeout is left at zero
// because the SSE stream is long-lived; per-write deadlines are enforced in
// the stream package instead.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// handleLoadScenario ingests a physics-service payload and activates it.
// POST /api/v1/scenario
func (s *Server) handleLoadScenario(w http.ResponseWriter, r *http.Request) {
	s.store.Lock()
	defer s.store.Unlock()

	sc, err := scenario.Parse(http.MaxBytesReader(w, r.Body, maxScenarioBody), s.logger)
	if err != nil {
		metrics.IncScenarioLoads("parse_error")
		s.logger.Warn("scenario rejected", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sc.Source = "api"

	sim, err := s.engine.Load(sc)
	if err != nil {
		metrics.IncScenarioLoads("load_error")
		s.logger.Warn("scenario load failed", "asteroid_id", sc.AsteroidID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	metrics.IncScenarioLoads("success")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "loaded",
		"asteroid_id":     sc.AsteroidID,
		"asteroid_points": sim.Asteroid.Len(),
		"earth_points":    sim.Earth.Len(),
		"timestamped":     sim.Asteroid.Timestamped(),
		"span":            spanPayload(sim.Span),
	})
}

// handleGetScenario returns metadata about the active scenario.
// GET /api/v1/scenario
func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	sim := s.engine.Current()
	if sim == nil {
		writeError(w, http.StatusNotFound, "no scenario loaded")
		return
	}
	sc := sim.Scenario

	writeJSON(w, http.StatusOK, map[string]any{
		"asteroid_id":     sc.AsteroidID,
		"epoch":           sc.Epoch,
		"asteroid_points": sim.Asteroid.Len(),
		"earth_points":    sim.Earth.Len(),
		"timestamped":     sim.Asteroid.Timestamped(),
		"span":            spanPayload(sim.Span),
		"orbit":           sc.AsteroidOrbit,
		"earth_spin":      sc.Spin,
		"source":          sc.Source,
		"age_seconds":     s.store.AgeSeconds(),
	})
}

// handleFrame samples both bodies at a fixed progress value.
// GET /api/v1/frame?progress=0.5
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	progress := 0.0
	if v := r.URL.Query().Get("progress"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			writeError(w, http.StatusBadRequest, "invalid progress parameter, must be 0-1")
			return
		}
		progress = f
	}

	frame, ok := s.engine.FrameAt(progress)
	if !ok {
		writeError(w, http.StatusNotFound, "no scenario loaded")
		return
	}
	writeJSON(w, http.StatusOK, framePayload(frame))
}

// handleOrbitPath returns the static full-orbit path for one body.
// GET /api/v1/orbit/{body}
func (s *Server) handleOrbitPath(w http.ResponseWriter, r *http.Request) {
	body := mux.Vars(r)["body"]
	path, ok := s.engine.OrbitPath(body)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no orbit path for body %q", body))
		return
	}

	points := make([][3]float64, len(path))
	for i, p := range path {
		points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"body":   body,
		"points": points,
	})
}

// handleDiagnostics compares the sampled clouds against the authoritative
// orbit metadata.
// GET /api/v1/diagnostics
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	report, ok := s.engine.Diagnostics()
	if !ok {
		writeError(w, http.StatusNotFound, "no scenario loaded or too few samples")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// loggingMiddleware logs each request with status and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The SSE stream logs its own lifecycle; a per-request line here would
		// only fire at disconnect.
		if r.URL.Path == "/api/v1/stream/frames" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func spanPayload(span playback.TimeSpan) map[string]any {
	if !span.Valid {
		return map[string]any{"valid": false}
	}
	return map[string]any{
		"valid": true,
		"start": span.Start,
		"end":   span.End,
	}
}

func framePayload(f playback.Frame) map[string]any {
	out := map[string]any{
		"progress": f.Progress,
		"idle":     f.Idle,
	}
	if f.HasSimTime {
		out["sim_time"] = f.SimTime
	}
	if f.AsteroidOK {
		out["asteroid"] = bodyPayload(f.Asteroid)
	}
	if f.EarthOK {
		out["earth"] = bodyPayload(f.Earth)
	}
	return out
}

func bodyPayload(v timeline.Value) map[string]any {
	body := map[string]any{
		"p": [3]float64{v.Position.X, v.Position.Y, v.Position.Z},
		"t": v.Timestamp,
	}
	if v.HasVelocity {
		body["v"] = [3]float64{v.Velocity.X, v.Velocity.Y, v.Velocity.Z}
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
