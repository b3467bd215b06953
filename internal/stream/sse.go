// Package stream implements Server-Sent Events (SSE) streaming of playback
// frames. Clients connect via GET /api/v1/stream/frames and receive a
// continuous stream of synchronized asteroid/Earth positions; each connection
// owns its own playback clock, so the single-writer rule for playback state
// holds per stream.
//
// SSE message format:
//
//	data: {"type":"frame","progress":0.42,"asteroid":{...},"earth":{...}}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","asteroid_id":"...","duration_ms":20000,...}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent
// timeout. When the active scenario is replaced mid-stream the clock is
// reloaded atomically and a fresh metadata message is emitted.
package stream

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"golang.org/x/time/rate"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/engine"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/metrics"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/playback"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/timeline"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	MaxFPS             int           // Upper bound for the fps query parameter.
	TrustProxy         bool          // Trust X-Forwarded-For / X-Real-IP.
}

// Handler manages SSE frame-streaming connections.
type Handler struct {
	engine  *engine.Engine
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(eng *engine.Engine, config Config, logger *slog.Logger) *Handler {
	if config.MaxFPS <= 0 {
		config.MaxFPS = 60
	}
	return &Handler{
		engine:  eng,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

// HandleFrames serves the SSE playback stream.
// GET /api/v1/stream/frames?fps=30&duration_ms=20000&progress=0&autoplay=true
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	fps := 30
	if fps > h.config.MaxFPS {
		fps = h.config.MaxFPS
	}
	if v := r.URL.Query().Get("fps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > h.config.MaxFPS {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid fps parameter, must be 1-%d", h.config.MaxFPS))
			return
		}
		fps = n
	}

	durationMs := 0.0
	if v := r.URL.Query().Get("duration_ms"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 500 || f > 600000 {
			writeJSONError(w, http.StatusBadRequest, "invalid duration_ms parameter, must be 500-600000")
			return
		}
		durationMs = f
	}

	startProgress := 0.0
	if v := r.URL.Query().Get("progress"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			writeJSONError(w, http.StatusBadRequest, "invalid progress parameter, must be 0-1")
			return
		}
		startProgress = f
	}

	autoplay := true
	if v := r.URL.Query().Get("autoplay"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid autoplay parameter, must be boolean")
			return
		}
		autoplay = b
	}

	ip := clientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeJSONError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"fps", fps,
		"autoplay", autoplay,
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) to prevent thundering-herd reconnection
	// storms when the server restarts.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	// Per-connection playback clock: this goroutine is its only writer.
	clock := h.engine.NewClock()
	clock.SetDuration(durationMs)
	clock.Seek(startProgress)
	if autoplay && clock.Loaded() {
		if err := clock.Play(); err != nil {
			h.logger.Debug("stream autoplay unavailable", "remote_ip", ip, "error", err)
		}
	}
	currentSim := h.engine.Current()

	if err := c.sendJSON(h.metadataMessage(currentSim, clock)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	interval := time.Second / time.Duration(fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	// Cap the outbound frame rate even when the ticker falls behind and
	// fires in bursts.
	sendLimiter := rate.NewLimiter(rate.Limit(fps), fps)

	ctx := r.Context()
	lastTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			// Scenario replacement: reload the clock atomically and tell the
			// client before the next frame.
			if sim := h.engine.Current(); sim != currentSim {
				currentSim = sim
				clock = h.engine.NewClock()
				clock.SetDuration(durationMs)
				if autoplay && clock.Loaded() {
					if err := clock.Play(); err != nil {
						h.logger.Debug("stream autoplay unavailable", "remote_ip", ip, "error", err)
					}
				}
				if err := c.sendJSON(h.metadataMessage(currentSim, clock)); err != nil {
					metrics.IncStreamErrors("send_error")
					h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
					return
				}
			}

			deltaMs := float64(now.Sub(lastTick)) / float64(time.Millisecond)
			lastTick = now

			frame := clock.Tick(deltaMs)

			if !sendLimiter.Allow() {
				metrics.IncStreamErrors("rate_limit")
				continue
			}

			if err := c.sendJSON(buildFrameMessage(frame, clock.State())); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			metrics.IncFramesStreamed()

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// metadataMessage describes the active simulation and playback parameters.
func (h *Handler) metadataMessage(sim *engine.Simulation, clock *playback.Clock) metadataPayload {
	state := clock.State()
	meta := metadataPayload{
		Type:       "metadata",
		DurationMs: state.DurationMs,
		Playing:    state.IsPlaying,
		Idle:       !clock.Loaded(),
	}
	if sim != nil {
		meta.AsteroidID = sim.Scenario.AsteroidID
		meta.ScenarioEpoch = sim.Scenario.Epoch
		if sim.Span.Valid {
			meta.SpanStart = &sim.Span.Start
			meta.SpanEnd = &sim.Span.End
		}
	}
	return meta
}

// buildFrameMessage formats a playback frame into the SSE payload.
func buildFrameMessage(f playback.Frame, st playback.State) frameMessage {
	msg := frameMessage{
		Type:     "frame",
		Progress: f.Progress,
		Playing:  st.IsPlaying,
		Idle:     f.Idle,
	}
	if f.HasSimTime {
		msg.SimTime = &f.SimTime
	}
	if f.AsteroidOK {
		msg.Asteroid = newBodyPayload(f.Asteroid)
	}
	if f.EarthOK {
		msg.Earth = newBodyPayload(f.Earth)
	}
	return msg
}

// SSE message payload types.

type metadataPayload struct {
	Type          string   `json:"type"`
	AsteroidID    string   `json:"asteroid_id,omitempty"`
	ScenarioEpoch float64  `json:"scenario_epoch,omitempty"`
	DurationMs    float64  `json:"duration_ms"`
	Playing       bool     `json:"playing"`
	Idle          bool     `json:"idle"`
	SpanStart     *float64 `json:"span_start,omitempty"`
	SpanEnd       *float64 `json:"span_end,omitempty"`
}

type frameMessage struct {
	Type     string       `json:"type"`
	Progress float64      `json:"progress"`
	Playing  bool         `json:"playing"`
	Idle     bool         `json:"idle"`
	SimTime  *float64     `json:"sim_time,omitempty"`
	Asteroid *bodyPayload `json:"asteroid,omitempty"`
	Earth    *bodyPayload `json:"earth,omitempty"`
}

type bodyPayload struct {
	P [3]float64  `json:"p"`
	V *[3]float64 `json:"v,omitempty"`
	T float64     `json:"t"`
}

func newBodyPayload(v timeline.Value) *bodyPayload {
	bp := &bodyPayload{
		P: [3]float64{v.Position.X, v.Position.Y, v.Position.Z},
		T: v.Timestamp,
	}
	if v.HasVelocity {
		bp.V = &[3]float64{v.Velocity.X, v.Velocity.Y, v.Velocity.Z}
	}
	return bp
}
