package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/engine"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/scenario"
	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/stream"
)

const testPayload = `{
	"asteroid_id": "impactor-1",
	"asteroid_positions": [[1.2e8,0,0], [0,1.3e8,0], [-1.2e8,0,0], [0,-1.3e8,0], [1.2e8,0,0]],
	"timestamps": [0, 1000, 2000, 3000, 4000],
	"asteroid_orbit": {"a_au": 0.85, "e": 0.08, "period_seconds": 2.5e7}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	store := scenario.NewStore()
	eng, err := engine.New(engine.Config{
		ScaleFactor:     1e-6,
		OrbitPathPoints: 32,
		DurationMs:      20000,
	}, store, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	streams := stream.NewHandler(eng, stream.Config{
		MaxConcurrentPerIP: 2,
		KeepaliveInterval:  time.Second,
		MaxFPS:             60,
	}, testLogger())
	return NewServer(Config{Addr: ":0", AuthToken: token}, eng, store, streams, testLogger())
}

func postScenario(t *testing.T, router http.Handler) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenario", strings.NewReader(testPayload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("scenario load status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	router := newTestServer(t, "").Router()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestReadyzTracksScenario(t *testing.T) {
	router := newTestServer(t, "").Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before load = %d, want 503", rec.Code)
	}

	postScenario(t, router)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status after load = %d, want 200", rec.Code)
	}
}

func TestLoadScenario(t *testing.T) {
	router := newTestServer(t, "").Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenario", strings.NewReader(testPayload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status         string `json:"status"`
		AsteroidID     string `json:"asteroid_id"`
		AsteroidPoints int    `json:"asteroid_points"`
		Timestamped    bool   `json:"timestamped"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "loaded" || resp.AsteroidID != "impactor-1" {
		t.Errorf("response = %+v", resp)
	}
	if resp.AsteroidPoints != 5 || !resp.Timestamped {
		t.Errorf("response = %+v", resp)
	}
}

func TestLoadScenarioRejectsBadPayload(t *testing.T) {
	router := newTestServer(t, "").Router()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{{{", http.StatusBadRequest},
		{"no positions", `{"asteroid_id": "x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scenario", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGetScenario(t *testing.T) {
	router := newTestServer(t, "").Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scenario", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status before load = %d, want 404", rec.Code)
	}

	postScenario(t, router)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scenario", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["asteroid_id"] != "impactor-1" {
		t.Errorf("asteroid_id = %v", resp["asteroid_id"])
	}
	if _, ok := resp["earth_spin"]; !ok {
		t.Error("earth_spin missing from metadata")
	}
}

func TestFrame(t *testing.T) {
	router := newTestServer(t, "").Router()
	postScenario(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/frame?progress=0.5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Progress float64 `json:"progress"`
		SimTime  float64 `json:"sim_time"`
		Asteroid *struct {
			P [3]float64 `json:"p"`
			T float64    `json:"t"`
		} `json:"asteroid"`
		Earth *json.RawMessage `json:"earth"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Progress != 0.5 {
		t.Errorf("progress = %g", resp.Progress)
	}
	if resp.SimTime != 2000 {
		t.Errorf("sim_time = %g, want 2000", resp.SimTime)
	}
	if resp.Asteroid == nil || resp.Earth == nil {
		t.Error("body samples missing")
	}
}

func TestFrameValidation(t *testing.T) {
	router := newTestServer(t, "").Router()
	postScenario(t, router)

	for _, q := range []string{"progress=2", "progress=-0.1", "progress=abc"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/frame?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestOrbitPath(t *testing.T) {
	router := newTestServer(t, "").Router()
	postScenario(t, router)

	for _, body := range []string{"asteroid", "earth"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orbit/"+body, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", body, rec.Code)
		}
		var resp struct {
			Body   string       `json:"body"`
			Points [][3]float64 `json:"points"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Body != body || len(resp.Points) != 32 {
			t.Errorf("%s: body=%q points=%d", body, resp.Body, len(resp.Points))
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orbit/moon", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown body: status = %d, want 404", rec.Code)
	}
}

func TestDiagnostics(t *testing.T) {
	router := newTestServer(t, "").Router()
	postScenario(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diagnostics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		AsteroidID string           `json:"asteroid_id"`
		Asteroid   *json.RawMessage `json:"asteroid"`
		Approach   *json.RawMessage `json:"closest_approach"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.AsteroidID != "impactor-1" || resp.Asteroid == nil {
		t.Errorf("response = %+v", resp)
	}
	if resp.Approach == nil {
		t.Error("closest approach missing")
	}
}

func TestAuthProtectsMutations(t *testing.T) {
	router := newTestServer(t, "secret-token").Router()

	// Unauthenticated POST is rejected.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenario", strings.NewReader(testPayload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	// Wrong token is rejected.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/scenario", strings.NewReader(testPayload))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	// Correct token passes.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/scenario", strings.NewReader(testPayload))
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	// GETs stay public.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("unauthenticated GET status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestServer(t, "").Router()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "meteorsim_") {
		t.Error("metrics output missing meteorsim_ series")
	}
}
