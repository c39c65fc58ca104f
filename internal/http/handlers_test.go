package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/service-matching/internal/config"
	"github.com/example/service-matching/internal/models"
	"github.com/example/service-matching/internal/notify"
	"github.com/example/service-matching/internal/observability"
	"github.com/example/service-matching/internal/storage"
)

func newTestServer(store storage.Store) *Server {
	bus := notify.NewBus()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(store, nil, nil, nil, bus, bus, config.DefaultMatchingConfig(), logger)
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestCreateRequestEndpoint(t *testing.T) {
	store := storage.NewMemoryStore()
	p := models.Provider{
		ID: "p1", Category: "plumbing", Location: &models.Coord{Lat: 0.02, Lon: 0},
		ServiceRadiusKm: 50, Rating: 4.8, YearsExperience: 10,
		TotalJobs: 50, CompletedJobs: 50, Available: true, Verified: true,
	}
	_ = store.UpsertProvider(context.Background(), &p)
	s := newTestServer(store)

	rec := postJSON(t, s, "/api/v1/requests", map[string]any{
		"customer_id": "c1",
		"category":    "plumbing",
		"location":    map[string]float64{"lat": 0, "lon": 0},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Request models.ServiceRequest `json:"request"`
		Matches []models.RankedMatch  `json:"matches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Request.Status != models.RequestMatched || len(out.Matches) != 1 {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestCreateRequestValidationMapsTo400(t *testing.T) {
	s := newTestServer(storage.NewMemoryStore())
	rec := postJSON(t, s, "/api/v1/requests", map[string]any{"customer_id": "c1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateRequestNoProvidersGuidance(t *testing.T) {
	s := newTestServer(storage.NewMemoryStore())
	rec := postJSON(t, s, "/api/v1/requests", map[string]any{
		"customer_id": "c1",
		"category":    "roofing",
		"location":    map[string]float64{"lat": 0, "lon": 0},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("soft outcome should still create, got %d", rec.Code)
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["guidance"] == nil {
		t.Fatalf("expected guidance in body: %s", rec.Body.String())
	}
}

func TestAcceptEndpointStatusMapping(t *testing.T) {
	store := storage.NewMemoryStore()
	req := models.ServiceRequest{
		ID: "r1", CustomerID: "c1", Category: "plumbing",
		Urgency: models.UrgencyNormal, Status: models.RequestPending,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	_ = store.CreateRequest(context.Background(), &req)
	_ = store.CreateMatches(context.Background(), []models.Match{
		{RequestID: "r1", ProviderID: "A", Score: 80, Status: models.MatchPending, CreatedAt: time.Now()},
		{RequestID: "r1", ProviderID: "B", Score: 70, Status: models.MatchPending, CreatedAt: time.Now()},
	})
	_ = store.MarkMatched(context.Background(), "r1")
	s := newTestServer(store)

	rec := postJSON(t, s, "/api/v1/requests/r1/accept", map[string]string{"provider_id": "A"})
	if rec.Code != http.StatusOK {
		t.Fatalf("winner expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = postJSON(t, s, "/api/v1/requests/r1/accept", map[string]string{"provider_id": "B"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("loser expected 409, got %d", rec.Code)
	}
	rec = postJSON(t, s, "/api/v1/requests/r1/accept", map[string]string{"provider_id": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown match expected 404, got %d", rec.Code)
	}
	rec = postJSON(t, s, "/api/v1/requests/r1/accept", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing provider_id expected 400, got %d", rec.Code)
	}
}

func TestCancelEndpointAfterAccept(t *testing.T) {
	store := storage.NewMemoryStore()
	req := models.ServiceRequest{
		ID: "r1", CustomerID: "c1", Category: "plumbing",
		Urgency: models.UrgencyNormal, Status: models.RequestPending,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	_ = store.CreateRequest(context.Background(), &req)
	_ = store.CreateMatches(context.Background(), []models.Match{
		{RequestID: "r1", ProviderID: "A", Score: 80, Status: models.MatchPending, CreatedAt: time.Now()},
	})
	_ = store.MarkMatched(context.Background(), "r1")
	s := newTestServer(store)

	rec := postJSON(t, s, "/api/v1/requests/r1/accept", map[string]string{"provider_id": "A"})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: %d", rec.Code)
	}
	rec = postJSON(t, s, "/api/v1/requests/r1/cancel", nil)
	if rec.Code != http.StatusGone {
		t.Fatalf("cancel after accept expected 410, got %d", rec.Code)
	}
}

func TestProviderStatusEndpoint(t *testing.T) {
	store := storage.NewMemoryStore()
	s := newTestServer(store)
	rec := postJSON(t, s, "/internal/provider/status", models.Provider{
		ID: "p1", Category: "plumbing", Available: true, Verified: true,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	p, err := store.GetProvider(context.Background(), "p1")
	if err != nil || !p.Available {
		t.Fatalf("provider not stored: %+v err=%v", p, err)
	}
	rec = postJSON(t, s, "/internal/provider/status", models.Provider{ID: "p1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing category expected 400, got %d", rec.Code)
	}
}

func TestProviderStatusGaugeTracksTransitions(t *testing.T) {
	s := newTestServer(storage.NewMemoryStore())
	base := testutil.ToFloat64(observability.ProvidersOnline)

	post := func(available bool) {
		t.Helper()
		rec := postJSON(t, s, "/internal/provider/status", models.Provider{
			ID: "p1", Category: "plumbing", Available: available,
		})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}

	post(true)
	if got := testutil.ToFloat64(observability.ProvidersOnline) - base; got != 1 {
		t.Fatalf("first online post should add 1, got %v", got)
	}
	// repeated heartbeats while already online must not inflate the gauge
	post(true)
	post(true)
	if got := testutil.ToFloat64(observability.ProvidersOnline) - base; got != 1 {
		t.Fatalf("repeated online posts should stay at 1, got %v", got)
	}
	post(false)
	if got := testutil.ToFloat64(observability.ProvidersOnline) - base; got != 0 {
		t.Fatalf("going offline should return to 0, got %v", got)
	}
	// offline posts for an already-offline provider must not go negative
	post(false)
	if got := testutil.ToFloat64(observability.ProvidersOnline) - base; got != 0 {
		t.Fatalf("repeated offline posts should stay at 0, got %v", got)
	}
}

func TestSubscriptionRejectsPlainHTTP(t *testing.T) {
	s := newTestServer(storage.NewMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/ws/requests/r1", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-websocket request expected 400, got %d", rec.Code)
	}
}

func TestNewServerFromConfig(t *testing.T) {
	cfg := config.ServerConfig{Matching: config.DefaultMatchingConfig(), LogLevel: "error"}
	s, err := NewServerFromConfig(cfg)
	if err != nil {
		t.Fatalf("wire from config: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", rec.Code)
	}
}
