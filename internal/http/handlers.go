package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/service-matching/internal/arbiter"
	"github.com/example/service-matching/internal/config"
	"github.com/example/service-matching/internal/dispatcher"
	"github.com/example/service-matching/internal/ingest"
	"github.com/example/service-matching/internal/logging"
	"github.com/example/service-matching/internal/models"
	"github.com/example/service-matching/internal/notify"
	"github.com/example/service-matching/internal/observability"
	"github.com/example/service-matching/internal/registry"
	"github.com/example/service-matching/internal/storage"
)

type Server struct {
	Dispatcher *dispatcher.Dispatcher
	Arbiter    *arbiter.Arbiter
	Store      storage.Store
	Bus        *notify.Bus
	Registry   *registry.RedisRegistry // nil when Redis is not configured
	Producer   *ingest.KafkaProducer   // nil when Kafka is not configured

	logger *slog.Logger
	mux    *mux.Router
}

// NewServerFromEnv wires the full service from environment configuration
// with sensible fallbacks: memory store without PG_DSN, no registry without
// REDIS_ADDR, bus-only notifications without KAFKA_BROKERS.
func NewServerFromEnv() (*Server, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	return NewServerFromConfig(cfg)
}

// NewServerFromConfig wires the service from an already-loaded configuration.
func NewServerFromConfig(cfg config.ServerConfig) (*Server, error) {
	logger := logging.NewLogger(cfg.LogLevel)

	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		store = ps
	} else {
		store = storage.NewMemoryStore()
	}

	var reg *registry.RedisRegistry
	if cfg.RedisAddr != "" {
		reg = registry.NewRedisRegistry(cfg.RedisAddr, cfg.RedisPassword)
	}

	bus := notify.NewBus()
	var notifier notify.Notifier = bus
	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		notifier = notify.Multi{bus, notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaEventTopic)}
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaStatusTopic)
	}

	var snap registry.Snapshotter
	if reg != nil {
		snap = reg
	}
	return NewServer(store, snap, reg, producer, bus, notifier, cfg.Matching, logger), nil
}

func NewServer(store storage.Store, snap registry.Snapshotter, reg *registry.RedisRegistry, producer *ingest.KafkaProducer, bus *notify.Bus, notifier notify.Notifier, mcfg config.MatchingConfig, logger *slog.Logger) *Server {
	s := &Server{
		Dispatcher: dispatcher.New(store, snap, notifier, mcfg, logger),
		Arbiter:    arbiter.New(store, notifier, logger),
		Store:      store,
		Bus:        bus,
		Registry:   reg,
		Producer:   producer,
		logger:     logger,
		mux:        mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/requests", s.handleCreateRequest).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests/preview", s.handlePreview).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests/{request_id}", s.handleGetRequest).Methods("GET")
	s.mux.HandleFunc("/api/v1/requests/{request_id}/accept", s.handleAccept).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests/{request_id}/cancel", s.handleCancel).Methods("POST")
	s.mux.HandleFunc("/internal/provider/status", s.handleProviderStatus).Methods("POST")
	s.mux.HandleFunc("/ws/requests/{request_id}", s.handleRequestWS)
	s.mux.HandleFunc("/ws/providers/{provider_id}", s.handleProviderWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var in dispatcher.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	res, err := s.Dispatcher.CreateServiceRequest(r.Context(), in)
	switch {
	case errors.Is(err, dispatcher.ErrNoEligibleProviders):
		// soft outcome: the request was created and persists as pending
		writeJSON(w, http.StatusCreated, map[string]any{
			"request":  res.Request,
			"matches":  []models.RankedMatch{},
			"partial":  res.Partial,
			"guidance": "no eligible providers found; widen the search radius or retry later",
		})
	case err != nil:
		s.writeDomainError(w, err)
	default:
		writeJSON(w, http.StatusCreated, res)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var in dispatcher.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	prev, err := s.Dispatcher.FindMatchingProviders(r.Context(), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prev)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["request_id"]
	req, err := s.Store.GetRequest(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	matches, err := s.Store.ListMatches(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": req, "matches": matches})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["request_id"]
	var body struct {
		ProviderID string `json:"provider_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProviderID == "" {
		writeError(w, http.StatusBadRequest, "invalid_json", "provider_id is required")
		return
	}
	req, err := s.Arbiter.AcceptJobRequest(r.Context(), id, body.ProviderID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": req})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["request_id"]
	req, err := s.Arbiter.Cancel(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": req})
}

func (s *Server) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	var p models.Provider
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if p.ID == "" || p.Category == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "id and category are required")
		return
	}
	wasAvailable := false
	if prev, err := s.Store.GetProvider(r.Context(), p.ID); err == nil {
		wasAvailable = prev.Available
	}
	if err := s.Store.UpsertProvider(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, "datastore_error", err.Error())
		return
	}
	// stream the update so registry replicas converge; best effort
	if s.Producer != nil {
		if err := s.Producer.PublishProviderStatus(p); err != nil {
			s.logger.Warn("provider status publish failed", "provider_id", p.ID, "error", err)
		}
	}
	if s.Registry != nil {
		if err := s.Registry.Upsert(r.Context(), p); err != nil {
			s.logger.Warn("registry upsert failed", "provider_id", p.ID, "error", err)
		}
	}
	// the gauge tracks availability transitions, not raw post volume
	switch {
	case p.Available && !wasAvailable:
		observability.ProvidersOnline.Inc()
	case !p.Available && wasAvailable:
		observability.ProvidersOnline.Dec()
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleRequestWS(w http.ResponseWriter, r *http.Request) {
	s.serveSubscription(w, r, notify.RequestTopic(mux.Vars(r)["request_id"]))
}

func (s *Server) handleProviderWS(w http.ResponseWriter, r *http.Request) {
	s.serveSubscription(w, r, notify.ProviderMatchesTopic(mux.Vars(r)["provider_id"]))
}

// serveSubscription upgrades the connection and forwards bus events for the
// topic until the client goes away.
func (s *Server) serveSubscription(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.logger.Warn("websocket upgrade failed", "topic", topic, "error", err)
		return
	}
	sess := notify.NewWSSession(conn)
	detach := sess.Attach(s.Bus, topic)
	go func() {
		defer detach()
		defer sess.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "request, provider or match not found")
	case errors.Is(err, arbiter.ErrAlreadyAccepted):
		// distinct from generic failure so clients refresh instead of erroring
		writeError(w, http.StatusConflict, "already_accepted", "this job was accepted by another provider")
	case errors.Is(err, arbiter.ErrRequestClosed):
		writeError(w, http.StatusGone, "request_closed", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
