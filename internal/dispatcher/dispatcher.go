package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/service-matching/internal/config"
	"github.com/example/service-matching/internal/geo"
	"github.com/example/service-matching/internal/match"
	"github.com/example/service-matching/internal/models"
	"github.com/example/service-matching/internal/notify"
	"github.com/example/service-matching/internal/observability"
	"github.com/example/service-matching/internal/registry"
	"github.com/example/service-matching/internal/storage"
)

// ErrNoEligibleProviders is a soft outcome: the request was valid and is
// persisted in pending, but no provider passed eligibility and threshold.
// Callers should suggest widening the search rather than treat it as a
// failure.
var ErrNoEligibleProviders = errors.New("no eligible providers")

// CreateInput is the caller-supplied shape of a new service request.
// NoLocation is the explicit opt-out for customers without a usable
// location; a missing location without the opt-out is a validation error.
type CreateInput struct {
	CustomerID    string         `json:"customer_id"`
	Category      string         `json:"category"`
	Location      *models.Coord  `json:"location,omitempty"`
	NoLocation    bool           `json:"no_location,omitempty"`
	MaxDistanceKm *float64       `json:"max_distance_km,omitempty"`
	Budget        *float64       `json:"budget,omitempty"`
	Urgency       models.Urgency `json:"urgency,omitempty"`
}

// Result is what a dispatch returns: the persisted request, the ranked
// candidates, and whether the candidate set was degraded to the registry
// snapshot because the primary fetch timed out.
type Result struct {
	Request models.ServiceRequest `json:"request"`
	Matches []models.RankedMatch  `json:"matches"`
	Partial bool                  `json:"partial"`
}

// Preview is the read-only variant's output.
type Preview struct {
	Matches []models.RankedMatch `json:"matches"`
	Partial bool                 `json:"partial"`
}

// Dispatcher orchestrates the matching pipeline: candidate fetch,
// eligibility, scoring, ranking, match persistence and notification.
type Dispatcher struct {
	store    storage.Store
	fallback registry.Snapshotter // optional degraded candidate source
	pipeline *match.Pipeline
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      config.MatchingConfig
}

func New(store storage.Store, fallback registry.Snapshotter, notifier notify.Notifier, cfg config.MatchingConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		fallback: fallback,
		pipeline: match.New(cfg),
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// CreateServiceRequest validates and persists a request, runs the pipeline,
// persists a pending Match per ranked candidate, then flips the request to
// matched. Matches are persisted before the status flip so an accept can
// never observe the matched state without its matches being visible.
func (d *Dispatcher) CreateServiceRequest(ctx context.Context, in CreateInput) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	start := time.Now()

	now := time.Now()
	req := models.ServiceRequest{
		ID:            uuid.NewString(),
		CustomerID:    in.CustomerID,
		Category:      in.Category,
		Location:      in.Location,
		MaxDistanceKm: in.MaxDistanceKm,
		Budget:        in.Budget,
		Urgency:       urgencyOrDefault(in.Urgency),
		Status:        models.RequestPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := d.store.CreateRequest(ctx, &req); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}
	observability.RequestsCreated.Inc()

	ranked, partial, err := d.rankCandidates(ctx, req)
	if err != nil {
		return nil, err
	}
	res := &Result{Request: req, Matches: ranked, Partial: partial}
	if len(ranked) == 0 {
		// request stays pending for manual fallback or a widened search
		return res, ErrNoEligibleProviders
	}

	matches := make([]models.Match, 0, len(ranked))
	for _, rm := range ranked {
		matches = append(matches, models.Match{
			RequestID:  req.ID,
			ProviderID: rm.Provider.ID,
			Score:      rm.Score,
			Status:     models.MatchPending,
			CreatedAt:  now,
		})
	}
	if err := d.store.CreateMatches(ctx, matches); err != nil {
		return nil, fmt.Errorf("persist matches: %w", err)
	}
	observability.MatchesCreated.Add(float64(len(matches)))

	if err := d.store.MarkMatched(ctx, req.ID); err != nil {
		return nil, fmt.Errorf("transition to matched: %w", err)
	}
	res.Request.Status = models.RequestMatched

	d.notifyMatched(ctx, res.Request, ranked)
	observability.DispatchDuration.Observe(time.Since(start).Seconds())
	return res, nil
}

// FindMatchingProviders runs the same pipeline without persisting or
// notifying anything: a side-effect-free preview of candidates.
func (d *Dispatcher) FindMatchingProviders(ctx context.Context, in CreateInput) (*Preview, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	req := models.ServiceRequest{
		Category:      in.Category,
		Location:      in.Location,
		MaxDistanceKm: in.MaxDistanceKm,
		Urgency:       urgencyOrDefault(in.Urgency),
	}
	ranked, partial, err := d.rankCandidates(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Preview{Matches: ranked, Partial: partial}, nil
}

// rankCandidates fetches providers under a bounded time budget and ranks
// them. When the primary store is too slow and a registry snapshot exists,
// the result degrades to the snapshot and is flagged partial.
func (d *Dispatcher) rankCandidates(ctx context.Context, req models.ServiceRequest) ([]models.RankedMatch, bool, error) {
	fetchCtx := ctx
	if d.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, d.cfg.FetchTimeout)
		defer cancel()
	}
	providers, err := d.store.ListProviders(fetchCtx, req.Category)
	if err != nil {
		if d.fallback == nil || ctx.Err() != nil {
			return nil, false, fmt.Errorf("fetch providers: %w", err)
		}
		d.logger.Warn("provider fetch degraded to registry snapshot",
			"category", req.Category, "error", err)
		snap, serr := d.fallbackCandidates(ctx, req)
		if serr != nil {
			return nil, false, fmt.Errorf("fetch providers: %w", errors.Join(err, serr))
		}
		observability.PartialDispatches.Inc()
		return d.pipeline.Rank(req, snap), true, nil
	}
	return d.pipeline.Rank(req, providers), false, nil
}

// fallbackCandidates reads the registry mirror. A located request queries
// the GEO set around its point, bounded by its max distance (or the default
// radius); a locationless request takes the whole-category snapshot.
func (d *Dispatcher) fallbackCandidates(ctx context.Context, req models.ServiceRequest) ([]models.Provider, error) {
	if req.Location == nil {
		return d.fallback.Snapshot(ctx, req.Category)
	}
	radius := d.cfg.DefaultRadiusKm
	if req.MaxDistanceKm != nil && *req.MaxDistanceKm > 0 {
		radius = *req.MaxDistanceKm
	}
	return d.fallback.Nearby(ctx, req.Category, req.Location.Lat, req.Location.Lon, radius, d.cfg.FallbackLimit)
}

// notifyMatched emits one event per created match plus a customer-facing
// request update. Delivery failures are logged and never roll back state.
func (d *Dispatcher) notifyMatched(ctx context.Context, req models.ServiceRequest, ranked []models.RankedMatch) {
	now := time.Now()
	for _, rm := range ranked {
		ev := notify.Event{
			Topic:      notify.ProviderMatchesTopic(rm.Provider.ID),
			Kind:       notify.KindMatchCreated,
			RequestID:  req.ID,
			ProviderID: rm.Provider.ID,
			Score:      rm.Score,
			Status:     string(models.MatchPending),
			At:         now,
		}
		if err := d.notifier.Publish(ctx, ev); err != nil {
			d.logger.Warn("match notification failed",
				"request_id", req.ID, "provider_id", rm.Provider.ID, "error", err)
		}
	}
	ev := notify.Event{
		Topic:     notify.RequestTopic(req.ID),
		Kind:      notify.KindRequestUpdated,
		RequestID: req.ID,
		Status:    string(req.Status),
		At:        now,
	}
	if err := d.notifier.Publish(ctx, ev); err != nil {
		d.logger.Warn("request notification failed", "request_id", req.ID, "error", err)
	}
}

func validate(in CreateInput) error {
	if in.Category == "" {
		return models.Invalid("category", "category is required")
	}
	if in.Location == nil && !in.NoLocation {
		return models.Invalid("location", "location is required unless no_location is set")
	}
	if in.Location != nil {
		if err := geo.Validate(*in.Location); err != nil {
			return err
		}
	}
	if in.MaxDistanceKm != nil && *in.MaxDistanceKm <= 0 {
		return models.Invalid("max_distance_km", "must be > 0")
	}
	if in.Budget != nil && *in.Budget < 0 {
		return models.Invalid("budget", "must be >= 0")
	}
	if in.Urgency != "" && !in.Urgency.Valid() {
		return models.Invalid("urgency", "must be urgent, normal or flexible")
	}
	return nil
}

func urgencyOrDefault(u models.Urgency) models.Urgency {
	if u == "" {
		return models.UrgencyNormal
	}
	return u
}
