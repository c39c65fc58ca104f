package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/service-matching/internal/models"
	"github.com/example/service-matching/internal/notify"
	"github.com/example/service-matching/internal/observability"
	"github.com/example/service-matching/internal/storage"
)

// ErrAlreadyAccepted is the expected race-loss outcome: some other provider
// won the job between this caller's read and its conditional write. Clients
// should refresh state, not retry.
var ErrAlreadyAccepted = errors.New("job already accepted by another provider")

// ErrRequestClosed means the request left the matchable states (cancelled
// or completed) before anyone accepted it.
var ErrRequestClosed = errors.New("request no longer open for acceptance")

// Arbiter resolves the accept race. The only synchronization primitive is
// the store's conditional accept; the arbiter itself holds no locks and is
// safe to run in any number of processes.
type Arbiter struct {
	store    storage.Store
	notifier notify.Notifier
	logger   *slog.Logger
}

func New(store storage.Store, notifier notify.Notifier, logger *slog.Logger) *Arbiter {
	return &Arbiter{store: store, notifier: notifier, logger: logger}
}

// AcceptJobRequest binds the job to the provider if, and only if, the
// request is still in matched. On success the provider's match becomes
// accepted and every other pending match is bulk-rejected. A lost race
// returns ErrAlreadyAccepted; a datastore error on the conditional write is
// returned as-is and must not be blindly retried, since only a state
// re-check can tell whether the write took effect.
func (a *Arbiter) AcceptJobRequest(ctx context.Context, requestID, providerID string) (*models.ServiceRequest, error) {
	m, err := a.store.GetMatch(ctx, requestID, providerID)
	if err != nil {
		return nil, err
	}
	switch m.Status {
	case models.MatchAccepted:
		// this provider already won; re-accepting is a no-op
		return a.store.GetRequest(ctx, requestID)
	case models.MatchRejected:
		observability.AcceptsLost.Inc()
		return nil, ErrAlreadyAccepted
	}

	won, err := a.store.AcceptRequest(ctx, requestID, providerID)
	if err != nil {
		return nil, fmt.Errorf("conditional accept: %w", err)
	}
	if !won {
		req, gerr := a.store.GetRequest(ctx, requestID)
		if gerr != nil {
			return nil, gerr
		}
		if req.Status == models.RequestAccepted {
			observability.AcceptsLost.Inc()
			return nil, ErrAlreadyAccepted
		}
		return nil, fmt.Errorf("%w: request is %s", ErrRequestClosed, req.Status)
	}
	observability.AcceptsWon.Inc()

	// The request is bound; everything below is follow-up bookkeeping and
	// must not undo the transition.
	if err := a.store.AcceptMatch(ctx, requestID, providerID); err != nil {
		a.logger.Error("accepted request but failed to mark winning match",
			"request_id", requestID, "provider_id", providerID, "error", err)
	}
	rejected, err := a.store.RejectPending(ctx, requestID, providerID)
	if err != nil {
		a.logger.Error("failed to reject losing matches",
			"request_id", requestID, "error", err)
	}

	req, err := a.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	a.notifyAccepted(ctx, req, providerID)
	a.logger.Info("job accepted",
		"request_id", requestID, "provider_id", providerID, "rejected_matches", rejected)
	return req, nil
}

// Cancel moves a request to cancelled while it is still pending or matched.
// Once accepted, cancellation is a separate workflow and is refused here.
func (a *Arbiter) Cancel(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	ok, err := a.store.CancelRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	req, gerr := a.store.GetRequest(ctx, requestID)
	if gerr != nil {
		return nil, gerr
	}
	if !ok {
		return nil, fmt.Errorf("%w: request is %s", ErrRequestClosed, req.Status)
	}
	a.publish(ctx, notify.Event{
		Topic:     notify.RequestTopic(requestID),
		Kind:      notify.KindRequestUpdated,
		RequestID: requestID,
		Status:    string(req.Status),
		At:        time.Now(),
	})
	return req, nil
}

func (a *Arbiter) notifyAccepted(ctx context.Context, req *models.ServiceRequest, winnerID string) {
	now := time.Now()
	a.publish(ctx, notify.Event{
		Topic:      notify.ProviderMatchesTopic(winnerID),
		Kind:       notify.KindMatchAccepted,
		RequestID:  req.ID,
		ProviderID: winnerID,
		Status:     string(models.MatchAccepted),
		At:         now,
	})
	matches, err := a.store.ListMatches(ctx, req.ID)
	if err != nil {
		a.logger.Warn("could not list matches for loser notifications",
			"request_id", req.ID, "error", err)
	}
	for _, m := range matches {
		if m.Status != models.MatchRejected {
			continue
		}
		a.publish(ctx, notify.Event{
			Topic:      notify.ProviderMatchesTopic(m.ProviderID),
			Kind:       notify.KindMatchRejected,
			RequestID:  req.ID,
			ProviderID: m.ProviderID,
			Status:     string(models.MatchRejected),
			At:         now,
		})
	}
	a.publish(ctx, notify.Event{
		Topic:     notify.RequestTopic(req.ID),
		Kind:      notify.KindRequestUpdated,
		RequestID: req.ID,
		Status:    string(req.Status),
		At:        now,
	})
}

func (a *Arbiter) publish(ctx context.Context, ev notify.Event) {
	if err := a.notifier.Publish(ctx, ev); err != nil {
		a.logger.Warn("notification failed", "topic", ev.Topic, "kind", ev.Kind, "error", err)
	}
}
