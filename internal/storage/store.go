package storage

import (
	"context"
	"errors"

	"github.com/example/service-matching/internal/models"
)

// ErrNotFound is returned when a referenced request, provider or match does
// not exist.
var ErrNotFound = errors.New("not found")

// RequestStore persists service requests. The status-changing operations are
// conditional: they only apply when the stored status matches the expected
// one, which is what makes the accept race safe across processes.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *models.ServiceRequest) error
	GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error)
	// MarkMatched transitions pending -> matched. Fails if the request is
	// in any other state.
	MarkMatched(ctx context.Context, id string) error
	// AcceptRequest atomically transitions matched -> accepted and records
	// the winning provider, conditioned on the status still being matched.
	// Returns false (no error) when the condition no longer holds.
	AcceptRequest(ctx context.Context, id, providerID string) (bool, error)
	// CancelRequest transitions pending|matched -> cancelled. Returns false
	// when the request already left those states.
	CancelRequest(ctx context.Context, id string) (bool, error)
}

// ProviderStore is the authoritative provider directory.
type ProviderStore interface {
	UpsertProvider(ctx context.Context, p *models.Provider) error
	GetProvider(ctx context.Context, id string) (*models.Provider, error)
	// ListProviders returns providers in a category, regardless of
	// availability; eligibility filtering happens in the pipeline.
	ListProviders(ctx context.Context, category string) ([]models.Provider, error)
}

// MatchStore persists candidate matches.
type MatchStore interface {
	CreateMatches(ctx context.Context, matches []models.Match) error
	GetMatch(ctx context.Context, requestID, providerID string) (*models.Match, error)
	ListMatches(ctx context.Context, requestID string) ([]models.Match, error)
	// AcceptMatch transitions one pending match to accepted.
	AcceptMatch(ctx context.Context, requestID, providerID string) error
	// RejectPending bulk-transitions every pending match for the request to
	// rejected, except the given provider's. Returns how many were rejected.
	RejectPending(ctx context.Context, requestID, exceptProviderID string) (int, error)
}

// Store is the full persistence surface used by the dispatcher and arbiter.
type Store interface {
	RequestStore
	ProviderStore
	MatchStore
}
