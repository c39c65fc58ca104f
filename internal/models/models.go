package models

import (
	"fmt"
	"time"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Urgency controls how aggressively a request is scored.
type Urgency string

const (
	UrgencyUrgent   Urgency = "urgent"
	UrgencyNormal   Urgency = "normal"
	UrgencyFlexible Urgency = "flexible"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyUrgent, UrgencyNormal, UrgencyFlexible:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestMatched   RequestStatus = "matched"
	RequestAccepted  RequestStatus = "accepted"
	RequestCompleted RequestStatus = "completed"
	RequestCancelled RequestStatus = "cancelled"
)

type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchAccepted MatchStatus = "accepted"
	MatchRejected MatchStatus = "rejected"
)

// ServiceRequest is a customer's ask for a job in a category. Location,
// max distance and budget are optional; a nil Location means the customer
// opted out of location-based matching.
type ServiceRequest struct {
	ID                 string        `json:"id"`
	CustomerID         string        `json:"customer_id"`
	Category           string        `json:"category"`
	Location           *Coord        `json:"location,omitempty"`
	MaxDistanceKm      *float64      `json:"max_distance_km,omitempty"`
	Budget             *float64      `json:"budget,omitempty"`
	Urgency            Urgency       `json:"urgency"`
	Status             RequestStatus `json:"status"`
	AcceptedProviderID *string       `json:"accepted_provider_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Provider is a business offering services in one category.
type Provider struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	Location        *Coord    `json:"location,omitempty"`
	ServiceRadiusKm float64   `json:"service_radius_km"`
	Rating          float64   `json:"rating"` // 0..5
	YearsExperience int       `json:"years_experience"`
	TotalJobs       int       `json:"total_jobs"`
	CompletedJobs   int       `json:"completed_jobs"`
	Available       bool      `json:"available"`
	Verified        bool      `json:"verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Match is one scored (request, provider) candidate pairing. At most one
// match per request may ever reach MatchAccepted; a match is immutable once
// it leaves MatchPending.
type Match struct {
	RequestID  string      `json:"request_id"`
	ProviderID string      `json:"provider_id"`
	Score      int         `json:"score"` // 0..100
	Status     MatchStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// RankedMatch is a candidate as returned to callers: the provider, its
// score, the computed distance when both locations are known, and the
// advisory reasons emitted by the scorer.
type RankedMatch struct {
	Provider   Provider `json:"provider"`
	Score      int      `json:"score"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Reasons    []string `json:"reasons"`
}

// ValidationError reports malformed input, rejected before any persistence.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}
