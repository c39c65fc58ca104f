package match

import (
	"github.com/example/service-matching/internal/config"
	"github.com/example/service-matching/internal/geo"
	"github.com/example/service-matching/internal/models"
)

// Candidate is a provider that passed eligibility, with its distance from
// the request when both locations are known.
type Candidate struct {
	Provider   models.Provider
	DistanceKm *float64
}

// Pipeline runs eligibility filtering, scoring and ranking for one request.
// It is stateless and safe to share across goroutines.
type Pipeline struct {
	cfg config.MatchingConfig
}

func New(cfg config.MatchingConfig) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Eligible narrows providers to those available, in the requested category,
// verified, and within radius bounds. Providers with an unknown location are
// retained; their distance score degrades to zero instead of excluding them.
func (p *Pipeline) Eligible(req models.ServiceRequest, providers []models.Provider) []Candidate {
	out := make([]Candidate, 0, len(providers))
	for _, prov := range providers {
		if !prov.Available || !prov.Verified {
			continue
		}
		if prov.Category != req.Category {
			continue
		}
		c := Candidate{Provider: prov}
		if req.Location != nil && prov.Location != nil {
			d := geo.DistanceKm(*req.Location, *prov.Location)
			if d > p.maxReachKm(req, prov) {
				continue
			}
			c.DistanceKm = &d
		}
		out = append(out, c)
	}
	return out
}

// maxReachKm is the tighter of the provider's service radius and the
// request's max distance, each defaulting when unset.
func (p *Pipeline) maxReachKm(req models.ServiceRequest, prov models.Provider) float64 {
	reach := prov.ServiceRadiusKm
	if reach <= 0 {
		reach = p.cfg.DefaultRadiusKm
	}
	max := p.cfg.DefaultRadiusKm
	if req.MaxDistanceKm != nil && *req.MaxDistanceKm > 0 {
		max = *req.MaxDistanceKm
	}
	if max < reach {
		return max
	}
	return reach
}
