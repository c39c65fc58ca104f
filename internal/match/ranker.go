package match

import (
	"sort"

	"github.com/example/service-matching/internal/models"
)

// Rank runs the full pipeline: eligibility, scoring, threshold cut and a
// deterministic sort. Candidates below MinScore are dropped; the rest are
// ordered by score descending, then lower distance, then earlier provider
// creation, then provider ID so repeated calls over an unchanged dataset
// return an identical order.
func (p *Pipeline) Rank(req models.ServiceRequest, providers []models.Provider) []models.RankedMatch {
	cands := p.Eligible(req, providers)
	ranked := make([]models.RankedMatch, 0, len(cands))
	for _, c := range cands {
		rm := p.Score(req, c)
		if rm.Score < p.cfg.MinScore {
			continue
		}
		ranked = append(ranked, rm)
	}
	sort.Slice(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	return ranked
}

func less(a, b models.RankedMatch) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.DistanceKm != nil && b.DistanceKm != nil && *a.DistanceKm != *b.DistanceKm {
		return *a.DistanceKm < *b.DistanceKm
	}
	if a.DistanceKm != nil && b.DistanceKm == nil {
		return true
	}
	if a.DistanceKm == nil && b.DistanceKm != nil {
		return false
	}
	if !a.Provider.CreatedAt.Equal(b.Provider.CreatedAt) {
		return a.Provider.CreatedAt.Before(b.Provider.CreatedAt)
	}
	return a.Provider.ID < b.Provider.ID
}
