package match

import (
	"fmt"
	"math"

	"github.com/example/service-matching/internal/models"
)

// Score computes the weighted 0..100 score for one eligible candidate:
// distance, rating, experience and completion-rate components are summed,
// an urgency multiplier is applied, and the result is capped and rounded.
// The reasons list is advisory output for operators and clients; ranking
// never depends on it.
func (p *Pipeline) Score(req models.ServiceRequest, c Candidate) models.RankedMatch {
	prov := c.Provider
	var raw float64
	reasons := make([]string, 0, 4)

	if c.DistanceKm != nil {
		radius := prov.ServiceRadiusKm
		if radius <= 0 {
			radius = p.cfg.DefaultRadiusKm
		}
		pts := p.cfg.DistanceWeight - (*c.DistanceKm/radius)*p.cfg.DistanceWeight
		if pts < 0 {
			pts = 0
		}
		raw += pts
		reasons = append(reasons, fmt.Sprintf("within %.1fkm", *c.DistanceKm))
	}

	if prov.Rating > 0 {
		raw += (prov.Rating / 5) * p.cfg.RatingWeight
		reasons = append(reasons, fmt.Sprintf("%.1f★ rating", prov.Rating))
	}

	if prov.YearsExperience > 0 {
		pts := float64(prov.YearsExperience) * p.cfg.ExperienceWeight / 10
		if pts > p.cfg.ExperienceWeight {
			pts = p.cfg.ExperienceWeight
		}
		raw += pts
		reasons = append(reasons, fmt.Sprintf("%d years experience", prov.YearsExperience))
	}

	if prov.TotalJobs > 0 {
		raw += float64(prov.CompletedJobs) / float64(prov.TotalJobs) * p.cfg.CompletionWeight
		reasons = append(reasons, fmt.Sprintf("%d jobs completed", prov.CompletedJobs))
	}

	if req.Urgency == models.UrgencyUrgent {
		raw *= p.cfg.UrgentMultiplier
	}
	if raw > 100 {
		raw = 100
	}

	return models.RankedMatch{
		Provider:   prov,
		Score:      int(math.Round(raw)),
		DistanceKm: c.DistanceKm,
		Reasons:    reasons,
	}
}
