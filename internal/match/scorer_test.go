package match

import (
	"testing"

	"github.com/example/service-matching/internal/config"
	"github.com/example/service-matching/internal/models"
)

func kmPtr(v float64) *float64 { return &v }

func testProvider() models.Provider {
	return models.Provider{
		ID:              "p1",
		Category:        "plumbing",
		ServiceRadiusKm: 50,
		Rating:          4.8,
		YearsExperience: 10,
		TotalJobs:       50,
		CompletedJobs:   50,
		Available:       true,
		Verified:        true,
	}
}

func TestScoreWeightedComponents(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{Category: "plumbing", Urgency: models.UrgencyNormal}
	got := p.Score(req, Candidate{Provider: testProvider(), DistanceKm: kmPtr(5)})
	// 36.0 distance + 28.8 rating + 20 experience + 10 completion = 94.8
	if got.Score != 95 {
		t.Fatalf("expected score 95, got %d", got.Score)
	}
	if len(got.Reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %v", got.Reasons)
	}
}

func TestScoreUrgentMultiplierCapped(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{Category: "plumbing", Urgency: models.UrgencyUrgent}
	got := p.Score(req, Candidate{Provider: testProvider(), DistanceKm: kmPtr(5)})
	// 94.8 * 1.2 = 113.76, capped to 100
	if got.Score != 100 {
		t.Fatalf("expected capped score 100, got %d", got.Score)
	}
}

func TestScoreExperienceCap(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	prov := testProvider()
	prov.YearsExperience = 30
	req := models.ServiceRequest{Category: "plumbing", Urgency: models.UrgencyNormal}
	got := p.Score(req, Candidate{Provider: prov, DistanceKm: kmPtr(5)})
	if got.Score != 95 {
		t.Fatalf("experience beyond the cap should not raise the score, got %d", got.Score)
	}
}

func TestScoreUnknownLocationDropsDistanceComponent(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{Category: "plumbing", Urgency: models.UrgencyNormal}
	got := p.Score(req, Candidate{Provider: testProvider()})
	// 28.8 + 20 + 10 = 58.8
	if got.Score != 59 {
		t.Fatalf("expected 59 without distance, got %d", got.Score)
	}
	if got.DistanceKm != nil {
		t.Fatal("distance should stay unknown")
	}
}

func TestScoreZeroTotalJobs(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	prov := testProvider()
	prov.TotalJobs = 0
	prov.CompletedJobs = 0
	req := models.ServiceRequest{Category: "plumbing", Urgency: models.UrgencyNormal}
	got := p.Score(req, Candidate{Provider: prov, DistanceKm: kmPtr(5)})
	// 36 + 28.8 + 20 = 84.8
	if got.Score != 85 {
		t.Fatalf("expected 85 without completion component, got %d", got.Score)
	}
}

func TestScoreRatingMonotonic(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{Category: "plumbing", Urgency: models.UrgencyNormal}
	prev := -1
	for rating := 0.5; rating <= 5.0; rating += 0.5 {
		prov := testProvider()
		prov.Rating = rating
		got := p.Score(req, Candidate{Provider: prov, DistanceKm: kmPtr(20)})
		if got.Score < prev {
			t.Fatalf("score decreased when rating rose to %.1f: %d < %d", rating, got.Score, prev)
		}
		prev = got.Score
	}
}

func TestScoreBeyondRadiusFloorsAtZero(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	prov := testProvider()
	prov.Rating = 0
	prov.YearsExperience = 0
	prov.TotalJobs = 0
	req := models.ServiceRequest{Category: "plumbing", Urgency: models.UrgencyNormal}
	got := p.Score(req, Candidate{Provider: prov, DistanceKm: kmPtr(80)})
	if got.Score != 0 {
		t.Fatalf("distance past the radius must not go negative, got %d", got.Score)
	}
}
