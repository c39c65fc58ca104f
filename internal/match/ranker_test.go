package match

import (
	"reflect"
	"testing"
	"time"

	"github.com/example/service-matching/internal/config"
	"github.com/example/service-matching/internal/models"
)

func locPtr(lat, lon float64) *models.Coord { return &models.Coord{Lat: lat, Lon: lon} }

// offsetKm shifts a latitude by roughly the given number of kilometers.
func offsetKm(km float64) float64 { return km / 111.0 }

func TestRankDropsBelowThreshold(t *testing.T) {
	cfg := config.DefaultMatchingConfig()
	p := New(cfg)
	req := models.ServiceRequest{
		Category: "cleaning",
		Location: locPtr(0, 0),
		Urgency:  models.UrgencyNormal,
	}
	// locationless, so only rating and experience count:
	// 21 + 20 = 41, below the 50 threshold.
	weak := models.Provider{
		ID: "weak", Category: "cleaning", Rating: 3.5, YearsExperience: 10,
		Available: true, Verified: true,
	}
	// rating 5 (30) + 10y (20) = 50 exactly: included.
	edge := models.Provider{
		ID: "edge", Category: "cleaning", Rating: 5, YearsExperience: 10,
		Available: true, Verified: true,
	}
	got := p.Rank(req, []models.Provider{weak, edge})
	if len(got) != 1 {
		t.Fatalf("expected only the threshold-edge provider, got %d", len(got))
	}
	if got[0].Provider.ID != "edge" || got[0].Score != 50 {
		t.Fatalf("expected edge at exactly 50, got %s score=%d", got[0].Provider.ID, got[0].Score)
	}
}

func TestRankExcludesBeyondServiceRadius(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{
		Category: "cleaning",
		Location: locPtr(0, 0),
		Urgency:  models.UrgencyNormal,
	}
	// ~12km away with a 10km radius: out, however strong the profile.
	far := models.Provider{
		ID: "far", Category: "cleaning", Location: locPtr(offsetKm(12), 0),
		ServiceRadiusKm: 10, Rating: 5, YearsExperience: 20,
		TotalJobs: 100, CompletedJobs: 100, Available: true, Verified: true,
	}
	near := models.Provider{
		ID: "near", Category: "cleaning", Location: locPtr(offsetKm(5), 0),
		ServiceRadiusKm: 50, Rating: 4, YearsExperience: 5,
		Available: true, Verified: true,
	}
	got := p.Rank(req, []models.Provider{far, near})
	if len(got) != 1 || got[0].Provider.ID != "near" {
		t.Fatalf("expected only the in-radius provider, got %+v", got)
	}
}

func TestRankSortsByScoreThenDistanceThenAge(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{
		Category: "cleaning",
		Location: locPtr(0, 0),
		Urgency:  models.UrgencyNormal,
	}
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, km float64, rating float64, created time.Time) models.Provider {
		return models.Provider{
			ID: id, Category: "cleaning", Location: locPtr(offsetKm(km), 0),
			ServiceRadiusKm: 50, Rating: rating, YearsExperience: 10,
			TotalJobs: 10, CompletedJobs: 10, Available: true, Verified: true,
			CreatedAt: created,
		}
	}
	strong := mk("strong", 5, 5.0, base)
	// same profile at the same distance, registered later: loses the tie
	younger := mk("younger", 5, 5.0, base.Add(time.Hour))
	farther := mk("farther", 20, 5.0, base)
	got := p.Rank(req, []models.Provider{farther, younger, strong})
	ids := []string{got[0].Provider.ID, got[1].Provider.ID, got[2].Provider.ID}
	want := []string{"strong", "younger", "farther"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("expected order %v, got %v", want, ids)
	}
}

func TestRankDeterministic(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{
		Category: "cleaning",
		Location: locPtr(0, 0),
		Urgency:  models.UrgencyNormal,
	}
	providers := []models.Provider{}
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		providers = append(providers, models.Provider{
			ID:       string(rune('a' + i)),
			Category: "cleaning", Location: locPtr(offsetKm(float64(2+i)), 0),
			ServiceRadiusKm: 50, Rating: 4.5, YearsExperience: 8,
			TotalJobs: 20, CompletedJobs: 18, Available: true, Verified: true,
			CreatedAt: base,
		})
	}
	first := p.Rank(req, providers)
	second := p.Rank(req, providers)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("ranking must be stable across calls on an unchanged dataset")
	}
}
