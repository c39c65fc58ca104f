package match

import (
	"testing"

	"github.com/example/service-matching/internal/config"
	"github.com/example/service-matching/internal/models"
)

func TestEligibleFiltersAvailabilityCategoryVerification(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{Category: "electrical"}
	providers := []models.Provider{
		{ID: "ok", Category: "electrical", Available: true, Verified: true},
		{ID: "offline", Category: "electrical", Available: false, Verified: true},
		{ID: "wrong-cat", Category: "plumbing", Available: true, Verified: true},
		{ID: "unverified", Category: "electrical", Available: true, Verified: false},
	}
	got := p.Eligible(req, providers)
	if len(got) != 1 || got[0].Provider.ID != "ok" {
		t.Fatalf("expected only 'ok', got %+v", got)
	}
}

func TestEligibleKeepsUnknownLocation(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{Category: "electrical", Location: locPtr(0, 0)}
	providers := []models.Provider{
		{ID: "nowhere", Category: "electrical", Available: true, Verified: true},
	}
	got := p.Eligible(req, providers)
	if len(got) != 1 {
		t.Fatal("unknown-location provider should stay eligible")
	}
	if got[0].DistanceKm != nil {
		t.Fatal("distance must stay unknown for a locationless provider")
	}
}

func TestEligibleHonorsRequestMaxDistance(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	max := 8.0
	req := models.ServiceRequest{
		Category:      "electrical",
		Location:      locPtr(0, 0),
		MaxDistanceKm: &max,
	}
	providers := []models.Provider{
		// ~12km out: inside the provider's 50km radius but past the
		// customer's 8km limit.
		{ID: "far", Category: "electrical", Location: locPtr(offsetKm(12), 0),
			ServiceRadiusKm: 50, Available: true, Verified: true},
		{ID: "close", Category: "electrical", Location: locPtr(offsetKm(5), 0),
			ServiceRadiusKm: 50, Available: true, Verified: true},
	}
	got := p.Eligible(req, providers)
	if len(got) != 1 || got[0].Provider.ID != "close" {
		t.Fatalf("expected only 'close', got %+v", got)
	}
}

func TestEligibleDefaultsZeroRadius(t *testing.T) {
	p := New(config.DefaultMatchingConfig())
	req := models.ServiceRequest{Category: "electrical", Location: locPtr(0, 0)}
	providers := []models.Provider{
		// no radius configured: the 50km default applies, 30km is in reach
		{ID: "p", Category: "electrical", Location: locPtr(offsetKm(30), 0),
			Available: true, Verified: true},
	}
	if got := p.Eligible(req, providers); len(got) != 1 {
		t.Fatalf("expected the default radius to keep the provider, got %+v", got)
	}
}
