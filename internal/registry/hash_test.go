package registry

import (
	"testing"
	"time"
)

func TestProviderFromHashRoundsTrip(t *testing.T) {
	created := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	m := map[string]string{
		"category":          "plumbing",
		"lat":               "48.85",
		"lon":               "2.35",
		"service_radius_km": "25",
		"rating":            "4.6",
		"years_experience":  "7",
		"total_jobs":        "40",
		"completed_jobs":    "38",
		"available":         "true",
		"verified":          "true",
		"created_at":        created.Format(time.RFC3339Nano),
	}
	p := providerFromHash("p9", m)
	if p.ID != "p9" || p.Category != "plumbing" {
		t.Fatalf("identity fields wrong: %+v", p)
	}
	if p.Location == nil || p.Location.Lat != 48.85 || p.Location.Lon != 2.35 {
		t.Fatalf("location wrong: %+v", p.Location)
	}
	if p.ServiceRadiusKm != 25 || p.Rating != 4.6 || p.YearsExperience != 7 {
		t.Fatalf("numeric fields wrong: %+v", p)
	}
	if p.TotalJobs != 40 || p.CompletedJobs != 38 || !p.Available || !p.Verified {
		t.Fatalf("status fields wrong: %+v", p)
	}
	if !p.CreatedAt.Equal(created) {
		t.Fatalf("created_at wrong: %v", p.CreatedAt)
	}
}

func TestProviderFromHashMissingLocation(t *testing.T) {
	p := providerFromHash("p1", map[string]string{"category": "cleaning", "available": "true"})
	if p.Location != nil {
		t.Fatal("location should stay nil when coordinates are absent")
	}
	if !p.Available || p.Verified {
		t.Fatalf("flags wrong: %+v", p)
	}
}
