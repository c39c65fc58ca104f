package registry

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/service-matching/internal/models"
)

// Snapshotter is the read side used by the dispatcher when the primary
// provider fetch times out: a possibly stale but fast candidate set.
// Nearby serves located requests from the GEO set; Snapshot is the
// whole-category fallback for requests without a location.
type Snapshotter interface {
	Snapshot(ctx context.Context, category string) ([]models.Provider, error)
	Nearby(ctx context.Context, category string, lat, lon, radiusKm float64, limit int) ([]models.Provider, error)
}

// RedisRegistry mirrors provider records into Redis: a GEO set per category
// for proximity lookups plus a hash per provider for metadata. It is kept
// fresh by the status consumer and read as a degraded candidate source.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(addr, password string) *RedisRegistry {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisRegistry{client: c}
}

func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRegistry) Close() error { return r.client.Close() }

func geoKey(category string) string    { return "providers_geo:" + category }
func memberKey(category string) string { return "providers:" + category }
func metaKey(providerID string) string { return "provider:meta:" + providerID }

// Upsert writes the provider's GEO position and metadata hash.
func (r *RedisRegistry) Upsert(ctx context.Context, p models.Provider) error {
	if p.Location != nil {
		if err := r.client.GeoAdd(ctx, geoKey(p.Category), &redis.GeoLocation{
			Longitude: p.Location.Lon, Latitude: p.Location.Lat, Name: p.ID,
		}).Err(); err != nil {
			return err
		}
	}
	if err := r.client.SAdd(ctx, memberKey(p.Category), p.ID).Err(); err != nil {
		return err
	}
	fields := map[string]interface{}{
		"category":          p.Category,
		"service_radius_km": strconv.FormatFloat(p.ServiceRadiusKm, 'f', -1, 64),
		"rating":            strconv.FormatFloat(p.Rating, 'f', -1, 64),
		"years_experience":  strconv.Itoa(p.YearsExperience),
		"total_jobs":        strconv.Itoa(p.TotalJobs),
		"completed_jobs":    strconv.Itoa(p.CompletedJobs),
		"available":         strconv.FormatBool(p.Available),
		"verified":          strconv.FormatBool(p.Verified),
		"created_at":        p.CreatedAt.Format(time.RFC3339Nano),
		"updated":           time.Now().Format(time.RFC3339Nano),
	}
	if p.Location != nil {
		fields["lat"] = strconv.FormatFloat(p.Location.Lat, 'f', -1, 64)
		fields["lon"] = strconv.FormatFloat(p.Location.Lon, 'f', -1, 64)
	}
	return r.client.HSet(ctx, metaKey(p.ID), fields).Err()
}

// Snapshot returns every registered provider in a category, rebuilt from
// the metadata hashes.
func (r *RedisRegistry) Snapshot(ctx context.Context, category string) ([]models.Provider, error) {
	ids, err := r.client.SMembers(ctx, memberKey(category)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Provider, 0, len(ids))
	for _, id := range ids {
		m, err := r.client.HGetAll(ctx, metaKey(id)).Result()
		if err != nil || len(m) == 0 {
			continue
		}
		out = append(out, providerFromHash(id, m))
	}
	return out, nil
}

// Nearby returns up to limit providers within radiusKm of a point, closest
// first, using the category's GEO set.
func (r *RedisRegistry) Nearby(ctx context.Context, category string, lat, lon, radiusKm float64, limit int) ([]models.Provider, error) {
	res, err := r.client.GeoRadius(ctx, geoKey(category), lon, lat, &redis.GeoRadiusQuery{
		Radius: radiusKm, Unit: "km", WithCoord: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Provider, 0, len(res))
	for _, g := range res {
		m, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result()
		if err != nil || len(m) == 0 {
			continue
		}
		p := providerFromHash(g.Name, m)
		p.Location = &models.Coord{Lat: g.Latitude, Lon: g.Longitude}
		out = append(out, p)
	}
	return out, nil
}

func providerFromHash(id string, m map[string]string) models.Provider {
	p := models.Provider{ID: id, Category: m["category"]}
	if lat, ok := parseFloat(m["lat"]); ok {
		if lon, ok := parseFloat(m["lon"]); ok {
			p.Location = &models.Coord{Lat: lat, Lon: lon}
		}
	}
	if v, ok := parseFloat(m["service_radius_km"]); ok {
		p.ServiceRadiusKm = v
	}
	if v, ok := parseFloat(m["rating"]); ok {
		p.Rating = v
	}
	if v, err := strconv.Atoi(m["years_experience"]); err == nil {
		p.YearsExperience = v
	}
	if v, err := strconv.Atoi(m["total_jobs"]); err == nil {
		p.TotalJobs = v
	}
	if v, err := strconv.Atoi(m["completed_jobs"]); err == nil {
		p.CompletedJobs = v
	}
	p.Available = m["available"] == "true"
	p.Verified = m["verified"] == "true"
	if ts, err := time.Parse(time.RFC3339Nano, m["created_at"]); err == nil {
		p.CreatedAt = ts
	}
	return p
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
