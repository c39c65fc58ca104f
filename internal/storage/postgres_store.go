package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/service-matching/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) CreateRequest(ctx context.Context, r *models.ServiceRequest) error {
	var lat, lon sql.NullFloat64
	if r.Location != nil {
		lat = sql.NullFloat64{Float64: r.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: r.Location.Lon, Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO service_requests(id, customer_id, category, lat, lon, max_distance_km, budget, urgency, status, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.CustomerID, r.Category, lat, lon, r.MaxDistanceKm, r.Budget, string(r.Urgency), string(r.Status), r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, customer_id, category, lat, lon, max_distance_km, budget, urgency, status, accepted_provider_id, created_at, updated_at
		 FROM service_requests WHERE id=$1`, id)
	var r models.ServiceRequest
	var lat, lon sql.NullFloat64
	var urgency, status string
	if err := row.Scan(&r.ID, &r.CustomerID, &r.Category, &lat, &lon, &r.MaxDistanceKm, &r.Budget, &urgency, &status, &r.AcceptedProviderID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lat.Valid && lon.Valid {
		r.Location = &models.Coord{Lat: lat.Float64, Lon: lon.Float64}
	}
	r.Urgency = models.Urgency(urgency)
	r.Status = models.RequestStatus(status)
	return &r, nil
}

func (p *PostgresStore) MarkMatched(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE service_requests SET status='matched', updated_at=now() WHERE id=$1 AND status='pending'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := p.GetRequest(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("request %s is no longer pending", id)
	}
	return nil
}

// AcceptRequest is the race arbiter's single linearization point: the UPDATE
// only applies while the status is still 'matched', so of N concurrent
// callers exactly one observes RowsAffected == 1.
func (p *PostgresStore) AcceptRequest(ctx context.Context, id, providerID string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE service_requests SET status='accepted', accepted_provider_id=$2, updated_at=now()
		 WHERE id=$1 AND status='matched'`, id, providerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	// distinguish a lost race from a missing request
	if _, err := p.GetRequest(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (p *PostgresStore) CancelRequest(ctx context.Context, id string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE service_requests SET status='cancelled', updated_at=now()
		 WHERE id=$1 AND status IN ('pending','matched')`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := p.GetRequest(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (p *PostgresStore) UpsertProvider(ctx context.Context, pr *models.Provider) error {
	var lat, lon sql.NullFloat64
	if pr.Location != nil {
		lat = sql.NullFloat64{Float64: pr.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: pr.Location.Lon, Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO providers(id, category, lat, lon, service_radius_km, rating, years_experience, total_jobs, completed_jobs, available, verified, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
		 ON CONFLICT (id) DO UPDATE SET
		   category=EXCLUDED.category, lat=EXCLUDED.lat, lon=EXCLUDED.lon,
		   service_radius_km=EXCLUDED.service_radius_km, rating=EXCLUDED.rating,
		   years_experience=EXCLUDED.years_experience, total_jobs=EXCLUDED.total_jobs,
		   completed_jobs=EXCLUDED.completed_jobs, available=EXCLUDED.available,
		   verified=EXCLUDED.verified, updated_at=now()`,
		pr.ID, pr.Category, lat, lon, pr.ServiceRadiusKm, pr.Rating, pr.YearsExperience, pr.TotalJobs, pr.CompletedJobs, pr.Available, pr.Verified, pr.CreatedAt)
	return err
}

func (p *PostgresStore) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, category, lat, lon, service_radius_km, rating, years_experience, total_jobs, completed_jobs, available, verified, created_at, updated_at
		 FROM providers WHERE id=$1`, id)
	pr, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return pr, nil
}

func (p *PostgresStore) ListProviders(ctx context.Context, category string) ([]models.Provider, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, category, lat, lon, service_radius_km, rating, years_experience, total_jobs, completed_jobs, available, verified, created_at, updated_at
		 FROM providers WHERE category=$1`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Provider{}
	for rows.Next() {
		pr, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*models.Provider, error) {
	var pr models.Provider
	var lat, lon sql.NullFloat64
	if err := row.Scan(&pr.ID, &pr.Category, &lat, &lon, &pr.ServiceRadiusKm, &pr.Rating, &pr.YearsExperience, &pr.TotalJobs, &pr.CompletedJobs, &pr.Available, &pr.Verified, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		pr.Location = &models.Coord{Lat: lat.Float64, Lon: lon.Float64}
	}
	return &pr, nil
}

func (p *PostgresStore) CreateMatches(ctx context.Context, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, m := range matches {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO matches(request_id, provider_id, score, status, created_at) VALUES($1,$2,$3,$4,$5)`,
			m.RequestID, m.ProviderID, m.Score, string(m.Status), m.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) GetMatch(ctx context.Context, requestID, providerID string) (*models.Match, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT request_id, provider_id, score, status, created_at FROM matches WHERE request_id=$1 AND provider_id=$2`,
		requestID, providerID)
	var m models.Match
	var status string
	if err := row.Scan(&m.RequestID, &m.ProviderID, &m.Score, &status, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.Status = models.MatchStatus(status)
	return &m, nil
}

func (p *PostgresStore) ListMatches(ctx context.Context, requestID string) ([]models.Match, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT request_id, provider_id, score, status, created_at FROM matches WHERE request_id=$1 ORDER BY score DESC`,
		requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Match{}
	for rows.Next() {
		var m models.Match
		var status string
		if err := rows.Scan(&m.RequestID, &m.ProviderID, &m.Score, &status, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Status = models.MatchStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) AcceptMatch(ctx context.Context, requestID, providerID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE matches SET status='accepted' WHERE request_id=$1 AND provider_id=$2 AND status='pending'`,
		requestID, providerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("match %s/%s not pending", requestID, providerID)
	}
	return nil
}

func (p *PostgresStore) RejectPending(ctx context.Context, requestID, exceptProviderID string) (int, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE matches SET status='rejected' WHERE request_id=$1 AND provider_id<>$2 AND status='pending'`,
		requestID, exceptProviderID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
