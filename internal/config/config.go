package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string

	KafkaBrokers     []string
	KafkaStatusTopic string
	KafkaEventTopic  string

	PGDSN string

	Matching MatchingConfig

	LogLevel      string
	RunMigrations bool
}

// MatchingConfig holds the named constants of the matching pipeline. The
// defaults are the product-agreed values; ops can override any of them per
// environment without a redeploy.
type MatchingConfig struct {
	DefaultRadiusKm  float64
	MinScore         int
	DistanceWeight   float64
	RatingWeight     float64
	ExperienceWeight float64
	CompletionWeight float64
	UrgentMultiplier float64
	FetchTimeout     time.Duration
	FallbackLimit    int
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:         ":8080",
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		KafkaStatusTopic: "provider-status",
		KafkaEventTopic:  "matching-events",
		Matching:         DefaultMatchingConfig(),
		LogLevel:         "info",
	}
}

func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		DefaultRadiusKm:  50,
		MinScore:         50,
		DistanceWeight:   40,
		RatingWeight:     30,
		ExperienceWeight: 20,
		CompletionWeight: 10,
		UrgentMultiplier: 1.2,
		FetchTimeout:     2 * time.Second,
		FallbackLimit:    50,
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaStatusTopic, "KAFKA_STATUS_TOPIC")
	setStringFromEnv(&cfg.KafkaEventTopic, "KAFKA_EVENT_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setFloatFromEnv(&cfg.Matching.DefaultRadiusKm, "MATCH_DEFAULT_RADIUS_KM", &errs)
	setIntFromEnv(&cfg.Matching.MinScore, "MATCH_MIN_SCORE", &errs)
	setFloatFromEnv(&cfg.Matching.DistanceWeight, "MATCH_DISTANCE_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Matching.RatingWeight, "MATCH_RATING_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Matching.ExperienceWeight, "MATCH_EXPERIENCE_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Matching.CompletionWeight, "MATCH_COMPLETION_WEIGHT", &errs)
	setFloatFromEnv(&cfg.Matching.UrgentMultiplier, "MATCH_URGENT_MULTIPLIER", &errs)
	setDurationFromEnv(&cfg.Matching.FetchTimeout, "MATCH_FETCH_TIMEOUT", &errs)
	setIntFromEnv(&cfg.Matching.FallbackLimit, "MATCH_FALLBACK_LIMIT", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.Matching.DefaultRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_DEFAULT_RADIUS_KM must be > 0"))
	}
	if cfg.Matching.MinScore < 0 || cfg.Matching.MinScore > 100 {
		errs = append(errs, fmt.Errorf("MATCH_MIN_SCORE must be within [0, 100]"))
	}
	if cfg.Matching.UrgentMultiplier < 1 {
		errs = append(errs, fmt.Errorf("MATCH_URGENT_MULTIPLIER must be >= 1"))
	}
	if cfg.Matching.FallbackLimit <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_FALLBACK_LIMIT must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
