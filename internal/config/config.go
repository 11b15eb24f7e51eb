package config

import (
	"context"
	"log/slog"
	"os"
	"time"

	infisical "github.com/infisical/go-sdk"
)

type Config struct {
	Port           string
	FrontendOrigin string

	SnapshotPath string
	SourceURL    string
	Interval     time.Duration
	WaitTimeout  time.Duration
	ChromePath   string
	LogFile      string

	// Optional backends; empty disables them.
	DatabaseURL   string
	RedisURL      string
	RedisPassword string
}

func Load() Config {
	cfg := Config{
		Port:           envOr("PORT", "8000"),
		FrontendOrigin: envOr("FRONTEND_ORIGIN", "*"),
		SnapshotPath:   envOr("POOL_DATA_FILE", "pool_data.json"),
		SourceURL:      envOr("DEDUST_POOLS_URL", "https://dedust.io/pools"),
		Interval:       durationOr("COLLECT_INTERVAL", 5*time.Minute),
		WaitTimeout:    durationOr("DOM_WAIT_TIMEOUT", 20*time.Second),
		ChromePath:     os.Getenv("CHROME_PATH"),
		LogFile:        envOr("LOG_FILE", "pool_collector.log"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL", "https://app.infisical.com")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"DATABASE_URL":   &cfg.DatabaseURL,
		"REDIS_URL":      &cfg.RedisURL,
		"REDIS_PASSWORD": &cfg.RedisPassword,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
