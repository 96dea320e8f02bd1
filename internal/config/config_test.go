package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SCHEDULER_SWEEP_SPEC", "@every 30s")
	t.Setenv("CATALOG_CATEGORIES", "Books,Toys")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, DriverMemory, cfg.Database.Driver)
	require.Equal(t, ProviderSandbox, cfg.Payments.Provider)
	require.Equal(t, "@every 30s", cfg.Scheduler.SweepSpec)
	require.Equal(t, []string{"Books", "Toys"}, cfg.Catalog.Categories)
	require.Equal(t, "auction_events", cfg.Redis.Channel)
	require.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: 7000
  public_url: https://auctions.example.com
database:
  driver: postgres
  dsn: postgres://u:p@db:5432/auctions
  conn_max_lifetime: 1m
auth:
  jwt_secret: from-file
  token_ttl: 2h
payments:
  provider: stripe
  stripe_secret_key: sk_test_123
catalog:
  categories: [Art, Books]
`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, "https://auctions.example.com", cfg.Server.PublicURL)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
	require.Equal(t, time.Minute, cfg.Database.ConnMaxLifetime)
	require.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, ProviderStripe, cfg.Payments.Provider)
	require.Equal(t, []string{"Art", "Books"}, cfg.Catalog.Categories)
	require.Contains(t, cfg.GetConfigString(), "postgres")
	require.NotContains(t, cfg.GetConfigString(), "sk_test_123")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: DriverMemory},
			Payments: PaymentsConfig{Provider: ProviderSandbox},
			Auth:     AuthConfig{JWTSecret: "x", TokenTTL: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown_driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "unknown database driver"},
		{name: "unknown_provider", mutate: func(c *Config) { c.Payments.Provider = "paypal" }, wantErr: "unknown payments provider"},
		{name: "stripe_without_key", mutate: func(c *Config) { c.Payments.Provider = ProviderStripe }, wantErr: "stripe_secret_key"},
		{name: "missing_secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "jwt_secret"},
		{name: "zero_ttl", mutate: func(c *Config) { c.Auth.TokenTTL = 0 }, wantErr: "token_ttl"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}
