package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ChainID:                    31337,
		Port:                       8080,
		RateLimitEnabled:           true,
		RateLimitRPS:               20,
		RateLimitBurst:             40,
		RecoveryDomainName:         "SmartAccountRecovery",
		RecoveryDomainVersion:      "1",
		SocialRecoveryMinThreshold: 1,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid in-memory config",
			mutate: func(c *Config) {},
		},
		{
			name:   "valid postgres config",
			mutate: func(c *Config) { c.PostgresDSN = "postgres://localhost:5432/test" },
		},
		{
			name:   "rate limit disabled ignores rps",
			mutate: func(c *Config) { c.RateLimitEnabled = false; c.RateLimitRPS = 0 },
		},
		{
			name:    "zero chain id",
			mutate:  func(c *Config) { c.ChainID = 0 },
			wantErr: true,
			errMsg:  "CHAIN_ID",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: true,
			errMsg:  "PORT must be between",
		},
		{
			name:    "zero rps",
			mutate:  func(c *Config) { c.RateLimitRPS = 0 },
			wantErr: true,
			errMsg:  "RATE_LIMIT_RPS",
		},
		{
			name:    "zero burst",
			mutate:  func(c *Config) { c.RateLimitBurst = 0 },
			wantErr: true,
			errMsg:  "RATE_LIMIT_BURST",
		},
		{
			name:    "missing recovery domain",
			mutate:  func(c *Config) { c.RecoveryDomainName = "" },
			wantErr: true,
			errMsg:  "RECOVERY_DOMAIN_NAME",
		},
		{
			name:    "negative timelock",
			mutate:  func(c *Config) { c.CloudRecoveryTimelock = -time.Second },
			wantErr: true,
			errMsg:  "timelocks",
		},
		{
			name:    "zero social threshold",
			mutate:  func(c *Config) { c.SocialRecoveryMinThreshold = 0 },
			wantErr: true,
			errMsg:  "SOCIAL_RECOVERY_MIN_THRESHOLD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "", cfg.PostgresDSN)
		assert.Equal(t, uint64(31337), cfg.ChainID)
		assert.Equal(t, 8080, cfg.Port)
		assert.True(t, cfg.RateLimitEnabled)
		assert.Equal(t, "SmartAccountRecovery", cfg.RecoveryDomainName)
		assert.Equal(t, time.Duration(0), cfg.CloudRecoveryTimelock)
		assert.Equal(t, uint64(1), cfg.SocialRecoveryMinThreshold)
	})

	t.Run("values from environment", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("CHAIN_ID", "8453")
		t.Setenv("PORT", "9090")
		t.Setenv("RATE_LIMIT_ENABLED", "false")
		t.Setenv("CLOUD_RECOVERY_TIMELOCK", "36h")
		t.Setenv("SOCIAL_RECOVERY_MIN_TIMELOCK", "3600")
		t.Setenv("SOCIAL_RECOVERY_MIN_THRESHOLD", "2")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, uint64(8453), cfg.ChainID)
		assert.Equal(t, 9090, cfg.Port)
		assert.False(t, cfg.RateLimitEnabled)
		assert.Equal(t, 36*time.Hour, cfg.CloudRecoveryTimelock)
		assert.Equal(t, time.Hour, cfg.SocialRecoveryMinTimelock)
		assert.Equal(t, uint64(2), cfg.SocialRecoveryMinThreshold)
	})

	t.Run("env file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "test.env")
		require.NoError(t, os.WriteFile(path, []byte("POSTGRES_DSN=postgres://localhost:5432/receipts\nRECOVERY_DOMAIN_VERSION=2\n"), 0o600))
		t.Setenv("POSTGRES_DSN", "")
		t.Setenv("RECOVERY_DOMAIN_VERSION", "")
		os.Unsetenv("POSTGRES_DSN")
		os.Unsetenv("RECOVERY_DOMAIN_VERSION")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost:5432/receipts", cfg.PostgresDSN)
		assert.Equal(t, "2", cfg.RecoveryDomainVersion)
	})

	t.Run("missing env file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
		require.Error(t, err)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("PORT", "0")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
