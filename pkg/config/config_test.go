package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/felt/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, Default().Session, cfg.Session)
	assert.Equal(t, Default().RateLimit, cfg.RateLimit)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Session.LeaseTTL)
	assert.Empty(t, cfg.Storage.DataDir, "persistence is off by default")
}

func TestRateLimitDefaultsMatchTransport(t *testing.T) {
	d := Default().RateLimit
	assert.Equal(t, 60.0, d.PerSecond)
	assert.Equal(t, 120, d.Burst)
	assert.Equal(t, float64(transport.DefaultRateLimit), d.PerSecond)
	assert.Equal(t, transport.DefaultRateBurst, d.Burst)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("FELT_SERVER_ADDR", ":9999")
	t.Setenv("FELT_SESSION_LEASE_TTL", "10s")
	t.Setenv("FELT_SESSION_MAX_PARTICIPANTS", "4")
	t.Setenv("FELT_LOG_JSON", "true")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Session.LeaseTTL)
	assert.Equal(t, 4, cfg.Session.MaxParticipants)
	assert.True(t, cfg.Log.JSON)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "felt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
  grpc_addr: ""
  allowed_origins: ["play.example.com"]
storage:
  data_dir: /var/lib/felt
ratelimit:
  per_second: 5
  burst: 10
table:
  template: decks/tarot.yaml
`), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Empty(t, cfg.Server.GRPCAddr)
	assert.Equal(t, []string{"play.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/var/lib/felt", cfg.Storage.DataDir)
	assert.Equal(t, 5.0, cfg.RateLimit.PerSecond)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, "decks/tarot.yaml", cfg.Table.Template)
	assert.Equal(t, 8, cfg.Session.MaxParticipants, "unset keys keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: "server.addr"},
		{name: "zero lease ttl", mutate: func(c *Config) { c.Session.LeaseTTL = 0 }, wantErr: "session.lease_ttl"},
		{name: "negative participants", mutate: func(c *Config) { c.Session.MaxParticipants = -1 }, wantErr: "session.max_participants"},
		{name: "zero rate", mutate: func(c *Config) { c.RateLimit.PerSecond = 0 }, wantErr: "ratelimit.per_second"},
		{name: "long codes", mutate: func(c *Config) { c.Session.CodeLength = 40 }, wantErr: "session.code_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
