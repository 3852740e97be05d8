package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/felt/pkg/transport"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FELT_SERVER_ADDR
const EnvPrefix = "FELT"

// Config is the complete server configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Session    SessionConfig    `mapstructure:"session"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Storage    StorageConfig    `mapstructure:"storage"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Table      TableConfig      `mapstructure:"table"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	GRPCAddr       string   `mapstructure:"grpc_addr"` // Empty disables gRPC health
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type SessionConfig struct {
	MaxParticipants int           `mapstructure:"max_participants"`
	IdleRetention   time.Duration `mapstructure:"idle_retention"`
	LeaseTTL        time.Duration `mapstructure:"lease_ttl"`
	LeaseSweep      time.Duration `mapstructure:"lease_sweep"`
	CodeLength      int           `mapstructure:"code_length"`
	QueueSize       int           `mapstructure:"queue_size"`
}

type ReconcilerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type StorageConfig struct {
	DataDir            string        `mapstructure:"data_dir"` // Empty disables persistence
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type TableConfig struct {
	Template string `mapstructure:"template"` // Empty uses the standard deck
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":8080",
			GRPCAddr: ":9090",
		},
		Session: SessionConfig{
			MaxParticipants: 8,
			IdleRetention:   24 * time.Hour,
			LeaseTTL:        30 * time.Second,
			LeaseSweep:      5 * time.Second,
			CodeLength:      6,
			QueueSize:       256,
		},
		Reconciler: ReconcilerConfig{Interval: time.Minute},
		Storage:    StorageConfig{CheckpointInterval: 30 * time.Second},
		RateLimit:  RateLimitConfig{PerSecond: transport.DefaultRateLimit, Burst: transport.DefaultRateBurst},
		Log:        LogConfig{Level: "info"},
	}
}

// SetDefaults registers every key with its default so that environment
// overrides are seen by Unmarshal
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.grpc_addr", d.Server.GRPCAddr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("session.max_participants", d.Session.MaxParticipants)
	v.SetDefault("session.idle_retention", d.Session.IdleRetention)
	v.SetDefault("session.lease_ttl", d.Session.LeaseTTL)
	v.SetDefault("session.lease_sweep", d.Session.LeaseSweep)
	v.SetDefault("session.code_length", d.Session.CodeLength)
	v.SetDefault("session.queue_size", d.Session.QueueSize)

	v.SetDefault("reconciler.interval", d.Reconciler.Interval)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.checkpoint_interval", d.Storage.CheckpointInterval)

	v.SetDefault("ratelimit.per_second", d.RateLimit.PerSecond)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)

	v.SetDefault("table.template", d.Table.Template)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
}

// New returns a viper instance with defaults and FELT_ environment
// overrides installed
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file into v and decodes the result
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	positiveInts := map[string]int{
		"session.max_participants": c.Session.MaxParticipants,
		"session.code_length":      c.Session.CodeLength,
		"session.queue_size":       c.Session.QueueSize,
		"ratelimit.burst":          c.RateLimit.Burst,
	}
	for key, n := range positiveInts {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, n))
		}
	}

	positiveDurations := map[string]time.Duration{
		"session.idle_retention":      c.Session.IdleRetention,
		"session.lease_ttl":           c.Session.LeaseTTL,
		"session.lease_sweep":         c.Session.LeaseSweep,
		"reconciler.interval":         c.Reconciler.Interval,
		"storage.checkpoint_interval": c.Storage.CheckpointInterval,
	}
	for key, d := range positiveDurations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, d))
		}
	}

	if c.RateLimit.PerSecond <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit.per_second must be positive, got %g", c.RateLimit.PerSecond))
	}
	if c.Session.CodeLength > 12 {
		errs = append(errs, fmt.Errorf("session.code_length must be at most 12, got %d", c.Session.CodeLength))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
