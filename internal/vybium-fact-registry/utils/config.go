package utils

import (
	"fmt"
	"math/big"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

// DefaultVerifierID is the Cairo sub-verifier id of the on-chain verifier.
const DefaultVerifierID uint64 = 6

// Config represents the configuration of a fact registry deployment
type Config struct {
	// Field parameters
	FieldModulus *big.Int

	// Statement identity; nil disables statement aggregation
	BootloaderProgramHash *big.Int
	SupportedVerifierIDs  []uint64

	// Delegation window in seconds; zero disables referral
	ReferralDurationSeconds uint64

	Storage   StorageConfig
	Reference ReferenceConfig
	Events    EventsConfig
	Log       LogConfig
}

// StorageConfig selects where the fact set is persisted
type StorageConfig struct {
	Driver    string `yaml:"driver"` // "memory", "sqlite", "mysql" or "redis"
	DSN       string `yaml:"dsn"`
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`
}

// ReferenceConfig selects the reference registry for delegation
type ReferenceConfig struct {
	Driver    string `yaml:"driver"` // "none" or "redis"
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`
}

// EventsConfig selects the AMQP sink; an empty URL disables it
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns an in-memory configuration over the Stark field
func DefaultConfig() *Config {
	return &Config{
		FieldModulus:         core.StarkPrime(),
		SupportedVerifierIDs: []uint64{DefaultVerifierID},
		Storage:              StorageConfig{Driver: "memory"},
		Reference:            ReferenceConfig{Driver: "none"},
		Log:                  LogConfig{Level: "info"},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.FieldModulus == nil || c.FieldModulus.Cmp(core.StarkPrime()) != 0 {
		return core.Configf("field modulus must be 0x%s", core.StarkPrimeHex)
	}

	if c.BootloaderProgramHash != nil && (c.BootloaderProgramHash.Sign() < 0 || c.BootloaderProgramHash.Cmp(c.FieldModulus) >= 0) {
		return core.Configf("bootloader program hash must be a canonical field element")
	}

	if len(c.SupportedVerifierIDs) == 0 {
		return core.Configf("at least one verifier id must be supported")
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "mysql":
		if c.Storage.DSN == "" {
			return core.Configf("storage driver %q needs a dsn", c.Storage.Driver)
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return core.Configf("storage driver redis needs redis_addr")
		}
	default:
		return core.Configf("storage driver must be 'memory', 'sqlite', 'mysql', or 'redis', got '%s'", c.Storage.Driver)
	}

	switch c.Reference.Driver {
	case "", "none":
		if c.ReferralDurationSeconds != 0 {
			return core.Configf("referral duration %d needs a reference registry", c.ReferralDurationSeconds)
		}
	case "redis":
		if c.Reference.RedisAddr == "" {
			return core.Configf("reference driver redis needs redis_addr")
		}
		if c.Storage.Driver == "redis" && c.Storage.RedisAddr == c.Reference.RedisAddr && c.Storage.RedisKey == c.Reference.RedisKey {
			return core.Configf("reference registry is the primary store")
		}
	default:
		return core.Configf("reference driver must be 'none' or 'redis', got '%s'", c.Reference.Driver)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return core.Configf("log level must be 'debug', 'info', 'warn', or 'error', got '%s'", c.Log.Level)
	}

	return nil
}

// WithBootloaderProgramHash sets the expected bootloader program hash
func (c *Config) WithBootloaderProgramHash(hash *big.Int) *Config {
	c.BootloaderProgramHash = new(big.Int).Set(hash)
	return c
}

// WithSupportedVerifierIDs sets the accepted verifier ids
func (c *Config) WithSupportedVerifierIDs(ids ...uint64) *Config {
	c.SupportedVerifierIDs = slices.Clone(ids)
	return c
}

// WithReferralDuration sets the delegation window
func (c *Config) WithReferralDuration(seconds uint64) *Config {
	c.ReferralDurationSeconds = seconds
	return c
}

// WithStorage sets the storage backend
func (c *Config) WithStorage(storage StorageConfig) *Config {
	c.Storage = storage
	return c
}

// WithReference sets the reference registry
func (c *Config) WithReference(reference ReferenceConfig) *Config {
	c.Reference = reference
	return c
}

// WithEvents sets the AMQP sink
func (c *Config) WithEvents(events EventsConfig) *Config {
	c.Events = events
	return c
}

// WithLog sets the logger configuration
func (c *Config) WithLog(log LogConfig) *Config {
	c.Log = log
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	out := *c
	if c.FieldModulus != nil {
		out.FieldModulus = new(big.Int).Set(c.FieldModulus)
	}
	if c.BootloaderProgramHash != nil {
		out.BootloaderProgramHash = new(big.Int).Set(c.BootloaderProgramHash)
	}
	out.SupportedVerifierIDs = slices.Clone(c.SupportedVerifierIDs)
	return &out
}

// fileConfig is the YAML shape of Config. Big integers are hex or decimal
// strings.
type fileConfig struct {
	FieldModulus            string          `yaml:"field_modulus"`
	BootloaderProgramHash   string          `yaml:"bootloader_program_hash"`
	SupportedVerifierIDs    []uint64        `yaml:"supported_verifier_ids"`
	ReferralDurationSeconds uint64          `yaml:"referral_duration_seconds"`
	Storage                 StorageConfig   `yaml:"storage"`
	Reference               ReferenceConfig `yaml:"reference"`
	Events                  EventsConfig    `yaml:"events"`
	Log                     LogConfig       `yaml:"log"`
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	raw := fileConfig{
		SupportedVerifierIDs: cfg.SupportedVerifierIDs,
		Storage:              cfg.Storage,
		Reference:            cfg.Reference,
		Log:                  cfg.Log,
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, core.Wrap(core.ErrConfig, err, "decode config")
	}

	if raw.FieldModulus != "" {
		m, err := ParseInt(raw.FieldModulus)
		if err != nil {
			return nil, core.Wrap(core.ErrConfig, err, "field_modulus")
		}
		cfg.FieldModulus = m
	}
	if raw.BootloaderProgramHash != "" {
		h, err := ParseInt(raw.BootloaderProgramHash)
		if err != nil {
			return nil, core.Wrap(core.ErrConfig, err, "bootloader_program_hash")
		}
		cfg.BootloaderProgramHash = h
	}
	cfg.SupportedVerifierIDs = raw.SupportedVerifierIDs
	cfg.ReferralDurationSeconds = raw.ReferralDurationSeconds
	cfg.Storage = raw.Storage
	cfg.Reference = raw.Reference
	cfg.Events = raw.Events
	cfg.Log = raw.Log

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Wrap(core.ErrConfig, err, "read config %s", path)
	}
	return ParseConfig(data)
}

// ParseInt parses a 0x-prefixed hex or a decimal non-negative integer.
func ParseInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	x, ok := new(big.Int).SetString(s, base)
	if !ok || x.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return x, nil
}
