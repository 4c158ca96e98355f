// Package config manages sweep configuration loading and validation.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const maxWorkers = 32

// StoreConfig addresses the shop and paces requests against it.
type StoreConfig struct {
	Domain             string        `yaml:"domain"`
	AccessToken        string        `yaml:"accessToken"`
	APIVersion         string        `yaml:"apiVersion"`
	// BaseURL replaces https://{domain}, e.g. for an egress proxy.
	BaseURL            string        `yaml:"baseURL"`
	HTTPTimeout        time.Duration `yaml:"httpTimeout"`
	RequestsPerSecond  float64       `yaml:"requestsPerSecond"`
	Burst              int           `yaml:"burst"`
	ThrottleMaxRetries uint          `yaml:"throttleMaxRetries"`
}

// SweepConfig tunes what the sweep looks for and how it mutates.
type SweepConfig struct {
	Namespace                string         `yaml:"namespace"`
	BadgesKey                string         `yaml:"badgesKey"`
	ExpirationKey            string         `yaml:"expirationKey"`
	SentinelTag              string         `yaml:"sentinelTag"`
	Workers                  int            `yaml:"workers"`
	DryRun                   bool           `yaml:"dryRun"`
	DeleteStrategy           DeleteStrategy `yaml:"deleteStrategy"`
	PurgeMalformedExpiration bool           `yaml:"purgeMalformedExpiration"`
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// AppConfig is the sweep configuration sourced from YAML and the environment.
type AppConfig struct {
	Environment Environment     `yaml:"environment"`
	Store       StoreConfig     `yaml:"store"`
	Sweep       SweepConfig     `yaml:"sweep"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no file is supplied.
func Default() AppConfig {
	return AppConfig{
		Environment: EnvDev,
		Store: StoreConfig{
			APIVersion:         "2025-07",
			HTTPTimeout:        30 * time.Second,
			RequestsPerSecond:  2,
			Burst:              4,
			ThrottleMaxRetries: 5,
		},
		Sweep: SweepConfig{
			Namespace:      "custom",
			BadgesKey:      "badges",
			ExpirationKey:  "expiration_time",
			SentinelTag:    "New In",
			Workers:        1,
			DeleteStrategy: DeleteDirect,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "metasweep",
			EnableMetrics: true,
		},
	}
}

// Load reads, overlays the environment onto, and validates an AppConfig from the YAML file.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return finalize(cfg)
}

// LoadOrDefault behaves like Load but falls back to Default when configPath is empty or absent.
// The environment is applied in both cases.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, error) {
	if strings.TrimSpace(configPath) != "" {
		cfg, err := Load(ctx, configPath)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}
	return finalize(Default())
}

func finalize(cfg AppConfig) (AppConfig, error) {
	cfg.ApplyEnv(os.LookupEnv)
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays credentials and environment selection from lookup. Set variables win over the file.
func (c *AppConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if v, ok := lookup(EnvStoreURL); ok && strings.TrimSpace(v) != "" {
		c.Store.Domain = v
	}
	if v, ok := lookup(EnvAccessToken); ok && strings.TrimSpace(v) != "" {
		c.Store.AccessToken = v
	}
	if v, ok := lookup(EnvAPIVersion); ok && strings.TrimSpace(v) != "" {
		c.Store.APIVersion = v
	}
	if v, ok := lookup(EnvEnvironment); ok && strings.TrimSpace(v) != "" {
		c.Environment = Environment(v)
	}
}

func (c *AppConfig) normalise() {
	c.Environment = normalizeEnvironment(string(c.Environment))

	domain := strings.TrimSpace(c.Store.Domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	c.Store.Domain = strings.TrimSuffix(domain, "/")
	c.Store.AccessToken = strings.TrimSpace(c.Store.AccessToken)
	c.Store.APIVersion = strings.TrimSpace(c.Store.APIVersion)
	c.Store.BaseURL = strings.TrimSpace(c.Store.BaseURL)

	c.Sweep.Namespace = strings.TrimSpace(c.Sweep.Namespace)
	c.Sweep.BadgesKey = strings.TrimSpace(c.Sweep.BadgesKey)
	c.Sweep.ExpirationKey = strings.TrimSpace(c.Sweep.ExpirationKey)
	c.Sweep.SentinelTag = strings.TrimSpace(c.Sweep.SentinelTag)
	c.Sweep.DeleteStrategy = DeleteStrategy(strings.ToLower(strings.TrimSpace(string(c.Sweep.DeleteStrategy))))
	if c.Sweep.DeleteStrategy == "" {
		c.Sweep.DeleteStrategy = DeleteDirect
	}
	if c.Sweep.Workers == 0 {
		c.Sweep.Workers = 1
	}

	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}

	if c.Store.Domain == "" {
		return fmt.Errorf("store domain required (set %s)", EnvStoreURL)
	}
	if strings.ContainsAny(c.Store.Domain, "/ ") {
		return fmt.Errorf("store domain %q must be a bare host", c.Store.Domain)
	}
	if c.Store.AccessToken == "" {
		return fmt.Errorf("store accessToken required (set %s)", EnvAccessToken)
	}
	if !validAPIVersion(c.Store.APIVersion) {
		return fmt.Errorf("store apiVersion %q must look like 2025-07", c.Store.APIVersion)
	}
	if c.Store.HTTPTimeout <= 0 {
		return fmt.Errorf("store httpTimeout must be >0")
	}
	if c.Store.RequestsPerSecond <= 0 {
		return fmt.Errorf("store requestsPerSecond must be >0")
	}
	if c.Store.Burst <= 0 {
		return fmt.Errorf("store burst must be >0")
	}

	if c.Sweep.Namespace == "" {
		return fmt.Errorf("sweep namespace required")
	}
	if c.Sweep.BadgesKey == "" || c.Sweep.ExpirationKey == "" {
		return fmt.Errorf("sweep badgesKey and expirationKey required")
	}
	if c.Sweep.BadgesKey == c.Sweep.ExpirationKey {
		return fmt.Errorf("sweep badgesKey and expirationKey must differ")
	}
	if c.Sweep.SentinelTag == "" {
		return fmt.Errorf("sweep sentinelTag required")
	}
	if c.Sweep.Workers < 1 || c.Sweep.Workers > maxWorkers {
		return fmt.Errorf("sweep workers must be between 1 and %d", maxWorkers)
	}
	switch c.Sweep.DeleteStrategy {
	case DeleteDirect, DeleteLookup:
	default:
		return fmt.Errorf("sweep deleteStrategy must be one of direct, lookup")
	}

	if c.Telemetry.ServiceName == "" {
		return fmt.Errorf("telemetry serviceName required")
	}
	return nil
}

func validAPIVersion(v string) bool {
	if v == "unstable" {
		return true
	}
	_, err := time.Parse("2006-01", v)
	return err == nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
