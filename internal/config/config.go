package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// maxPollAttempts mirrors the Judge0 client's hard cap.
const maxPollAttempts = 30

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   string          `yaml:"backend"` // "auto" (default), "simulated", or "judge0"
	Judge0    Judge0Config    `yaml:"judge0"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Security  SecurityConfig  `yaml:"security"`
	AuthProxy AuthProxyConfig `yaml:"auth_proxy"`
	TLS       TLSConfig       `yaml:"tls"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBody  int64         `yaml:"max_request_body_bytes"`
}

// Judge0Config points at the remote sandbox. APIKey is never read from
// YAML; it comes from JUDGE0_API_KEY.
type Judge0Config struct {
	BaseURL        string        `yaml:"base_url"`
	Host           string        `yaml:"host"`
	APIKey         string        `yaml:"-"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Limits         LimitsConfig  `yaml:"limits"`
}

// LimitsConfig caps each submission on the provider. An all-zero block
// uses the judge's defaults; a single zero field defers to the provider.
type LimitsConfig struct {
	CPUTimeSec   float64 `yaml:"cpu_time_sec"`
	WallTimeSec  float64 `yaml:"wall_time_sec"`
	MemoryKB     int     `yaml:"memory_kb"`
	MaxProcesses int     `yaml:"max_processes"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig enables the execution result cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type SecurityConfig struct {
	SessionSecret    string        `yaml:"-"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	RateLimitRPS     float64       `yaml:"rate_limit_rps"`
	RateLimitBurst   int           `yaml:"rate_limit_burst"`
	BlockSuspicious  bool          `yaml:"block_suspicious_code"`
	MaxTestCases     int           `yaml:"max_test_cases"`
	AllowedLanguages []string      `yaml:"allowed_languages"` // empty allows every Judge0 language
}

// AuthProxyConfig controls the local Judge0 credential proxy. Port 0
// disables it. Secret is generated per startup and never configured.
type AuthProxyConfig struct {
	Port   int    `yaml:"port"`
	Secret string `yaml:"-"`
}

// TLSConfig controls HTTPS/TLS termination.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
		log.Debug().Str("file", f).Msg("loaded environment file")
	}
	return nil
}

// Load reads configuration from a YAML file, then applies secrets from the
// environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag or hardcoded default
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv copies secrets and deployment overrides from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("JUDGE0_API_KEY"); v != "" {
		c.Judge0.APIKey = v
	}
	if v := os.Getenv("JUDGE0_BASE_URL"); v != "" {
		c.Judge0.BaseURL = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		c.Security.SessionSecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("JUDGE_BACKEND"); v != "" {
		c.Backend = v
	}
}

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute, // several cases x 30 polls each
			ShutdownTimeout: 30 * time.Second,
			MaxRequestBody:  1 << 20, // 1MB
		},
		Backend: "auto",
		Judge0: Judge0Config{
			BaseURL:        "https://judge0-ce.p.rapidapi.com",
			Host:           "judge0-ce.p.rapidapi.com",
			PollInterval:   time.Second,
			MaxAttempts:    maxPollAttempts,
			RequestTimeout: 10 * time.Second,
			Limits: LimitsConfig{
				CPUTimeSec:   2,
				WallTimeSec:  5,
				MemoryKB:     128000,
				MaxProcesses: 60,
			},
		},
		Database: DatabaseConfig{
			DSN:             "",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			TTL: time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			SessionTTL:     24 * time.Hour,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
			MaxTestCases:   50,
		},
		TLS: TLSConfig{
			Enabled: false,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	switch c.Backend {
	case "auto", "simulated", "judge0":
	default:
		return fmt.Errorf("backend must be auto, simulated, or judge0, got %q", c.Backend)
	}
	if c.Backend != "simulated" {
		u, err := url.Parse(c.Judge0.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("judge0.base_url must be an absolute URL, got %q", c.Judge0.BaseURL)
		}
	}
	if c.Judge0.MaxAttempts < 1 || c.Judge0.MaxAttempts > maxPollAttempts {
		return fmt.Errorf("judge0.max_attempts must be 1-%d, got %d", maxPollAttempts, c.Judge0.MaxAttempts)
	}
	if c.Judge0.PollInterval <= 0 {
		return fmt.Errorf("judge0.poll_interval must be positive")
	}
	if c.Security.MaxTestCases < 1 {
		return fmt.Errorf("security.max_test_cases must be >= 1")
	}
	if c.Security.SessionTTL <= 0 {
		return fmt.Errorf("security.session_ttl must be positive")
	}
	if c.AuthProxy.Port < 0 || c.AuthProxy.Port > 65535 {
		return fmt.Errorf("auth_proxy.port must be 0-65535, got %d", c.AuthProxy.Port)
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required when TLS is enabled")
		}
	}
	if c.Database.DSN != "" && strings.Contains(c.Database.DSN, "sslmode=disable") {
		log.Warn().Msg("database DSN has sslmode=disable, connections to Postgres are unencrypted")
	}
	return nil
}

// Address returns the listen address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LanguageAllowed reports whether the deployment accepts runs in language.
func (c *Config) LanguageAllowed(language string) bool {
	if len(c.Security.AllowedLanguages) == 0 {
		return true
	}
	for _, l := range c.Security.AllowedLanguages {
		if strings.EqualFold(l, language) {
			return true
		}
	}
	return false
}
