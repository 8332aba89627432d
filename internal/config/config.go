package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	GenAI      GenAIConfig      `yaml:"genai"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Upload     UploadConfig     `yaml:"upload"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Session    SessionConfig    `yaml:"session"`
	Health     HealthConfig     `yaml:"health"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	MetricsPort      int           `yaml:"metrics_port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// GenAIConfig configures the hosted text-generation service. An empty
// APIKey disables generation; the pipeline then serves the fallback text.
type GenAIConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ClassifierConfig configures the blood-smear inference sidecar.
type ClassifierConfig struct {
	Enabled bool          `yaml:"enabled"`
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

type UploadConfig struct {
	Dir               string   `yaml:"dir"`
	MaxBytes          int64    `yaml:"max_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// ExtensionSet returns the allow-set keyed by lowercase extension
// without the leading dot. Configured entries are lowercased so the
// set matches however they were written in the file.
func (u UploadConfig) ExtensionSet() map[string]bool {
	set := make(map[string]bool, len(u.AllowedExtensions))
	for _, ext := range u.AllowedExtensions {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return set
}

type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

type SessionConfig struct {
	Secret        string        `yaml:"secret"`
	TTL           time.Duration `yaml:"ttl"`
	SecureCookies bool          `yaml:"secure_cookies"`
}

type HealthConfig struct {
	DiskPath         string  `yaml:"disk_path"`
	DiskThresholdPct float64 `yaml:"disk_threshold_pct"`
	MemThresholdPct  float64 `yaml:"mem_threshold_pct"`
}

type TelemetryConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			MetricsPort:      9090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "medsage",
			User:            "medsage",
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 50,
		},
		GenAI: GenAIConfig{
			Model:   "gemini-2.0-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: 30 * time.Second,
		},
		Classifier: ClassifierConfig{
			Enabled: true,
			Address: "http://localhost:8501",
			Timeout: 30 * time.Second,
		},
		Upload: UploadConfig{
			Dir:               "uploads",
			MaxBytes:          16 << 20, // 16 MiB
			AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "bmp", "tiff"},
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 50,
			Window:      60 * time.Minute,
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			SecureCookies: false,
		},
		Health: HealthConfig{
			DiskPath:         "/",
			DiskThresholdPct: 80,
			MemThresholdPct:  80,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}
