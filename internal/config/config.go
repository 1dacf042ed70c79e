// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as the runtime mode, server timeouts, logging, the database DSN, rate
// limiting, web protection, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode selects how much error detail is exposed to clients.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// IsDevelopment reports whether verbose error payloads are enabled.
func (m Mode) IsDevelopment() bool { return m == ModeDevelopment }

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// RateLimitConfig is one fixed-window limiter: at most Max requests per
// client address per Window.
type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "subscription-service")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	Mode        Mode   // development|production
	ServiceName string // used in the root banner

	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	BodyLimitBytes    int64         // request body cap
	ShutdownGrace     time.Duration // drain budget on shutdown
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Persistence
	DBDSN             string        // SQLite path or postgres:// URL
	DBConnectTimeout  time.Duration // connection-selection timeout
	DBMonitorInterval time.Duration // connectivity probe period

	// Rate limiting
	RateLimit          RateLimitConfig // every route
	SubscribeRateLimit RateLimitConfig // POST /subscribe
	RedisURL           string          // optional shared limiter store

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Mode:        Mode(strings.ToLower(getenv("APP_ENV", getenv("NODE_ENV", string(ModeProduction))))),
		ServiceName: getenv("SERVICE_NAME", "Subscription API"),

		// Server
		Port:              getenv("PORT", "3000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		BodyLimitBytes:    int64(getint("BODY_LIMIT_BYTES", 10<<10)),
		ShutdownGrace:     getdur("SHUTDOWN_GRACE", 10*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// Persistence
		DBDSN:             getenv("DB_DSN", "subscriptions.db"),
		DBConnectTimeout:  getdur("DB_CONNECT_TIMEOUT", 5*time.Second),
		DBMonitorInterval: getdur("DB_MONITOR_INTERVAL", 15*time.Second),

		// Rate limiting
		RateLimit: RateLimitConfig{
			Window: getdur("RATE_LIMIT_WINDOW", 15*time.Minute),
			Max:    getint("RATE_LIMIT_MAX", 100),
		},
		SubscribeRateLimit: RateLimitConfig{
			Window: getdur("SUBSCRIBE_RATE_LIMIT_WINDOW", 15*time.Minute),
			Max:    getint("SUBSCRIBE_RATE_LIMIT_MAX", 5),
		},
		RedisURL: getenv("REDIS_URL", ""),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "subscription-service"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.Mode {
	case "dev":
		cfg.Mode = ModeDevelopment
	case "prod":
		cfg.Mode = ModeProduction
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		if cfg.Mode.IsDevelopment() {
			cfg.GinMode = "debug"
		} else {
			cfg.GinMode = "release"
		}
	}

	// --- validation ---
	switch cfg.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		return cfg, errors.New("APP_ENV must be one of: development, production")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.BodyLimitBytes <= 0 {
		return cfg, errors.New("BODY_LIMIT_BYTES must be > 0")
	}
	if cfg.ShutdownGrace <= 0 {
		return cfg, errors.New("SHUTDOWN_GRACE must be > 0")
	}
	if strings.TrimSpace(cfg.DBDSN) == "" {
		return cfg, errors.New("DB_DSN must not be empty")
	}
	if cfg.DBConnectTimeout <= 0 {
		return cfg, errors.New("DB_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.DBMonitorInterval <= 0 {
		return cfg, errors.New("DB_MONITOR_INTERVAL must be > 0")
	}
	if cfg.RateLimit.Window <= 0 {
		return cfg, errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	if cfg.RateLimit.Max < 1 {
		return cfg, errors.New("RATE_LIMIT_MAX must be >= 1")
	}
	if cfg.SubscribeRateLimit.Window <= 0 {
		return cfg, errors.New("SUBSCRIBE_RATE_LIMIT_WINDOW must be > 0")
	}
	if cfg.SubscribeRateLimit.Max < 1 {
		return cfg, errors.New("SUBSCRIBE_RATE_LIMIT_MAX must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
