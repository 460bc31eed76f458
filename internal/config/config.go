// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Storage   StorageConfig   `koanf:"storage"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Wallet    WalletConfig    `koanf:"wallet"`
	Bootstrap BootstrapConfig `koanf:"bootstrap"`
	Jobs      JobsConfig      `koanf:"jobs"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`

	// AuthPerMinute caps credential endpoints per client address.
	AuthPerMinute int `koanf:"auth_per_minute"`
	// AnalysisPerHour caps AI analysis calls per session.
	AnalysisPerHour int `koanf:"analysis_per_hour"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

const (
	StorageLocal    = "local"
	StorageGCS      = "gcs"
	StorageSupabase = "supabase"
)

type StorageConfig struct {
	Driver        string `koanf:"driver"`
	LocalRoot     string `koanf:"local_root"`
	PublicBaseURL string `koanf:"public_base_url"`
	SigningKey    string `koanf:"signing_key"`

	GCSBucket          string `koanf:"gcs_bucket"`
	GCSCredentialsFile string `koanf:"gcs_credentials_file"`

	SupabaseURL        string `koanf:"supabase_url"`
	SupabaseServiceKey string `koanf:"supabase_service_key"`
}

type AnalysisConfig struct {
	Enabled    bool          `koanf:"enabled"`
	GatewayURL string        `koanf:"gateway_url"`
	APIKey     string        `koanf:"api_key"`
	Model      string        `koanf:"model"`
	Timeout    time.Duration `koanf:"timeout"`
}

// Deposit credit modes. on_approval credits the balance when an admin
// approves the receipt; on_submit credits at submission and reverts on
// rejection.
const (
	DepositCreditOnApproval = "on_approval"
	DepositCreditOnSubmit   = "on_submit"
)

type WalletConfig struct {
	DepositCredit  string        `koanf:"deposit_credit"`
	Currency       string        `koanf:"currency"`
	IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`
}

func (w WalletConfig) CreditsOnSubmit() bool {
	return w.DepositCredit == DepositCreditOnSubmit
}

type BootstrapConfig struct {
	AdminEmail    string `koanf:"admin_email"`
	AdminPassword string `koanf:"admin_password"`
	AdminName     string `koanf:"admin_name"`
}

type JobsConfig struct {
	Enabled      bool   `koanf:"enabled"`
	TokenCleanup string `koanf:"token_cleanup"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		k := koanf.New(".")

		if err := loadDefaults(k); err != nil {
			loadErr = fmt.Errorf("load defaults: %w", err)
			return
		}

		if configPath != "" {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				loadErr = fmt.Errorf("load config file: %w", err)
				return
			}
		}

		if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
			loadErr = fmt.Errorf("load env vars: %w", err)
			return
		}

		cfg = &Config{}
		if err := k.Unmarshal("", cfg); err != nil {
			loadErr = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		if err := validate(cfg); err != nil {
			loadErr = fmt.Errorf("validate config: %w", err)
			return
		}
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "MusicDesk API",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "musicdesk",
		"jwt.audience":             "musicdesk-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"rate_limit.requests":          100,
		"rate_limit.window":            "1m",
		"rate_limit.burst":             20,
		"rate_limit.auth_per_minute":   10,
		"rate_limit.analysis_per_hour": 20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"Idempotency-Key",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "musicdesk",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",

		"storage.driver":          StorageLocal,
		"storage.local_root":      "data/storage",
		"storage.public_base_url": "http://localhost:8080",

		"analysis.enabled":     false,
		"analysis.gateway_url": "https://ai.gateway.lovable.dev/v1",
		"analysis.model":       "google/gemini-2.5-flash",
		"analysis.timeout":     "60s",

		"wallet.deposit_credit":  DepositCreditOnApproval,
		"wallet.currency":        "Kz",
		"wallet.idempotency_ttl": "24h",

		"bootstrap.admin_name": "Administrador",

		"jobs.enabled":       true,
		"jobs.token_cleanup": "0 0 * * * *",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                   "database.url",
	"REDIS_URL":                      "redis.url",
	"ENVIRONMENT":                    "app.environment",
	"HOST":                           "server.host",
	"PORT":                           "server.port",
	"LOG_LEVEL":                      "log.level",
	"LOG_FORMAT":                     "log.format",
	"JWT_PRIVATE_KEY_PATH":           "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":            "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":        "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":       "jwt.refresh_token_expire",
	"JWT_ISSUER":                     "jwt.issuer",
	"JWT_AUDIENCE":                   "jwt.audience",
	"RATE_LIMIT_REQUESTS":            "rate_limit.requests",
	"RATE_LIMIT_WINDOW":              "rate_limit.window",
	"RATE_LIMIT_BURST":               "rate_limit.burst",
	"RATE_LIMIT_AUTH_PER_MINUTE":     "rate_limit.auth_per_minute",
	"RATE_LIMIT_ANALYSIS_PER_HOUR":   "rate_limit.analysis_per_hour",
	"OTEL_ENDPOINT":                  "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT":    "otel.endpoint",
	"OTEL_SERVICE_NAME":              "otel.service_name",
	"OTEL_ENABLED":                   "otel.enabled",
	"OTEL_INSECURE":                  "otel.insecure",
	"OTEL_SAMPLE_RATE":               "otel.sample_rate",
	"METRICS_ENABLED":                "metrics.enabled",
	"STORAGE_DRIVER":                 "storage.driver",
	"STORAGE_LOCAL_ROOT":             "storage.local_root",
	"STORAGE_PUBLIC_BASE_URL":        "storage.public_base_url",
	"STORAGE_SIGNING_KEY":            "storage.signing_key",
	"GCS_BUCKET":                     "storage.gcs_bucket",
	"GOOGLE_APPLICATION_CREDENTIALS": "storage.gcs_credentials_file",
	"SUPABASE_URL":                   "storage.supabase_url",
	"SUPABASE_SERVICE_ROLE_KEY":      "storage.supabase_service_key",
	"ANALYSIS_ENABLED":               "analysis.enabled",
	"AI_GATEWAY_URL":                 "analysis.gateway_url",
	"AI_GATEWAY_API_KEY":             "analysis.api_key",
	"AI_MODEL":                       "analysis.model",
	"WALLET_DEPOSIT_CREDIT":          "wallet.deposit_credit",
	"ADMIN_EMAIL":                    "bootstrap.admin_email",
	"ADMIN_PASSWORD":                 "bootstrap.admin_password",
	"ADMIN_NAME":                     "bootstrap.admin_name",
	"JOBS_ENABLED":                   "jobs.enabled",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.AuthPerMinute <= 0 || c.RateLimit.AnalysisPerHour <= 0 {
		return fmt.Errorf("rate_limit budgets must be positive")
	}

	if err := validateStorage(c.Storage, c.App.Environment); err != nil {
		return err
	}

	switch c.Wallet.DepositCredit {
	case DepositCreditOnApproval, DepositCreditOnSubmit:
	default:
		return fmt.Errorf(
			"wallet.deposit_credit must be %q or %q, got %q",
			DepositCreditOnApproval,
			DepositCreditOnSubmit,
			c.Wallet.DepositCredit,
		)
	}

	if c.Analysis.Enabled && c.Analysis.APIKey == "" {
		return fmt.Errorf("AI_GATEWAY_API_KEY is required when analysis is enabled")
	}

	if c.Bootstrap.AdminEmail != "" && len(c.Bootstrap.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
	}

	return nil
}

func validateStorage(s StorageConfig, environment string) error {
	switch s.Driver {
	case StorageLocal:
		if s.LocalRoot == "" {
			return fmt.Errorf("storage.local_root is required for local storage")
		}
		if s.SigningKey == "" && environment == "production" {
			return fmt.Errorf("STORAGE_SIGNING_KEY is required in production")
		}
	case StorageGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for gcs storage")
		}
	case StorageSupabase:
		if s.SupabaseURL == "" || s.SupabaseServiceKey == "" {
			return fmt.Errorf(
				"SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for supabase storage",
			)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", s.Driver)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
