package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable read by Load.
const EnvPrefix = "POS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Config aggregates the settings of the POS backend.
type Config struct {
	App    AppConfig
	HTTP   HTTPConfig
	DB     DBConfig
	JWT    JWTConfig
	Auth   AuthConfig
	Sales  SalesConfig
	Report ReportConfig
	Seed   SeedConfig
}

type AppConfig struct {
	Env             string        `envconfig:"POS_APP_ENV" default:"dev"`
	Port            string        `envconfig:"POS_APP_PORT" default:"8081"`
	LogLevel        string        `envconfig:"POS_LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"POS_SHUTDOWN_TIMEOUT" default:"10s"`
	Version         string        `envconfig:"POS_APP_VERSION" default:"1.0.0"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Addr returns the listen address for the HTTP server.
func (a AppConfig) Addr() string {
	if strings.HasPrefix(a.Port, ":") {
		return a.Port
	}
	return ":" + a.Port
}

// HTTPConfig hardens the public HTTP surface. A "*" origin reflects any
// caller; no origins disables CORS. A zero RateLimit or MaxBodyBytes disables
// that guard.
type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"POS_CORS_ORIGINS"`
	RateLimit       int           `envconfig:"POS_RATE_LIMIT" default:"100"`
	RateLimitWindow time.Duration `envconfig:"POS_RATE_LIMIT_WINDOW" default:"15m"`
	MaxBodyBytes    int64         `envconfig:"POS_MAX_BODY_BYTES" default:"10485760"`
	TrustedProxies  []string      `envconfig:"POS_TRUSTED_PROXIES"`
}

// AnyOrigin reports whether CORS should accept every origin.
func (h HTTPConfig) AnyOrigin() bool {
	for _, o := range h.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

type DBConfig struct {
	Path         string        `envconfig:"POS_DB_PATH" default:"data/pos.db"`
	BusyTimeout  time.Duration `envconfig:"POS_DB_BUSY_TIMEOUT" default:"5s"`
	MaxOpenConns int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"1"`
	AutoMigrate  bool          `envconfig:"POS_DB_AUTO_MIGRATE" default:"true"`
}

type JWTConfig struct {
	Secret     string        `envconfig:"POS_JWT_SECRET" required:"true"`
	Issuer     string        `envconfig:"POS_JWT_ISSUER" default:"pos-backend"`
	Expiration time.Duration `envconfig:"POS_JWT_EXPIRATION" default:"24h"`
}

type AuthConfig struct {
	BcryptCost int `envconfig:"POS_BCRYPT_COST" default:"10"`
}

type SalesConfig struct {
	MaxAttempts  int           `envconfig:"POS_SALE_MAX_ATTEMPTS" default:"3"`
	RetryBackoff time.Duration `envconfig:"POS_SALE_RETRY_BACKOFF" default:"20ms"`
}

type ReportConfig struct {
	LowStockThreshold int `envconfig:"POS_LOW_STOCK_THRESHOLD" default:"10"`
}

type SeedConfig struct {
	Demo          bool   `envconfig:"POS_SEED_DEMO" default:"true"`
	AdminEmail    string `envconfig:"POS_ADMIN_EMAIL" default:"admin@pos.com"`
	AdminPassword string `envconfig:"POS_ADMIN_PASSWORD" default:"admin123"`
	AdminName     string `envconfig:"POS_ADMIN_NAME" default:"Administrator"`
}

// Load reads the configuration from POS_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DB.Path) == "" {
		return fmt.Errorf("%s_DB_PATH must not be empty", EnvPrefix)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("%s_JWT_SECRET is required", EnvPrefix)
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("%s_JWT_EXPIRATION must be positive", EnvPrefix)
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateLimitWindow <= 0 {
		return fmt.Errorf("%s_RATE_LIMIT_WINDOW must be positive when rate limiting", EnvPrefix)
	}
	for _, o := range c.HTTP.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("%s_CORS_ORIGINS: %q must be * or an http(s) origin", EnvPrefix, o)
		}
	}
	// Browsers of any origin may call a dev server; production only serves
	// the origins it lists.
	if len(c.HTTP.CORSOrigins) == 0 && c.App.IsDev() {
		c.HTTP.CORSOrigins = []string{"*"}
	}
	if c.Sales.MaxAttempts < 1 {
		c.Sales.MaxAttempts = 1
	}
	if c.Seed.Demo && c.Seed.AdminPassword == "" {
		return fmt.Errorf("%s_ADMIN_PASSWORD is required when demo seeding is enabled", EnvPrefix)
	}
	return nil
}
