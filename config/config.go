// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/spf13/viper"

	projects "github.com/goliatone/go-projects"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Port is the HTTP listening port.
	Port string `mapstructure:"PORT"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// CORSOrigins is a comma-separated list of allowed origins, "*" for any.
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	// JWTSecret is the HS256 signing key. Required.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim; empty disables the check.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is a comma-separated aud claim; empty disables the check.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTTTL is the session token lifetime (e.g. "1h").
	JWTTTL string `mapstructure:"JWT_TTL"`
	// TokenLookup lists where tokens are read from.
	TokenLookup string `mapstructure:"TOKEN_LOOKUP"`
	// AuthScheme is the Authorization header scheme.
	AuthScheme string `mapstructure:"AUTH_SCHEME"`

	// DBDriver is "sqlite" or "postgres".
	DBDriver string `mapstructure:"DB_DRIVER"`
	// DatabaseURL is the sqlite file DSN or the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBDebug logs every query through bundebug.
	DBDebug bool `mapstructure:"DB_DEBUG"`

	// BcryptCost is the bcrypt cost factor (4 to 31), default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// RequestTimeout bounds storage calls per request (e.g. "10s").
	RequestTimeout string `mapstructure:"REQUEST_TIMEOUT"`
	// LoginRate is the allowed login attempts per second per IP; 0 disables throttling.
	LoginRate float64 `mapstructure:"LOGIN_RATE"`
	// LoginBurst is the login bucket size per IP.
	LoginBurst int `mapstructure:"LOGIN_BURST"`
	// ProxyHeader is read for the client IP (e.g. "X-Forwarded-For"); empty uses the socket address.
	ProxyHeader string `mapstructure:"PROXY_HEADER"`
	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs allowed to set ProxyHeader.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// AdminUsername, AdminPassword and AdminEmail seed the bootstrap admin when set.
	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
}

var _ projects.Config = (*Config)(nil)

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit env file. Missing files are ignored and env vars override the file.
func LoadFrom(envFile string) (*Config, error) {
	v := viper.New()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		_ = v.ReadInConfig() // ignore ErrConfigFileNotFound
	}

	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("JWT_TTL", "1h")
	v.SetDefault("TOKEN_LOOKUP", "header:Authorization")
	v.SetDefault("AUTH_SCHEME", "Bearer")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "file:projects.db?cache=shared")
	v.SetDefault("DB_DEBUG", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("LOGIN_RATE", 1.0)
	v.SetDefault("LOGIN_BURST", 5)
	v.SetDefault("PROXY_HEADER", "")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("ADMIN_USERNAME", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_EMAIL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "config: unable to decode environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the required fields and ranges
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET must be set", errors.CategoryValidation)
	}

	if c.Env == "production" && len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 bytes when APP_ENV=production", errors.CategoryValidation)
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return errors.New("config: DB_DRIVER must be sqlite or postgres", errors.CategoryValidation)
	}

	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31", errors.CategoryValidation)
	}

	if c.ProxyHeader != "" && len(c.TrustedProxyList()) == 0 {
		return errors.New("config: TRUSTED_PROXIES must be set when PROXY_HEADER is", errors.CategoryValidation)
	}

	if c.AdminUsername != "" && c.AdminPassword == "" {
		return errors.New("config: ADMIN_PASSWORD must be set when ADMIN_USERNAME is", errors.CategoryValidation)
	}

	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	if port == "" {
		port = "3000"
	}
	return ":" + port
}

// Timeout parses RequestTimeout. Returns 10s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// TrustedProxyList splits TrustedProxies
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

// AllowedOrigins returns CORSOrigins in the format fiber's cors middleware expects
func (c *Config) AllowedOrigins() string {
	return strings.Join(splitList(c.CORSOrigins), ",")
}

func (c *Config) GetSigningKey() string {
	return c.JWTSecret
}

// GetTokenTTL parses JWTTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) GetTokenTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

func (c *Config) GetIssuer() string {
	return c.JWTIssuer
}

func (c *Config) GetAudience() []string {
	return splitList(c.JWTAudience)
}

func (c *Config) GetTokenLookup() string {
	return c.TokenLookup
}

func (c *Config) GetAuthScheme() string {
	return c.AuthScheme
}

func (c *Config) GetContextKey() string {
	return projects.LocalsIdentityKey
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
