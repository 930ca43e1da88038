package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadFrom("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "*", cfg.AllowedOrigins())
	assert.Equal(t, time.Hour, cfg.GetTokenTTL())
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, "header:Authorization", cfg.GetTokenLookup())
	assert.Equal(t, "Bearer", cfg.GetAuthScheme())
	assert.Empty(t, cfg.GetAudience())
	assert.Equal(t, 5, cfg.LoginBurst)
}

func TestLoad_EnvVarOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "8081")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("JWT_AUDIENCE", "web, mobile")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Addr())
	assert.Equal(t, 30*time.Minute, cfg.GetTokenTTL())
	assert.Equal(t, []string{"web", "mobile"}, cfg.GetAudience())
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "http://a.test,http://b.test", cfg.AllowedOrigins())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("JWT_SECRET=from-file\nPORT=4000\n"), 0o600))

	t.Setenv("PORT", "5000")

	cfg, err := LoadFrom(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.GetSigningKey())
	assert.Equal(t, ":5000", cfg.Addr(), "env vars override the file")
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadFrom("")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{JWTSecret: "secret", DBDriver: "sqlite", BcryptCost: 12}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.DBDriver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.BcryptCost = 40
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Env = "production"
	assert.Error(t, cfg.Validate(), "short secrets are refused in production")

	cfg = base()
	cfg.AdminUsername = "root"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.ProxyHeader = "X-Forwarded-For"
	assert.Error(t, cfg.Validate(), "a proxy header needs trusted proxies")

	cfg.TrustedProxies = "10.0.0.1, 10.1.0.0/16"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"10.0.0.1", "10.1.0.0/16"}, cfg.TrustedProxyList())
}

func TestTTLFallback(t *testing.T) {
	cfg := &Config{JWTTTL: "nonsense", RequestTimeout: "-1s"}
	assert.Equal(t, time.Hour, cfg.GetTokenTTL())
	assert.Equal(t, 10*time.Second, cfg.Timeout())
}
