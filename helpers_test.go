package projects_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	projects "github.com/goliatone/go-projects"
)

const testSecret = "test-signing-secret-with-enough-bytes"

type testConfig struct {
	ttl time.Duration
}

func (c testConfig) GetSigningKey() string { return testSecret }
func (c testConfig) GetTokenTTL() time.Duration {
	if c.ttl == 0 {
		return time.Hour
	}
	return c.ttl
}
func (c testConfig) GetIssuer() string      { return "projects-test" }
func (c testConfig) GetAudience() []string  { return []string{"projects-api"} }
func (c testConfig) GetTokenLookup() string { return "header:Authorization" }
func (c testConfig) GetAuthScheme() string  { return "Bearer" }
func (c testConfig) GetContextKey() string  { return projects.LocalsIdentityKey }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func fastHasher() projects.BcryptHasher {
	return projects.BcryptHasher{Cost: bcrypt.MinCost}
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "projects.db")
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = projects.Migrate(context.Background(), db)
	require.NoError(t, err)

	return db
}

func newTestServer(t *testing.T, opts ...projects.ServerOption) (*projects.Server, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	base := []projects.ServerOption{
		projects.WithServerLogger(nopLogger{}),
		projects.WithPasswordHasher(fastHasher()),
		projects.WithMetricsRegistry(reg),
	}

	srv, err := projects.NewServer(newTestDB(t), testConfig{}, append(base, opts...)...)
	require.NoError(t, err)
	return srv, reg
}

func registerUser(t *testing.T, srv *projects.Server, username, password string) *projects.User {
	t.Helper()

	user, err := srv.Users.Register(context.Background(), projects.RegisterUserRequest{
		FirstName: username,
		LastName:  "Tester",
		Age:       30,
		Email:     username + "@example.com",
		Username:  username,
		Password:  password,
	})
	require.NoError(t, err)
	return user
}

func createAdmin(t *testing.T, srv *projects.Server) *projects.User {
	t.Helper()

	admin, created, err := srv.Users.EnsureAdmin(context.Background(), "root", "root@example.com", "root-password")
	require.NoError(t, err)
	require.True(t, created)
	return admin
}

func login(t *testing.T, srv *projects.Server, username, password string) string {
	t.Helper()

	status, body := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status, "login failed: %v", body)

	token, ok := body["access_token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)
	return token
}

func doRequest(t *testing.T, srv *projects.Server, method, path, token string, payload any) *http.Response {
	t.Helper()

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := srv.App.Test(req, -1)
	require.NoError(t, err)
	return res
}

func newRawRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func doJSON(t *testing.T, srv *projects.Server, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()

	res := doRequest(t, srv, method, path, token, payload)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	body := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return res.StatusCode, body
}

func doJSONList(t *testing.T, srv *projects.Server, method, path, token string) (int, []map[string]any) {
	t.Helper()

	res := doRequest(t, srv, method, path, token, nil)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var body []map[string]any
	if res.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return res.StatusCode, body
}

func errorTextCode(body map[string]any) string {
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := envelope["text_code"].(string)
	return code
}
