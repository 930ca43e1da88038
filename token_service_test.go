package projects_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	projects "github.com/goliatone/go-projects"
)

func newTokenService() *projects.TokenServiceImpl {
	return projects.NewTokenService([]byte(testSecret), time.Hour, "projects-test", jwt.ClaimStrings{"projects-api"}, nopLogger{})
}

func TestTokenService_GenerateAndValidate(t *testing.T) {
	ts := newTokenService()
	identity := newIdentity(projects.RoleAdmin)

	before := time.Now()
	token, expiresAt, err := ts.Generate(identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, before.Add(time.Hour), expiresAt, 2*time.Second)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID(), claims.UserID())
	assert.Equal(t, identity.ID(), claims.Subject())
	assert.Equal(t, string(projects.RoleAdmin), claims.Role())
	assert.True(t, claims.IsAdmin())
	assert.True(t, claims.HasRole("ADMIN"))
	assert.WithinDuration(t, expiresAt, claims.Expires(), time.Second)
	assert.False(t, claims.IssuedAt().IsZero())
}

func TestTokenService_DefaultTTL(t *testing.T) {
	ts := projects.NewTokenService([]byte(testSecret), 0, "", nil, nil)
	assert.Equal(t, projects.DefaultTokenTTL, ts.TTL())
}

func TestTokenService_Expired(t *testing.T) {
	ts := newTokenService()
	issued := time.Now().Add(-2 * time.Hour)
	ts.WithClock(func() time.Time { return issued })

	token, _, err := ts.Generate(newIdentity(projects.RoleUser))
	require.NoError(t, err)

	ts.WithClock(time.Now)
	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, projects.ErrTokenExpired)
	assert.True(t, projects.IsTokenExpiredError(err))
}

func TestTokenService_Rejects(t *testing.T) {
	identity := newIdentity(projects.RoleUser)

	foreign := projects.NewTokenService([]byte("another-secret-entirely"), time.Hour, "projects-test", jwt.ClaimStrings{"projects-api"}, nopLogger{})
	wrongKey, _, err := foreign.Generate(identity)
	require.NoError(t, err)

	otherIssuer := projects.NewTokenService([]byte(testSecret), time.Hour, "someone-else", jwt.ClaimStrings{"projects-api"}, nopLogger{})
	wrongIssuer, _, err := otherIssuer.Generate(identity)
	require.NoError(t, err)

	otherAudience := projects.NewTokenService([]byte(testSecret), time.Hour, "projects-test", jwt.ClaimStrings{"admin-console"}, nopLogger{})
	wrongAudience, _, err := otherAudience.Generate(identity)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &projects.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID(),
			Issuer:    "projects-test",
			Audience:  jwt.ClaimStrings{"projects-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UID:      identity.ID(),
		UserRole: string(projects.RoleAdmin),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":        "not.a.token",
		"wrong key":      wrongKey,
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"alg none":       unsigned,
	}

	ts := newTokenService()
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Validate(token)
			require.Error(t, err)
			assert.True(t, projects.IsMalformedError(err), err.Error())

			var richErr *errors.Error
			require.True(t, errors.As(err, &richErr))
			assert.Equal(t, projects.TextCodeTokenMalformed, richErr.TextCode)
			assert.Equal(t, 401, richErr.Code)
		})
	}
}

func TestTokenService_EmptyToken(t *testing.T) {
	_, err := newTokenService().Validate("")
	assert.ErrorIs(t, err, projects.ErrMissingToken)
}

func TestTokenService_MissingSubject(t *testing.T) {
	ts := newTokenService()
	token, err := ts.SignClaims(&projects.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "projects-test",
			Audience:  jwt.ClaimStrings{"projects-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, projects.ErrTokenMalformed)
}

func TestTokenService_MissingExpiry(t *testing.T) {
	ts := newTokenService()
	id := newIdentity(projects.RoleUser).ID()
	token, err := ts.SignClaims(&projects.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id,
			Issuer:   "projects-test",
			Audience: jwt.ClaimStrings{"projects-api"},
		},
		UID: id,
	})
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.True(t, projects.IsMalformedError(err))
}

func TestTokenService_MultipleAudiences(t *testing.T) {
	verifier := projects.NewTokenService([]byte(testSecret), time.Hour, "projects-test", jwt.ClaimStrings{"projects-api", "admin-console"}, nopLogger{})
	identity := newIdentity(projects.RoleUser)

	console := projects.NewTokenService([]byte(testSecret), time.Hour, "projects-test", jwt.ClaimStrings{"admin-console"}, nopLogger{})
	token, _, err := console.Generate(identity)
	require.NoError(t, err)

	claims, err := verifier.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID(), claims.UserID())

	noAudience := projects.NewTokenService([]byte(testSecret), time.Hour, "projects-test", nil, nopLogger{})
	token, _, err = noAudience.Generate(identity)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.Error(t, err)
	assert.True(t, projects.IsMalformedError(err))

	_, err = noAudience.Validate(token)
	assert.NoError(t, err, "no configured audience accepts any token")
}
