package projects_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	projects "github.com/goliatone/go-projects"
)

func newAuther(provider projects.IdentityProvider, sink projects.ActivitySink) *projects.Auther {
	return projects.NewAuthenticator(provider, testConfig{}).
		WithLogger(nopLogger{}).
		WithActivitySink(sink)
}

func TestAuther_Login(t *testing.T) {
	ctx := context.Background()
	user := &projects.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com", Role: projects.RoleUser}
	identity := projects.NewIdentityFromUser(user)

	provider := new(MockIdentityProvider)
	provider.On("VerifyIdentity", mock.Anything, "alice", "pw").Return(identity, nil)

	sink := &activityRecorder{}
	result, err := newAuther(provider, sink).Login(ctx, "alice", "pw")
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, projects.BearerTokenType, result.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, 5*time.Second)
	assert.Same(t, user, result.User)

	require.Equal(t, []projects.ActivityEventType{projects.ActivityEventLoginSuccess}, sink.types())
	assert.Equal(t, user.ID.String(), sink.events[0].UserID)
	assert.Equal(t, "user", sink.events[0].Actor.Type)
}

func TestAuther_LoginFailure(t *testing.T) {
	provider := new(MockIdentityProvider)
	provider.On("VerifyIdentity", mock.Anything, "alice", "bad").Return(nil, projects.ErrInvalidCredentials)

	sink := &activityRecorder{}
	result, err := newAuther(provider, sink).Login(context.Background(), "alice", "bad")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, projects.ErrInvalidCredentials)

	require.Equal(t, []projects.ActivityEventType{projects.ActivityEventLoginFailure}, sink.types())
	assert.Equal(t, "alice", sink.events[0].Metadata["identifier"])
	assert.False(t, sink.events[0].OccurredAt.IsZero())
}

func TestAuther_IdentityFromToken(t *testing.T) {
	ctx := context.Background()
	user := &projects.User{ID: uuid.New(), Username: "carol", Role: projects.RoleUser}
	identity := projects.NewIdentityFromUser(user)

	provider := new(MockIdentityProvider)
	provider.On("FindIdentityByID", mock.Anything, user.ID.String()).Return(identity, nil)

	auther := newAuther(provider, nil)
	token, _, err := auther.GenerateJWT(ctx, identity)
	require.NoError(t, err)

	resolved, claims, err := auther.IdentityFromToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), resolved.ID())
	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, "USER", claims.Role())
}

func TestAuther_IdentityFromToken_DeletedUser(t *testing.T) {
	ctx := context.Background()
	identity := newIdentity(projects.RoleUser)

	provider := new(MockIdentityProvider)
	provider.On("FindIdentityByID", mock.Anything, identity.ID()).Return(nil, projects.ErrIdentityNotFound)

	auther := newAuther(provider, nil)
	token, _, err := auther.GenerateJWT(ctx, identity)
	require.NoError(t, err)

	_, _, err = auther.IdentityFromToken(ctx, token)
	assert.ErrorIs(t, err, projects.ErrIdentityNotFound)
}

func TestAuther_IdentityFromToken_Expired(t *testing.T) {
	ctx := context.Background()
	identity := newIdentity(projects.RoleUser)
	provider := new(MockIdentityProvider)

	stale := projects.NewTokenService([]byte(testSecret), time.Minute, "projects-test", jwt.ClaimStrings{"projects-api"}, nopLogger{}).
		WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	token, _, err := stale.Generate(identity)
	require.NoError(t, err)

	_, _, err = newAuther(provider, nil).IdentityFromToken(ctx, token)
	assert.ErrorIs(t, err, projects.ErrTokenExpired)
	provider.AssertNotCalled(t, "FindIdentityByID", mock.Anything, mock.Anything)
}

func TestAuther_GenerateJWT_NilIdentity(t *testing.T) {
	_, _, err := newAuther(new(MockIdentityProvider), nil).GenerateJWT(context.Background(), nil)
	assert.ErrorIs(t, err, projects.ErrIdentityNotFound)
}
