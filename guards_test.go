package projects_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	projects "github.com/goliatone/go-projects"
)

type guardCall struct {
	guard string
	err   error
}

type observerStub struct {
	calls []guardCall
}

func (o *observerStub) ObserveGuard(guard string, err error) {
	o.calls = append(o.calls, guardCall{guard: guard, err: err})
}

func params(values map[string]string) func(string) string {
	return func(name string) string { return values[name] }
}

func membershipOf(level projects.AccessLevel) projects.MembershipFinderFunc {
	return func(_ context.Context, userID, projectID uuid.UUID) (*projects.ProjectMember, error) {
		return &projects.ProjectMember{UserID: userID, ProjectID: projectID, AccessLevel: level}, nil
	}
}

func noMembership() projects.MembershipFinderFunc {
	return func(context.Context, uuid.UUID, uuid.UUID) (*projects.ProjectMember, error) {
		return nil, sql.ErrNoRows
	}
}

func TestDefaultPipeline_Order(t *testing.T) {
	pipeline := projects.NewDefaultPipeline(new(MockAuthenticator), noMembership())
	assert.Equal(t, []string{"auth", "uuid_params", "roles", "self", "access_level"}, pipeline.Guards())
}

func TestAuthGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("public route skips token checks", func(t *testing.T) {
		auth := new(MockAuthenticator)
		err := projects.AuthGuard(auth).Check(ctx, &projects.GuardRequest{Policy: projects.PublicRoute()})
		assert.NoError(t, err)
		auth.AssertNotCalled(t, "IdentityFromToken", mock.Anything, mock.Anything)
	})

	t.Run("missing token", func(t *testing.T) {
		err := projects.AuthGuard(new(MockAuthenticator)).Check(ctx, &projects.GuardRequest{Policy: projects.Authenticated()})
		assert.ErrorIs(t, err, projects.ErrMissingToken)
	})

	t.Run("invalid token", func(t *testing.T) {
		auth := new(MockAuthenticator)
		auth.On("IdentityFromToken", mock.Anything, "bad").Return(nil, nil, projects.ErrTokenMalformed)

		err := projects.AuthGuard(auth).Check(ctx, &projects.GuardRequest{Policy: projects.Authenticated(), Token: "bad"})
		assert.ErrorIs(t, err, projects.ErrTokenMalformed)
		auth.AssertExpectations(t)
	})

	t.Run("valid token populates the request", func(t *testing.T) {
		identity := newIdentity(projects.RoleUser)
		claims := &projects.JWTClaims{UID: identity.ID()}

		auth := new(MockAuthenticator)
		auth.On("IdentityFromToken", mock.Anything, "good").Return(identity, claims, nil)

		req := &projects.GuardRequest{Policy: projects.Authenticated(), Token: "good"}
		require.NoError(t, projects.AuthGuard(auth).Check(ctx, req))
		assert.Equal(t, identity, req.Identity)
		assert.Equal(t, identity.ID(), req.Claims.UserID())
	})
}

func TestRolesGuard(t *testing.T) {
	ctx := context.Background()
	guard := projects.RolesGuard()

	err := guard.Check(ctx, &projects.GuardRequest{
		Policy:   projects.AdminOnly(),
		Identity: newIdentity(projects.RoleUser),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, projects.ErrRoleRequired)

	assert.NoError(t, guard.Check(ctx, &projects.GuardRequest{
		Policy:   projects.AdminOnly(),
		Identity: newIdentity(projects.RoleAdmin),
	}))

	assert.NoError(t, guard.Check(ctx, &projects.GuardRequest{
		Policy:   projects.RequireRoles(projects.RoleUser),
		Identity: newIdentity(projects.RoleAdmin),
	}), "admin satisfies any role requirement")

	assert.NoError(t, guard.Check(ctx, &projects.GuardRequest{
		Policy:   projects.Authenticated(),
		Identity: newIdentity(projects.RoleUser),
	}))
}

func TestSelfGuard(t *testing.T) {
	ctx := context.Background()
	guard := projects.SelfGuard()
	user := newIdentity(projects.RoleUser)
	policy := projects.SelfOrAdmin("id")

	assert.NoError(t, guard.Check(ctx, &projects.GuardRequest{
		Policy:   policy,
		Identity: user,
		Param:    params(map[string]string{"id": user.ID()}),
	}))

	err := guard.Check(ctx, &projects.GuardRequest{
		Policy:   policy,
		Identity: user,
		Param:    params(map[string]string{"id": uuid.NewString()}),
	})
	assert.ErrorIs(t, err, projects.ErrNotSelf)

	assert.NoError(t, guard.Check(ctx, &projects.GuardRequest{
		Policy:   policy,
		Identity: newIdentity(projects.RoleAdmin),
		Param:    params(map[string]string{"id": uuid.NewString()}),
	}))
}

func TestAccessLevelGuard(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.NewString()
	policy := projects.RequireAccess(projects.AccessMaintainer, "projectId")
	withProject := params(map[string]string{"projectId": projectID})

	tests := []struct {
		name     string
		members  projects.MembershipFinder
		identity projects.Identity
		param    func(string) string
		wantErr  error
	}{
		{
			name:     "owner satisfies maintainer",
			members:  membershipOf(projects.AccessOwner),
			identity: newIdentity(projects.RoleUser),
			param:    withProject,
		},
		{
			name:     "exact level",
			members:  membershipOf(projects.AccessMaintainer),
			identity: newIdentity(projects.RoleUser),
			param:    withProject,
		},
		{
			name:     "insufficient level",
			members:  membershipOf(projects.AccessMember),
			identity: newIdentity(projects.RoleUser),
			param:    withProject,
			wantErr:  projects.ErrAccessLevelRequired,
		},
		{
			name:     "no membership fails closed",
			members:  noMembership(),
			identity: newIdentity(projects.RoleUser),
			param:    withProject,
			wantErr:  projects.ErrAccessLevelRequired,
		},
		{
			name:     "malformed resource id fails closed",
			members:  membershipOf(projects.AccessOwner),
			identity: newIdentity(projects.RoleUser),
			param:    params(map[string]string{"projectId": "not-a-uuid"}),
			wantErr:  projects.ErrAccessLevelRequired,
		},
		{
			name:     "admin bypasses membership",
			members:  noMembership(),
			identity: newIdentity(projects.RoleAdmin),
			param:    withProject,
		},
		{
			name:    "anonymous caller",
			members: membershipOf(projects.AccessOwner),
			param:   withProject,
			wantErr: projects.ErrMissingToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := projects.AccessLevelGuard(tt.members).Check(ctx, &projects.GuardRequest{
				Policy:   policy,
				Identity: tt.identity,
				Param:    tt.param,
			})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccessLevelGuard_StorageFailure(t *testing.T) {
	boom := errors.New("connection reset")
	members := projects.MembershipFinderFunc(func(context.Context, uuid.UUID, uuid.UUID) (*projects.ProjectMember, error) {
		return nil, boom
	})

	err := projects.AccessLevelGuard(members).Check(context.Background(), &projects.GuardRequest{
		Policy:   projects.RequireAccess(projects.AccessMember, "projectId"),
		Identity: newIdentity(projects.RoleUser),
		Param:    params(map[string]string{"projectId": uuid.NewString()}),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, projects.ErrAccessLevelRequired)
}

func TestUUIDParamsGuard(t *testing.T) {
	guard := projects.UUIDParamsGuard()
	policy := projects.Authenticated().WithUUIDParams("id")

	assert.NoError(t, guard.Check(context.Background(), &projects.GuardRequest{
		Policy: policy,
		Param:  params(map[string]string{"id": uuid.NewString()}),
	}))

	err := guard.Check(context.Background(), &projects.GuardRequest{
		Policy: policy,
		Param:  params(map[string]string{"id": "42"}),
	})
	assert.ErrorIs(t, err, projects.ErrInvalidUUID)
}

func TestPipeline_StopsAtFirstDenial(t *testing.T) {
	var ran []string
	record := func(name string, err error) projects.Guard {
		return projects.NewGuard(name, func(context.Context, *projects.GuardRequest) error {
			ran = append(ran, name)
			return err
		})
	}

	denied := errors.New("denied")
	observer := &observerStub{}
	pipeline := projects.NewPipeline(
		record("first", nil),
		record("second", denied),
		record("third", nil),
	).WithObserver(observer).WithLogger(nopLogger{})

	err := pipeline.Check(context.Background(), &projects.GuardRequest{})
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, []string{"first", "second"}, ran)

	require.Len(t, observer.calls, 2)
	assert.Equal(t, "first", observer.calls[0].guard)
	assert.NoError(t, observer.calls[0].err)
	assert.Equal(t, "second", observer.calls[1].guard)
	assert.ErrorIs(t, observer.calls[1].err, denied)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	pipeline := projects.NewPipeline(projects.NewGuard("never", func(context.Context, *projects.GuardRequest) error {
		called = true
		return nil
	}))

	err := pipeline.Check(ctx, &projects.GuardRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDefaultPipeline_RoleBeforeAccess(t *testing.T) {
	identity := newIdentity(projects.RoleUser)
	auth := new(MockAuthenticator)
	auth.On("IdentityFromToken", mock.Anything, "tok").Return(identity, &projects.JWTClaims{UID: identity.ID()}, nil)

	lookups := 0
	members := projects.MembershipFinderFunc(func(context.Context, uuid.UUID, uuid.UUID) (*projects.ProjectMember, error) {
		lookups++
		return nil, sql.ErrNoRows
	})

	policy := projects.RequireAccess(projects.AccessOwner, "projectId")
	policy.Roles = []projects.UserRole{projects.RoleAdmin}

	err := projects.NewDefaultPipeline(auth, members).WithLogger(nopLogger{}).Check(context.Background(), &projects.GuardRequest{
		Policy: policy,
		Token:  "tok",
		Param:  params(map[string]string{"projectId": uuid.NewString()}),
	})
	assert.ErrorIs(t, err, projects.ErrRoleRequired)
	assert.Zero(t, lookups)
}
