package projects_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	projects "github.com/goliatone/go-projects"
)

// MockAuthenticator implements projects.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, username, password string) (*projects.LoginResult, error) {
	args := m.Called(ctx, username, password)
	res, _ := args.Get(0).(*projects.LoginResult)
	return res, args.Error(1)
}

func (m *MockAuthenticator) ValidateUser(ctx context.Context, username, password string) (projects.Identity, error) {
	args := m.Called(ctx, username, password)
	identity, _ := args.Get(0).(projects.Identity)
	return identity, args.Error(1)
}

func (m *MockAuthenticator) GenerateJWT(ctx context.Context, identity projects.Identity) (string, time.Time, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockAuthenticator) IdentityFromToken(ctx context.Context, token string) (projects.Identity, projects.AuthClaims, error) {
	args := m.Called(ctx, token)
	identity, _ := args.Get(0).(projects.Identity)
	claims, _ := args.Get(1).(projects.AuthClaims)
	return identity, claims, args.Error(2)
}

// MockUserTracker implements projects.UserTracker
type MockUserTracker struct {
	mock.Mock
}

func (m *MockUserTracker) GetByIdentifier(ctx context.Context, identifier string) (*projects.User, error) {
	args := m.Called(ctx, identifier)
	user, _ := args.Get(0).(*projects.User)
	return user, args.Error(1)
}

func (m *MockUserTracker) GetByID(ctx context.Context, id uuid.UUID) (*projects.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*projects.User)
	return user, args.Error(1)
}

// MockPasswordAuthenticator implements projects.PasswordAuthenticator
type MockPasswordAuthenticator struct {
	mock.Mock
}

func (m *MockPasswordAuthenticator) HashPassword(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordAuthenticator) ComparePasswordAndHash(password, hash string) error {
	args := m.Called(password, hash)
	return args.Error(0)
}

// MockIdentityProvider implements projects.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (projects.Identity, error) {
	args := m.Called(ctx, identifier, password)
	identity, _ := args.Get(0).(projects.Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByID(ctx context.Context, id string) (projects.Identity, error) {
	args := m.Called(ctx, id)
	identity, _ := args.Get(0).(projects.Identity)
	return identity, args.Error(1)
}

type activityRecorder struct {
	events []projects.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event projects.ActivityEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []projects.ActivityEventType {
	out := make([]projects.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func newIdentity(role projects.UserRole) projects.Identity {
	return projects.NewIdentityFromUser(&projects.User{
		ID:       uuid.New(),
		Username: "user-" + string(role),
		Email:    "user@example.com",
		Role:     role,
	})
}
