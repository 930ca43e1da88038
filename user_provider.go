package projects

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// UserTracker is a store we can use to retrieve users
type UserTracker interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// UserProvider resolves identities from stored users
type UserProvider struct {
	store     UserTracker
	hasher    PasswordAuthenticator
	Validator func(*User) error
	logger    Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker, hasher PasswordAuthenticator) *UserProvider {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &UserProvider{
		store:     store,
		hasher:    hasher,
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity will find the user, compare to the password, and return identity.
// Unknown users and wrong passwords both yield ErrInvalidCredentials, and an
// unknown user still pays for a bcrypt comparison.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if isNotFound(err) {
			_ = u.hasher.ComparePasswordAndHash(password, u.burnHash())
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user == nil {
		_ = u.hasher.ComparePasswordAndHash(password, u.burnHash())
		return nil, ErrInvalidCredentials
	}

	if err := u.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return NewIdentityFromUser(user), nil
}

// FindIdentityByID resolves the subject of a verified token. Only the id
// column is consulted so a stale subject never matches another account.
func (u *UserProvider) FindIdentityByID(ctx context.Context, id string) (Identity, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrIdentityNotFound
	}

	user, err := u.store.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve identity")
	}

	if user == nil {
		return nil, ErrIdentityNotFound
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return NewIdentityFromUser(user), nil
}

func (u *UserProvider) burnHash() string {
	u.dummyOnce.Do(func() {
		h, err := u.hasher.HashPassword("not-a-real-password")
		if err != nil {
			u.logger.Error("failed to prepare dummy hash", "error", err)
			return
		}
		u.dummyHash = h
	})
	return u.dummyHash
}

func defaultValidator(u *User) error {
	if u.Role.IsValid() {
		return nil
	}
	return errors.New("user has an unknown or invalid role", errors.CategoryAuth).
		WithTextCode("INVALID_ROLE").
		WithCode(errors.CodeUnauthorized).
		WithMetadata(map[string]any{"role": u.Role, "user_id": u.ID.String()})
}
