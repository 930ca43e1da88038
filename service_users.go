package projects

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsersService holds user CRUD and the user to project relation
type UsersService struct {
	repo         RepositoryManager
	hasher       PasswordAuthenticator
	logger       Logger
	activitySink ActivitySink
}

// NewUsersService creates a service over the repository manager
func NewUsersService(repo RepositoryManager, hasher PasswordAuthenticator) *UsersService {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &UsersService{
		repo:         repo,
		hasher:       hasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *UsersService) WithLogger(l Logger) *UsersService {
	s.logger = normalizeLogger(l)
	return s
}

func (s *UsersService) WithActivitySink(sink ActivitySink) *UsersService {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Register creates a USER account from the public registration payload
func (s *UsersService) Register(ctx context.Context, req RegisterUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}

	user, err := s.create(ctx, req.ToUser(), req.Password)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"username": user.Username},
	})

	return user, nil
}

// EnsureAdmin creates the bootstrap admin unless the username already exists
func (s *UsersService) EnsureAdmin(ctx context.Context, username, email, password string) (*User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, false, nil
	}

	if err := plainUsername(username); err != nil {
		return nil, false, validationError(err, "invalid admin username")
	}

	existing, err := s.repo.Users().GetByIdentifier(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}

	if email == "" {
		email = username + "@localhost"
	}

	user, err := s.create(ctx, &User{
		FirstName: "Admin",
		LastName:  "User",
		Username:  username,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      RoleAdmin,
	}, password)
	if err != nil {
		return nil, false, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{Type: "system"},
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"username": user.Username, "role": user.Role},
	})

	return user, true, nil
}

func (s *UsersService) create(ctx context.Context, user *User, password string) (*User, error) {
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}
	user.PasswordHash = hash

	var created *User
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := s.repo.Users().TakenTx(ctx, tx, user.Username, user.Email, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return withMetadata(ErrUsernameTaken, map[string]any{
				"username": user.Username,
				"email":    user.Email,
			})
		}

		created, err = s.repo.Users().CreateTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// List returns every user
func (s *UsersService) List(ctx context.Context) ([]*User, error) {
	return s.repo.Users().List(ctx)
}

// Get returns a user by id
func (s *UsersService) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.Users().GetByID(ctx, id)
}

// Update applies the non nil fields of req. Only admins may change roles.
func (s *UsersService) Update(ctx context.Context, actor Identity, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err, "invalid user payload")
	}

	if req.Role != nil && !IdentityRole(actor).IsAdmin() {
		return nil, withMetadata(ErrRoleRequired, map[string]any{
			"required": RoleAdmin,
			"field":    "role",
		})
	}

	var hash string
	if req.Password != nil {
		var err error
		if hash, err = s.hasher.HashPassword(*req.Password); err != nil {
			return nil, err
		}
	}

	var updated *User
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := s.repo.Users().GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}

		applyUserChanges(user, req)
		if hash != "" {
			user.PasswordHash = hash
		}

		if req.Username != nil || req.Email != nil {
			taken, err := s.repo.Users().TakenTx(ctx, tx, user.Username, user.Email, user.ID)
			if err != nil {
				return err
			}
			if taken {
				return withMetadata(ErrUsernameTaken, map[string]any{
					"username": user.Username,
					"email":    user.Email,
				})
			}
		}

		updated, err = s.repo.Users().UpdateTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserUpdated,
		Actor:     actorFromIdentity(actor),
		UserID:    id.String(),
		Metadata:  map[string]any{"password_changed": hash != "", "role_changed": req.Role != nil},
	})

	return updated, nil
}

// Delete removes the user and its memberships
func (s *UsersService) Delete(ctx context.Context, actor Identity, id uuid.UUID) error {
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Memberships().DeleteByUserTx(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Users().DeleteTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserDeleted,
		Actor:     actorFromIdentity(actor),
		UserID:    id.String(),
	})
	return nil
}

// RelationToProject grants a user an access level on a project. Both
// records are checked and the membership inserted in one transaction.
func (s *UsersService) RelationToProject(ctx context.Context, actor Identity, projectID uuid.UUID, req AddToProjectRequest) (*ProjectMember, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err, "invalid membership payload")
	}

	userID, err := uuid.Parse(req.User)
	if err != nil {
		return nil, withMetadata(ErrInvalidUUID, map[string]any{"field": "user"})
	}
	level, _ := ParseAccessLevel(req.AccessLevel)

	var member *ProjectMember
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Users().GetByIDTx(ctx, tx, userID); err != nil {
			return err
		}

		if _, err := s.repo.Projects().GetByIDTx(ctx, tx, projectID); err != nil {
			return err
		}

		existing, err := s.repo.Memberships().FindTx(ctx, tx, userID, projectID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if existing != nil {
			return withMetadata(ErrMembershipExists, map[string]any{
				"user_id":      userID.String(),
				"project_id":   projectID.String(),
				"access_level": existing.AccessLevel,
			})
		}

		member, err = s.repo.Memberships().CreateTx(ctx, tx, &ProjectMember{
			UserID:      userID,
			ProjectID:   projectID,
			AccessLevel: level,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventMemberAdded,
		Actor:     actorFromIdentity(actor),
		UserID:    userID.String(),
		ProjectID: projectID.String(),
		Metadata:  map[string]any{"access_level": level},
	})

	return member, nil
}

func applyUserChanges(user *User, req UpdateUserRequest) {
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Age != nil {
		user.Age = *req.Age
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.Role != nil {
		if role, ok := ParseRole(*req.Role); ok {
			user.Role = role
		}
	}
}
