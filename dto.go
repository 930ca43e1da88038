package projects

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// LoginRequest is the login payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 200)),
	)
}

// RegisterUserRequest is the public registration payload. Public sign up
// always creates USER accounts.
type RegisterUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Age       int    `json:"age"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

func (r RegisterUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Age, validation.Min(0), validation.Max(150)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 200), is.Email),
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100), validation.By(plainUsername)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// ToUser maps the payload to a new record, without the password hash
func (r RegisterUserRequest) ToUser() *User {
	return &User{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Age:       r.Age,
		Email:     strings.ToLower(strings.TrimSpace(r.Email)),
		Username:  strings.TrimSpace(r.Username),
		Role:      RoleUser,
	}
}

// UpdateUserRequest holds the fields a user may change, all optional
type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Age       *int    `json:"age"`
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Age, validation.Min(0), validation.Max(150)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.Length(3, 100), validation.By(plainUsername)),
		validation.Field(&r.Password, validation.NilOrNotEmpty, validation.Length(8, 100)),
		validation.Field(&r.Role, validation.NilOrNotEmpty, validation.In(roleValues()...)),
	)
}

// AddToProjectRequest links a user to the project named in the path
type AddToProjectRequest struct {
	User        string `json:"user"`
	AccessLevel string `json:"access_level"`
}

func (r AddToProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.User, validation.Required, is.UUID),
		validation.Field(&r.AccessLevel, validation.Required, validation.In(accessLevelValues()...)),
	)
}

// CreateProjectRequest is the project creation payload
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    *int   `json:"duration"`
	State       string `json:"state"`
}

func (r CreateProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Required, validation.Length(1, 2000)),
		validation.Field(&r.Duration, validation.NotNil, validation.Min(0)),
		validation.Field(&r.State, validation.Required, validation.In(projectStateValues()...)),
	)
}

// ToProject maps the payload to a new record
func (r CreateProjectRequest) ToProject() *Project {
	p := &Project{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		State:       ProjectState(r.State),
	}
	if r.Duration != nil {
		p.Duration = *r.Duration
	}
	return p
}

// UpdateProjectRequest holds optional project changes
type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Duration    *int    `json:"duration"`
	State       *string `json:"state"`
	// Reason is recorded on the state change event
	Reason *string `json:"reason"`
}

func (r UpdateProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.NilOrNotEmpty, validation.Length(1, 2000)),
		validation.Field(&r.Duration, validation.Min(0)),
		validation.Field(&r.State, validation.NilOrNotEmpty, validation.In(projectStateValues()...)),
		validation.Field(&r.Reason, validation.NilOrNotEmpty, validation.Length(1, 500)),
	)
}

// plainUsername rejects usernames that login would resolve as an email
// address or a user id
func plainUsername(value any) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	username, ok := v.(string)
	if !ok {
		return nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}
	if isEmail(username) || isUUID(username) {
		return errors.New("must not be an email address or an id", errors.CategoryValidation)
	}
	return nil
}

func roleValues() []any {
	out := []any{}
	for _, r := range GetAllRoles() {
		out = append(out, string(r))
	}
	return out
}

func accessLevelValues() []any {
	out := []any{}
	for _, l := range GetAllAccessLevels() {
		out = append(out, string(l))
	}
	return out
}

func projectStateValues() []any {
	out := []any{}
	for _, s := range GetAllProjectStates() {
		out = append(out, string(s))
	}
	return out
}
