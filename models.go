package projects

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name"`
	LastName      string     `bun:"last_name,notnull" json:"last_name"`
	Age           int        `bun:"age" json:"age"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	Username      string     `bun:"username,notnull,unique" json:"username"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"user_role,notnull" json:"role"`
	CreatedAt     *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Memberships []*ProjectMember `bun:"rel:has-many,join:id=user_id" json:"projects,omitempty"`
}

// Project is the project model
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:prj"`
	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	Name          string       `bun:"name,notnull" json:"name"`
	Description   string       `bun:"description,notnull" json:"description"`
	Duration      int          `bun:"duration,notnull" json:"duration"`
	State         ProjectState `bun:"state,notnull" json:"state"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt     *time.Time   `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Members []*ProjectMember `bun:"rel:has-many,join:id=project_id" json:"members,omitempty"`
}

// ProjectMember links a user to a project with an access level
type ProjectMember struct {
	bun.BaseModel `bun:"table:users_projects,alias:upr"`
	ID            uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID   `bun:"user_id,notnull,type:uuid" json:"user_id"`
	ProjectID     uuid.UUID   `bun:"project_id,notnull,type:uuid" json:"project_id"`
	AccessLevel   AccessLevel `bun:"access_level,notnull" json:"access_level"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero" json:"created_at,omitempty"`
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	touch(&record.CreatedAt, &record.UpdatedAt)
}

func prepareProjectDefaults(record *Project) {
	if record == nil {
		return
	}

	if record.State == "" {
		record.State = ProjectCreated
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	touch(&record.CreatedAt, &record.UpdatedAt)
}

func prepareMemberDefaults(record *ProjectMember) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.AccessLevel == "" {
		record.AccessLevel = AccessMember
	}

	if record.CreatedAt == nil {
		now := time.Now().UTC()
		record.CreatedAt = &now
	}
}

func touch(createdAt, updatedAt **time.Time) {
	now := time.Now().UTC()
	if *createdAt == nil {
		*createdAt = &now
	}
	*updatedAt = &now
}
