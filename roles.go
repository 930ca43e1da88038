package projects

import "strings"

// UserRole is the user's global role
type UserRole string

const (
	// RoleAdmin can reach every route and bypasses access level checks
	RoleAdmin UserRole = "ADMIN"
	// RoleUser is the default role for registered accounts
	RoleUser UserRole = "USER"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role carries the admin override
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

// Satisfies reports whether r fulfils any of the required roles.
// An empty requirement is always satisfied and ADMIN satisfies everything.
func (r UserRole) Satisfies(required ...UserRole) bool {
	if len(required) == 0 {
		return true
	}
	if r.IsAdmin() {
		return true
	}
	for _, req := range required {
		if r == req {
			return true
		}
	}
	return false
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{RoleAdmin, RoleUser}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// AccessLevel is the relationship tier a user holds on a single project
type AccessLevel string

const (
	AccessMember     AccessLevel = "MEMBER"
	AccessMaintainer AccessLevel = "MAINTAINER"
	AccessOwner      AccessLevel = "OWNER"
)

var accessLevelRank = map[AccessLevel]int{
	AccessMember:     30,
	AccessMaintainer: 40,
	AccessOwner:      50,
}

// Rank returns the numeric weight of the level, zero for unknown levels
func (a AccessLevel) Rank() int {
	return accessLevelRank[a]
}

// IsValid checks the level is one of the known tiers
func (a AccessLevel) IsValid() bool {
	_, ok := accessLevelRank[a]
	return ok
}

// IsAtLeast checks if this level meets the minimum required level.
// Unknown levels on either side never satisfy the check.
func (a AccessLevel) IsAtLeast(min AccessLevel) bool {
	current, ok := accessLevelRank[a]
	if !ok {
		return false
	}
	required, ok := accessLevelRank[min]
	if !ok {
		return false
	}
	return current >= required
}

// GetAllAccessLevels returns all access levels in ascending order
func GetAllAccessLevels() []AccessLevel {
	return []AccessLevel{AccessMember, AccessMaintainer, AccessOwner}
}

// ParseAccessLevel safely parses a string into an AccessLevel
func ParseAccessLevel(s string) (AccessLevel, bool) {
	level := AccessLevel(strings.ToUpper(strings.TrimSpace(s)))
	return level, level.IsValid()
}

// ProjectState is the lifecycle state of a project
type ProjectState string

const (
	ProjectCreated    ProjectState = "CREATED"
	ProjectInProgress ProjectState = "IN_PROGRESS"
	ProjectFinished   ProjectState = "FINISHED"
)

// IsValid checks the state is known
func (s ProjectState) IsValid() bool {
	switch s {
	case ProjectCreated, ProjectInProgress, ProjectFinished:
		return true
	default:
		return false
	}
}

// GetAllProjectStates returns every project state
func GetAllProjectStates() []ProjectState {
	return []ProjectState{ProjectCreated, ProjectInProgress, ProjectFinished}
}
