package projects

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeMissingToken        = "MISSING_TOKEN"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeIdentityNotFound    = "IDENTITY_NOT_FOUND"
	TextCodeRoleRequired        = "ROLE_REQUIRED"
	TextCodeAccessLevelRequired = "ACCESS_LEVEL_REQUIRED"
	TextCodeNotSelf             = "NOT_RESOURCE_OWNER"
	TextCodeInvalidUUID         = "INVALID_UUID"
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeProjectNotFound     = "PROJECT_NOT_FOUND"
	TextCodeUsernameTaken       = "USERNAME_TAKEN"
	TextCodeMembershipExists    = "MEMBERSHIP_EXISTS"
	TextCodeInvalidTransition   = "INVALID_PROJECT_STATE_TRANSITION"
	TextCodeTooManyAttempts     = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeInvalidPayload      = "INVALID_PAYLOAD"
)

// ErrMissingToken is returned when a protected route is hit without a token
var ErrMissingToken = errors.New("missing or malformed JWT", errors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail signature or structure checks
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their exp claim
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords
var ErrInvalidCredentials = errors.New("invalid username or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return when a token subject no longer exists
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryAuth).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrRoleRequired is returned by RolesGuard
var ErrRoleRequired = errors.New("insufficient role for this resource", errors.CategoryAuthz).
	WithTextCode(TextCodeRoleRequired).
	WithCode(errors.CodeForbidden)

// ErrAccessLevelRequired is returned by AccessLevelGuard, also when the
// membership or the resource does not exist
var ErrAccessLevelRequired = errors.New("insufficient access level for this resource", errors.CategoryAuthz).
	WithTextCode(TextCodeAccessLevelRequired).
	WithCode(errors.CodeForbidden)

// ErrNotSelf is returned when a non admin acts on another user's account
var ErrNotSelf = errors.New("operation allowed only on your own account", errors.CategoryAuthz).
	WithTextCode(TextCodeNotSelf).
	WithCode(errors.CodeForbidden)

// ErrInvalidUUID is returned for malformed path identifiers
var ErrInvalidUUID = errors.New("validation failed (uuid is expected)", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidUUID).
	WithCode(errors.CodeBadRequest)

// ErrUserNotFound is returned when a user lookup by id misses
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrProjectNotFound is returned when a project lookup by id misses
var ErrProjectNotFound = errors.New("project not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProjectNotFound).
	WithCode(errors.CodeNotFound)

// ErrUsernameTaken is returned on duplicate registrations
var ErrUsernameTaken = errors.New("username or email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(errors.CodeConflict)

// ErrMembershipExists is returned when linking a user twice to a project
var ErrMembershipExists = errors.New("user is already a member of this project", errors.CategoryConflict).
	WithTextCode(TextCodeMembershipExists).
	WithCode(errors.CodeConflict)

// ErrInvalidTransition is returned when a requested project state change is not allowed.
var ErrInvalidTransition = errors.New("invalid project state transition", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(errors.CodeBadRequest)

// ErrTooManyLoginAttempts is returned by the login throttle
var ErrTooManyLoginAttempts = errors.New("too many login attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidPayload).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) || errors.Is(err, ErrMissingToken) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// withMetadata clones a sentinel so metadata never leaks between requests
func withMetadata(base *errors.Error, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(meta)
}

// validationError wraps an ozzo validation error into a rich bad input error
func validationError(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.CategoryValidation, message).
		WithTextCode(TextCodeInvalidPayload).
		WithCode(errors.CodeBadRequest)
}

// statusCodeFor maps any error to an HTTP status code
func statusCodeFor(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr == nil {
		return http.StatusInternalServerError
	}

	if richErr.Code > 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
