package projects

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// GuardRequest is the per request input shared by every guard.
// AuthGuard fills Identity and Claims for the guards that follow.
type GuardRequest struct {
	Policy   RoutePolicy
	Token    string
	Param    func(name string) string
	Identity Identity
	Claims   AuthClaims
}

func (r *GuardRequest) param(name string) string {
	if r == nil || r.Param == nil {
		return ""
	}
	return strings.TrimSpace(r.Param(name))
}

// Guard is a single allow/deny check. A nil error allows the request.
type Guard interface {
	Name() string
	Check(ctx context.Context, req *GuardRequest) error
}

// GuardFunc adapts a function to the Guard interface
type GuardFunc func(ctx context.Context, req *GuardRequest) error

type namedGuard struct {
	name string
	fn   GuardFunc
}

// NewGuard wraps fn into a named Guard
func NewGuard(name string, fn GuardFunc) Guard {
	return namedGuard{name: name, fn: fn}
}

func (g namedGuard) Name() string { return g.name }

func (g namedGuard) Check(ctx context.Context, req *GuardRequest) error {
	if g.fn == nil {
		return nil
	}
	return g.fn(ctx, req)
}

// GuardObserver is notified of every guard decision
type GuardObserver interface {
	ObserveGuard(guard string, err error)
}

// Pipeline runs guards in order and stops at the first denial
type Pipeline struct {
	guards   []Guard
	observer GuardObserver
	logger   Logger
}

// NewPipeline builds a pipeline from an ordered guard list
func NewPipeline(guards ...Guard) *Pipeline {
	return &Pipeline{
		guards: guards,
		logger: defLogger{},
	}
}

// NewDefaultPipeline returns AuthGuard, UUIDParamsGuard, RolesGuard,
// SelfGuard and AccessLevelGuard in that order. Path ids are validated
// before any membership lookup so a malformed id is always a 400.
func NewDefaultPipeline(auth Authenticator, members MembershipFinder) *Pipeline {
	return NewPipeline(
		AuthGuard(auth),
		UUIDParamsGuard(),
		RolesGuard(),
		SelfGuard(),
		AccessLevelGuard(members),
	)
}

func (p *Pipeline) WithObserver(o GuardObserver) *Pipeline {
	p.observer = o
	return p
}

func (p *Pipeline) WithLogger(l Logger) *Pipeline {
	p.logger = normalizeLogger(l)
	return p
}

// Guards returns the configured guard names in order
func (p *Pipeline) Guards() []string {
	names := make([]string, 0, len(p.guards))
	for _, g := range p.guards {
		names = append(names, g.Name())
	}
	return names
}

// Check evaluates the guards for req
func (p *Pipeline) Check(ctx context.Context, req *GuardRequest) error {
	if req == nil {
		req = &GuardRequest{}
	}

	for _, g := range p.guards {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := g.Check(ctx, req)
		if p.observer != nil {
			p.observer.ObserveGuard(g.Name(), err)
		}
		if err != nil {
			p.logger.Debug("guard denied request", "guard", g.Name(), "error", err)
			return err
		}
	}
	return nil
}

// AuthGuard verifies the session token and resolves the caller
func AuthGuard(auth Authenticator) Guard {
	return NewGuard("auth", func(ctx context.Context, req *GuardRequest) error {
		if req.Policy.Public {
			return nil
		}

		if req.Token == "" {
			return ErrMissingToken
		}

		identity, claims, err := auth.IdentityFromToken(ctx, req.Token)
		if err != nil {
			return err
		}

		req.Identity = identity
		req.Claims = claims
		return nil
	})
}

// RolesGuard compares the caller's role against the route roles
func RolesGuard() Guard {
	return NewGuard("roles", func(_ context.Context, req *GuardRequest) error {
		if req.Policy.Public || len(req.Policy.Roles) == 0 {
			return nil
		}

		role := IdentityRole(req.Identity)
		if role.Satisfies(req.Policy.Roles...) {
			return nil
		}

		return withMetadata(ErrRoleRequired, map[string]any{
			"required": req.Policy.Roles,
			"role":     role,
		})
	})
}

// SelfGuard lets non admins act only on their own account
func SelfGuard() Guard {
	return NewGuard("self", func(_ context.Context, req *GuardRequest) error {
		if req.Policy.Public || req.Policy.SelfParam == "" {
			return nil
		}

		if req.Identity == nil {
			return ErrMissingToken
		}

		if IdentityRole(req.Identity).IsAdmin() {
			return nil
		}

		target := req.param(req.Policy.SelfParam)
		if target != "" && strings.EqualFold(target, req.Identity.ID()) {
			return nil
		}

		return ErrNotSelf
	})
}

// MembershipFinder loads the membership a user holds on a project
type MembershipFinder interface {
	FindMembership(ctx context.Context, userID, projectID uuid.UUID) (*ProjectMember, error)
}

// MembershipFinderFunc adapts a function to MembershipFinder
type MembershipFinderFunc func(ctx context.Context, userID, projectID uuid.UUID) (*ProjectMember, error)

func (f MembershipFinderFunc) FindMembership(ctx context.Context, userID, projectID uuid.UUID) (*ProjectMember, error) {
	return f(ctx, userID, projectID)
}

// AccessLevelGuard checks the caller holds the required level on the
// targeted resource. It fails closed: a missing resource id, a missing
// membership or an unknown level all deny with Forbidden.
func AccessLevelGuard(members MembershipFinder) Guard {
	return NewGuard("access_level", func(ctx context.Context, req *GuardRequest) error {
		if req.Policy.Public || req.Policy.AccessLevel == "" {
			return nil
		}

		if req.Identity == nil {
			return ErrMissingToken
		}

		if IdentityRole(req.Identity).IsAdmin() {
			return nil
		}

		meta := map[string]any{
			"required": req.Policy.AccessLevel,
		}

		userID, err := uuid.Parse(req.Identity.ID())
		if err != nil {
			return withMetadata(ErrAccessLevelRequired, meta)
		}

		projectID, err := uuid.Parse(req.param(req.Policy.resourceParam()))
		if err != nil {
			return withMetadata(ErrAccessLevelRequired, meta)
		}

		if members == nil {
			return withMetadata(ErrAccessLevelRequired, meta)
		}

		membership, err := members.FindMembership(ctx, userID, projectID)
		if err != nil {
			if isNotFound(err) {
				return withMetadata(ErrAccessLevelRequired, meta)
			}
			return errors.Wrap(err, errors.CategoryInternal, "failed to load project membership")
		}

		if membership == nil || !membership.AccessLevel.IsAtLeast(req.Policy.AccessLevel) {
			if membership != nil {
				meta["access_level"] = membership.AccessLevel
			}
			return withMetadata(ErrAccessLevelRequired, meta)
		}

		return nil
	})
}

// UUIDParamsGuard rejects malformed path identifiers with a 400
func UUIDParamsGuard() Guard {
	return NewGuard("uuid_params", func(_ context.Context, req *GuardRequest) error {
		for _, name := range req.Policy.UUIDParams {
			value := req.param(name)
			if _, err := uuid.Parse(value); err != nil {
				return withMetadata(ErrInvalidUUID, map[string]any{
					"param": name,
					"value": value,
				})
			}
		}
		return nil
	})
}
