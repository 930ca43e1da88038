package projects

// DefaultResourceParam is the path parameter AccessLevelGuard reads
// when a policy does not name one
const DefaultResourceParam = "projectId"

// RoutePolicy declares what a route requires from the caller. It is
// attached when the route is registered and consulted by the Pipeline.
type RoutePolicy struct {
	// Public routes skip every guard
	Public bool
	// Roles lists the global roles allowed, any of them is enough
	Roles []UserRole
	// AccessLevel is the minimum membership level on the target resource
	AccessLevel AccessLevel
	// ResourceParam names the path parameter holding the resource id
	ResourceParam string
	// UUIDParams are path parameters that must parse as UUIDs
	UUIDParams []string
	// SelfParam restricts the route to the user named by this path
	// parameter, admins excepted
	SelfParam string
}

// PublicRoute marks a route as open
func PublicRoute() RoutePolicy {
	return RoutePolicy{Public: true}
}

// Authenticated only requires a valid session
func Authenticated() RoutePolicy {
	return RoutePolicy{}
}

// RequireRoles returns a policy restricted to the given global roles
func RequireRoles(roles ...UserRole) RoutePolicy {
	return RoutePolicy{Roles: roles}
}

// AdminOnly is shorthand for RequireRoles(RoleAdmin)
func AdminOnly() RoutePolicy {
	return RequireRoles(RoleAdmin)
}

// RequireAccess returns a policy requiring level on the resource named by param
func RequireAccess(level AccessLevel, param string) RoutePolicy {
	if param == "" {
		param = DefaultResourceParam
	}
	return RoutePolicy{
		AccessLevel:   level,
		ResourceParam: param,
		UUIDParams:    []string{param},
	}
}

// SelfOrAdmin restricts a user route to the account owner or an admin
func SelfOrAdmin(param string) RoutePolicy {
	return RoutePolicy{
		SelfParam:  param,
		UUIDParams: []string{param},
	}
}

// WithUUIDParams adds path parameters that must be valid UUIDs
func (p RoutePolicy) WithUUIDParams(params ...string) RoutePolicy {
	out := make([]string, 0, len(p.UUIDParams)+len(params))
	out = append(out, p.UUIDParams...)
	for _, param := range params {
		if !containsString(out, param) {
			out = append(out, param)
		}
	}
	p.UUIDParams = out
	return p
}

// resourceParam returns the configured resource parameter
func (p RoutePolicy) resourceParam() string {
	if p.ResourceParam == "" {
		return DefaultResourceParam
	}
	return p.ResourceParam
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
