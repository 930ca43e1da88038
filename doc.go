// Package projects is a small multi-tenant project and user backend:
// fiber routes for user and project CRUD, JWT sessions, and an
// authorization pipeline combining a global role with per project
// access levels.
//
// Access control:
//   - Every route is registered with a RoutePolicy. Public routes skip
//     every check, the rest name the roles, the minimum access level on
//     the targeted project, the self parameter and the path ids that
//     must be UUIDs.
//   - Pipeline runs AuthGuard, RolesGuard, SelfGuard, AccessLevelGuard
//     and UUIDParamsGuard in order and stops at the first denial. ADMIN
//     satisfies role and access level requirements. AccessLevelGuard
//     fails closed with Forbidden when the membership or project is
//     missing, so denials never reveal whether a project exists.
//
// Memberships:
//   - ProjectMember links a user to a project with MEMBER, MAINTAINER or
//     OWNER. Creating a project makes its creator OWNER in the same
//     transaction, and RelationToProject checks both records and inserts
//     the membership atomically.
//
// Activity sinks:
//   - ActivitySink receives login, user, project and membership events.
//     Sinks run best-effort (errors are logged).
package projects
