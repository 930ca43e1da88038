package projects

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// APIPrefix is the mount point of every route
const APIPrefix = "/api"

// AuthController serves the login endpoint
type AuthController struct {
	Auther Authenticator
	Logger Logger
}

func NewAuthController(auther Authenticator) *AuthController {
	if auther == nil {
		panic("Missing Authenticator in auth controller...")
	}
	return &AuthController{
		Auther: auther,
		Logger: defLogger{},
	}
}

// Login exchanges credentials for a session token
func (a *AuthController) Login(c *fiber.Ctx) error {
	req := LoginRequest{}
	if err := c.BodyParser(&req); err != nil {
		return validationError(err, "invalid login payload")
	}

	if err := req.Validate(); err != nil {
		a.Logger.Debug("login payload rejected", "error", err)
		return ErrInvalidCredentials
	}

	result, err := a.Auther.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// UsersController serves /users
type UsersController struct {
	Service *UsersService
	Logger  Logger
}

func NewUsersController(service *UsersService) *UsersController {
	if service == nil {
		panic("Missing UsersService in users controller...")
	}
	return &UsersController{
		Service: service,
		Logger:  defLogger{},
	}
}

func (u *UsersController) Register(c *fiber.Ctx) error {
	req := RegisterUserRequest{}
	if err := c.BodyParser(&req); err != nil {
		return validationError(err, "invalid registration payload")
	}

	user, err := u.Service.Register(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

func (u *UsersController) List(c *fiber.Ctx) error {
	records, err := u.Service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(records)
}

func (u *UsersController) Get(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	user, err := u.Service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (u *UsersController) AddToProject(c *fiber.Ctx) error {
	projectID, err := uuidParam(c, "projectId")
	if err != nil {
		return err
	}

	req := AddToProjectRequest{}
	if err := c.BodyParser(&req); err != nil {
		return validationError(err, "invalid membership payload")
	}

	actor, _ := CurrentIdentity(c)
	member, err := u.Service.RelationToProject(c.UserContext(), actor, projectID, req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(member)
}

func (u *UsersController) Update(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	req := UpdateUserRequest{}
	if err := c.BodyParser(&req); err != nil {
		return validationError(err, "invalid user payload")
	}

	actor, _ := CurrentIdentity(c)
	user, err := u.Service.Update(c.UserContext(), actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (u *UsersController) Delete(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	actor, _ := CurrentIdentity(c)
	if err := u.Service.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "deleted": true})
}

// ProjectsController serves /projects
type ProjectsController struct {
	Service *ProjectsService
	Logger  Logger
}

func NewProjectsController(service *ProjectsService) *ProjectsController {
	if service == nil {
		panic("Missing ProjectsService in projects controller...")
	}
	return &ProjectsController{
		Service: service,
		Logger:  defLogger{},
	}
}

func (p *ProjectsController) Create(c *fiber.Ctx) error {
	req := CreateProjectRequest{}
	if err := c.BodyParser(&req); err != nil {
		return validationError(err, "invalid project payload")
	}

	actor, _ := CurrentIdentity(c)
	project, err := p.Service.Create(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

func (p *ProjectsController) List(c *fiber.Ctx) error {
	records, err := p.Service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(records)
}

func (p *ProjectsController) Get(c *fiber.Ctx) error {
	id, err := uuidParam(c, "projectId")
	if err != nil {
		return err
	}

	project, err := p.Service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(project)
}

func (p *ProjectsController) Update(c *fiber.Ctx) error {
	id, err := uuidParam(c, "projectId")
	if err != nil {
		return err
	}

	req := UpdateProjectRequest{}
	if err := c.BodyParser(&req); err != nil {
		return validationError(err, "invalid project payload")
	}

	actor, _ := CurrentIdentity(c)
	project, err := p.Service.Update(c.UserContext(), actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(project)
}

func (p *ProjectsController) Delete(c *fiber.Ctx) error {
	id, err := uuidParam(c, "projectId")
	if err != nil {
		return err
	}

	actor, _ := CurrentIdentity(c)
	if err := p.Service.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "deleted": true})
}

// RouteDeps groups what RegisterRoutes needs
type RouteDeps struct {
	Guard        *RouteGuard
	Auth         *AuthController
	Users        *UsersController
	Projects     *ProjectsController
	LoginLimiter *LoginLimiter
	Health       func() error
}

// RegisterRoutes mounts the API under APIPrefix. Each route declares
// its policy where it is registered.
func RegisterRoutes(app fiber.Router, deps RouteDeps) {
	api := app.Group(APIPrefix)

	started := time.Now()
	api.Get("/health", func(c *fiber.Ctx) error {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "health check failed")
			}
		}
		return c.JSON(fiber.Map{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	})

	guard := deps.Guard

	login := []fiber.Handler{}
	if deps.LoginLimiter != nil {
		login = append(login, deps.LoginLimiter.Middleware())
	}
	login = append(login, deps.Auth.Login)
	api.Post("/auth/login", login...)

	users := api.Group("/users")
	users.Post("/register", guard.Protect(PublicRoute()), deps.Users.Register)
	users.Get("/all", guard.Protect(AdminOnly()), deps.Users.List)
	users.Post("/add-to-project/:projectId", guard.Protect(RequireAccess(AccessOwner, "projectId")), deps.Users.AddToProject)
	users.Put("/edit/:id", guard.Protect(SelfOrAdmin("id")), deps.Users.Update)
	users.Delete("/delete/:id", guard.Protect(SelfOrAdmin("id")), deps.Users.Delete)
	users.Get("/:id", guard.Protect(Authenticated().WithUUIDParams("id")), deps.Users.Get)

	projects := api.Group("/projects")
	projects.Post("/create", guard.Protect(Authenticated()), deps.Projects.Create)
	projects.Get("/all", guard.Protect(AdminOnly()), deps.Projects.List)
	projects.Put("/edit/:projectId", guard.Protect(RequireAccess(AccessOwner, "projectId")), deps.Projects.Update)
	projects.Delete("/delete/:projectId", guard.Protect(RequireAccess(AccessOwner, "projectId")), deps.Projects.Delete)
	projects.Get("/:projectId", guard.Protect(RequireAccess(AccessMember, "projectId")), deps.Projects.Get)
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	value := c.Params(name)
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, withMetadata(ErrInvalidUUID, map[string]any{
			"param": name,
			"value": value,
		})
	}
	return id, nil
}
