package projects

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// Server wires storage, services, guards and routes into a fiber app
type Server struct {
	App      *fiber.App
	Repo     RepositoryManager
	Auth     *Auther
	Users    *UsersService
	Projects *ProjectsService
	Pipeline *Pipeline
	Metrics  *Metrics

	db *bun.DB
}

type serverOptions struct {
	logger         Logger
	hasher         PasswordAuthenticator
	registry       *prometheus.Registry
	corsOrigins    string
	requestTimeout time.Duration
	loginRate      float64
	loginBurst     int
	activitySink   ActivitySink
	requestLog     bool
	proxyHeader    string
	trustedProxies []string
}

// ServerOption customizes NewServer
type ServerOption func(*serverOptions)

func WithServerLogger(l Logger) ServerOption {
	return func(o *serverOptions) { o.logger = normalizeLogger(l) }
}

func WithPasswordHasher(h PasswordAuthenticator) ServerOption {
	return func(o *serverOptions) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithMetricsRegistry registers collectors on reg and serves it on /metrics
func WithMetricsRegistry(reg *prometheus.Registry) ServerOption {
	return func(o *serverOptions) { o.registry = reg }
}

func WithCORSOrigins(origins string) ServerOption {
	return func(o *serverOptions) { o.corsOrigins = origins }
}

func WithRequestTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) { o.requestTimeout = d }
}

// WithLoginRateLimit throttles /auth/login per client IP, perSecond <= 0 disables it
func WithLoginRateLimit(perSecond float64, burst int) ServerOption {
	return func(o *serverOptions) {
		o.loginRate = perSecond
		o.loginBurst = burst
	}
}

func WithServerActivitySink(sink ActivitySink) ServerOption {
	return func(o *serverOptions) { o.activitySink = sink }
}

// WithTrustedProxies reads the client IP from header, but only when the
// peer is one of proxies. Without it the socket address is used.
func WithTrustedProxies(header string, proxies []string) ServerOption {
	return func(o *serverOptions) {
		o.proxyHeader = header
		o.trustedProxies = proxies
	}
}

func WithRequestLogging(enabled bool) ServerOption {
	return func(o *serverOptions) { o.requestLog = enabled }
}

// NewServer builds the whole API on top of db
func NewServer(db *bun.DB, cfg Config, opts ...ServerOption) (*Server, error) {
	options := &serverOptions{
		logger:         defLogger{},
		hasher:         BcryptHasher{},
		corsOrigins:    "*",
		requestTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if options.activitySink == nil {
		options.activitySink = LoggerActivitySink(options.logger)
	}

	repo := NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return nil, err
	}

	provider := NewUserProvider(repo.Users(), options.hasher).WithLogger(options.logger)
	auther := NewAuthenticator(provider, cfg).
		WithLogger(options.logger).
		WithActivitySink(options.activitySink)

	users := NewUsersService(repo, options.hasher).
		WithLogger(options.logger).
		WithActivitySink(options.activitySink)

	projectsSvc := NewProjectsService(repo,
		WithStateMachineLogger(options.logger),
		WithStateMachineActivitySink(options.activitySink),
	).
		WithLogger(options.logger).
		WithActivitySink(options.activitySink)

	pipeline := NewDefaultPipeline(auther, repo.Memberships()).WithLogger(options.logger)

	var metrics *Metrics
	if options.registry != nil {
		metrics = NewMetrics(options.registry)
		pipeline.WithObserver(metrics)
		projectsSvc.WithTransitionOptions(WithAfterTransitionHook(metrics.ObserveTransition))
	}

	appConfig := fiber.Config{
		AppName:               "projects-api",
		ErrorHandler:          ErrorHandler(options.logger),
		DisableStartupMessage: true,
	}
	if options.proxyHeader != "" {
		appConfig.ProxyHeader = options.proxyHeader
		appConfig.EnableTrustedProxyCheck = true
		appConfig.TrustedProxies = options.trustedProxies
		appConfig.EnableIPValidation = true
	}
	app := fiber.New(appConfig)

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: options.corsOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	if options.requestLog {
		app.Use(RequestLogger(options.logger))
	}
	if metrics != nil {
		app.Use(metrics.Middleware())
		app.Get("/metrics", MetricsHandler(options.registry))
	}
	app.Use(RequestTimeout(options.requestTimeout))

	var limiter *LoginLimiter
	if options.loginRate > 0 {
		limiter = NewLoginLimiter(options.loginRate, options.loginBurst)
	}

	RegisterRoutes(app, RouteDeps{
		Guard:        NewRouteGuard(pipeline, cfg).WithLogger(options.logger),
		Auth:         NewAuthController(auther),
		Users:        NewUsersController(users),
		Projects:     NewProjectsController(projectsSvc),
		LoginLimiter: limiter,
		Health: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
	})

	return &Server{
		App:      app,
		Repo:     repo,
		Auth:     auther,
		Users:    users,
		Projects: projectsSvc,
		Pipeline: pipeline,
		Metrics:  metrics,
		db:       db,
	}, nil
}

// Listen serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.App.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.App.ShutdownWithTimeout(10 * time.Second)
	}
}
