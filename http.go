package projects

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-projects/middleware/jwtware"
	"golang.org/x/time/rate"
)

// RouteGuard turns RoutePolicy values into fiber middleware
type RouteGuard struct {
	pipeline *Pipeline
	lookup   *jwtware.Lookup
	Logger   Logger
}

// NewRouteGuard builds the middleware factory. Token lookup and auth
// scheme come from cfg.
func NewRouteGuard(pipeline *Pipeline, cfg Config) *RouteGuard {
	lookup, scheme := "", ""
	if cfg != nil {
		lookup = cfg.GetTokenLookup()
		scheme = cfg.GetAuthScheme()
	}
	return &RouteGuard{
		pipeline: pipeline,
		lookup:   jwtware.NewLookup(lookup, scheme),
		Logger:   defLogger{},
	}
}

func (g *RouteGuard) WithLogger(l Logger) *RouteGuard {
	g.Logger = normalizeLogger(l)
	return g
}

// Protect returns a handler enforcing policy before the next handler runs
func (g *RouteGuard) Protect(policy RoutePolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ""
		if !policy.Public {
			token, _ = g.lookup.Extract(c)
		}

		req := &GuardRequest{
			Policy: policy,
			Token:  token,
			Param:  func(name string) string { return c.Params(name) },
		}

		if err := g.pipeline.Check(c.UserContext(), req); err != nil {
			return err
		}

		if req.Identity != nil {
			storeIdentity(c, req.Identity, req.Claims)
		}

		return c.Next()
	}
}

// ErrorHandler renders every error as a JSON envelope
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": fiber.Map{
					"message": fe.Message,
					"code":    fe.Code,
				},
			})
		}

		var richErr *errors.Error
		if !errors.As(err, &richErr) || richErr == nil {
			logger.Error("unhandled error", "error", err, "path", c.Path())
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		status := statusCodeFor(richErr)
		if status >= http.StatusInternalServerError {
			logger.Error(
				"request failed",
				"error", err,
				"category", richErr.Category,
				"path", c.Path(),
			)
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{
					"message":  "An unexpected server error occurred",
					"category": richErr.Category,
					"code":     status,
				},
			})
		}

		logger.Debug(
			"request rejected",
			"error", richErr.Message,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)

		return c.Status(status).JSON(fiber.Map{
			"error": fiber.Map{
				"message":   richErr.Message,
				"category":  richErr.Category,
				"text_code": richErr.TextCode,
				"code":      status,
				"metadata":  richErr.Metadata,
			},
		})
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger Logger) fiber.Handler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusCodeFor(err)
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		logger.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String(),
			"ip", c.IP(),
		)
		return err
	}
}

// RequestTimeout bounds the user context every handler passes to storage
func RequestTimeout(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// LoginLimiter is a token bucket per client IP
type LoginLimiter struct {
	mu      sync.Mutex
	buckets map[string]*loginBucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	sweptAt time.Time
}

type loginBucket struct {
	lim *rate.Limiter
	ts  time.Time
}

// NewLoginLimiter allows perSecond attempts with burst per IP
func NewLoginLimiter(perSecond float64, burst int) *LoginLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &LoginLimiter{
		buckets: make(map[string]*loginBucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     5 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether key may attempt a login now
func (l *LoginLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}

	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &loginBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.ts = now
	return b.lim.AllowN(now, 1)
}

func (l *LoginLimiter) sweep(now time.Time) {
	if now.Sub(l.sweptAt) < time.Minute {
		return
	}
	l.sweptAt = now
	for k, b := range l.buckets {
		if now.Sub(b.ts) > l.ttl {
			delete(l.buckets, k)
		}
	}
}

// Middleware rejects callers over their budget with 429
func (l *LoginLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(clientIP(c)) {
			return ErrTooManyLoginAttempts
		}
		return c.Next()
	}
}

// clientIP honours the app's ProxyHeader only for trusted proxies. The
// value is copied since it outlives the request as a bucket key.
func clientIP(c *fiber.Ctx) string {
	return utils.CopyString(c.IP())
}
