package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/api/handler"
	"github.com/campusgate/access-core/internal/api/middleware"
	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/internal/dispatch"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Log         zerolog.Logger
	Dispatcher  *dispatch.Dispatcher
	Auth        ports.AuthService
	Credentials middleware.CredentialValidator
	Authorizer  ports.Authorizer
	Health      map[string]handler.HealthCheck
	// Registerer and Gatherer default to the prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

var (
	manageRoles         = domain.Key(domain.ActionManage, domain.ResourceRoles)
	manageSubscriptions = domain.Key(domain.ActionManage, domain.ResourceSubscriptions)
	viewUsers           = domain.Key(domain.ActionView, domain.ResourceUsers)
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "access",
		Subsystem:  "http",
		Registerer: deps.Registerer,
	}))

	// --- Probes and metrics (no auth required) ---
	health := handler.NewHealthHandler(deps.Health)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: deps.Gatherer}))

	// --- Auth routes ---
	auth := handler.NewAuthHandler(deps.Auth, deps.Dispatcher)
	e.POST("/auth/register", auth.Register)
	e.POST("/auth/login", auth.Login)

	v1 := e.Group("/v1", middleware.Authenticate(deps.Credentials))

	access := handler.NewAccessHandler(deps.Dispatcher)
	v1.GET("/me", access.Me)
	v1.GET("/me/permissions", access.Permissions)
	v1.GET("/me/menu", access.Menu)
	v1.POST("/authz/check", access.Check)

	// Admin routes are gated on the live engine; the use cases check the
	// actor again.
	admin := handler.NewAdminHandler(deps.Dispatcher)
	roles := middleware.RequirePermission(deps.Authorizer, manageRoles)
	subs := middleware.RequirePermission(deps.Authorizer, manageSubscriptions)

	v1.POST("/roles", admin.CreateRole, roles)
	v1.POST("/roles/:id/permissions", admin.GrantPermission, roles)
	v1.DELETE("/roles/:id/permissions/:key", admin.RevokePermission, roles)
	v1.POST("/users/:id/roles", admin.AssignRole, roles)
	v1.DELETE("/users/:id/roles/:role_id", admin.RevokeRole, roles)
	v1.GET("/users/:id/roles", admin.UserRoles,
		middleware.RequireRole(domain.SystemRoleSuperAdmin, domain.SystemRoleAdmin, domain.SystemRoleTeacher),
		middleware.RequirePermission(deps.Authorizer, viewUsers))
	v1.POST("/users/:id/subscriptions", admin.CreateSubscription, subs)
	v1.PATCH("/subscriptions/:id", admin.UpdateSubscription, subs)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
