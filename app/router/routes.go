// Package router provides HTTP routing, middleware configuration, and server setup for the portal
package router

import (
	"encoding/json"
	"log"
	"time"

	"github.com/amirphl/raiot-portal/app/dto"
	"github.com/amirphl/raiot-portal/app/handlers"
	"github.com/amirphl/raiot-portal/app/middleware"
	"github.com/amirphl/raiot-portal/config"
	"github.com/amirphl/raiot-portal/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups everything the router mounts
type Handlers struct {
	Profile        handlers.ProfileHandlerInterface
	UniqueIDAdmin  handlers.UniqueIDAdminHandlerInterface
	MemberExport   handlers.MemberExportHandlerInterface
	AuthMiddleware *middleware.AuthMiddleware
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	server   config.ServerConfig
	metrics  config.MetricsConfig
	version  string
	logger   *log.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, cfg *config.Config, logger *log.Logger) *FiberRouter {
	if logger == nil {
		logger = log.Default()
	}

	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1024 * 1024
	}

	r := &FiberRouter{
		handlers: h,
		server:   cfg.Server,
		metrics:  cfg.Metrics,
		version:  cfg.Deployment.Version,
		logger:   logger,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "RAIoT Portal API",
		ServerHeader: "RAIoT-Portal",
		ErrorHandler: r.errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	r.app.Get("/health", r.healthCheck)
	if r.metrics.Enabled {
		r.app.Get(r.metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	auth := r.handlers.AuthMiddleware

	members := api.Group("/members")
	members.Post("/", r.handlers.Profile.Register)
	members.Get("/:id/profile", auth.Authenticate(), auth.RequireMemberOwner("id"), r.handlers.Profile.GetProfile)
	members.Put("/:id/profile", auth.Authenticate(), auth.RequireMemberOwner("id"), r.handlers.Profile.UpdateProfile)

	admin := api.Group("/admin", auth.AdminAuthenticate())
	admin.Get("/unique-id/status", r.handlers.UniqueIDAdmin.Status)
	admin.Post("/unique-id/reconcile", r.handlers.UniqueIDAdmin.Reconcile)
	admin.Get("/members/export", r.handlers.MemberExport.ExportMembers)
	admin.Post("/members/:id/unique-id", r.handlers.UniqueIDAdmin.AssignUniqueID)

	r.app.Use(r.notFoundHandler)

	r.logger.Println("Routes configured successfully")
}

func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
			)
		},
	}))

	if r.metrics.Enabled {
		r.app.Use(middleware.Metrics(r.metrics.Path))
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.server.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Request-ID",
		},
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:        utils.CORSMaxAge,
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.version,
			"service":   "raiot-portal",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errCode = "REQUEST_ERROR"
		}
	}

	r.logger.Printf("Error %d: %v", code, err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}
