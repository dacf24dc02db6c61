package bootstrap

import (
	"strings"

	"triage_server/adapter/in/http"
	"triage_server/config"
	"triage_server/core/port/out"
	"triage_server/infra/middleware"
	"triage_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "triage-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,

		// go-json is measurably faster than encoding/json
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    5 * 1024 * 1024,
		ServerHeader: "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// CORS. AllowCredentials requires explicit origins, never "*".
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID,X-API-Key",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandlerWithDeps(deps.DB, deps.Redis, deps.MongoDB)
	healthHandler.Register(app)

	api := app.Group("/api/v1")

	// Triage endpoints
	var msgQueue out.MessageQueue
	if deps.Producer != nil {
		msgQueue = deps.Producer
	}
	triageHandler := http.NewTriageHandler(deps.TriageService, msgQueue)
	triageHandler.Register(api)

	resolveHandler := http.NewResolveHandler(deps.TriageService)
	resolveHandler.Register(api)

	// Admin endpoints (tenant directory management)
	admin := api.Group("", middleware.AdminAuth(middleware.AdminAuthConfig{
		JWTSecret: cfg.AdminJWTSecret,
		APIKey:    cfg.AdminAPIKey,
	}))

	var audit http.AuditReader
	if deps.AuditRepo != nil {
		audit = deps.AuditRepo
	}
	var stats http.StatsReader
	if deps.Producer != nil {
		stats = deps.Producer
	}
	tenantHandler := http.NewTenantHandler(deps.Directory, audit, stats)
	tenantHandler.Register(admin)

	return app, cleanup, nil
}
