package bootstrap

import (
	"strings"

	"mirror_server/adapter/in/http"
	"mirror_server/config"
	"mirror_server/infra/middleware"
	"mirror_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	// Initialize logger
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "mirror-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	// Token blacklist needs Redis
	middleware.InitTokenBlacklist(deps.Redis)

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		Prefork:               false,
		StrictRouting:         false,
		CaseSensitive:         false,

		// Buffer sizes (메모리 vs 성능 트레이드오프)
		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// go-json: 표준 encoding/json 대비 2~3배 빠른 JSON 직렬화
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		// Body 제한 (메모리 보호)
		BodyLimit: 1 * 1024 * 1024, // 1MB, 동기화 트리거 요청은 작다

		Concurrency: 256 * 1024,

		ServerHeader:       "",
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())       // 1. Panic recovery
	app.Use(middleware.RequestID())     // 2. Request ID
	app.Use(middleware.RequestLogger()) // 3. Request logging

	// Response compression (gzip/brotli)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// CORS - AllowCredentials:true requires explicit origins (not "*")
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
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandler(deps.Mongo, deps.Redis)
	healthHandler.Register(app)

	// API routes (with auth)
	api := app.Group("/api")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))

	syncHandler := http.NewSyncHandler(deps.SyncService, deps.Cache, cfg.SyncLockTTL, cfg.SyncRequestTimeout)
	syncHandler.Register(api)

	timelineHandler := http.NewTimelineHandler(deps.TimelineService)
	timelineHandler.Register(api)

	logger.Info("API server initialized successfully")

	return app, cleanup, nil
}
