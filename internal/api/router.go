package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/givebridge/donation-system/docs"
	"github.com/givebridge/donation-system/internal/api/handler"
	"github.com/givebridge/donation-system/internal/api/middleware"
	"github.com/givebridge/donation-system/internal/core/domain"
	"github.com/givebridge/donation-system/internal/core/service"
	mongodb "github.com/givebridge/donation-system/internal/infrastructure/db/mongo"
	redisdb "github.com/givebridge/donation-system/internal/infrastructure/db/redis"
	"github.com/givebridge/donation-system/internal/infrastructure/notify"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(db *mongo.Database, rdb *redis.Client, jwtSecret string, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("donation"))

	// --- Dependencies ---
	authRepo := mongodb.NewAuthRepository(db)
	authService := service.NewAuthService(authRepo, jwtSecret, 24*time.Hour)
	authHandler := handler.NewAuthHandler(authService)

	requestRepo := mongodb.NewRequestRepository(db)
	auditLog := mongodb.NewAuditRepository(db)
	snapshots := redisdb.NewSnapshotStore(rdb)
	broker := notify.NewBroker(snapshots, log)
	coordinator := service.NewRequestCoordinator(requestRepo, broker, auditLog, log)

	requestHandler := handler.NewRequestHandler(coordinator)
	streamHandler := handler.NewStreamHandler(broker)

	authMW := middleware.Auth(jwtSecret)
	ngoOnly := middleware.RBAC(domain.RoleNGO)
	volunteerOnly := middleware.RBAC(domain.RoleVolunteer)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Request routes ---
	v1 := e.Group("/v1", authMW)
	v1.GET("/requests", requestHandler.List)
	v1.GET("/requests/stream", streamHandler.Stream)
	v1.GET("/requests/:id", requestHandler.Get)
	v1.POST("/requests", requestHandler.Submit, ngoOnly)
	v1.PUT("/requests/:id", requestHandler.Edit, ngoOnly)
	v1.DELETE("/requests/:id", requestHandler.Remove, ngoOnly)
	v1.POST("/requests/:id/confirm", requestHandler.Confirm, ngoOnly)
	v1.POST("/requests/:id/claim", requestHandler.Claim, volunteerOnly)
	v1.POST("/requests/:id/exit", requestHandler.Exit, volunteerOnly)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability and docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	return e
}
