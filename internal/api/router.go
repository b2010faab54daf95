package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/truefeedback/feedback-system/docs"
	"github.com/truefeedback/feedback-system/internal/api/handler"
	"github.com/truefeedback/feedback-system/internal/api/middleware"
	"github.com/truefeedback/feedback-system/internal/core/ports"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(
	db *mongo.Database,
	rdb *redis.Client,
	registrar ports.RegistrarService,
	messaging ports.MessagingService,
	jwtSecret string,
	log zerolog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("feedback"))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(registrar)
	messageHandler := handler.NewMessageHandler(messaging)
	authMiddleware := middleware.Auth(jwtSecret)

	// --- Public routes ---
	e.POST("/api/register", authHandler.Register)
	e.POST("/api/verify", authHandler.Verify)
	e.POST("/api/login", authHandler.Login)
	e.POST("/api/send-message", messageHandler.Send)

	// --- Authenticated routes ---
	e.GET("/api/accept-messages", messageHandler.GetAcceptingMessages, authMiddleware)
	e.POST("/api/accept-messages", messageHandler.SetAcceptingMessages, authMiddleware)
	e.GET("/api/messages", messageHandler.GetMessages, authMiddleware)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
