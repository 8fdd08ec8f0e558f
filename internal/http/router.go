package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/config"
	"stockroom-server/internal/http/handlers"
	"stockroom-server/internal/http/middleware"
	"stockroom-server/internal/services"
)

type Dependencies struct {
	Config      *config.Config
	AuthService *services.AuthService
	ItemService *services.ItemService
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
}

func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(deps.Config.AllowedOrigins))

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Logger)
	userHandler := handlers.NewUserHandler(deps.AuthService, deps.Config)
	itemHandler := handlers.NewItemHandler(deps.ItemService)

	router.GET("/healthz", handlers.Health)

	api := router.Group("/api/v1")
	{
		open := api.Group("")
		open.Use(deps.RateLimiter.Middleware())
		open.POST("/login/access-token", authHandler.Login)
		open.POST("/password-recovery/:username", authHandler.RecoverPassword)
		open.POST("/reset-password", authHandler.ResetPassword)
		open.POST("/users/open", userHandler.CreateOpen)
	}

	protected := api.Group("")
	protected.Use(middleware.JWTAuth(deps.AuthService))
	{
		protected.POST("/login/test-token", authHandler.TestToken)

		protected.GET("/roles", userHandler.ListRoles)

		protected.GET("/users", userHandler.List)
		protected.POST("/users", userHandler.Create)
		protected.GET("/users/search", userHandler.Search)
		protected.GET("/users/me", userHandler.GetMe)
		protected.PUT("/users/me", userHandler.UpdateMe)
		protected.GET("/users/:username", userHandler.GetByUsername)
		protected.PUT("/users/:username", userHandler.UpdateByUsername)

		protected.GET("/items", itemHandler.List)
		protected.POST("/items", itemHandler.Create)
		protected.GET("/items/search", itemHandler.Search)
		protected.GET("/items/:id", itemHandler.GetByID)
		protected.PUT("/items/:id", itemHandler.Update)
		protected.DELETE("/items/:id", itemHandler.Delete)
	}

	return router
}
