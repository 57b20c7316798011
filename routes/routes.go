package routes

import (
	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/controllers"
	_ "github.com/Xine003/ResQWave-sub002/docs"
	"github.com/Xine003/ResQWave-sub002/middleware"
	"github.com/Xine003/ResQWave-sub002/services/container"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// SetupRouter initializes and returns the configured router
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Create the service container
	serviceContainer := container.NewServiceContainer(db, cfg)
	// Initialize middleware
	middleware.InitAuthMiddleware(cfg)
	// Swagger documentation route
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	registerRoutes(r, serviceContainer)
	return r
}

// registerRoutes configures all API routes
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	api := r.Group("/api")
	registerPublicRoutes(api, container)
	registerAuthenticatedRoutes(api, container)
}

// registerPublicRoutes registers routes that need no authentication
func registerPublicRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// Health check
	healthController := controllers.NewHealthCheckController()
	api.GET("/ping", healthController.Ping)

	// Authentication
	api.POST("/auth/login", controllers.HandleJWTFunc(container, "login"))

	// Terminal websocket: terminals carry no JWT, they identify by room join
	api.GET("/ws/terminal", controllers.HandleWSFunc(container, "terminal"))
}

// registerAuthenticatedRoutes registers routes behind the JWT middleware
func registerAuthenticatedRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	dispatcher := api.Group("")
	dispatcher.Use(middleware.AuthenticateDispatcher())
	{
		// Dispatcher websocket
		dispatcher.GET("/ws/dispatcher", controllers.HandleWSFunc(container, "dispatcher"))

		// Terminals
		dispatcher.GET("/terminals", controllers.HandleTerminalFunc(container, "getTerminals"))
		dispatcher.GET("/terminals/:id", controllers.HandleTerminalFunc(container, "getTerminal"))
		dispatcher.GET("/terminals/:id/alerts", controllers.HandleTerminalFunc(container, "getTerminalAlerts"))
		dispatcher.GET("/terminals/:id/presence", controllers.HandleTerminalFunc(container, "getPresence"))

		// Alerts
		dispatcher.GET("/alerts/open", controllers.HandleAlertFunc(container, "getOpenAlerts"))
		dispatcher.GET("/alerts/:id", controllers.HandleAlertFunc(container, "getAlert"))
		dispatcher.POST("/alerts/trigger", controllers.HandleAlertFunc(container, "trigger"))
	}

	admin := api.Group("")
	admin.Use(middleware.AuthenticateAdmin())
	{
		// Administrative override
		admin.POST("/alerts/:id/cancel", controllers.HandleAlertFunc(container, "cancel"))
	}
}
