package controllers

import (
	"net/http"

	"github.com/Xine003/ResQWave-sub002/services"
	"github.com/Xine003/ResQWave-sub002/services/container"

	"github.com/gin-gonic/gin"
)

// JWTController handles authentication requests
type JWTController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewJWTController creates a new authentication controller
func NewJWTController(ctx *gin.Context, container *container.ServiceContainer) *JWTController {
	return &JWTController{
		Ctx:       ctx,
		Container: container,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"dispatcher01"`
	Password string `json:"password" binding:"required" example:"secret"`
}

// LoginData is the payload returned on successful login
type LoginData struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id" example:"DIS001"`
	Role     string `json:"role" example:"dispatcher"`
	Username string `json:"username"`
}

// HandleJWTFunc returns a gin handler for an authentication method
func HandleJWTFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewJWTController(ctx, container)

		switch method {
		case "login":
			controller.Login()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "invalid method",
				"data":    nil,
			})
		}
	}
}

// Login handles dispatcher login
// @Summary      Dispatcher Login
// @Description  Authenticates a dispatcher and returns a JWT token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]interface{}
// @Router       /auth/login [post]
func (c *JWTController) Login() {
	var req LoginRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "invalid request parameters: " + err.Error(),
			"data":    nil,
		})
		return
	}

	dispatcherService := c.Container.GetService("dispatcher").(services.InterfaceDispatcherService)
	jwtService := c.Container.GetService("jwt").(services.InterfaceJWTService)

	dispatcher, err := dispatcherService.Authenticate(req.Username, req.Password)
	if err != nil {
		c.Ctx.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": "invalid username or password",
			"data":    nil,
		})
		return
	}

	token, err := jwtService.GenerateToken(dispatcher.ID, "dispatcher")
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "failed to generate token",
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "login successful",
		"data": LoginData{
			Token:    token,
			UserID:   dispatcher.ID,
			Role:     "dispatcher",
			Username: dispatcher.Username,
		},
	})
}
