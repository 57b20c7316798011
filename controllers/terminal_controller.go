package controllers

import (
	"net/http"

	errcode "github.com/Xine003/ResQWave-sub002/internal/error/code"
	"github.com/Xine003/ResQWave-sub002/internal/error/response"
	"github.com/Xine003/ResQWave-sub002/models"
	"github.com/Xine003/ResQWave-sub002/services"
	"github.com/Xine003/ResQWave-sub002/services/container"

	"github.com/gin-gonic/gin"
)

// TerminalController handles terminal-related requests
type TerminalController struct {
	BaseControllerImpl
}

// NewTerminalController creates a new terminal controller
func (f *ControllerFactory) NewTerminalController(ctx *gin.Context) *TerminalController {
	return &TerminalController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// HandleTerminalFunc returns a gin handler for a terminal method
func HandleTerminalFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)
	return func(ctx *gin.Context) {
		controller := factory.NewTerminalController(ctx)

		switch method {
		case "getTerminals":
			controller.GetTerminals()
		case "getTerminal":
			controller.GetTerminal()
		case "getTerminalAlerts":
			controller.GetTerminalAlerts()
		case "getPresence":
			controller.GetPresence()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "invalid method",
				"data":    nil,
			})
		}
	}
}

// GetTerminals lists terminals with pagination
// @Summary      List terminals
// @Description  Returns a paginated list of field terminals with status
// @Tags         Terminal
// @Produce      json
// @Param        pageNum   query  int  false  "Page number"
// @Param        pageSize  query  int  false  "Page size"
// @Success      200  {object}  map[string]interface{}
// @Router       /terminals [get]
func (c *TerminalController) GetTerminals() {
	var query models.PaginationQuery
	if err := c.Context.ShouldBindQuery(&query); err != nil {
		response.ParamError(c.Context, err.Error())
		return
	}

	terminalService := c.Container.GetService("terminal").(services.InterfaceTerminalService)
	terminals, pagination, err := terminalService.GetTerminals(query)
	if err != nil {
		response.Fail(c.Context, errcode.ErrDatabase, nil)
		return
	}

	response.Success(c.Context, gin.H{
		"terminals":  terminals,
		"pagination": pagination,
	})
}

// GetTerminal loads one terminal
// @Summary      Get terminal
// @Tags         Terminal
// @Produce      json
// @Param        id  path  string  true  "Terminal ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /terminals/{id} [get]
func (c *TerminalController) GetTerminal() {
	id := c.Context.Param("id")

	terminalService := c.Container.GetService("terminal").(services.InterfaceTerminalService)
	terminal, err := terminalService.GetTerminalByID(id)
	if err != nil {
		response.Fail(c.Context, errcode.ErrTerminalNotFound, nil)
		return
	}

	response.Success(c.Context, terminal)
}

// GetTerminalAlerts lists the alert history of one terminal
// @Summary      Terminal alert history
// @Tags         Terminal
// @Produce      json
// @Param        id  path  string  true  "Terminal ID"
// @Success      200  {object}  map[string]interface{}
// @Router       /terminals/{id}/alerts [get]
func (c *TerminalController) GetTerminalAlerts() {
	id := c.Context.Param("id")

	alertService := c.Container.GetService("alert").(services.InterfaceAlertService)
	alerts, err := alertService.GetAlertsByTerminal(id)
	if err != nil {
		response.Fail(c.Context, errcode.ErrDatabase, nil)
		return
	}

	response.Success(c.Context, alerts)
}

// GetPresence reports whether a terminal has a live connection
// @Summary      Terminal presence
// @Tags         Terminal
// @Produce      json
// @Param        id  path  string  true  "Terminal ID"
// @Success      200  {object}  map[string]interface{}
// @Router       /terminals/{id}/presence [get]
func (c *TerminalController) GetPresence() {
	id := c.Context.Param("id")

	router := c.Container.GetService("event_router").(services.InterfaceEventRouterService)
	response.Success(c.Context, gin.H{
		"terminalId": id,
		"online":     router.Registry().IsOnline(id),
	})
}
