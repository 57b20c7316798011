package controllers

import (
	"encoding/json"
	"net/http"

	errcode "github.com/Xine003/ResQWave-sub002/internal/error/code"
	"github.com/Xine003/ResQWave-sub002/internal/error/response"
	"github.com/Xine003/ResQWave-sub002/services"
	"github.com/Xine003/ResQWave-sub002/services/container"

	"github.com/gin-gonic/gin"
)

// AlertController handles alert lifecycle requests over the HTTP surface.
// The same operations flow through the event router for live connections;
// HTTP is the administrative path.
type AlertController struct {
	BaseControllerImpl
}

// NewAlertController creates a new alert controller
func (f *ControllerFactory) NewAlertController(ctx *gin.Context) *AlertController {
	return &AlertController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// TriggerAlertRequest represents a manual alert trigger
type TriggerAlertRequest struct {
	TerminalID  string `json:"terminal_id" binding:"required" example:"RESQ003"`
	AlertType   string `json:"alert_type" binding:"required" example:"Critical"`
	SentThrough string `json:"sent_through" example:"Manual"`
	Status      string `json:"status" example:""`
}

// CancelAlertRequest represents an administrative cancel
type CancelAlertRequest struct {
	Reason string `json:"reason" example:"false alarm confirmed by focal person"`
}

// HandleAlertFunc returns a gin handler for an alert method
func HandleAlertFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)
	return func(ctx *gin.Context) {
		controller := factory.NewAlertController(ctx)

		switch method {
		case "getOpenAlerts":
			controller.GetOpenAlerts()
		case "getAlert":
			controller.GetAlert()
		case "trigger":
			controller.Trigger()
		case "cancel":
			controller.Cancel()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "invalid method",
				"data":    nil,
			})
		}
	}
}

// GetOpenAlerts lists alerts in a non-terminal state
// @Summary      List open alerts
// @Description  Returns alerts still in Waitlist or Dispatched
// @Tags         Alert
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /alerts/open [get]
func (c *AlertController) GetOpenAlerts() {
	alertService := c.Container.GetService("alert").(services.InterfaceAlertService)
	alerts, err := alertService.GetOpenAlerts()
	if err != nil {
		response.Fail(c.Context, errcode.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, alerts)
}

// GetAlert loads one alert with its respond and result
// @Summary      Get alert
// @Tags         Alert
// @Produce      json
// @Param        id  path  string  true  "Alert ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /alerts/{id} [get]
func (c *AlertController) GetAlert() {
	id := c.Context.Param("id")

	alertService := c.Container.GetService("alert").(services.InterfaceAlertService)
	alert, err := alertService.GetAlert(id)
	if err != nil {
		response.Fail(c.Context, errcode.ErrAlertNotFound, nil)
		return
	}
	response.Success(c.Context, alert)
}

// Trigger raises an alert on behalf of a terminal (manual path)
// @Summary      Trigger alert
// @Description  Creates an alert for a terminal; duplicate triggers return the open alert
// @Tags         Alert
// @Accept       json
// @Produce      json
// @Param        request body TriggerAlertRequest true "Trigger parameters"
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /alerts/trigger [post]
func (c *AlertController) Trigger() {
	var req TriggerAlertRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, err.Error())
		return
	}
	if req.SentThrough == "" {
		req.SentThrough = "Manual"
	}

	// Route through the event router so new alerts reach the dispatcher
	// group exactly as sensor-originated ones do.
	router := c.Container.GetService("event_router").(services.InterfaceEventRouterService)
	raw, _ := json.Marshal(services.InboundMessage{
		Event: services.EventAlertTrigger,
		Payload: mustMarshal(services.TriggerPayload{
			TerminalID:  req.TerminalID,
			AlertType:   req.AlertType,
			SentThrough: req.SentThrough,
			Status:      req.Status,
		}),
	})
	ack := router.HandleMessage(nil, raw)
	if !ack.Success {
		response.FailWithMessage(c.Context, errcode.ErrAlertAlreadyOpen, ack.Error, ack.Data)
		return
	}

	response.Success(c.Context, ack.Data)
}

// Cancel moves an open alert to Cancelled (administrative override)
// @Summary      Cancel alert
// @Tags         Alert
// @Accept       json
// @Produce      json
// @Param        id       path  string              true   "Alert ID"
// @Param        request  body  CancelAlertRequest  false  "Cancel parameters"
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /alerts/{id}/cancel [post]
func (c *AlertController) Cancel() {
	id := c.Context.Param("id")

	var req CancelAlertRequest
	_ = c.Context.ShouldBindJSON(&req)

	// Route through the event router so the cancel fans out to the terminal
	// room and dispatcher group and triggers the downlink, same as a
	// real-time cancel would.
	router := c.Container.GetService("event_router").(services.InterfaceEventRouterService)
	raw, _ := json.Marshal(services.InboundMessage{
		Event:   services.EventAlertCancel,
		Payload: mustMarshal(services.CancelPayload{AlertID: id, Reason: req.Reason}),
	})
	ack := router.HandleMessage(nil, raw)
	if !ack.Success {
		response.FailWithMessage(c.Context, errcode.ErrAlertInvalidTransition, ack.Error, ack.Data)
		return
	}

	response.Success(c.Context, ack.Data)
}

// mustMarshal marshals a payload that cannot fail
func mustMarshal(v interface{}) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
