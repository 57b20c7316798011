package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Xine003/ResQWave-sub002/config"
	"github.com/Xine003/ResQWave-sub002/models"
	"github.com/Xine003/ResQWave-sub002/services"
	"github.com/Xine003/ResQWave-sub002/services/container"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum message size allowed from peer.
	sendBufferSize = 64                  // Outbound queue per connection.
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dispatch console and terminals connect from other origins; auth is
	// handled by the JWT middleware, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSController upgrades HTTP connections into live sessions and pumps
// messages between the socket and the event router
type WSController struct {
	Container *container.ServiceContainer
}

// NewWSController creates a new websocket controller
func NewWSController(container *container.ServiceContainer) *WSController {
	return &WSController{Container: container}
}

// HandleWSFunc returns a gin handler for a websocket endpoint
func HandleWSFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	controller := NewWSController(container)
	return func(ctx *gin.Context) {
		switch method {
		case "terminal":
			controller.ServeTerminal(ctx)
		case "dispatcher":
			controller.ServeDispatcher(ctx)
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "invalid method",
				"data":    nil,
			})
		}
	}
}

// ServeTerminal upgrades a terminal connection. The terminal may identify
// itself with the terminalId query parameter or with a terminal:join event
// after connecting.
// @Summary      Terminal websocket
// @Tags         Realtime
// @Param        terminalId  query  string  false  "Terminal ID"
// @Router       /ws/terminal [get]
func (c *WSController) ServeTerminal(ctx *gin.Context) {
	// A query-parameter identity is validated before the upgrade, the same
	// way a terminal:join event is; an unknown id must not become a room.
	terminalID := ctx.Query("terminalId")
	if terminalID != "" {
		terminalService := c.Container.GetService("terminal").(services.InterfaceTerminalService)
		if _, err := terminalService.GetTerminalByID(terminalID); err != nil {
			ctx.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "terminal " + terminalID + " does not exist",
				"data":    nil,
			})
			return
		}
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		config.Error("terminal websocket upgrade failed: %v", err)
		return
	}

	session := &models.Session{
		SessionID:   uuid.New().String(),
		Identity:    terminalID,
		Role:        models.RoleTerminal,
		Room:        terminalID,
		ConnectedAt: time.Now(),
		Send:        make(chan []byte, sendBufferSize),
	}

	router := c.Container.GetService("event_router").(services.InterfaceEventRouterService)
	if terminalID != "" {
		router.Connect(session)
	}

	go c.writePump(conn, session)
	c.readPump(conn, session, router)
}

// ServeDispatcher upgrades a dispatcher connection. The dispatcher identity
// comes from the validated JWT claims set by the middleware.
// @Summary      Dispatcher websocket
// @Tags         Realtime
// @Security     BearerAuth
// @Router       /ws/dispatcher [get]
func (c *WSController) ServeDispatcher(ctx *gin.Context) {
	userID, exists := ctx.Get("userID")
	if !exists {
		ctx.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": "missing dispatcher identity",
			"data":    nil,
		})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		config.Error("dispatcher websocket upgrade failed: %v", err)
		return
	}

	session := &models.Session{
		SessionID:   uuid.New().String(),
		Identity:    userID.(string),
		Role:        models.RoleDispatcher,
		ConnectedAt: time.Now(),
		Send:        make(chan []byte, sendBufferSize),
	}

	router := c.Container.GetService("event_router").(services.InterfaceEventRouterService)
	router.Connect(session)

	go c.writePump(conn, session)
	c.readPump(conn, session, router)
}

// readPump pumps inbound events from the socket into the event router.
// Running as the single reader keeps events from one connection in arrival
// order. Cleanup runs synchronously on any exit path.
func (c *WSController) readPump(conn *websocket.Conn, session *models.Session, router services.InterfaceEventRouterService) {
	defer func() {
		router.Disconnect(session)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				config.Warning("websocket read error for %s: %v", session.SessionID, err)
			}
			break
		}

		ack := router.HandleMessage(session, message)
		if raw, err := json.Marshal(models.Event{Event: "ack", Payload: ack}); err == nil {
			select {
			case session.Send <- raw:
			default:
			}
		}
	}
}

// writePump pumps outbound messages from the session queue to the socket
func (c *WSController) writePump(conn *websocket.Conn, session *models.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-session.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
