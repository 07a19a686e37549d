package handlers

import (
	"net/http"

	"auction-trust/internal/infrastructure/websocket"
	"auction-trust/pkg/logger"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = gorillaws.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin checks belong to the gateway
	},
}

// WebSocketHandler streams moderation events. A client passes user_id to follow
// one user, or user_id=* for every user.
type WebSocketHandler struct {
	connManager *websocket.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(connManager *websocket.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		connManager: connManager,
		log:         log,
	}
}

func (h *WebSocketHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/moderation/events/ws", h.HandleConnection)
}

func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id required"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return nil
	}

	wsConn := websocket.NewWebSocketConnection(conn, userID)
	h.connManager.RegisterConnection(wsConn)

	go h.handleMessages(wsConn)
	return nil
}

// handleMessages keeps the connection open until the client goes away; the
// only client message understood is ping.
func (h *WebSocketHandler) handleMessages(conn *websocket.WebSocketConnection) {
	defer func() {
		h.connManager.UnregisterConnection(conn)
		conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			if !gorillaws.IsCloseError(err, gorillaws.CloseNormalClosure, gorillaws.CloseGoingAway) {
				h.log.Debug("Connection read ended", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		if msgType, _ := msg["type"].(string); msgType == "ping" {
			if err := conn.Send(map[string]string{"type": "pong"}); err != nil {
				return
			}
		}
	}
}
