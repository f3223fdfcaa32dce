package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Добавить проверку Origin для безопасности
		return true
	},
}

// Handler обрабатывает запросы на установку WebSocket соединения.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewHandler создает новый обработчик WebSocket.
func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger.Named("WSHandler"),
	}
}

// ServeWS апгрейдит HTTP запрос GET /ws/game/:session_id?player_id=...
// до WebSocket и регистрирует соединение в hub.
func (h *Handler) ServeWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	playerID := c.Query("player_id")
	if sessionID == "" || playerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and player_id are required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection",
			zap.String("sessionID", sessionID),
			zap.String("playerID", playerID),
			zap.Error(err))
		return
	}

	client := &Client{
		SessionID: sessionID,
		PlayerID:  playerID,
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       h.hub,
		logger: h.logger.With(
			zap.String("sessionID", sessionID),
			zap.String("playerID", playerID)),
	}
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}
