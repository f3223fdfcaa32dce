package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"council-server/internal/constants"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Отправлять пинги клиенту с этим периодом. Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения, разрешенный от клиента.
	maxMessageSize = 1024
)

// Client представляет собой одно WebSocket соединение игрока в сессии.
type Client struct {
	SessionID string
	PlayerID  string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	logger    *zap.Logger
}

// inboundMessage - сообщение от клиента: join_game, start_game или vote.
type inboundMessage struct {
	Type    string `json:"type"`
	Payload struct {
		Name   string `json:"name"`
		Role   string `json:"role"`
		Option string `json:"option"`
	} `json:"payload"`
}

// readPump откачивает входящие сообщения и диспатчит игровые действия.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("failed to parse client message", zap.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch выполняет игровое действие. Ошибки валидации возвращаются
// только этому клиенту событием error.
func (c *Client) dispatch(msg inboundMessage) {
	if c.hub.handler == nil {
		return
	}
	ctx := context.Background()

	var err error
	switch msg.Type {
	case constants.WSActionJoinGame:
		_, err = c.hub.handler.JoinGame(ctx, c.SessionID, c.PlayerID, msg.Payload.Name, msg.Payload.Role)
	case constants.WSActionStartGame:
		err = c.hub.handler.StartGame(ctx, c.SessionID, c.PlayerID)
	case constants.WSActionVote:
		err = c.hub.handler.Vote(ctx, c.SessionID, c.PlayerID, msg.Payload.Option)
	default:
		c.logger.Warn("unknown message type", zap.String("type", msg.Type))
		return
	}
	if err != nil {
		c.logger.Warn("action failed",
			zap.String("type", msg.Type),
			zap.Error(err))
		c.hub.SendToPlayer(c.SessionID, c.PlayerID, constants.WSEventError, map[string]interface{}{
			"action": msg.Type,
			"error":  err.Error(),
		})
	}
}

// writePump откачивает сообщения из канала send в соединение.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			// Отправляем накопившиеся сообщения за один writer.
			n := len(c.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
