package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"council-server/internal/metrics"
	"council-server/internal/models"
)

// GameHandler - входящая сторона realtime-канала: действия клиентов и
// уведомления о подключениях. Реализуется GameService; сеттер разрывает
// цикл инициализации hub <-> service.
type GameHandler interface {
	JoinGame(ctx context.Context, sessionID, playerID, name, role string) (*models.Player, error)
	StartGame(ctx context.Context, sessionID, playerID string) error
	Vote(ctx context.Context, sessionID, playerID, option string) error
	PlayerConnected(ctx context.Context, sessionID string, connections int)
	PlayerDisconnected(ctx context.Context, sessionID string, connections int)
}

// Message представляет событие для отправки через WebSocket.
type Message struct {
	SessionID string      `json:"-"`
	Target    string      `json:"-"` // player_id или пусто для broadcast
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Hub управляет WebSocket-соединениями, сгруппированными по сессиям:
// на сессию - множество живых соединений с ключом player_id. Hub держит
// только неволадеющую ссылку session_id -> соединения и никогда не мутирует
// состояние сессии напрямую.
type Hub struct {
	sessions   map[string]map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message

	handler GameHandler
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewHub создает hub. Run-цикл запускается отдельно через Start.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions:   make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 64),
		logger:     logger.Named("Hub"),
	}
}

// SetHandler подключает обработчик игровых действий.
func (h *Hub) SetHandler(handler GameHandler) {
	h.handler = handler
}

// Start запускает основной цикл hub в отдельной горутине.
func (h *Hub) Start() {
	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.sessions[client.SessionID]
			if !ok {
				room = make(map[string]*Client)
				h.sessions[client.SessionID] = room
			}
			// Повторное подключение того же игрока закрывает старое соединение.
			if old, ok := room[client.PlayerID]; ok {
				close(old.send)
			}
			room[client.PlayerID] = client
			connections := len(room)
			h.mu.Unlock()

			metrics.ConnectedClients.Inc()
			h.logger.Info("client connected",
				zap.String("sessionID", client.SessionID),
				zap.String("playerID", client.PlayerID),
				zap.Int("connections", connections))
			if h.handler != nil {
				// Отдельная горутина: обработчик может инициировать broadcast,
				// который вернулся бы в этот же цикл.
				go h.handler.PlayerConnected(context.Background(), client.SessionID, connections)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			room, ok := h.sessions[client.SessionID]
			if ok {
				if current, exists := room[client.PlayerID]; exists && current == client {
					delete(room, client.PlayerID)
					close(client.send)
				}
				if len(room) == 0 {
					delete(h.sessions, client.SessionID)
				}
			}
			connections := 0
			if ok {
				connections = len(room)
			}
			h.mu.Unlock()

			metrics.ConnectedClients.Dec()
			h.logger.Info("client disconnected",
				zap.String("sessionID", client.SessionID),
				zap.String("playerID", client.PlayerID),
				zap.Int("connections", connections))
			if h.handler != nil {
				go h.handler.PlayerDisconnected(context.Background(), client.SessionID, connections)
			}

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error("failed to marshal message", zap.Error(err))
				continue
			}

			h.mu.RLock()
			room := h.sessions[message.SessionID]
			for playerID, client := range room {
				if message.Target != "" && message.Target != playerID {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Очередь клиента переполнена: теряем только его,
					// остальные соединения сессии получают событие.
					h.logger.Warn("client send queue full, dropping",
						zap.String("sessionID", message.SessionID),
						zap.String("playerID", playerID))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastToSession отправляет событие всем живым соединениям сессии.
// Ошибка отправки одному клиенту не поднимается к вызывающему.
func (h *Hub) BroadcastToSession(sessionID, event string, payload interface{}) {
	h.broadcast <- Message{SessionID: sessionID, Type: event, Payload: payload}
}

// SendToPlayer отправляет событие одному игроку сессии.
func (h *Hub) SendToPlayer(sessionID, playerID, event string, payload interface{}) {
	h.broadcast <- Message{SessionID: sessionID, Target: playerID, Type: event, Payload: payload}
}

// ConnectedCount возвращает число живых соединений сессии.
func (h *Hub) ConnectedCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
