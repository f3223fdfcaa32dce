package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"council-server/internal/models"
	"council-server/internal/service"
)

// Handler - REST-слой над игровыми сервисами. Вся игровая логика живет в
// сервисах; здесь только парсинг запросов и маппинг ошибок на статусы.
type Handler struct {
	games      *service.GameService
	outcomes   *service.OutcomeService
	incentives *service.IncentiveService
	logger     *zap.Logger
}

// NewHandler создает HTTP-обработчик.
func NewHandler(
	games *service.GameService,
	outcomes *service.OutcomeService,
	incentives *service.IncentiveService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		games:      games,
		outcomes:   outcomes,
		incentives: incentives,
		logger:     logger.Named("HTTPHandler"),
	}
}

type createGameRequest struct {
	SessionID string `json:"session_id"`
	HostID    string `json:"host_id" binding:"required"`
}

// CreateGame обрабатывает POST /api/games.
func (h *Handler) CreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host_id is required"})
		return
	}

	session, err := h.games.CreateGame(c.Request.Context(), req.SessionID, req.HostID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

type joinGameRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role"`
}

// JoinGame обрабатывает POST /api/games/:session_id/join.
func (h *Handler) JoinGame(c *gin.Context) {
	var req joinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_id and name are required"})
		return
	}

	player, err := h.games.JoinGame(c.Request.Context(), c.Param("session_id"), req.PlayerID, req.Name, req.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

// GetGame обрабатывает GET /api/games/:session_id.
func (h *Handler) GetGame(c *gin.Context) {
	session, players, err := h.games.Session(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"players": players,
	})
}

type startGameRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

// StartGame обрабатывает POST /api/games/:session_id/start.
func (h *Handler) StartGame(c *gin.Context) {
	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_id is required"})
		return
	}

	if err := h.games.StartGame(c.Request.Context(), c.Param("session_id"), req.PlayerID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

type voteRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Option   string `json:"option" binding:"required"`
}

// Vote обрабатывает POST /api/games/:session_id/vote.
func (h *Handler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_id and option are required"})
		return
	}

	if err := h.games.Vote(c.Request.Context(), c.Param("session_id"), req.PlayerID, req.Option); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// ResolveOutcome обрабатывает POST /api/games/:session_id/outcome.
// Дублирующие и конкурирующие запросы получают один и тот же результат.
func (h *Handler) ResolveOutcome(c *gin.Context) {
	result, err := h.outcomes.ResolveOutcome(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type nextRoundRequest struct {
	EliminatePlayerID string `json:"eliminate_player_id"`
}

// NextRound обрабатывает POST /api/games/:session_id/next.
func (h *Handler) NextRound(c *gin.Context) {
	// Тело опционально: пустое тело означает раунд без исключения.
	var req nextRoundRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.games.NextRound(c.Request.Context(), c.Param("session_id"), req.EliminatePlayerID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "advanced"})
}

// GetIncentive обрабатывает GET /api/games/:session_id/incentive?player_id=...
// Стимул раунда лениво создается при первом обращении; payload уходит
// только целевому игроку, всем остальным - пустой ответ 200.
func (h *Handler) GetIncentive(c *gin.Context) {
	playerID := c.Query("player_id")
	if playerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_id is required"})
		return
	}
	sessionID := c.Param("session_id")

	incentive, err := h.incentives.AssignIncentive(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	visible, err := h.incentives.IncentiveFor(c.Request.Context(), sessionID, incentive.Round, playerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if visible == nil {
		c.JSON(http.StatusOK, gin.H{"incentive": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incentive": visible})
}

// GetVotes обрабатывает GET /api/games/:session_id/votes?round=N (для
// отладки и клиентов-наблюдателей; варианты, не содержимое стимулов).
func (h *Handler) GetVotes(c *gin.Context) {
	session, _, err := h.games.Session(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	round := session.CurrentRound
	if raw := c.Query("round"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "round must be a positive integer"})
			return
		}
		round = parsed
	}

	votes, err := h.games.Votes(c.Request.Context(), session.SessionID, round)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "votes": votes})
}

// Health обрабатывает GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError переводит доменные ошибки в HTTP-статусы. Внутренние ошибки
// не протекают в тело ответа.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrPlayerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrSessionFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrAlreadyVoted), errors.Is(err, models.ErrVotingInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrSessionInactive), errors.Is(err, models.ErrNoScenario),
		errors.Is(err, models.ErrVotingClosed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotHost):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.logger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
