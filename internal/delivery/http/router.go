package http

import (
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"

	ws "council-server/internal/delivery/websocket"
)

// Метрики gin регистрируются в глобальном реестре Prometheus один раз на
// процесс, сколько бы роутеров ни собиралось (тесты собирают несколько).
var (
	promOnce sync.Once
	prom     *ginprometheus.Prometheus
)

// NewRouter собирает gin-роутер: REST API, WebSocket endpoint, метрики и
// health-check.
func NewRouter(handler *Handler, wsHandler *ws.Handler, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	promOnce.Do(func() {
		prom = ginprometheus.NewPrometheus("council")
	})
	prom.Use(router)

	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		games := api.Group("/games")
		{
			games.POST("", handler.CreateGame)
			games.GET("/:session_id", handler.GetGame)
			games.POST("/:session_id/join", handler.JoinGame)
			games.POST("/:session_id/start", handler.StartGame)
			games.POST("/:session_id/vote", handler.Vote)
			games.GET("/:session_id/votes", handler.GetVotes)
			games.POST("/:session_id/outcome", handler.ResolveOutcome)
			games.POST("/:session_id/next", handler.NextRound)
			games.GET("/:session_id/incentive", handler.GetIncentive)
		}
	}

	router.GET("/ws/game/:session_id", wsHandler.ServeWS)

	return router
}
