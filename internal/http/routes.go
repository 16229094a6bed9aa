package http

import (
	"swapit/internal/config"
	"swapit/internal/http/handlers"
	"swapit/internal/http/middleware"
	"swapit/internal/service"
	"swapit/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the routes need. Results and Checks entries
// may be nil.
type Deps struct {
	Sessions *service.SessionService
	Hub      *ws.Hub
	Results  handlers.ResultReader
	Checks   map[string]handlers.Pinger
	Version  string
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps) {
	h := handlers.NewHandler(deps.Sessions, deps.Results)
	h.TelegramBotToken = cfg.TelegramBotToken
	h.InitDataMaxAge = cfg.InitDataMaxAge
	healthHandler := handlers.NewHealthHandler(deps.Checks, deps.Version)

	r.Use(middleware.RequestID(), middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.APIRateLimit(cfg.APIRateLimit, cfg.APIRateWindow))
	registerAPIRoutes(v1, h, cfg)

	// Legacy /api routes
	api := r.Group("/api")
	api.Use(middleware.APIRateLimit(cfg.APIRateLimit, cfg.APIRateWindow))
	api.GET("/health", healthHandler.Health)
	registerAPIRoutes(api, h, cfg)

	// WebSocket: session events and moves
	r.GET("/ws", ws.HandleWS(deps.Hub, deps.Sessions, cfg.AllowedOrigin))
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, cfg *config.Config) {
	games := api.Group("/games")
	{
		games.GET("", h.ListGames)
		games.POST("", h.CreateGame)
		games.POST("/clear", h.ClearGames)

		games.GET("/:id", h.GetGame)
		games.POST("/:id/join", h.JoinGame)
		// the acting player comes from the token issued on create/join
		games.POST("/:id/start", middleware.JWT(), h.StartGame)
		games.POST("/:id/leave", middleware.JWT(), h.LeaveGame)
		games.POST("/:id/name", middleware.JWT(), h.UpdateName)

		// per player, not per IP
		moveRL := middleware.MoveRateLimit(cfg.MoveRateLimit, cfg.MoveRateWindow)
		games.POST("/:id/move", middleware.JWT(), moveRL, h.SubmitMove)
	}

	api.GET("/players/:id/results", h.PlayerResults)
	api.GET("/themes", h.Themes)
}
