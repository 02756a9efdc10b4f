package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Venue/internal/adapters/signal"
	"github.com/dkeye/Venue/internal/app/orch"
	"github.com/dkeye/Venue/internal/auth"
	"github.com/dkeye/Venue/internal/config"
	"github.com/dkeye/Venue/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sessionName = "VenueSessions"

type Deps struct {
	Orch    *orch.Orchestrator
	Auth    *auth.HostAuth
	Metrics *metrics.Metrics
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		// Sessions only matter with host login on; config requires a secret then.
		secret = uuid.NewString()
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(HostSessionMiddleware(deps.Auth))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       deps.Orch.Rooms.Count(),
			"connections": deps.Orch.Registry.Count(),
		})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{orch: deps.Orch, auth: deps.Auth}
	ctrl := signal.NewSignalWSController(deps.Orch, signal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	api := r.Group("/api")
	api.GET("/ws/room", func(c *gin.Context) {
		h.serveRoom(ctx, ctrl, c)
	})

	host := api.Group("/host")
	host.POST("/login", h.login)
	host.POST("/logout", h.logout)

	rooms := api.Group("/rooms")
	rooms.GET("", h.listRooms)
	rooms.GET("/:name", h.getRoom)
	rooms.GET("/:name/participants", h.participants)
	rooms.GET("/:name/speakers", h.speakers)
	rooms.DELETE("/:name", RequireHost(), h.evictRoom)

	return r
}
