package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"AkuChat/controllers"
	"AkuChat/middleware"
	"AkuChat/pkg/config"

	authRoutes "AkuChat/routes/auth"
	catalogRoutes "AkuChat/routes/catalog"
	chatRoutes "AkuChat/routes/chat"
	healthRoutes "AkuChat/routes/health"
	profileRoutes "AkuChat/routes/profile"
	websocketRoutes "AkuChat/routes/websocket"
)

type Deps struct {
	Config  *config.Config
	Turns   *controllers.Turns
	Catalog *controllers.CatalogHandler
	Started time.Time
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	healthRoutes.Register(r, d.Started, cfg.AppEnv)
	catalogRoutes.Register(r, d.Catalog)
	websocketRoutes.Register(r, cfg.JWTSecret, d.Turns)
	authRoutes.RegisterPublic(r, d.Turns.DB, cfg.JWTSecret, cfg.TokenTTL)

	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret, false))
	authRoutes.RegisterProtected(protected)
	profileRoutes.Register(protected, d.Turns.DB)
	chatRoutes.Register(protected, d.Turns, cfg.HistoryPageSize, cfg.HistoryMaxPageSize)
}
