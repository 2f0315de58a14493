package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"AkuChat/controllers"
	"AkuChat/middleware"
	"AkuChat/pkg/cache"
	"AkuChat/pkg/catalog"
	"AkuChat/pkg/config"
	"AkuChat/pkg/database"
	svc "AkuChat/pkg/services"
	"AkuChat/routes"
)

// localStreamDelay paces the canned reply so clients see it arrive in pieces.
const localStreamDelay = 40 * time.Millisecond

func newResponder(cfg *config.Config) svc.Responder {
	local := svc.NewLocalResponder(localStreamDelay)
	if !cfg.IsGeminiEnabled {
		return local
	}
	gemini := svc.NewGeminiResponder(cfg.GeminiAPIKey, cfg.GeminiModel, true)
	return &svc.FallbackResponder{Primary: gemini, Secondary: local}
}

func main() {
	started := time.Now()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}
	cfg.LogSummary()

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("%v", err)
	}

	responder := newResponder(cfg)
	log.Printf("[main] responder=%s", responder.Name())

	turns := &controllers.Turns{
		DB:        db,
		Responder: responder,
		Cache:     cache.NewResponseCache(cfg.RedisURL, cfg.ChatCacheMaxItems),
		Guards: middleware.NewGuards(cfg.RateLimitWindow(), cfg.RateLimitCapacity,
			cfg.UserConcurrencyLimit, cfg.DuplicateWindow()),
		CacheTTL: cfg.ChatCacheTTL(),
	}

	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		Config:  cfg,
		Turns:   turns,
		Catalog: &controllers.CatalogHandler{Store: catalog.NewStore()},
		Started: started,
	})
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
