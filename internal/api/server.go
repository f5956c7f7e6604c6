// Package api exposes the read-side HTTP surface: health, the daily report,
// direct market lookups, per-user activity, and admin endpoints for the
// logo archive.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dexwatch/internal/activitylog"
	"dexwatch/internal/config"
	"dexwatch/internal/db"
	"dexwatch/internal/market"
	"dexwatch/internal/redis"
	"dexwatch/internal/security"
	"dexwatch/internal/storage"
)

type Server struct {
	log      *slog.Logger
	db       *db.DB
	redis    *redis.Client
	cfg      config.Config
	router   *gin.Engine
	markets  *market.Service
	activity *activitylog.Store
	logos    *storage.LogoArchiver

	// fallbackLimiter covers requests when redis is unreachable so the API
	// is never completely unthrottled.
	fallbackLimiter *security.LimiterStore
}

func NewServer(
	log *slog.Logger,
	dbConn *db.DB,
	redisClient *redis.Client,
	cfg config.Config,
	markets *market.Service,
	activity *activitylog.Store,
	logos *storage.LogoArchiver,
) *Server {
	s := &Server{
		log:             log,
		db:              dbConn,
		redis:           redisClient,
		cfg:             cfg,
		router:          gin.New(),
		markets:         markets,
		activity:        activity,
		logos:           logos,
		fallbackLimiter: security.NewLimiterStore(2, 10, 10*time.Minute),
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.inputValidationMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/report/today", s.todayReport)
		v1.GET("/lookup/address/:address", s.lookupAddress)
		v1.GET("/lookup/symbol/:symbol", s.lookupSymbol)
		v1.GET("/activity/:user_id", s.userActivity)

		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.GET("/logos", s.logoStatus)
			admin.POST("/logos/retry", s.retryLogos)
		}
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
