package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"member-archive/internal/config"
	"member-archive/internal/redis"
	"member-archive/internal/scrape"
	"member-archive/internal/security"
	"member-archive/internal/store"
)

// Server exposes the member archive over HTTP. The redis client is optional:
// nil disables response caching and trigger throttling but no endpoint
// breaks. The orchestrator is optional too; without it the scrape trigger
// returns 503.
type Server struct {
	log     *slog.Logger
	store   *store.Store
	redis   *redis.Client
	orch    *scrape.Orchestrator
	cfg     config.Config
	router  *gin.Engine
	limiter *security.LimiterStore
}

func NewServer(log *slog.Logger, st *store.Store, redisClient *redis.Client, orch *scrape.Orchestrator, cfg config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		log:     log,
		store:   st,
		redis:   redisClient,
		orch:    orch,
		cfg:     cfg,
		router:  gin.New(),
		limiter: security.NewLimiterStore(rate.Limit(1), 60, 10*time.Minute),
	}

	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/stats", s.stats)
		v1.GET("/members/:group", s.membersByGroup)

		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.POST("/scrape", s.triggerScrape)
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
