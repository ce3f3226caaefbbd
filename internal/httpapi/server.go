// Package httpapi exposes the ingestion engine over HTTP.
package httpapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/youtubingest/youtubingest-go/internal/cache"
	"github.com/youtubingest/youtubingest-go/internal/config"
	"github.com/youtubingest/youtubingest-go/internal/domain"
	"github.com/youtubingest/youtubingest-go/internal/util"
	"github.com/youtubingest/youtubingest-go/pkg/errors"
)

// ingester is the engine surface the server drives.
type ingester interface {
	Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.IngestResult, error)
}

// Server wires the HTTP surface: ingestion, health, stats, and cache
// administration.
type Server struct {
	cfg      config.ServerConfig
	engine   ingester
	stats    *domain.GlobalStats
	registry *cache.Registry
	breaker  *util.CircuitBreaker
	logger   *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(cfg config.ServerConfig, engine ingester, stats *domain.GlobalStats, registry *cache.Registry, breaker *util.CircuitBreaker, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		engine:   engine,
		stats:    stats,
		registry: registry,
		breaker:  breaker,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(s.corsConfig()))
	router.Use(s.rateLimit())

	router.POST("/ingest", s.handleIngest)
	router.GET("/healthz", s.handleHealth)
	router.GET("/stats", s.handleStats)
	router.POST("/admin/caches/clear", s.handleCacheClear)
	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.MaxAge = 12 * time.Hour
	if len(s.cfg.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	return cfg
}

// rateLimit enforces a per-client token bucket. RPS zero disables it.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.RateLimitRPS <= 0 {
			c.Next()
			return
		}
		if !s.limiterFor(c.ClientIP()).Allow() {
			s.writeError(c, errors.NewServiceUnavailable("rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RateLimitRPS), s.cfg.RateLimitBurst)
		s.limiters[ip] = l
	}
	return l
}

func (s *Server) handleIngest(c *gin.Context) {
	if s.cfg.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	}

	// Boundary defaults; explicit fields in the body override them.
	req := domain.IngestRequest{
		IncludeTranscript:  true,
		IncludeDescription: true,
		TranscriptInterval: domain.DefaultInterval,
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.NewInvalidInput("malformed request body").WithCause(err))
		return
	}

	result, err := s.engine.Ingest(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"requests": s.stats.Snapshot(),
		"caches":   s.registry.AllStats(),
		"breaker":  s.breaker.GetStatus(),
	})
}

func (s *Server) handleCacheClear(c *gin.Context) {
	counts := s.registry.ClearAll()
	s.logger.Info("caches cleared by request", zap.Any("evicted", counts))
	c.JSON(http.StatusOK, gin.H{"cleared": counts})
}

// Nginx convention for a client that closed the connection.
const statusClientClosedRequest = 499

// writeError renders the error taxonomy as a JSON body plus status
// code, with Retry-After set for transient failures. Cancellation is
// not part of the taxonomy; the client is gone, so no body is written.
func (s *Server) writeError(c *gin.Context, err error) {
	if stderrors.Is(err, context.Canceled) {
		c.Status(statusClientClosedRequest)
		return
	}
	ie, ok := errors.AsIngestError(err)
	if !ok {
		ie = errors.NewInternal("internal error").WithCause(err)
	}
	if ie.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(ie.RetryAfter))
	}
	if ie.StatusCode >= 500 {
		s.logger.Error("request failed", zap.String("code", ie.Code), zap.Error(ie))
	} else {
		s.logger.Warn("request rejected", zap.String("code", ie.Code), zap.Error(ie))
	}
	c.JSON(ie.StatusCode, domain.ErrorResponse{
		Code:       ie.Code,
		Message:    ie.Message,
		RetryAfter: ie.RetryAfter,
	})
}
