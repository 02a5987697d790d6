package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/wenwu/saas-platform/trialapp-service/internal/config"
	"github.com/wenwu/saas-platform/trialapp-service/internal/service"
)

// RateLimiter 基于令牌桶的内存速率限制器，每个 key 一个桶
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter 创建速率限制器
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// RateLimitMiddleware 速率限制中间件
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 使用用户 ID 或 IP 作为限制 key
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
	srv     *http.Server
}

func NewServer(cfg *config.Config, trialService *service.TrialService) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(RequestIDMiddleware())

	s := &Server{
		router:  router,
		handler: NewHandler(trialService),
		cfg:     cfg,
	}

	s.setupRoutes()
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "trialapp-service",
		})
	})

	// 刷新会访问试用服务，单独限流
	refreshLimiter := NewRateLimiter(rate.Limit(s.cfg.RateLimit.RequestsPerSecond), s.cfg.RateLimit.Burst)
	userLimiter := NewRateLimiter(rate.Limit(s.cfg.RateLimit.RequestsPerSecond*5), s.cfg.RateLimit.Burst*3)

	// User API - requires JWT authentication
	user := s.router.Group("/api/v1/my/trial")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(userLimiter))
	{
		user.POST("", RateLimitMiddleware(refreshLimiter), s.handler.AttachTrial) // 绑定试用会话
		user.GET("", s.handler.GetMyTrial)
		user.DELETE("", s.handler.DetachTrial)
		user.POST("/refresh", RateLimitMiddleware(refreshLimiter), s.handler.RefreshTrial)
		user.GET("/browse", s.handler.BrowseTrial)

		// Management endpoint
		user.GET("/settings", s.handler.GetSettings)
		user.PUT("/settings", s.handler.UpdateSettings)
		user.GET("/deployments", s.handler.ListDeployments)
		user.GET("/deployments/:id/log", s.handler.GetDeploymentLog)
		user.GET("/files", s.handler.ListFiles)
		user.GET("/files/*path", s.handler.ListFiles)
		user.GET("/logs", s.handler.GetRecentLogs)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the listen address
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Run serves until Shutdown is called
func (s *Server) Run() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
