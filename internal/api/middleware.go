package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range s.cfg.CORSOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Key")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		s.log.Info("http_request",
			"method", method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", clientIP,
		)
	}
}

// rateLimitMiddleware is a redis sliding window per client+path. When redis
// is down it degrades to the in-process token-bucket limiter instead of
// letting everything through.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		path := c.Request.URL.Path

		var limit int64 = 60 // default: 60 req/min
		window := 1 * time.Minute

		// Lookup endpoints hit third-party providers; keep them tighter.
		if strings.HasPrefix(path, "/api/v1/lookup") {
			limit = 20
		} else if strings.HasPrefix(path, "/api/v1/admin") {
			limit = 10
		}

		now := time.Now().Unix()
		windowSeconds := int64(window.Seconds())
		key := fmt.Sprintf("ratelimit:sw:%s:%s", clientIP, path)

		ctx := c.Request.Context()

		oldest := now - windowSeconds
		_ = s.redis.RDB().ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", oldest)).Err()

		count, err := s.redis.RDB().ZCard(ctx, key).Result()
		if err != nil {
			s.log.Warn("rate_limit_error", "error", err)
			if !s.fallbackLimiter.Allow(clientIP) {
				c.JSON(http.StatusTooManyRequests, gin.H{
					"error": gin.H{
						"code":    "rate_limited",
						"message": "too many requests",
					},
				})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		if count >= limit {
			oldestReq, _ := s.redis.RDB().ZRangeWithScores(ctx, key, 0, 0).Result()
			var retryAfter int64 = windowSeconds
			if len(oldestReq) > 0 {
				retryAfter = windowSeconds - (now - int64(oldestReq[0].Score))
				if retryAfter < 0 {
					retryAfter = 0
				}
			}

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "too many requests",
				},
			})
			c.Abort()
			return
		}

		member := fmt.Sprintf("%d", now)
		_ = s.redis.RDB().ZAdd(ctx, key, redis.Z{
			Score:  float64(now),
			Member: member,
		}).Err()
		_ = s.redis.RDB().Expire(ctx, key, window).Err()

		c.Next()
	}
}

func (s *Server) inputValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		for _, values := range query {
			for i, value := range values {
				sanitized := sanitizeInput(value)
				if len(sanitized) > 500 {
					c.JSON(http.StatusBadRequest, gin.H{
						"error": gin.H{
							"code":    "invalid_parameter",
							"message": "parameter too long",
						},
					})
					c.Abort()
					return
				}
				values[i] = sanitized
			}
		}

		for i, param := range c.Params {
			if len(param.Value) > 100 {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": gin.H{
						"code":    "invalid_parameter",
						"message": "parameter too long",
					},
				})
				c.Abort()
				return
			}
			c.Params[i].Value = sanitizeInput(param.Value)
		}

		c.Next()
	}
}

// sanitizeInput strips control characters except common whitespace.
func sanitizeInput(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			result = append(result, r)
		}
	}
	return string(result)
}

func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(s.cfg.AdminSecretKey) == "" {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "config_error",
					"message": "ADMIN_SECRET_KEY not configured",
				},
			})
			c.Abort()
			return
		}

		adminKey := strings.TrimSpace(c.GetHeader("X-Admin-Key"))
		if adminKey == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(auth, "Bearer ") {
				adminKey = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if adminKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "missing admin key (use X-Admin-Key header)",
				},
			})
			c.Abort()
			return
		}

		// constant-time compare to avoid timing leaks
		if subtle.ConstantTimeCompare([]byte(adminKey), []byte(s.cfg.AdminSecretKey)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "invalid admin key",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
