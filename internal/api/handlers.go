package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dexwatch/internal/market"
	"dexwatch/internal/security"
)

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	dbStatus := "connected"
	if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "disconnected"
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "unhealthy"
	}

	response := gin.H{
		"status":   status,
		"database": dbStatus,
		"redis":    redisStatus,
	}

	if status == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// todayReport serves the same data as the chat trigger, for dashboards.
func (s *Server) todayReport(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	entries, err := s.activity.TodaySummary(ctx)
	if err != nil {
		s.log.Warn("today_report_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "internal_error",
				"message": "failed to build report",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) lookupAddress(c *gin.Context) {
	address := strings.TrimSpace(c.Param("address"))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "invalid_parameter",
				"message": "address is required",
			},
		})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	rec, err := s.markets.LookupByAddress(ctx, address)
	if err != nil {
		s.respondLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, recordResponse(rec))
}

func (s *Server) lookupSymbol(c *gin.Context) {
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "invalid_parameter",
				"message": "symbol is required",
			},
		})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	rec, err := s.markets.LookupBySymbol(ctx, symbol)
	if err != nil {
		s.respondLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, recordResponse(rec))
}

func (s *Server) userActivity(c *gin.Context) {
	userID := c.Param("user_id")
	if _, err := security.ParseSnowflake(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "invalid_parameter",
				"message": "user_id must be a snowflake",
			},
		})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	entries, err := s.activity.UserActivity(ctx, userID, limit)
	if err != nil {
		s.log.Warn("user_activity_failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "internal_error",
				"message": "failed to fetch activity",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) logoStatus(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	pending, err := s.logos.PendingCount(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "internal_error",
				"message": "failed to count pending logos",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

func (s *Server) retryLogos(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	processed := s.logos.RunRetryCycle(ctx)
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

func (s *Server) respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, market.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "not_found",
				"message": "token not found",
			},
		})
		return
	}

	s.log.Warn("lookup_failed", "error", err)
	c.JSON(http.StatusBadGateway, gin.H{
		"error": gin.H{
			"code":    "upstream_error",
			"message": "lookup failed",
		},
	})
}

// recordResponse flattens a TokenRecord for JSON; nil pointers marshal as
// null, which is the API's unknown marker.
func recordResponse(rec *market.TokenRecord) gin.H {
	return gin.H{
		"name":               rec.Name,
		"symbol":             rec.Symbol,
		"address":            rec.Address,
		"price_usd":          rec.PriceUSD,
		"volume_24h":         rec.Volume24h,
		"liquidity_usd":      rec.LiquidityUSD,
		"base_supply":        rec.BaseSupply,
		"change_5m":          rec.Change5m,
		"change_1h":          rec.Change1h,
		"change_6h":          rec.Change6h,
		"change_24h":         rec.Change24h,
		"change_7d":          rec.Change7d,
		"pair_created_at":    rec.PairCreatedAt,
		"socials":            rec.Socials,
		"url":                rec.URL,
		"image_url":          rec.ImageURL,
		"market_cap_rank":    rec.MarketCapRank,
		"total_supply":       rec.TotalSupply,
		"circulating_supply": rec.CirculatingSupply,
		"source":             rec.Source,
	}
}
