package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"member-archive/internal/security"
)

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	status := "healthy"
	dbStatus := "connected"

	total, err := s.store.Count(ctx)
	if err != nil {
		dbStatus = "disconnected"
		status = "unhealthy"
	}

	redisStatus := "not_configured"
	if s.redis != nil {
		redisStatus = "connected"
		if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
			redisStatus = "disconnected"
		}
	}

	orchState := "not_configured"
	if s.orch != nil {
		orchState = s.orch.State().String()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             status,
		"database":           dbStatus,
		"redis":              redisStatus,
		"orchestrator_state": orchState,
		"total_members":      total,
	})
}

func (s *Server) stats(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	stats, err := s.store.GroupStats(ctx)
	if err != nil {
		s.log.Error("group_stats_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "storage_error", "message": "failed to read group stats"},
		})
		return
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "storage_error", "message": "failed to count members"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_members": total,
		"groups":        stats,
	})
}

func (s *Server) membersByGroup(c *gin.Context) {
	group, err := security.NormalizeTarget(c.Param("group"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_group", "message": "group must be a @username or t.me link"},
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_limit", "message": "limit must be in [1, 1000]"},
		})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	cacheKey := fmt.Sprintf("members:%s:%d", group, limit)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			return
		}
	}

	members, err := s.store.MembersByGroup(ctx, group, limit)
	if err != nil {
		s.log.Error("members_query_failed", "group", group, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "storage_error", "message": "failed to read members"},
		})
		return
	}

	body := gin.H{
		"source_group": group,
		"count":        len(members),
		"members":      members,
	}

	if s.redis != nil {
		if data, err := json.Marshal(body); err == nil {
			_ = s.redis.Set(ctx, cacheKey, string(data), 30*time.Second)
		}
	}

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, body)
}

type scrapeRequest struct {
	Target string `json:"target" binding:"required"`
	Max    int    `json:"max"`
}

func (s *Server) triggerScrape(c *gin.Context) {
	if s.orch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{"code": "no_orchestrator", "message": "scrape source not configured"},
		})
		return
	}

	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_body", "message": "target is required"},
		})
		return
	}

	group, err := security.NormalizeTarget(req.Target)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_group", "message": "target must be a @username or t.me link"},
		})
		return
	}

	if req.Max <= 0 {
		req.Max = 100
	}
	if req.Max > 10000 {
		req.Max = 10000
	}

	// one trigger per group per minute; redis-backed so it holds across
	// replicas, skipped when no redis is configured
	if s.redis != nil {
		throttleKey := fmt.Sprintf("scrape:trigger:%s", group)
		if n, err := s.redis.Increment(c.Request.Context(), throttleKey, time.Minute); err == nil && n > 1 {
			c.Header("Retry-After", "60")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "scrape_throttled", "message": "a scrape for this group ran within the last minute"},
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	batch, err := s.orch.Run(ctx, group, req.Max)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": gin.H{"code": "scrape_timeout", "message": "scrape cycle exceeded the request deadline"},
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{"code": "connect_failed", "message": "scrape source unreachable"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source_group": group,
		"scraped":      len(batch),
	})
}
