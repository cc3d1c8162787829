package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/response"
)

const healthCheckTimeout = 2 * time.Second

// SystemHandler reports process health: backing store reachability and
// the depth of the Redis worker queues.
type SystemHandler struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbOK := h.pool.Ping(ctx) == nil
	redisOK := h.rdb.Ping(ctx).Err() == nil

	body := gin.H{
		"status":   "ok",
		"postgres": statusWord(dbOK),
		"redis":    statusWord(redisOK),
	}

	if redisOK {
		pipe := h.rdb.Pipeline()
		answersCmd := pipe.LLen(ctx, config.WorkerKey.PersistAnswersQueue)
		integrityCmd := pipe.LLen(ctx, config.WorkerKey.PersistIntegrityQueue)
		sealCmd := pipe.LLen(ctx, config.WorkerKey.SealFallbackQueue)
		if _, err := pipe.Exec(ctx); err == nil {
			body["queues"] = gin.H{
				"persist_answers":   answersCmd.Val(),
				"persist_integrity": integrityCmd.Val(),
				"seal_fallback":     sealCmd.Val(),
			}
		}
	}

	if !dbOK || !redisOK {
		body["status"] = "degraded"
		h.log.Warn().Bool("postgres", dbOK).Bool("redis", redisOK).Msg("Health check degraded")
		response.Success(c, http.StatusServiceUnavailable, body)
		return
	}
	response.Success(c, http.StatusOK, body)
}

func statusWord(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}
