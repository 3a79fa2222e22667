package handler

import (
	"context"
	"net/http"
	"time"

	"giftpos/internal/infra"
	"giftpos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// DB and Redis are required; the cloud store is reported but never fails the
// check, since the terminal keeps working offline.
func Health(db *gorm.DB, rdb *redis.Client, cloud *infra.CloudClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		var dlq int64
		if rdb == nil || rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		} else {
			dlq, _ = worker.DLQLength(ctx, rdb, worker.QueuePush)
		}

		cloudStatus := gin.H{"configured": cloud.Configured()}
		if cb := cloud.Breaker(); cb != nil {
			cloudStatus["circuit"] = cb.Stats()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":           status == http.StatusOK,
			"db":           dbStatus,
			"redis":        redisStatus,
			"cloud":        cloudStatus,
			"push_dlq_len": dlq,
		})
	}
}
