package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health reports liveness of the ledger database and the analytics cache.
// Postgres down means the service cannot serve anything, redis down means
// screens fall back to uncached queries, but both are reported and either
// failing flips the endpoint to 503 so orchestrators restart us.
func Health(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		ledgerDB := "up"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			ledgerDB = "down"
		}

		cache := "up"
		if rdb.Ping(ctx).Err() != nil {
			cache = "down"
		}

		status := http.StatusOK
		if ledgerDB == "down" || cache == "down" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":      status == http.StatusOK,
			"service": "carledger",
			"db":      ledgerDB,
			"redis":   cache,
		})
	}
}
