package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Check is one dependency pinged by /healthz.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

func buildChecks(db *sql.DB, redisClient *redis.Client, conn *amqp091.Connection) []Check {
	checks := []Check{{Name: "postgres", Ping: db.PingContext}}

	if redisClient != nil {
		checks = append(checks, Check{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	if conn != nil {
		checks = append(checks, Check{Name: "rabbitmq", Ping: func(ctx context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}})
	}

	return checks
}

// Health reports 200 when every check passes and 503 otherwise.
func Health(checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				logrus.WithError(err).WithField("dependency", check.Name).Warn("Health check failed")
				results[check.Name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[check.Name] = "up"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
