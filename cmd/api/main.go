package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"todo_tracker/internal/cache"
	"todo_tracker/internal/config"
	"todo_tracker/internal/db"
	"todo_tracker/internal/handler"
	"todo_tracker/internal/observability"
	"todo_tracker/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	observability.SetupLogging(cfg.LogLevel, cfg.AppEnv)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	database := db.Init(&cfg.DB)
	defer func() {
		if err := database.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close database connection")
		}
	}()

	migrateCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	err = db.Migrate(migrateCtx, database)
	cancel()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to migrate database")
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = cache.SetupRedis(&cfg.Redis)
		defer func() {
			if err := rdb.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close redis connection")
			}
		}()
	} else {
		logrus.Warn("Redis disabled: caching and rate limiting are off")
	}

	var conn *amqp.Connection
	if cfg.RabbitMQ.Enabled {
		conn = queue.SetupRabbitMQ(&cfg.RabbitMQ)
		defer func() {
			if err := conn.Close(); err != nil {
				logrus.WithError(err).Error("Failed to close RabbitMQ connection")
			}
		}()
	} else {
		logrus.Warn("RabbitMQ disabled: todo events will not be published")
	}

	r, err := handler.SetupHandler(database, conn, rdb, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up handler")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	logrus.Info("Server stopped")
}
