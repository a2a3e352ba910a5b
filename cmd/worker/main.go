package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"todo_tracker/internal/cache"
	"todo_tracker/internal/config"
	"todo_tracker/internal/db"
	"todo_tracker/internal/observability"
	"todo_tracker/internal/queue"
	"todo_tracker/internal/todo"
	"todo_tracker/internal/utils"
	"todo_tracker/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	observability.SetupLogging(cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database := db.Init(&cfg.DB)
	defer func() {
		if err := database.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close database connection")
		}
	}()

	if err := db.Migrate(ctx, database); err != nil {
		logrus.WithError(err).Fatal("Failed to migrate database")
	}

	conn := queue.SetupRabbitMQ(&cfg.RabbitMQ)
	defer func() {
		if err := conn.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close RabbitMQ connection")
		}
	}()

	var todoCache todo.Cache
	if cfg.Redis.Enabled {
		rdb := cache.SetupRedis(&cfg.Redis)
		defer rdb.Close()
		todoCache = cache.NewTodoCache(rdb, cfg.Redis.CacheTTL)
	}

	observability.InitMetrics()
	logrus.Info("Metrics initialized")

	metricsSrv := &http.Server{Addr: ":" + cfg.Worker.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		logrus.WithField("addr", metricsSrv.Addr).Info("Worker metrics server started")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start metrics server")
		}
	}()

	proc := worker.NewProcessor(todo.NewActivityRepository(), utils.NewTxRunner(database), todoCache)

	var wg sync.WaitGroup
	for i := 1; i <= cfg.Worker.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker.StartWorker(ctx, conn, proc, cfg.RabbitMQ.EventQueue, id)
		}(i)
	}

	<-ctx.Done()
	logrus.Info("Shutting down workers...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Failed to stop metrics server")
	}
	logrus.Info("Worker stopped")
}
