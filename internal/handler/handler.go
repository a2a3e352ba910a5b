package handler

import (
	"database/sql"
	"fmt"
	"time"
	"todo_tracker/internal/auth"
	"todo_tracker/internal/cache"
	"todo_tracker/internal/config"
	"todo_tracker/internal/middleware"
	"todo_tracker/internal/observability"
	"todo_tracker/internal/queue"
	"todo_tracker/internal/todo"
	"todo_tracker/internal/user"
	"todo_tracker/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rabbitmq/amqp091-go"
)

// SetupHandler initializes all dependencies and routes. redisClient and
// conn may be nil when Redis or RabbitMQ is disabled.
func SetupHandler(db *sql.DB, conn *amqp091.Connection, redisClient *redis.Client, cfg *config.Config) (*gin.Engine, error) {
	observability.InitMetrics()

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		cors.New(corsConfig(cfg.CORS)),
		middleware.PrometheusMiddleware(observability.GlobalMetrics),
	)

	// Initialize repositories
	userRepo := user.NewUserRepository()
	todoRepo := todo.NewTodoRepository()
	activityRepo := todo.NewActivityRepository()

	txRunner := utils.NewTxRunner(db)
	issuer := auth.NewIssuer(cfg.JWT)

	var todoCache todo.Cache
	if redisClient != nil {
		todoCache = cache.NewTodoCache(redisClient, cfg.Redis.CacheTTL)
	}

	var publisher todo.EventPublisher
	if conn != nil {
		p, err := queue.NewPublisher(conn, cfg.RabbitMQ.EventQueue)
		if err != nil {
			return nil, fmt.Errorf("setup event publisher: %w", err)
		}
		publisher = p
	}

	// Initialize services
	userService := user.NewUserService(userRepo, txRunner, issuer)
	todoService := todo.NewTodoService(todoRepo, activityRepo, userRepo, txRunner, todoCache, publisher, cfg.RabbitMQ.EventQueue)

	// Initialize controllers
	userController := user.NewUserController(userService)
	todoController := todo.NewTodoController(todoService)

	var limiter *rateLimiting
	if redisClient != nil && cfg.RateLimit.Enabled {
		limiter = &rateLimiting{
			client: redisClient,
			todos:  middleware.CustomRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate),
			auth:   middleware.ConservativeRateLimiter(),
		}
	}

	setupRoutes(r, userController, todoController, issuer, limiter)

	r.GET("/healthz", Health(buildChecks(db, redisClient, conn)...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}

type rateLimiting struct {
	client *redis.Client
	todos  *middleware.RateLimiterConfig
	auth   *middleware.RateLimiterConfig
}

// setupRoutes configures all application routes
func setupRoutes(r *gin.Engine, userCtrl *user.UserController, todoCtrl *todo.TodoController, tokens middleware.TokenValidator, limiter *rateLimiting) {
	// Public routes - Authentication
	authGroup := r.Group("/auth")
	if limiter != nil {
		authGroup.Use(middleware.RateLimiterMiddleware(limiter.client, limiter.auth, middleware.ClientIPKey))
	}
	{
		authGroup.POST("/register", userCtrl.Register)
		authGroup.POST("/login", userCtrl.Login)
		authGroup.POST("/refresh", userCtrl.RefreshToken)
	}

	// Protected routes
	todos := r.Group("/todos")
	todos.Use(middleware.AuthMiddleware(tokens))
	if limiter != nil {
		todos.Use(middleware.RateLimiterMiddleware(limiter.client, limiter.todos, middleware.UserKey))
	}
	todoCtrl.RegisterRoutes(todos)
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	return cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}
