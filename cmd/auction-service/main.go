package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"sealed-auction/internal/api/handlers"
	"sealed-auction/internal/config"
	"sealed-auction/internal/domain"
	"sealed-auction/internal/infrastructure/memory"
	mysqlstore "sealed-auction/internal/infrastructure/mysql"
	redisinfra "sealed-auction/internal/infrastructure/redis"
	wshub "sealed-auction/internal/infrastructure/websocket"
	"sealed-auction/internal/services"
	"sealed-auction/pkg/logger"
)

func main() {
	log := logger.New()
	log.Info("Starting sealed-bid auction service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Store backend
	var store domain.AuctionStore
	switch cfg.Store.Backend {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			log.Error("Failed to open MySQL", "error", err)
			os.Exit(1)
		}
		defer func(db *sql.DB) {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}(db)

		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			log.Error("Failed to ping MySQL", "error", err)
			os.Exit(1)
		}

		s := mysqlstore.NewStore(db, cfg.Engine.MinDuration)
		if err := s.EnsureSchema(ctx); err != nil {
			log.Error("Failed to ensure schema", "error", err)
			os.Exit(1)
		}
		store = s
		log.Info("Using MySQL store")
	case "memory":
		store = memory.NewStore(cfg.Engine.MinDuration)
		log.Info("Using in-memory store")
	default:
		log.Error("Unknown store backend", "backend", cfg.Store.Backend)
		os.Exit(1)
	}

	// Event publishers: websocket hub always, redis when enabled.
	hub := wshub.NewHub(log)
	defer hub.Close()
	publishers := []domain.EventPublisher{hub}

	if cfg.Redis.Enabled {
		rdb := redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to Redis", "address", cfg.Redis.Address)
		publishers = append(publishers, redisinfra.NewEventPublisher(rdb))
	}

	clock := domain.SystemClock{}
	engine := services.NewEngine(store, clock, services.NewFanoutPublisher(publishers...), cfg.Engine.HideExpired, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","host":"${host}","method":"${method}","uri":"${uri}","user_agent":"${user_agent}","status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-Caller-ID",
		},
		MaxAge: 86400,
	}))

	auctionHandler := handlers.NewAuctionHandler(engine, log)
	api := e.Group("/api/v1")
	auctionHandler.Register(api)

	e.GET("/ws", hub.Handle)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "sealed-auction",
			"timestamp": time.Now().Format(time.RFC3339),
			"store":     cfg.Store.Backend,
		})
	})

	// Expiry reporter (observational only; settlement stays lazy).
	var reporter *services.ExpiryReporter
	if cfg.Reporter.Enabled {
		reporter = services.NewExpiryReporter(store, clock, cfg.Reporter.Interval, log)
		go func() {
			if err := reporter.Start(context.Background()); err != nil {
				log.Error("Failed to start expiry reporter", "error", err)
			}
		}()
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting HTTP server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if reporter != nil {
		if err := reporter.Stop(); err != nil {
			log.Error("Failed to stop expiry reporter", "error", err)
		}
	}

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}
