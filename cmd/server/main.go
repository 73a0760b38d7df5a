package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bookclub-notify/config"
	configPostgre "bookclub-notify/config/postgre"
	configRedis "bookclub-notify/config/redis"
	"bookclub-notify/internal/delivery"
	"bookclub-notify/internal/httpserver"
	"bookclub-notify/internal/ingest"
	"bookclub-notify/internal/metrics"
	"bookclub-notify/internal/producer"
	"bookclub-notify/internal/push"
	"bookclub-notify/internal/queue"
	"bookclub-notify/internal/registry"
	"bookclub-notify/internal/repository/postgre"
	"bookclub-notify/internal/ws"
	"bookclub-notify/pkg/discord"
	"bookclub-notify/pkg/jwt"
	"bookclub-notify/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Failed to load config:", err)
		os.Exit(1)
	}

	logger := log.Init(log.ZapConfig{
		Level:        cfg.Logger.Level,
		Mode:         cfg.Logger.Mode,
		Encoding:     cfg.Logger.Encoding,
		ColorEnabled: cfg.Logger.ColorEnabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting book club notification service...")

	// Discord ops alerts (optional).
	var alerter *discord.Alerter
	if cfg.Discord.WebhookID != "" && cfg.Discord.WebhookToken != "" {
		alerter, err = discord.New(logger, cfg.Discord.WebhookID, cfg.Discord.WebhookToken)
		if err != nil {
			logger.Warnf(ctx, "Discord webhook not configured (optional): %v", err)
		} else {
			logger.Info(ctx, "Discord ops alerter initialized")
		}
	}

	// PostgreSQL - notification records and device tokens.
	db, err := configPostgre.Connect(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatalf(ctx, "Failed to connect to PostgreSQL: %v", err)
	}
	defer configPostgre.Disconnect()
	logger.Info(ctx, "PostgreSQL connected")

	// Redis - pub/sub ingest of business events.
	redisClient, err := configRedis.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer configRedis.Disconnect()
	logger.Info(ctx, "Redis connected")

	// FCM push provider.
	fcmClient, err := push.NewFirebaseClient(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize FCM client: %v", err)
	}
	logger.Info(ctx, "FCM messaging client initialized")

	// Metrics.
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	// Delivery task queue.
	q := queue.New(cfg.Delivery.QueueCapacity, logger, queue.Hooks{
		OnDropped: func() { m.QueueDropped.Inc() },
		OnDepth:   func(depth int) { m.QueueDepth.Set(float64(depth)) },
	})

	// Connection registry with process-wide heartbeat.
	reg := registry.New(logger, registry.Options{
		SendBuffer:        cfg.WebSocket.SendBufferSize,
		MaxConnections:    cfg.WebSocket.MaxConnections,
		HeartbeatInterval: cfg.Delivery.HeartbeatInterval,
	}, registry.Hooks{
		OnConnect:    func() { m.LiveConnections.Inc() },
		OnDisconnect: func() { m.LiveConnections.Dec() },
		OnSent:       func() { m.LiveSent.Inc() },
		OnFailed:     func() { m.LiveFailed.Inc() },
	})

	rooms := registry.NewRooms(logger, registry.RoomsOptions{
		Capacity:          cfg.Delivery.RoomCapacity,
		SendBuffer:        cfg.WebSocket.SendBufferSize,
		HeartbeatInterval: cfg.Delivery.HeartbeatInterval,
	})

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go reg.Run(heartbeatCtx)
	go rooms.Run(heartbeatCtx)
	logger.Infof(ctx, "Heartbeat started (interval %s)", cfg.Delivery.HeartbeatInterval)

	// Stores and push gateway.
	notificationRepo := postgre.NewNotification(logger, db)
	tokenRepo := postgre.NewDeviceToken(logger, db)

	gateway := push.NewGateway(fcmClient, tokenRepo, cfg.Delivery.PushChunkSize, logger, push.Hooks{
		OnSent:   func(n int) { m.PushSent.Add(float64(n)) },
		OnFailed: func(n int) { m.PushFailed.Add(float64(n)) },
		OnPruned: func(n int) { m.TokensPruned.Add(float64(n)) },
	})

	// Producer boundary.
	notifier := producer.New(notificationRepo, q, logger)

	// Delivery worker and shutdown coordinator.
	consumer := delivery.NewConsumer(q, reg, gateway, logger, delivery.Hooks{
		OnProcessed: func() { m.TasksProcessed.Inc() },
	})
	var coordAlerter delivery.Alerter
	if alerter != nil {
		coordAlerter = alerter
	}
	coordinator := delivery.NewCoordinator(q, consumer, cfg.Delivery.DrainTimeout, logger, coordAlerter, delivery.CoordinatorHooks{
		OnAbandoned: func(n int) { m.TasksAbandoned.Add(float64(n)) },
	})
	coordinator.Start()
	logger.Info(ctx, "Delivery worker started")

	// Pub/sub ingest of business events.
	subscriber := ingest.NewSubscriber(redisClient, notifier, logger)
	if err := subscriber.Start(); err != nil {
		logger.Fatalf(ctx, "Failed to start event subscriber: %v", err)
	}
	logger.Info(ctx, "Event subscriber started")

	// HTTP surface.
	jwtValidator := jwt.NewValidator(jwt.Config{SecretKey: cfg.JWT.SecretKey})
	wsHandler := ws.NewHandler(reg, rooms, jwtValidator, ws.Config{
		WriteWait:       cfg.WebSocket.WriteWait,
		MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
	}, logger)

	srv, err := httpserver.New(logger, httpserver.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		Mode:      cfg.Server.Mode,
		WSHandler: wsHandler,
		Registry:  reg,
		Queue:     q,
		Gatherer:  promReg,
	})
	if err != nil {
		logger.Fatalf(ctx, "Failed to build HTTP server: %v", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Errorf(ctx, "HTTP server error: %v", err)
			stop()
		}
	}()
	logger.Infof(ctx, "Listening on %s:%d", cfg.Server.Host, cfg.Server.Port)

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Delivery.DrainTimeout+15*time.Second)
	defer cancel()

	// Stop intake first, then drain: no new subscriptions, no new events,
	// then best-effort delivery of the backlog while connections are alive.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(shutdownCtx, "Error shutting down HTTP server: %v", err)
	}
	if err := subscriber.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(shutdownCtx, "Error shutting down event subscriber: %v", err)
	}

	coordinator.Shutdown(shutdownCtx)

	stopHeartbeat()
	reg.CloseAll()
	rooms.CloseAll()

	if alerter != nil {
		alerter.Close()
	}

	logger.Info(context.Background(), "Notification service stopped")
}
