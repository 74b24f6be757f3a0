package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"babywatch/internal/aggregate"
	"babywatch/internal/auth"
	"babywatch/internal/cache"
	"babywatch/internal/classifier"
	"babywatch/internal/config"
	"babywatch/internal/database"
	"babywatch/internal/dispatch"
	"babywatch/internal/httpapi"
	"babywatch/internal/logger"
	"babywatch/internal/metric"
	"babywatch/internal/mqttbroker"
	"babywatch/internal/redisx"
	"babywatch/internal/registry"
	"babywatch/internal/repository"
	"babywatch/internal/service"
	"babywatch/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "babywatch")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting babywatch service")

	// 3. 连接 PostgreSQL
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// 4. 连接 Redis
	redisClient := redisx.NewClient(&cfg.Redis)
	if err := redisx.Ping(context.Background(), redisClient); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisx.Close(redisClient)

	// 5. 运行指标
	metrics := metric.NewMetrics(prometheus.DefaultRegisterer)

	// 6. 实时连接层：注册表 + 事件分发
	connRegistry := registry.NewRegistry(log)
	dispatcher := dispatch.NewDispatcher(connRegistry, log, metrics, cfg.WS.SendTimeout)

	// 7. 存储与外部协作方
	samplesRepo := repository.NewPostgresSamplesRepository(db, log)
	audioStore, err := storage.NewLocalAudioStore(cfg.Upload.Dir, log)
	if err != nil {
		log.Fatal("Failed to initialize audio store", zap.Error(err))
	}
	audioClassifier := classifier.NewHTTPClassifier(cfg.Classifier.HTTPAddress, cfg.Classifier.Timeout, log)
	latestCache := cache.NewLatestCache(redisClient, log)
	tokenStore := auth.NewRedisTokenStore(redisClient, cfg.Auth.TokenTTL, log)

	// 8. 业务层：摄入管道 + 时间桶聚合
	pipeline := service.NewIngestionPipeline(samplesRepo, audioStore, audioClassifier, dispatcher, latestCache, metrics, log)
	aggregator := aggregate.NewEngine(samplesRepo, log)

	// 9. HTTP 路由
	healthHandler := httpapi.NewHealthHandler(pipeline, aggregator, samplesRepo, log)
	wsHandler := httpapi.NewWSHandler(connRegistry, tokenStore, latestCache, metrics, cfg.WS.SendTimeout, log)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes(healthHandler, tokenStore)
	router.RegisterWSRoutes(wsHandler)
	router.RegisterInfoRoutes()
	router.HandleHandler("/metrics", promhttp.Handler())

	// 10. MQTT 传感器接入（可选）
	var broker *mqttbroker.Broker
	if cfg.MQTT.Enabled {
		broker, err = mqttbroker.NewBroker(&cfg.MQTT, pipeline, log)
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		if err := broker.Start(); err != nil {
			log.Fatal("Failed to subscribe to sensor topic", zap.Error(err))
		}
	}

	// 11. 启动 HTTP 服务
	server := service.NewServer(cfg.HTTP.Addr, router, log)
	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// 12. 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("HTTP server error", zap.Error(err))
	}

	// 13. 优雅关闭：先停接入，再关连接，最后停 HTTP
	if broker != nil {
		broker.Stop()
	}
	connRegistry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", zap.Error(err))
	}

	log.Info("Service stopped")
}
