package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"kerotrack/internal/cache"
	"kerotrack/internal/config"
	"kerotrack/internal/consumer"
	"kerotrack/internal/logger"
	"kerotrack/internal/pricing"
	"kerotrack/internal/publisher"
	"kerotrack/internal/repository"
	"kerotrack/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "kerotrack")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting kerotrack",
		zap.Float64("tank_capacity_l", cfg.Tank.Capacity),
		zap.String("raw_topic", cfg.MQTT.RawTopic),
		zap.String("reading_topic", cfg.MQTT.ReadingTopic),
		zap.String("analysis_topic", cfg.MQTT.AnalysisTopic),
	)

	db, err := repository.NewPostgresDB(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	mqttClient, err := publisher.NewClient(&cfg.MQTT, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
	}
	defer mqttClient.Disconnect()

	readingsRepo := repository.NewReadingsRepository(db, zapLogger)
	analysisRepo := repository.NewAnalysisRepository(db, zapLogger)
	hddRepo := repository.NewHDDRepository(db, zapLogger)
	cacheManager := cache.NewManager(
		cache.NewRedisKVStore(redisClient),
		0, // latest reading never expires, only replaced
		time.Duration(cfg.Analysis.CacheTTL)*time.Second,
		zapLogger,
	)
	pub := publisher.NewPublisher(mqttClient, &cfg.MQTT, zapLogger)
	pricingClient := pricing.NewClient(&cfg.Pricing, zapLogger)

	svc, err := service.New(cfg, readingsRepo, analysisRepo, hddRepo, cacheManager, pub, pricingClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create service", zap.Error(err))
	}

	rawConsumer := consumer.NewConsumer(&cfg.MQTT, mqttClient, svc, zapLogger)
	if err := rawConsumer.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start consumer", zap.Error(err))
	}

	go func() {
		if err := svc.Start(ctx); err != nil {
			zapLogger.Fatal("Analysis loop failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	if err := rawConsumer.Stop(); err != nil {
		zapLogger.Error("Error stopping consumer", zap.Error(err))
	}
	svc.Stop()

	zapLogger.Info("Service stopped")
}
