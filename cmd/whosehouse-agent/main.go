package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"whosehouse/internal/agent"
	"whosehouse/internal/config"
	"whosehouse/internal/logger"
)

func main() {
	// 后端URL/Key缺失时拒绝启动
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "whosehouse-agent")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting whosehouse-agent",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("mqtt_broker", cfg.MQTT.Broker),
	)

	a, err := agent.NewAgent(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create agent", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	if err := a.Stop(ctx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}
}
