package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/logger"
	"github.com/agenthands/strata/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
		cfg.ApplyEnv()
	}

	logger.Init(cfg.Env)
	defer logger.Sync()
	log := logger.Get()

	ctx := context.Background()
	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatal("failed to start", zap.Error(err))
	}
	defer srv.Graph.Close(ctx)

	if err := srv.Graph.BuildIndices(ctx); err != nil {
		log.Warn("index build failed", zap.Error(err))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	r := srv.SetupRouter()
	log.Info("listening", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
