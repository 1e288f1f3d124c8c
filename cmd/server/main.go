package main

import (
	"context"

	"github.com/heartmatch/core/internal/app"
	"github.com/heartmatch/core/internal/cache"
	"github.com/heartmatch/core/internal/config"
	"github.com/heartmatch/core/internal/db"
	"github.com/heartmatch/core/internal/logger"
	"github.com/heartmatch/core/internal/server"
	"github.com/heartmatch/core/internal/service/chat"
	"github.com/heartmatch/core/internal/service/decide"
	"github.com/heartmatch/core/internal/service/discover"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log)

	// chat fan-out: one hub per instance, fed by the shared Redis subscriber
	hub := chat.NewHub(log)
	hub.StartRedisSubscriber(context.Background(), redisCache)

	registrars := []server.Registrar{
		discover.NewRegistrar(appCtx),
		decide.NewRegistrar(appCtx),
		chat.NewRegistrar(appCtx, hub),
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, server.HeaderResolver{}, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
