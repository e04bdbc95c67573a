package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"capsule-server/internal/auth"
	"capsule-server/internal/bus"
	"capsule-server/internal/config"
	"capsule-server/internal/dispatch"
	"capsule-server/internal/presence"
	"capsule-server/internal/registry"
	"capsule-server/internal/server"
	"capsule-server/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)
	st := store.New()

	var (
		eventBus      bus.Bus
		presenceStore presence.Store
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		opt.DB = cfg.RedisDB
		client := redis.NewClient(opt)
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		eventBus = bus.NewRedis(client)
		presenceStore = presence.NewRedis(client, cfg.PresenceTTL)
		log.Printf("connected to redis at %s", cfg.RedisURL)
	} else {
		eventBus = bus.NewMemory()
		presenceStore = presence.NewMemory(cfg.PresenceTTL)
		log.Printf("no REDIS_URL configured, running single-process delivery")
	}

	reg := registry.New(eventBus, presenceStore, st)
	dispatcher := dispatch.New(eventBus)

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "capsule-server",
	}

	router := server.NewRouter(server.Deps{
		Store:       st,
		TokenConfig: tokenCfg,
		Registry:    reg,
		Dispatcher:  dispatcher,
		Presence:    presenceStore,
	})
	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}
