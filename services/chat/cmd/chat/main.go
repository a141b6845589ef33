package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"kreatorboard/internal/usertoken"
	"kreatorboard/internal/util"
	"kreatorboard/pkg/bus"
	"kreatorboard/services/chat/internal/app"
	"kreatorboard/services/chat/internal/config"
	"kreatorboard/services/chat/internal/server"
	"kreatorboard/services/chat/internal/ws"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		util.Fatal("failed to parse jwt leeway", "err", err)
	}
	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		Leeway:     jwtLeeway,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		util.Fatal("failed to init jwks verifier", "err", err)
	}

	eventBus, err := bus.NewRedisBus(bus.RedisBusConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Channel:  cfg.BusChannel,
	})
	if err != nil {
		util.Fatal("failed to init event bus", "err", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Bus:         eventBus,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Subscribe(ctx, hub.Deliver)

	httpServer := server.New(server.Config{
		App:            appCore,
		Hub:            hub,
		TokenVerifier:  tokenVerifier,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	slog.Info("chat server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
