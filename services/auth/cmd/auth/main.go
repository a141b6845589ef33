package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"kreatorboard/internal/util"
	"kreatorboard/services/auth/internal/app"
	"kreatorboard/services/auth/internal/config"
	"kreatorboard/services/auth/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseDuration("sessionTTL", cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	refreshTTL, err := config.ParseDuration("refreshTTL", cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("failed to parse refresh TTL: %v", err)
	}
	jwtLeeway, err := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse JWT leeway: %v", err)
	}
	verifyKeys, err := config.ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys)
	if err != nil {
		log.Fatalf("failed to parse verify public keys: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		DatabaseURL:         cfg.DatabaseURL,
		RedisAddr:           cfg.RedisAddr,
		RedisPassword:       cfg.RedisPassword,
		SessionTTL:          sessionTTL,
		RefreshTTL:          refreshTTL,
		JWTPrivateKeyPath:   cfg.JWTPrivateKeyPath,
		JWTPublicKeyPath:    cfg.JWTPublicKeyPath,
		JWTKeyID:            cfg.JWTKeyID,
		JWTVerifyPublicKeys: verifyKeys,
		JWTIssuer:           cfg.JWTIssuer,
		JWTAudience:         cfg.JWTAudience,
		JWTLeeway:           jwtLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App: appCore,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("auth server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
