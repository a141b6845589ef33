package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"kreatorboard/internal/usertoken"
	"kreatorboard/internal/util"
	"kreatorboard/pkg/storage"
	"kreatorboard/services/marketplace/internal/app"
	"kreatorboard/services/marketplace/internal/config"
	"kreatorboard/services/marketplace/internal/server"
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

	briefs, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.BriefsBucket, cfg.MinioUseSSL)
	if err != nil {
		util.Fatal("failed to init briefs bucket", "err", err)
	}
	mediaKits, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MediaKitsBucket, cfg.MinioUseSSL)
	if err != nil {
		util.Fatal("failed to init media kits bucket", "err", err)
	}
	logos, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.LogosBucket, cfg.MinioUseSSL)
	if err != nil {
		util.Fatal("failed to init logos bucket", "err", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Briefs:      briefs,
		MediaKits:   mediaKits,
		Logos:       logos,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	httpServer := server.New(server.Config{
		App:           appCore,
		TokenVerifier: tokenVerifier,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("marketplace server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
