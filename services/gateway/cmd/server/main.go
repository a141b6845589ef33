package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"kreatorboard/internal/usertoken"
	"kreatorboard/internal/util"
	"kreatorboard/services/gateway/internal/authclient"
	"kreatorboard/services/gateway/internal/chatclient"
	"kreatorboard/services/gateway/internal/config"
	"kreatorboard/services/gateway/internal/insights"
	"kreatorboard/services/gateway/internal/marketclient"
	"kreatorboard/services/gateway/internal/server"
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

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		util.Fatal("failed to parse trusted proxy cidrs", "err", err)
	}

	httpServer, err := server.New(server.Config{
		Auth:   authclient.NewClient(cfg.AuthServiceURL),
		Chat:   chatclient.NewClient(cfg.ChatServiceURL),
		Market: marketclient.NewClient(cfg.MarketServiceURL),
		Insights: insights.NewClient(insights.Config{
			APIBase:     cfg.TwitterAPIBase,
			BearerToken: cfg.TwitterBearerToken,
		}),
		TokenVerifier:             tokenVerifier,
		ChatServiceURL:            cfg.ChatServiceURL,
		RedisAddr:                 cfg.RedisAddr,
		RedisPassword:             cfg.RedisPassword,
		SignupRateLimitPerMinute:  cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:   cfg.LoginRateLimitPerMinute,
		RefreshRateLimitPerMinute: cfg.RefreshRateLimitPerMinute,
		InsightRateLimitPerMinute: cfg.InsightRateLimitPerMinute,
		MaxUploadBytes:            cfg.MaxUploadBytes,
		TrustedProxies:            trustedProxies,
	})
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	slog.Info("gateway listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
