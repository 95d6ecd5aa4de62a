package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/centrodecompra/catalog/handlers"
	"github.com/centrodecompra/catalog/internal/bootstrap"
	"github.com/centrodecompra/catalog/internal/config"
	"github.com/centrodecompra/catalog/internal/oidc"
	"github.com/centrodecompra/catalog/internal/tokens"
	"github.com/centrodecompra/catalog/internal/upload"
	"github.com/centrodecompra/catalog/pkg/logger"
	"github.com/centrodecompra/catalog/pkg/metrics"
	"github.com/centrodecompra/catalog/pkg/middleware"
)

func main() {
	// LOG_LEVEL may also come from .env, so re-init after config load
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: docstore=%s media=%s lock=%s redis=%v", cfg.DocStore.Backend, cfg.Media.Backend, cfg.Catalog.Lock, cfg.Redis.Host != "")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	store, closeStore, err := bootstrap.OpenDocStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("document store: %v", err)
	}
	defer closeStore()

	mediaStore, err := bootstrap.OpenMediaStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("media store: %v", err)
	}

	rdb := bootstrap.OpenRedis(ctx, cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	repo := bootstrap.NewRepository(cfg, store, bootstrap.NewLocker(cfg, rdb))
	orch := upload.New(repo, mediaStore, upload.Config{
		Folder:       cfg.Media.Folder,
		MaxFileBytes: cfg.Upload.MaxFileBytes,
		TempDir:      cfg.Upload.TempDir,
	})

	verifiers := middleware.AnyVerifier{tokens.NewVerifier(cfg.Auth.JWTSecret)}
	if cfg.Auth.OIDCIssuer != "" && cfg.Auth.OIDCClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifiers = append(verifiers, ver)
			logger.Infof("OIDC tokens from %s accepted", cfg.Auth.OIDCIssuer)
		}
	}
	auth := middleware.AuthMiddleware(verifiers)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.CORS(cfg.CORS.AllowedOrigins))
	r.MaxMultipartMemory = cfg.Upload.MaxFileBytes

	var loginLimit []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			loginLimit = append(loginLimit, middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			loginLimit = append(loginLimit, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	checks := map[string]handlers.ReadyCheck{
		"docstore": bootstrap.DocStoreReady(store, cfg.DocStore.Path),
	}
	if rdb != nil && (cfg.Catalog.Lock == "redis" || cfg.RateLimit.UseRedis) {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	handlers.RegisterHealth(r, checks)
	handlers.RegisterSwagger(r)

	api := r.Group("/api")
	handlers.NewAuthHandler(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Register(api, loginLimit...)
	handlers.NewProductHandler(repo, orch, cfg.Upload.MaxFileBytes).
		WithMutationTimeout(cfg.Catalog.MutationTimeout).
		Register(api, auth, cfg.Auth.ProtectReads)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("catalog API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
