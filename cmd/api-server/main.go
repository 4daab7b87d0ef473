// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leads-admin/internal/apiserver/auth"
	"leads-admin/internal/apiserver/server"
	"leads-admin/internal/config"
	"leads-admin/internal/shared/blob"
	"leads-admin/internal/shared/cache"
	rediscache "leads-admin/internal/shared/cache/redis"
	"leads-admin/internal/shared/storage/mongostore"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换 YAML 配置）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	// 初始化 MongoDB（用户/线索/文件元数据）
	store, err := mongostore.NewStore(cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	// 初始化 blob 存储（本地磁盘或 MinIO）
	blobs, err := newBlobStore(cfg)
	if err != nil {
		log.Fatalf("Failed to init blob storage: %v", err)
	}
	log.Printf("Blob storage ready [backend=%s]", cfg.Upload.Backend)

	// 初始化统计缓存（配置了 Redis 则用 Redis，否则进程内缓存）
	stats, err := newStatsCache(cfg)
	if err != nil {
		log.Fatalf("Failed to init stats cache: %v", err)
	}
	defer stats.Close()

	// 引导管理员账号（幂等，已存在则跳过）
	if err := auth.EnsureAdminUser(store, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	authCfg := auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		TokenTTL:      cfg.Auth.TokenTTL,
		SecureCookies: cfg.Env == config.EnvProduction,
	}
	h := server.NewHandler(store, blobs, stats, authCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// newBlobStore 按配置选择 blob 后端
func newBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.Upload.Backend {
	case "minio":
		s, err := blob.NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "", "local":
		return blob.NewLocalStore(cfg.Upload.Dir)
	default:
		return nil, fmt.Errorf("unknown upload backend: %q", cfg.Upload.Backend)
	}
}

// newStatsCache 按配置选择统计缓存后端
func newStatsCache(cfg *config.Config) (cache.StatsCache, error) {
	if cfg.Redis.URL == "" {
		return cache.NewMemoryCache(), nil
	}
	return rediscache.NewStoreFromURL(cfg.Redis.URL)
}
