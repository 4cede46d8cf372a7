package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/arawak/tagsmith/internal/config"
	"github.com/arawak/tagsmith/internal/httpapi"
	"github.com/arawak/tagsmith/internal/icons"
	"github.com/arawak/tagsmith/internal/store"
	"github.com/arawak/tagsmith/internal/tag"
	"github.com/arawak/tagsmith/internal/tagcache"
	"github.com/arawak/tagsmith/migrations"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).With("version", version)
	for _, key := range cfg.Defaulted {
		logger.Warn("setting not provided, using built-in default", "env", key)
	}

	rules, synonyms, err := config.LoadFormatterRules(cfg.TagRulesFile)
	if err != nil {
		logger.Error("failed to load tag rules", "error", err)
		os.Exit(1)
	}

	var apiKeys *httpapi.APIKeyStore
	if cfg.AuthMode == config.AuthAPIKey {
		apiKeys, err = httpapi.LoadAPIKeys(cfg.APIKeysFile)
		if err != nil {
			logger.Error("failed to load api keys", "error", err)
			os.Exit(1)
		}
	}

	db, err := sqlx.Open("mysql", cfg.DBDSN)
	if err != nil {
		logger.Error("failed to open db", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := migrations.Up(cfg.DBDSN); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	storeSvc := store.New(db)
	cache := tagcache.New(storeSvc, cfg.IconCacheTTL, logger)
	defer cache.Stop()

	normalizer, err := tag.NewNormalizer(cache, synonyms)
	if err != nil {
		logger.Error("failed to build normalizer", "error", err)
		os.Exit(1)
	}
	formatter, err := tag.NewFormatter(rules, normalizer, cfg.MaxTagTitleLength)
	if err != nil {
		logger.Error("failed to build formatter", "error", err)
		os.Exit(1)
	}

	router := httpapi.NewRouter(cfg, httpapi.Deps{
		Store:     storeSvc,
		Formatter: formatter,
		Cache:     cache,
		Icons:     icons.NewManager(cfg.IconRoot),
		APIKeys:   apiKeys,
		Logger:    logger,
	})

	srv := &http.Server{Addr: cfg.Bind, Handler: router}
	go func() {
		logger.Info("server starting", "addr", cfg.Bind, "maxTagTitleLength", cfg.MaxTagTitleLength, "auth", cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
}
