package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lingo/internal/auth"
	"lingo/internal/config"
	"lingo/internal/coordinator"
	"lingo/internal/delivery"
	"lingo/internal/observability/logging"
	"lingo/internal/observability/metrics"
	"lingo/internal/observability/middleware"
	"lingo/internal/roster"
	"lingo/internal/session"
	"lingo/internal/store"
	"lingo/internal/translate"
	httpx "lingo/internal/transport/http"
	"lingo/internal/typing"
)

func main() {
	_ = godotenv.Load()

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "lingo",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	slog.SetDefault(logger)

	logger.Info("starting service")

	metrics.MustRegister("lingo")

	cfg := config.Load()

	gormCfg := &gorm.Config{}
	if !cfg.LogSQL {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}
	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}

	hasher := auth.NewPasswordHasher()
	tokens := auth.NewTokensHS256(auth.TokenConfig{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		AccessTTL:  cfg.AccessTTL,
		SigningKey: []byte(cfg.SigningKey),
	})
	authSvc := auth.NewService(st, hasher, tokens, cfg.DefaultLanguage)

	translator := translate.New(cfg.TranslateURL, cfg.TranslateTimeout)

	registry := session.NewRegistry(st.Users())
	pipeline := delivery.NewPipeline(st, registry, translator)
	redelivery := delivery.NewRedelivery(st, translator, cfg.RedeliveryWindow, cfg.RedeliveryGrace, cfg.RedeliveryBatch)
	typingRouter := typing.NewRouter(registry)
	rosterBuilder := roster.NewBuilder(st)

	coord := coordinator.New(authSvc, registry, pipeline, redelivery, typingRouter, rosterBuilder, st, translator)

	router := httpx.NewRouter(authSvc, coord, rosterBuilder, cfg.CORSOrigins)
	handler := middleware.WithRequestAndTrace(middleware.WithMetrics(router))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("listening", "addr", srv.Addr, "issuer", cfg.Issuer)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
