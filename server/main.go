package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harborhq/furlough/pkg/config"
	"github.com/harborhq/furlough/pkg/policy"
	"github.com/harborhq/furlough/pkg/ratelimit"
	"github.com/harborhq/furlough/pkg/telemetry"
)

var (
	configFile = flag.String("config", "furlough.yaml", "Config file path")
	listenAddr = flag.String("listen", "", "Listen address (overrides config)")
	Version    = "dev"
)

type Server struct {
	db          *gorm.DB
	logger      zerolog.Logger
	limiter     *ratelimit.Limiter
	leavePolicy *policy.Policy
	tokenHasher TokenHasher
	adminToken  string
	uploadDir   string
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	if err := cfg.Validate(); err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("invalid config")
	}

	logger := newLogger(cfg.Logging)
	logger.Info().Str("version", Version).Msg("Furlough server starting")

	ctx := context.Background()
	provider, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    "furlough-server",
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		LogSpans:       cfg.Tracing.LogSpans,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	if err := db.AutoMigrate(allModels()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	if _, err := os.Stat(cfg.PolicyFile); os.IsNotExist(err) {
		logger.Warn().Str("path", cfg.PolicyFile).Msg("policy file missing, using permissive defaults")
	}
	leavePolicy, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.PolicyFile).Msg("failed to load leave policy")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("failed to create upload dir")
	}

	limiter := ratelimit.New(
		policiesFromConfig(cfg.RateLimit, logger),
		time.Duration(cfg.RateLimit.SweepIntervalS)*time.Second,
		logger,
	)
	defer limiter.Stop()

	srv := &Server{
		db:          db,
		logger:      logger,
		limiter:     limiter,
		leavePolicy: leavePolicy,
		tokenHasher: NewTokenHasher([]byte(cfg.TokenSalt)),
		adminToken:  cfg.AdminToken,
		uploadDir:   cfg.UploadDir,
	}

	r := gin.New()
	r.Use(gin.Recovery(), withRequestContext(logger))
	r.GET("/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": Version})
	})
	srv.registerLeaveRoutes(r)
	srv.registerApprovalRoutes(r)
	srv.registerAdminRoutes(r)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Listen).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.JSON {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
