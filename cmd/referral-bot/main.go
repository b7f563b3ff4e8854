package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/referral-bot/api/swagger"
	"github.com/noah-isme/referral-bot/internal/bot"
	"github.com/noah-isme/referral-bot/internal/handler"
	"github.com/noah-isme/referral-bot/internal/middleware"
	"github.com/noah-isme/referral-bot/internal/models"
	"github.com/noah-isme/referral-bot/internal/repository"
	"github.com/noah-isme/referral-bot/internal/service"
	"github.com/noah-isme/referral-bot/pkg/cache"
	"github.com/noah-isme/referral-bot/pkg/config"
	"github.com/noah-isme/referral-bot/pkg/database"
	"github.com/noah-isme/referral-bot/pkg/export"
	"github.com/noah-isme/referral-bot/pkg/logger"
	corsmiddleware "github.com/noah-isme/referral-bot/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/referral-bot/pkg/middleware/requestid"
	"github.com/noah-isme/referral-bot/pkg/sheets"
)

// @title Referral Bot Ops API
// @version 1.0.0
// @description Read-only operations surface of the referral bot
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("referral bot stopped", zap.Error(err))
	}
	logr.Info("referral bot stopped")
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metrics := service.NewMetricsService()
	validate := validator.New()

	grid, err := sheets.NewGoogleGrid(ctx, cfg.Sheets)
	if err != nil {
		return err
	}
	store := repository.NewParticipantRepository(grid, logr, metrics)

	allocator, closeAllocator, err := newAllocator(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeAllocator()

	telegram, err := bot.NewTelegram(cfg.Telegram.Token, cfg.Telegram.Debug, cfg.Telegram.UpdateTimeout, logr)
	if err != nil {
		return err
	}

	participants := service.NewParticipantService(store, allocator, validate, logr)
	leads := service.NewLeadService(store, validate, logr)
	broadcasts := service.NewBroadcastService(store, telegram, metrics, cfg.Broadcast.Interval, logr)
	exports := service.NewExportService(store, logr, export.NewCSVExporter(export.WithBOM(), export.WithFormulaGuard()), export.NewPDFExporter(cfg.Export.PDFFontPath))
	auth := service.NewAuthService(validate, logr, service.AuthConfig{
		Username:          cfg.APIAuth.Username,
		PasswordHash:      cfg.APIAuth.PasswordHash,
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})

	runner := bot.NewBroadcastRunner(broadcasts, telegram, logr)
	runner.Start(ctx)
	defer runner.Stop()

	engine := bot.NewEngine(bot.EngineDeps{
		Participants: participants,
		Leads:        leads,
		Broadcasts:   runner,
		Messenger:    telegram,
		Observer:     metrics,
		AdminIDs:     cfg.Admin.IDs,
		Logger:       logr,
	})

	router := newRouter(cfg, logr, routerDeps{
		health:       handler.NewHealthHandler(store, cfg.Sheets.Timeout, logr),
		metrics:      handler.NewMetricsHandler(metrics),
		auth:         handler.NewAuthHandler(auth),
		participants: handler.NewParticipantHandler(participants, leads),
		exports:      handler.NewExportHandler(exports),
		validator:    auth,
		observer:     metrics,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("ops server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("ops server failed", zap.Error(err))
		}
	}()

	logr.Info("bot polling started", zap.Int("admins", len(cfg.Admin.IDs)), zap.String("allocator", cfg.Allocator.Kind))
	pollErr := telegram.Run(ctx, engine.Handle)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("ops server shutdown", zap.Error(err))
	}
	return pollErr
}

// newAllocator builds the participant id source selected by ID_ALLOCATOR.
func newAllocator(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.IDAllocator, func(), error) {
	switch cfg.Allocator.Kind {
	case config.AllocatorRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logr.Info("participant ids from redis", zap.String("host", cfg.Redis.Host))
		return repository.NewRedisSequence(client), func() { _ = client.Close() }, nil
	case config.AllocatorPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		seq := repository.NewPostgresSequence(db)
		if err := seq.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logr.Info("participant ids from postgres", zap.String("host", cfg.Database.Host))
		return seq, func() { _ = db.Close() }, nil
	default:
		return service.NewSerialAllocator(), func() {}, nil
	}
}

type tokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

type routerDeps struct {
	health       *handler.HealthHandler
	metrics      *handler.MetricsHandler
	auth         *handler.AuthHandler
	participants *handler.ParticipantHandler
	exports      *handler.ExportHandler
	validator    tokenValidator
	observer     *service.MetricsService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.observer))

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api/v1")
	api.POST("/auth/token", deps.auth.Token)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.validator))
	secured.GET("/participants", deps.participants.List)
	secured.GET("/participants/:id", deps.participants.Get)
	secured.GET("/participants/:id/leads", deps.participants.Leads)
	secured.GET("/leads/export", deps.exports.Leads)
	secured.GET("/metrics/snapshot", deps.metrics.Snapshot)

	return r
}
