package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/config"
	"github.com/xxxsen/ragchat/internal/db"
	"github.com/xxxsen/ragchat/internal/generation"
	"github.com/xxxsen/ragchat/internal/handler"
	"github.com/xxxsen/ragchat/internal/job"
	"github.com/xxxsen/ragchat/internal/middleware"
	"github.com/xxxsen/ragchat/internal/repo"
	"github.com/xxxsen/ragchat/internal/schedule"
	"github.com/xxxsen/ragchat/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragchat",
		Short: "ragchat backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragchat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("generation_base_url", cfg.Generation.BaseURL),
	)

	chatRepo := repo.NewChatRepo(database)
	turnRepo := repo.NewTurnRepo(database)
	sourceRepo := repo.NewSourceRepo(database)
	chunkRepo := repo.NewChunkRepo(database)
	turnSourceRepo := repo.NewTurnSourceRepo(database)
	turnChunkRepo := repo.NewTurnChunkRepo(database)
	usageRepo := repo.NewUsageRepo(database)
	pricingRepo := repo.NewPricingRepo(database)

	pricingService := service.NewPricingService(
		pricingRepo,
		cfg.Pricing.CacheSize,
		time.Duration(cfg.Pricing.CacheTTLSeconds)*time.Second,
	)
	sourceRegistry := service.NewSourceRegistry(sourceRepo)
	chunkRegistry := service.NewChunkRegistry(chunkRepo)
	associator := service.NewAssociator(turnSourceRepo, turnChunkRepo)
	usageService := service.NewUsageService(usageRepo, turnRepo, pricingService)
	ingestService := service.NewIngestService(turnRepo, sourceRegistry, chunkRegistry, associator, usageService)
	genClient := generation.NewClient(cfg.Generation.BaseURL, time.Duration(cfg.Generation.TimeoutSeconds)*time.Second)
	chatService := service.NewChatService(chatRepo, turnRepo, genClient, ingestService)
	adminService := service.NewAdminService(usageRepo, sourceRepo)

	deps := handler.RouterDeps{
		Chats:    handler.NewChatHandler(chatService),
		Messages: handler.NewMessageHandler(chatService),
		Admin:    handler.NewAdminHandler(adminService, pricingService),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewSourceCleanupJob(sourceRepo, time.Duration(cfg.Schedule.SourceCleanupMinHours)*time.Hour)
	if err := scheduler.AddJob(cleanup, cfg.Schedule.SourceCleanupSpec); err != nil {
		return fmt.Errorf("schedule cleanup job: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
