package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"financial-matrix/config"
	"financial-matrix/handlers"
	"financial-matrix/middleware"
	"financial-matrix/services"
	"financial-matrix/store"
	"financial-matrix/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}
	slogger := utils.InitLogger(cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := openStore(cfg)
	if err != nil {
		log.Fatal("failed to open record store: ", err)
	}

	sessions, pruner := newSessionProvider(cfg, records)
	gate := services.NewAccessGate(sessions, records, cfg.GateCacheTTL)
	defer gate.Close()

	referrals := services.NewReferralService(sessions, records)
	referrals.IsAdminEmail = cfg.IsAdminEmail

	var assets services.AssetStorage
	if cfg.R2Enabled() {
		r2, err := utils.NewR2Storage(ctx, utils.R2Config{
			AccountID:       cfg.CloudflareAccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2BucketName,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client: ", err)
		}
		assets = r2
	} else {
		disk, err := utils.NewDiskStorage(cfg.UploadDir, cfg.PublicOrigin)
		if err != nil {
			log.Fatal("failed to ensure upload dir: ", err)
		}
		slogger.Warn("R2 not configured, storing uploads on local disk", "dir", cfg.UploadDir)
		assets = disk
	}

	catalog := services.NewCatalogService(records, records, records, assets)
	dashboard := services.NewDashboardService(sessions, records, records)

	sched, err := services.StartScheduler(gate, pruner, cfg.GateCacheTTL)
	if err != nil {
		log.Fatal("failed to start scheduler: ", err)
	}

	app := fiber.New(fiber.Config{
		AppName:   "Financial Matrix",
		BodyLimit: 512 * 1024 * 1024, // bot archives
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, Cache-Control",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Every request carries a session (possibly anonymous) and an access decision
	app.Use(middleware.SessionMiddleware(sessions, gate))

	handlers.SetupLandingRoutes(app)
	handlers.SetupAuthRoutes(app, sessions, referrals)
	handlers.SetupSessionStreamRoutes(app, sessions, gate)
	handlers.SetupCatalogRoutes(app, catalog)
	handlers.SetupDashboardRoutes(app, dashboard, cfg.PublicOrigin)
	handlers.SetupAdminRoutes(app, catalog)

	if !cfg.R2Enabled() {
		app.Static("/uploads", cfg.UploadDir)
	}

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			slogger.Error("server error", "error", err)
			stop()
		}
	}()

	slogger.Info("server running",
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"auth_provider", cfg.AuthProvider,
		"origins", cfg.AllowedOrigins,
	)

	<-ctx.Done()
	slogger.Info("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slogger.Error("server shutdown", "error", err)
	}
	if err := sched.Shutdown(); err != nil {
		slogger.Error("scheduler shutdown", "error", err)
	}
}

func openStore(cfg *config.Config) (store.RecordStore, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		utils.Component("store").Warn("using in-memory record store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}
	return store.OpenPostgres(cfg.DatabaseURL)
}

// newSessionProvider returns the configured provider and, for the self-hosted
// one, the pruner for its session rows.
func newSessionProvider(cfg *config.Config, records store.RecordStore) (services.SessionProvider, services.SessionPruner) {
	if cfg.AuthProvider == config.AuthProviderGoTrue {
		return services.NewAuthServiceClient(cfg.GoTrueURL, cfg.GoTrueAnonKey), nil
	}
	local := services.NewLocalSessionProvider(records, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	return local, local
}
