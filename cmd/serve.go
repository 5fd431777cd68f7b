package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"infoblox-sync/core/loader"
	"infoblox-sync/core/logger"
	"infoblox-sync/core/middleware/auth"
	"infoblox-sync/core/middleware/rayid"
	"infoblox-sync/feature/sync"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync HTTP API",
	Long:  `Starts the HTTP server exposing sync runs, plans and archived reports.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration and Logger
		a, err := loadApp()
		if err != nil {
			log.Fatalf("Failed to start: %v", err)
		}
		logg := a.logger
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 2. Connect both sides
		svc, err := a.syncService(context.Background())
		if err != nil {
			logg.Fatal("Failed to initialize sync service", zap.Error(err))
		}

		// 3. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ReadTimeout:           time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
			WriteTimeout:          time.Duration(a.cfg.Server.WriteTimeoutSeconds) * time.Second,
		})

		// 4. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(sync.NewFeatureFromService(svc))

		// Middleware Registration
		// RayID must be first to trace everything
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Liveness stays public
		app.Get("/healthz", sync.HandleHealth)

		app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey}))
		if a.cfg.Server.ApiKey == "" {
			logg.Warn("No API key configured, the API is unprotected")
		}

		// 5. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 6. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", a.cfg.Server.Port))
			if err := app.Listen(a.cfg.Server.Addr()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 7. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.ShutdownWithTimeout(30 * time.Second)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
