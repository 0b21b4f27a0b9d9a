package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirphl/raiot-portal/app/handlers"
	applogger "github.com/amirphl/raiot-portal/app/logger"
	"github.com/amirphl/raiot-portal/app/middleware"
	"github.com/amirphl/raiot-portal/app/router"
	"github.com/amirphl/raiot-portal/app/scheduler"
	"github.com/amirphl/raiot-portal/app/services"
	businessflow "github.com/amirphl/raiot-portal/business_flow"
	"github.com/amirphl/raiot-portal/config"
	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the reconciliation scheduler",
	RunE:  runServe,
}

// Application represents the running server
type Application struct {
	router     *router.FiberRouter
	config     *config.Config
	server     *fiber.App
	components *components
	stopFuncs  []func()
}

// loadRuntime loads configuration and builds the process logger
func loadRuntime() (*config.Config, *log.Logger, io.Closer, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer, err := applogger.New(cfg.Logging, "")
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closer, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, logCloser, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logger.Printf("Starting RAIoT portal %s (%s)...", cfg.Deployment.Version, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer app.components.Close()

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		address := cfg.Server.Address()
		logger.Printf("Server starting on %s", address)
		errChan <- app.server.Listen(address)
	}()

	select {
	case <-sigChan:
		logger.Println("Shutting down gracefully...")
	case err := <-errChan:
		if err != nil {
			logger.Printf("Server stopped: %v", err)
		}
		app.stop()
		return err
	}

	app.stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Printf("Error during shutdown: %v", err)
	}

	logger.Println("Server stopped")
	return nil
}

func (a *Application) stop() {
	for _, fn := range a.stopFuncs {
		fn()
	}
	a.stopFuncs = nil
}

// initializeApplication wires repositories, flows, handlers and background workers
func initializeApplication(cfg *config.Config, logger *log.Logger) (*Application, error) {
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}

	var stopFuncs []func()
	if comps.redis != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), comps.redis, cfg.Cache.HealthCheckInterval, logger))
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		comps.Close()
		return nil, err
	}
	logger.Printf("Token verifier initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	profileFlow := businessflow.NewProfileFlow(comps.memberRepo, comps.auditRepo, comps.uniqueID, logger)
	exportFlow := businessflow.NewMemberExportFlow(comps.memberRepo)

	appRouter := router.NewFiberRouter(router.Handlers{
		Profile:        handlers.NewProfileHandler(profileFlow, logger),
		UniqueIDAdmin:  handlers.NewUniqueIDAdminHandler(comps.uniqueID, cfg.Scheduler.ReconcileBatchSize, logger),
		MemberExport:   handlers.NewMemberExportHandler(exportFlow, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(tokenService),
	}, cfg, logger)

	if cfg.Scheduler.ReconcileEnabled {
		sched := scheduler.NewReconcileScheduler(comps.uniqueID, logger, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileBatchSize)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
		logger.Printf("Reconcile scheduler started (every %s)", cfg.Scheduler.ReconcileInterval)
	}

	return &Application{
		router:     appRouter,
		config:     cfg,
		server:     appRouter.GetApp(),
		components: comps,
		stopFuncs:  stopFuncs,
	}, nil
}
