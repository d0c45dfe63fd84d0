package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmoussa/egx-quant/internal/api"
	"github.com/hmoussa/egx-quant/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server for the dashboard.

Endpoints:
  GET  /health                    - Health check
  GET  /api/predictions/dates     - Dates with stored sets
  GET  /api/predictions/latest    - Most recent ranked set
  GET  /api/predictions/{date}    - Ranked set for a date
  POST /api/optimize/run          - Launch an optimization sweep
  GET  /api/optimize/status       - Sweep progress for polling
  GET  /api/optimize/result       - Last completed sweep

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8089`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default: config PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	app, err := initApp(true)
	if err != nil {
		return err
	}
	defer app.close()

	if apiPort != "" {
		app.cfg.Port = apiPort
	}

	log := app.log
	log.WithFields(map[string]interface{}{
		"port": app.cfg.Port,
		"env":  app.cfg.Env,
	}).Info("Initializing API server")

	windows, err := loadWindows(app, "")
	if err != nil {
		return err
	}

	// Handlers
	predictions := handlers.NewPredictionHandler(app.store, log)
	optimize := handlers.NewOptimizeHandler(app.newSweep(windows), log)

	// Router and server
	router := api.NewRouter(predictions, optimize, log)
	server := api.New(app.cfg, log, router)

	// Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\nServer running on http://localhost:%s\n", app.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
