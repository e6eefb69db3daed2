package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fundambush/internal/api"
	"fundambush/internal/api/handlers"
	"fundambush/internal/scheduler"
	"fundambush/internal/scheduler/jobs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 API 服务",
	Long: `Starts the HTTP API server and the scheduled watchlist scan.

Endpoints:
  GET  /health               - Health check
  POST /api/analyze/{code}   - Run analysis for one stock
  GET  /api/report/{code}    - Fetch a stored report
  GET  /api/config           - Active strategy threshold and hash
  GET  /ws/scan              - Stream a watchlist scan over WebSocket

Example:
  go run ./cmd/ambush serve
  go run ./cmd/ambush serve --port 8085`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 服务端口")
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Config and logger
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("initializing server")

	// 2. Storage, cache, analyzer and service
	svc, core, cleanup, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	log.Info("connected to storage")

	// 3. Handlers and router
	analysisHandler := handlers.NewAnalysisHandler(svc, core, log)
	scanHandler := handlers.NewScanHandler(svc, cfg.Watchlist, log)
	router := api.NewRouter(analysisHandler, scanHandler, log)

	// 4. Scheduler with the nightly watchlist scan
	sched := scheduler.New(log)
	if len(cfg.Watchlist) > 0 {
		if err := sched.AddJob(jobs.NewWatchlistScanJob(svc, cfg, log)); err != nil {
			return fmt.Errorf("register scan job: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	} else {
		log.Warn("watchlist empty, scheduled scan disabled")
	}

	// 5. Server with graceful shutdown
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}
