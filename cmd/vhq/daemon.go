package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vhq-lag/vhq/internal/agents"
	"github.com/vhq-lag/vhq/internal/audit"
	"github.com/vhq-lag/vhq/internal/controlplane"
	"github.com/vhq-lag/vhq/internal/scheduler"
	"github.com/vhq-lag/vhq/internal/store"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the vhq host daemon",
	Long:  `Starts the host daemon which runs the LAG agents and serves the invoke API.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting vhq daemon...")

	listen := cfg.Daemon.Listen
	if listenAddr != "" {
		listen = listenAddr
	}
	path := cfg.Daemon.DBPath
	if dbPath != "" {
		path = dbPath
	}

	// Initialize store
	s, err := store.New(path)
	if err != nil {
		return err
	}

	// Initialize components
	settings := agents.DefaultSettings()
	settings.OllamaURL = cfg.Daemon.OllamaURL
	settings.MaxConcurrentTasks = cfg.Daemon.MaxConcurrentTasks
	settings.TaskTimeout = cfg.Daemon.TaskTimeout
	registry := agents.NewRegistry(settings)

	pdr := audit.NewPDRWriter(s)
	probe := controlplane.NewHostProbe(filepath.Dir(path))
	metrics := controlplane.NewMetrics()

	// Create service and server
	service := controlplane.NewService(s, pdr, registry, agents.NewOllama(cfg.Daemon.OllamaURL), probe)
	server := controlplane.NewServer(service, s, metrics, listen)

	// Create and start scheduler
	sched := scheduler.New(s, pdr, registry, &scheduler.Config{
		MaxConcurrent:  cfg.Daemon.MaxConcurrentTasks,
		WorkerDuration: cfg.Daemon.WorkerDuration,
		TaskTimeout:    cfg.Daemon.TaskTimeout,
	})
	sched.SetObserver(metrics)

	// Wire scheduler to server for /workers endpoint
	server.SetScheduler(sched)

	sched.Start()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			sched.Stop()
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping scheduler...")
	sched.Stop()

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
