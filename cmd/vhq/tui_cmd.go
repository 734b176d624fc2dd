package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vhq-lag/vhq/internal/client"
	"github.com/vhq-lag/vhq/internal/config"
	"github.com/vhq-lag/vhq/internal/poller"
	"github.com/vhq-lag/vhq/internal/store"
	"github.com/vhq-lag/vhq/internal/todo"
	"github.com/vhq-lag/vhq/internal/tui"
)

var noDaemon bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive console",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().BoolVar(&noDaemon, "no-daemon", false, "Do not start the host daemon when it is not running")
}

func runTUI(cmd *cobra.Command, args []string) error {
	host := hostClient()

	// 1. Check if Daemon is running
	if !noDaemon && !isDaemonRunning(host) {
		fmt.Println("⚡ vhq host not running. Starting background daemon...")
		if err := startDaemon(host); err != nil {
			// The console still works offline; the agents view shows the error.
			fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		}
	}

	// 2. Keep log output off the terminal the TUI owns
	logFile, err := tea.LogToFile(cfg.LogFile, "vhq")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	// 3. Open the local todo list
	s, err := store.New(cfg.Todo.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := todo.Open(s, cfg.Todo.StorageKey)
	if err != nil {
		return err
	}

	// 4. Launch TUI
	p := poller.New(host, poller.Config{
		Interval:       cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
	})
	app := tui.New(list, p, host)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning(host *client.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	ok, err := host.CheckHealth(ctx)
	return err == nil && ok
}

func startDaemon(host *client.Client) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	// Start "vhq daemon" in background with the same config
	cmd := exec.Command(exe, "daemon", "--config", configPath)
	// Detach process so it survives TUI exit
	configureDaemonProc(cmd)

	logPath := filepath.Join(config.Dir(), "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return err
	}
	out, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return err
	}

	// Wait for it to become ready
	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		if isDaemonRunning(host) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s (see %s)", host.BaseURL(), logPath)
}
