package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vhq-lag/vhq/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "vhq",
	Short: "VHQ - console for the LAG agent host",
	Long:  `vhq runs the LAG agent host daemon, monitors its agents and keeps a personal todo list.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "Host API address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(todoCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if f := cmd.Flag("api"); f != nil && f.Changed {
		c.API = apiAddr
		if err := c.Validate(); err != nil {
			return err
		}
	}
	cfg = c
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
