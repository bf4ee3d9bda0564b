package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/crewmesh/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "crewmesh",
	Short: "Crew-based AI task orchestration",
	Long: `Crewmesh assigns tasks to crews of remote AI agents and drives them
to completion. A planning oracle breaks each task into steps, picks the
best-suited agent for every step, and assembles the agents' responses
into a final answer.

Agents are external conversational services reached over a message
transport; crews group them under roles, and each task keeps a full
transcript plus per-call telemetry.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: "+config.GetUserConfigPath()+")")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the effective configuration for a command invocation.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromPath(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
