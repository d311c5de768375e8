package main

import (
	"github.com/spf13/cobra"

	"disasterwatch/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "disasterwatch",
	Short:         "Disaster report ingestion and question answering",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/disasterwatch/config.yaml)")
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(cfgPath)
}
