package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/veneer"
	"github.com/aretw0/veneer/pkg/core"
)

var (
	verbose    bool
	configPath string
	adapter    string
	location   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "veneer",
	Short: "Transparent document transforms for a document database",
	Long: `Veneer rewrites documents as they cross the read/write boundary of a
database: encrypt or compress fields on the way in, restore them on the way out.
Stock transforms and the backend are described in veneer.yaml.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to veneer.yaml (default: searched upwards from the working directory)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Backend adapter: fs, memory or http (overrides the config file)")
	rootCmd.PersistentFlags().StringVarP(&location, "location", "l", "", "Directory, URL or name of the database (overrides the config file)")
}

// loadConfig applies the persistent flags on top of the configuration file.
func loadConfig() (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if adapter != "" {
		cfg.Adapter = adapter
	}
	if location != "" {
		cfg.Location = location
	}
	return cfg, nil
}

// openService opens the configured database with its transforms installed.
func openService() (*core.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Options(slog.Default())
	if err != nil {
		return nil, err
	}
	svc, err := veneer.New(cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return svc, nil
}
