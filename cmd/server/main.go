package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pivision/internal/app"
	"pivision/internal/config"
	"pivision/internal/logger"
)

// Version is the application version.
const Version = "0.1.0"

var (
	flagPort    int
	flagDataDir string
	flagLogDir  string
)

var rootCmd = &cobra.Command{
	Use:     "pivision-server",
	Short:   "Camera dashboard backend: frame store, live stream and activity log",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cmd.Flags().Changed("port") {
			cfg.Port = flagPort
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDirectory = flagDataDir
		}
		if cmd.Flags().Changed("log-dir") {
			cfg.LogDirectory = flagLogDir
		}

		log, err := logger.New(cfg.LogDirectory)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		application, err := app.New(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return application.Run(ctx)
	},
}

func init() {
	rootCmd.Flags().IntVarP(&flagPort, "port", "p", 8080, "HTTP listen port")
	rootCmd.Flags().StringVarP(&flagDataDir, "data-dir", "d", "./data", "Directory for frames and the activity database")
	rootCmd.Flags().StringVarP(&flagLogDir, "log-dir", "l", "./logs", "Directory for log files")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
