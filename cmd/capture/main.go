package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pivision/internal/camera"
	"pivision/internal/capture"
	"pivision/internal/config"
	"pivision/internal/delivery"
	"pivision/internal/detect"
	"pivision/internal/logger"
)

// Version is the application version.
const Version = "0.1.0"

var (
	flagInterval  int
	flagBackend   string
	flagDemo      bool
	flagNoDetect  bool
	flagDevice    int
	flagCascade   string
	flagLogDir    string
	flagNoMock    bool
	flagNeighbors int
)

var rootCmd = &cobra.Command{
	Use:     "pivision-capture",
	Short:   "Camera capture agent: acquire frames, detect faces, push to the dashboard backend",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cmd.Flags().Changed("interval") {
			cfg.CaptureInterval = time.Duration(flagInterval) * time.Second
		}
		if cmd.Flags().Changed("backend") {
			cfg.BackendURL = flagBackend
		}
		if cmd.Flags().Changed("demo") {
			cfg.DemoMode = flagDemo
		}
		if cmd.Flags().Changed("no-detection") {
			cfg.EnableFaceDetection = !flagNoDetect
		}
		if cmd.Flags().Changed("device") {
			cfg.CameraDevice = flagDevice
		}
		if cmd.Flags().Changed("cascade") {
			cfg.CascadePath = flagCascade
		}
		if cmd.Flags().Changed("log-dir") {
			cfg.LogDirectory = flagLogDir
		}
		if cmd.Flags().Changed("no-mock-fallback") {
			cfg.MockFallback = !flagNoMock
		}
		if cmd.Flags().Changed("min-neighbors") {
			cfg.MinNeighbors = flagNeighbors
		}

		log, err := logger.New(cfg.LogDirectory)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		var device camera.Camera
		if !cfg.DemoMode {
			device = camera.NewDevice(cfg.CameraDevice, cfg.CameraWidth, cfg.CameraHeight, log)
		}

		var detector detect.Detector
		if cfg.EnableFaceDetection {
			detector = detect.NewCascade(cfg.CascadePath, detect.Params{
				ScaleFactor:   cfg.ScaleFactor,
				MinNeighbors:  cfg.MinNeighbors,
				MinRegionSize: cfg.MinRegionSize,
			}, log)
		}

		client := delivery.NewClient(cfg.BackendURL, cfg.BackendTimeout)
		controller := capture.NewController(device, detector, client, cfg, log)

		if err := controller.Start(); err != nil {
			log.Error("Startup failed: %v", err)
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		controller.Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.Flags().IntVarP(&flagInterval, "interval", "i", 30, "Seconds between capture ticks")
	rootCmd.Flags().StringVarP(&flagBackend, "backend", "b", "http://localhost:8080", "Dashboard backend base URL")
	rootCmd.Flags().BoolVar(&flagDemo, "demo", false, "Force mock frames even if a camera exists")
	rootCmd.Flags().BoolVar(&flagNoDetect, "no-detection", false, "Disable the face detection pass")
	rootCmd.Flags().IntVar(&flagDevice, "device", 0, "Capture device index")
	rootCmd.Flags().StringVar(&flagCascade, "cascade", "", "Path to the Haar cascade XML model")
	rootCmd.Flags().StringVarP(&flagLogDir, "log-dir", "l", "./logs", "Directory for log files")
	rootCmd.Flags().BoolVar(&flagNoMock, "no-mock-fallback", false, "Fail instead of degrading to mock frames")
	rootCmd.Flags().IntVarP(&flagNeighbors, "min-neighbors", "n", 5, "Candidate windows required to accept a detection")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
