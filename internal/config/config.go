package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings for both the capture agent and the web server.
// Values come from the environment, optionally seeded from a .env file.
type Config struct {
	// Capture agent
	CaptureInterval     time.Duration // seconds between ticks
	EnableFaceDetection bool
	DemoMode            bool // force mock frames even if a camera exists
	MockFallback        bool // allow degrading to mock frames when the camera fails
	BackendURL          string
	BackendTimeout      time.Duration
	CameraDevice        int
	CameraWidth         int
	CameraHeight        int
	CameraRetries       int           // open attempts per tick before mock fallback
	CameraRetryBackoff  time.Duration // wait between open attempts
	CascadePath         string

	// Detection tunables
	ScaleFactor   float64
	MinNeighbors  int
	MinRegionSize int

	// Web server
	Port               int
	DataDirectory      string // latest-frame slot + snapshot archive + sqlite
	LogDirectory       string
	MaxActivityEntries int
	StreamPollInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		CaptureInterval:     time.Duration(getEnvAsInt("CAPTURE_INTERVAL", 30)) * time.Second,
		EnableFaceDetection: getEnvAsBool("ENABLE_FACE_DETECTION", true),
		DemoMode:            getEnvAsBool("DEMO_MODE", false),
		MockFallback:        getEnvAsBool("MOCK_FALLBACK", true),
		BackendURL:          getEnv("BACKEND_URL", "http://localhost:8080"),
		BackendTimeout:      time.Duration(getEnvAsInt("BACKEND_TIMEOUT", 10)) * time.Second,
		CameraDevice:        getEnvAsInt("CAMERA_DEVICE", 0),
		CameraWidth:         getEnvAsInt("CAMERA_WIDTH", 640),
		CameraHeight:        getEnvAsInt("CAMERA_HEIGHT", 480),
		CameraRetries:       getEnvAsInt("CAMERA_RETRIES", 3),
		CameraRetryBackoff:  time.Duration(getEnvAsInt("CAMERA_RETRY_BACKOFF_MS", 500)) * time.Millisecond,
		CascadePath:         getEnv("CASCADE_PATH", filepath.Join(".", "models", "haarcascade_frontalface_default.xml")),

		ScaleFactor:   getEnvAsFloat("SCALE_FACTOR", 1.1),
		MinNeighbors:  getEnvAsInt("MIN_NEIGHBORS", 5),
		MinRegionSize: getEnvAsInt("MIN_REGION_SIZE", 30),

		Port:               getEnvAsInt("PORT", 8080),
		DataDirectory:      getEnv("DATA_DIR", filepath.Join(".", "data")),
		LogDirectory:       getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MaxActivityEntries: getEnvAsInt("MAX_ACTIVITY_ENTRIES", 100),
		StreamPollInterval: time.Duration(getEnvAsInt("STREAM_POLL_MS", 100)) * time.Millisecond,
	}
}

// LatestFramePath is the well-known latest-frame slot inside the data directory.
func (c *Config) LatestFramePath() string {
	return filepath.Join(c.DataDirectory, "latest_frame.jpg")
}

// SnapshotDirectory holds the archived per-capture images.
func (c *Config) SnapshotDirectory() string {
	return filepath.Join(c.DataDirectory, "captures")
}

// DatabasePath is the sqlite activity database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDirectory, "activity.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
