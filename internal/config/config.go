package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogDirectory    string
	OutputDirectory string
	InboxDirectory  string

	CameraDevice          int
	MonitorWidth          int
	MonitorHeight         int
	StillWidth            int
	StillHeight           int
	CaptureSettleDelay    time.Duration // pause after stopping the preview stream
	StillStabilizeDelay   time.Duration // pause after switching to the still profile
	AutofocusDelay        time.Duration
	MotionScoreThreshold  int
	StillnessTimeout      time.Duration
	PollInterval          time.Duration
	MotionBlurSize        int
	MotionPixelCutoff     int
	MotionDilateIteration int

	RegionMinArea   int
	RegionMinAspect float64
	RegionMaxAspect float64

	GridStrategy     string
	GridRows         int
	GridCols         int
	RowTolerance     int
	LineKernelLength int
	MinCellSize      int

	TextEngine        string
	TesseractLanguage string
	GeminiProject     string
	GeminiRegion      string
	GeminiModel       string
	OCRWorkers        int

	StatusPort  int
	StatusToken string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		OutputDirectory: getEnv("OUTPUT_DIR", filepath.Join(".", "output")),
		InboxDirectory:  getEnv("INBOX_DIR", filepath.Join(".", "inbox")),

		CameraDevice:          getEnvAsInt("CAMERA_DEVICE", 0),
		MonitorWidth:          getEnvAsInt("MONITOR_WIDTH", 640),
		MonitorHeight:         getEnvAsInt("MONITOR_HEIGHT", 480),
		StillWidth:            getEnvAsInt("STILL_WIDTH", 2592),
		StillHeight:           getEnvAsInt("STILL_HEIGHT", 1944),
		CaptureSettleDelay:    getEnvAsSeconds("CAPTURE_SETTLE_SECONDS", 1),
		StillStabilizeDelay:   getEnvAsSeconds("STILL_STABILIZE_SECONDS", 2),
		AutofocusDelay:        getEnvAsSeconds("AUTOFOCUS_SECONDS", 1),
		MotionScoreThreshold:  getEnvAsInt("MOTION_SCORE_THRESHOLD", 100),
		StillnessTimeout:      getEnvAsSeconds("STILLNESS_TIMEOUT_SECONDS", 5),
		PollInterval:          getEnvAsSeconds("POLL_INTERVAL_SECONDS", 0.2),
		MotionBlurSize:        getEnvAsInt("MOTION_BLUR_SIZE", 21),
		MotionPixelCutoff:     getEnvAsInt("MOTION_PIXEL_CUTOFF", 25),
		MotionDilateIteration: getEnvAsInt("MOTION_DILATE_ITERATIONS", 2),

		RegionMinArea:   getEnvAsInt("REGION_MIN_AREA", 10000),
		RegionMinAspect: getEnvAsFloat("REGION_MIN_ASPECT", 0.5),
		RegionMaxAspect: getEnvAsFloat("REGION_MAX_ASPECT", 2.0),

		GridStrategy:     getEnv("GRID_STRATEGY", "uniform"),
		GridRows:         getEnvAsInt("GRID_ROWS", 6),
		GridCols:         getEnvAsInt("GRID_COLS", 7),
		RowTolerance:     getEnvAsInt("ROW_TOLERANCE", 20),
		LineKernelLength: getEnvAsInt("LINE_KERNEL_LENGTH", 40),
		MinCellSize:      getEnvAsInt("MIN_CELL_SIZE", 50),

		TextEngine:        getEnv("TEXT_ENGINE", "tesseract"),
		TesseractLanguage: getEnv("TESSERACT_LANGUAGE", "eng"),
		GeminiProject:     getEnv("GEMINI_PROJECT", ""),
		GeminiRegion:      getEnv("GEMINI_REGION", "europe-west1"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OCRWorkers:        getEnvAsInt("OCR_WORKERS", 1),

		StatusPort:  getEnvAsInt("STATUS_PORT", 0),
		StatusToken: getEnv("STATUS_TOKEN", ""),
	}
}

// DaysDirectory holds one crop per extracted day.
func (c *Config) DaysDirectory() string {
	return filepath.Join(c.OutputDirectory, "days")
}

// StillsDirectory holds the raw high-resolution captures.
func (c *Config) StillsDirectory() string {
	return filepath.Join(c.OutputDirectory, "stills")
}

// RecordsPath is the structured day/events record file.
func (c *Config) RecordsPath() string {
	return filepath.Join(c.OutputDirectory, "calendar_events.json")
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

// getEnvAsSeconds reads a fractional number of seconds ("0.2", "5").
func getEnvAsSeconds(key string, defaultSeconds float64) time.Duration {
	seconds := getEnvAsFloat(key, defaultSeconds)
	if seconds < 0 {
		seconds = defaultSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}
