package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Worker   WorkerConfig
	Ingest   IngestConfig
	Storage  StorageConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	AutoMigrate      bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine      string // "cli" | "gosseract" (needs -tags gosseract)
	Rasterizer  string // "pdftoppm" | "fitz" (needs -tags fitz)
	Languages   string
	MaxPages    int
	DPI         int
	Tesseract   string
	Pdftoppm    string
	TessdataDir string
}

// LLMConfig holds generative model configuration
type LLMConfig struct {
	Provider     string // "gemini" | "openai" | "gigachat"
	Model        string
	APIKey       string
	BaseURL      string
	Temperature  float32
	Timeout      time.Duration
	MaxAttempts  int
	RetryInitial time.Duration
	RetryMax     time.Duration
	PromptsDir   string

	GCPProject string
	GCPRegion  string

	GigaChatScope    string
	GigaChatInsecure bool
}

// WorkerConfig sizes the in-process dispatcher.
type WorkerConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
	TaskRetention  time.Duration
}

// IngestConfig controls drop-folder intake.
type IngestConfig struct {
	WatchDirs   []string
	InitialScan bool
	Debounce    time.Duration
	BatchID     string
}

// StorageConfig enables gs:// sources.
type StorageConfig struct {
	GCSEnabled bool
	TempDir    string
}

type LogConfig struct {
	Level  string
	Format string // "text" | "json" | "zap"
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory, when present, is read first without overriding
// variables that are already set.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// malformed .env: fall through to the process environment
		_, _ = os.Stderr.WriteString("warning: could not parse .env: " + err.Error() + "\n")
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		OCR: OCRConfig{
			Engine:      getEnv("OCR_ENGINE", "cli"),
			Rasterizer:  getEnv("PDF_RASTERIZER", "pdftoppm"),
			Languages:   getEnv("OCR_LANGUAGES", "eng+ara"),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 2),
			DPI:         getEnvAsInt("OCR_DPI", 200),
			Tesseract:   getEnv("TESSERACT_PATH", "tesseract"),
			Pdftoppm:    getEnv("PDFTOPPM_PATH", "pdftoppm"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
		},
		LLM: LLMConfig{
			Provider:         strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			Model:            getEnv("LLM_MODEL", ""),
			APIKey:           getEnv("LLM_API_KEY", ""),
			BaseURL:          getEnv("LLM_BASE_URL", ""),
			Temperature:      getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:          getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			MaxAttempts:      getEnvAsInt("LLM_MAX_ATTEMPTS", 1),
			RetryInitial:     getEnvAsDuration("LLM_RETRY_INITIAL", 500*time.Millisecond),
			RetryMax:         getEnvAsDuration("LLM_RETRY_MAX", 10*time.Second),
			PromptsDir:       getEnv("PROMPTS_DIR", ""),
			GCPProject:       getEnv("GOOGLE_CLOUD_PROJECT", ""),
			GCPRegion:        getEnv("VERTEX_REGION", "us-central1"),
			GigaChatScope:    getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			GigaChatInsecure: getEnvAsBool("GIGACHAT_INSECURE_SKIP_VERIFY", false),
		},
		Worker: WorkerConfig{
			Workers:        getEnvAsInt("WORKERS", 4),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
			TaskRetention:  getEnvAsDuration("TASK_RETENTION", time.Hour),
		},
		Ingest: IngestConfig{
			WatchDirs:   getEnvAsList("WATCH_DIRS"),
			InitialScan: getEnvAsBool("WATCH_INITIAL_SCAN", false),
			Debounce:    getEnvAsDuration("WATCH_DEBOUNCE", 750*time.Millisecond),
			BatchID:     getEnv("BATCH_ID", ""),
		},
		Storage: StorageConfig{
			GCSEnabled: getEnvAsBool("GCS_ENABLED", false),
			TempDir:    getEnv("DOWNLOAD_DIR", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the loaded configuration. Missing model credentials are not
// a startup error: the pipeline reports them per run as extraction failures.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "gigachat":
	default:
		return NewAppError(CodeConfig, "LLM_PROVIDER must be gemini, openai or gigachat", ErrInvalidInput)
	}
	if c.LLM.MaxAttempts < 1 {
		return NewAppError(CodeConfig, "LLM_MAX_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	if c.OCR.MaxPages < 1 {
		return NewAppError(CodeConfig, "OCR_MAX_PAGES must be at least 1", ErrInvalidInput)
	}
	if c.Worker.Workers < 1 {
		return NewAppError(CodeConfig, "WORKERS must be at least 1", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
