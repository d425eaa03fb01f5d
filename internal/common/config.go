package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Blob      BlobConfig
	Redis     RedisConfig
	OCR       OCRConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
	Inbox     InboxConfig
	Log       LogConfig

	// ProfilesFile is the YAML profile catalogue seeded by cmd/migrate.
	ProfilesFile string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr          string
	GRPCHealthAddr    string
	MaxUploadBytes    int64
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// BlobConfig selects and configures the document store
type BlobConfig struct {
	Backend        string // fs, minio
	Root           string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// RedisConfig holds the job lock connection; an empty Addr disables locking
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractBin  string
	PdftoppmBin   string
	HeicConverter string
	Lang          string
	TessdataDir   string
	DPI           int
}

// WorkerConfig sizes the extraction worker pool
type WorkerConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

// RateLimitConfig bounds request rate per tenant
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// InboxConfig enables the drop-folder watcher; an empty Dir disables it
type InboxConfig struct {
	Dir      string
	Debounce time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
			GRPCHealthAddr:    getEnv("GRPC_HEALTH_ADDR", ":8081"),
			MaxUploadBytes:    getEnvAsInt64("MAX_UPLOAD_BYTES", 32<<20),
			ShutdownTimeout:   getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Blob: BlobConfig{
			Backend:        getEnv("BLOB_BACKEND", "fs"),
			Root:           getEnv("BLOB_ROOT", "./data/blobs"),
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinioBucket:    getEnv("MINIO_BUCKET", "documents"),
			MinioUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			LockTTL:  getEnvAsDuration("JOB_LOCK_TTL", 10*time.Minute),
		},
		OCR: OCRConfig{
			TesseractBin:  getEnv("TESSERACT_BIN", "tesseract"),
			PdftoppmBin:   getEnv("PDFTOPPM_BIN", "pdftoppm"),
			HeicConverter: getEnv("HEIC_CONVERTER", ""),
			Lang:          getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
		},
		Worker: WorkerConfig{
			Workers:        getEnvAsInt("WORKERS", 4),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 128),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat64("RATE_LIMIT_RPS", 20),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Inbox: InboxConfig{
			Dir:      getEnv("INBOX_DIR", ""),
			Debounce: getEnvAsDuration("INBOX_DEBOUNCE", time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		ProfilesFile: getEnv("PROFILES_FILE", ""),
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

// Validate checks the settings every binary needs
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	switch c.Blob.Backend {
	case "fs":
		if c.Blob.Root == "" {
			return NewAppError(CodeConfig, "BLOB_ROOT is required for fs backend", ErrInvalidInput)
		}
	case "minio":
		if c.Blob.MinioEndpoint == "" || c.Blob.MinioBucket == "" {
			return NewAppError(CodeConfig, "MINIO_ENDPOINT and MINIO_BUCKET are required for minio backend", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "BLOB_BACKEND must be fs or minio", ErrInvalidInput)
	}
	if c.Worker.Workers <= 0 || c.Worker.QueueSize <= 0 {
		return NewAppError(CodeConfig, "WORKERS and QUEUE_SIZE must be positive", ErrInvalidInput)
	}
	return nil
}

// ValidateServer adds the checks only the API server needs
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Auth.JWTSecret == "" {
		return NewAppError(CodeConfig, "JWT_SECRET is required", ErrInvalidInput)
	}
	return nil
}
