package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends
const (
	LedgerBackendEVM   = "evm"
	LedgerBackendLocal = "local"
)

// Storage providers
const (
	StorageProviderLocal = "local"
	StorageProviderGCS   = "gcs"
)

// Analyzer modes
const (
	AnalyzerModeStatic = "static"
	AnalyzerModeAI     = "ai"
)

// Config holds all application configuration
type Config struct {
	Environment   string
	LogLevel      string
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	OpenAI        OpenAIConfig
	Ledger        LedgerConfig
	Storage       StorageConfig
	Analysis      AnalysisConfig
	Emergency     EmergencyConfig
	Notifications NotificationsConfig
	RateLimit     RateLimitConfig
	OTEL          OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	AutoMigrate bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	Timeout        time.Duration
	RateLimitRPM   int
	RateLimitBurst int
}

// LedgerConfig holds the medical record ledger configuration.
// The evm backend talks to a deployed MedicalRecord contract; the local
// backend keeps a hash-chained log in LevelDB for development.
type LedgerConfig struct {
	Backend          string
	RPCURL           string
	PrivateKey       string
	ContractAddress  string
	ContractArtifact string
	ChainID          int64
	GasLimit         uint64
	LocalPath        string
	TxTimeout        time.Duration
	LockTTL          time.Duration
}

// StorageConfig holds report file storage configuration
type StorageConfig struct {
	Provider          string
	Dir               string
	BaseURL           string
	GCSBucket         string
	GCSCredentials    string
	MaxUploadBytes    int64
	ThumbnailsEnabled bool
}

// AnalysisConfig selects how uploaded reports are analyzed
type AnalysisConfig struct {
	Mode    string
	Timeout time.Duration
}

// EmergencyConfig holds emergency contact settings
type EmergencyConfig struct {
	DefaultRegion string
}

// NotificationsConfig holds WhatsApp Cloud API settings
type NotificationsConfig struct {
	WhatsAppEnabled       bool
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppBaseURL       string
}

// RateLimitConfig holds per-client limits for the chat endpoint
type RateLimitConfig struct {
	ChatRequests int
	ChatWindow   time.Duration
	// TrustedProxies are CIDRs or IPs whose X-Forwarded-For is honoured
	TrustedProxies []string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// LoadDotEnv loads variables from .env files when present. Variables that
// are already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8000),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvAsInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			Database:    getEnv("DB_NAME", "eswasthya"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),

			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout:        getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
		},
		Ledger: LedgerConfig{
			Backend:          strings.ToLower(getEnv("LEDGER_BACKEND", LedgerBackendEVM)),
			RPCURL:           getEnv("LEDGER_RPC_URL", "http://127.0.0.1:7545"),
			PrivateKey:       getEnv("LEDGER_PRIVATE_KEY", ""),
			ContractAddress:  getEnv("LEDGER_CONTRACT_ADDRESS", ""),
			ContractArtifact: getEnv("LEDGER_CONTRACT_ARTIFACT", ""),
			ChainID:          int64(getEnvAsInt("LEDGER_CHAIN_ID", 0)),
			GasLimit:         uint64(getEnvAsInt("LEDGER_GAS_LIMIT", 0)),
			LocalPath:        getEnv("LEDGER_LOCAL_PATH", "data/ledger"),
			TxTimeout:        getEnvAsDuration("LEDGER_TX_TIMEOUT", 60*time.Second),
			LockTTL:          getEnvAsDuration("LEDGER_LOCK_TTL", 90*time.Second),
		},
		Storage: StorageConfig{
			Provider:          strings.ToLower(getEnv("STORAGE_PROVIDER", StorageProviderLocal)),
			Dir:               getEnv("STORAGE_DIR", "media"),
			BaseURL:           getEnv("STORAGE_BASE_URL", "/media/"),
			GCSBucket:         getEnv("GCS_BUCKET", ""),
			GCSCredentials:    getEnv("GCS_CREDENTIALS_JSON", ""),
			MaxUploadBytes:    int64(getEnvAsInt("STORAGE_MAX_UPLOAD_BYTES", 10<<20)),
			ThumbnailsEnabled: getEnvAsBool("STORAGE_THUMBNAILS", true),
		},
		Analysis: AnalysisConfig{
			Mode:    strings.ToLower(getEnv("ANALYZER_MODE", AnalyzerModeStatic)),
			Timeout: getEnvAsDuration("ANALYZER_TIMEOUT", 30*time.Second),
		},
		Emergency: EmergencyConfig{
			DefaultRegion: strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "IN")),
		},
		Notifications: NotificationsConfig{
			WhatsAppEnabled:       getEnvAsBool("WHATSAPP_ENABLED", false),
			WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			WhatsAppBaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com/v18.0"),
		},
		RateLimit: RateLimitConfig{
			ChatRequests:   getEnvAsInt("CHAT_RATE_LIMIT", 30),
			ChatWindow:     getEnvAsDuration("CHAT_RATE_WINDOW", time.Minute),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "eswasthya-portal"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// Validate checks settings that must be present before any client is built.
func (c *Config) Validate() error {
	var errs []error

	switch c.Ledger.Backend {
	case LedgerBackendEVM:
		if c.Ledger.RPCURL == "" {
			errs = append(errs, errors.New("LEDGER_RPC_URL is required for the evm ledger"))
		}
		if c.Ledger.PrivateKey == "" {
			errs = append(errs, errors.New("LEDGER_PRIVATE_KEY is required for the evm ledger"))
		}
		if c.Ledger.ContractAddress == "" && c.Ledger.ContractArtifact == "" {
			errs = append(errs, errors.New("LEDGER_CONTRACT_ADDRESS or LEDGER_CONTRACT_ARTIFACT is required for the evm ledger"))
		}
	case LedgerBackendLocal:
		if c.Ledger.LocalPath == "" {
			errs = append(errs, errors.New("LEDGER_LOCAL_PATH is required for the local ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", c.Ledger.Backend))
	}
	if c.Ledger.TxTimeout <= 0 {
		errs = append(errs, errors.New("LEDGER_TX_TIMEOUT must be positive"))
	}
	// the record lease must outlive a transaction that is still being mined
	if c.Ledger.LockTTL <= c.Ledger.TxTimeout {
		errs = append(errs, fmt.Errorf("LEDGER_LOCK_TTL (%s) must be greater than LEDGER_TX_TIMEOUT (%s)", c.Ledger.LockTTL, c.Ledger.TxTimeout))
	}

	switch c.Storage.Provider {
	case StorageProviderLocal:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("STORAGE_DIR is required for local storage"))
		}
	case StorageProviderGCS:
		if c.Storage.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for gcs storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_PROVIDER %q", c.Storage.Provider))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("STORAGE_MAX_UPLOAD_BYTES must be positive"))
	}

	switch c.Analysis.Mode {
	case AnalyzerModeStatic, AnalyzerModeAI:
	default:
		errs = append(errs, fmt.Errorf("unknown ANALYZER_MODE %q", c.Analysis.Mode))
	}

	if c.Notifications.WhatsAppEnabled &&
		(c.Notifications.WhatsAppAccessToken == "" || c.Notifications.WhatsAppPhoneNumberID == "") {
		errs = append(errs, errors.New("WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID must be set"))
	}

	return errors.Join(errs...)
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
