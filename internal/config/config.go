package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultMarketplaceAddress is the operator identity used when
// MARKETPLACE_ADDRESS is unset.
const DefaultMarketplaceAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// Config holds all runtime configuration for the marketplace.
type Config struct {
	Port               int
	LogLevel           string
	LogFile            string // empty logs to stdout
	LogMaxSizeMB       int
	LogMaxBackups      int
	MarketplaceAddress common.Address
	JournalPath        string // empty disables the SQLite journal
	WebhookTimeout     time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	logMaxSize, err := getInt("LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_MAX_SIZE_MB: %w", err)
	}
	if logMaxSize < 1 {
		return nil, fmt.Errorf("invalid LOG_MAX_SIZE_MB: %d, must be positive", logMaxSize)
	}

	logMaxBackups, err := getInt("LOG_MAX_BACKUPS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_MAX_BACKUPS: %w", err)
	}
	if logMaxBackups < 0 {
		return nil, fmt.Errorf("invalid LOG_MAX_BACKUPS: %d, must not be negative", logMaxBackups)
	}

	marketAddr := getStr("MARKETPLACE_ADDRESS", DefaultMarketplaceAddress)
	if !common.IsHexAddress(marketAddr) || common.HexToAddress(marketAddr) == (common.Address{}) {
		return nil, fmt.Errorf("invalid MARKETPLACE_ADDRESS: %q, must be a non-zero hex address", marketAddr)
	}

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:               port,
		LogLevel:           logLevel,
		LogFile:            getStr("LOG_FILE", ""),
		LogMaxSizeMB:       logMaxSize,
		LogMaxBackups:      logMaxBackups,
		MarketplaceAddress: common.HexToAddress(marketAddr),
		JournalPath:        getStr("JOURNAL_PATH", ""),
		WebhookTimeout:     webhookTimeout,
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
		ShutdownTimeout:    shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
