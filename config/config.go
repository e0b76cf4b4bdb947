package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mt5Assistant/internal/ports"

	"github.com/joho/godotenv"
)

// Supported terminal backends.
const (
	BrokerPaper     = "paper"
	BrokerMT5Bridge = "mt5bridge"
	BrokerBinance   = "binance"
)

// Config holds process configuration read from the environment.
type Config struct {
	SettingsPath string
	Broker       string

	// MT5 bridge
	MT5BridgeURL string
	MT5Login     string
	MT5Password  string
	MT5Server    string

	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Database
	DBPath string

	// Logging
	LogLevel string

	// HTTP control surface
	HTTPAddr       string
	RequestTimeout time.Duration

	// Telegram alerts; empty token disables them
	TelegramToken  string
	TelegramChatID int64

	// Connection Settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.SettingsPath = getEnv("SETTINGS_PATH", "./settings.yaml")
	cfg.Broker = strings.ToLower(getEnv("BROKER", BrokerPaper))

	cfg.MT5BridgeURL = getEnv("MT5_BRIDGE_URL", "")
	cfg.MT5Login = getEnv("MT5_LOGIN", "")
	cfg.MT5Password = getEnv("MT5_PASSWORD", "")
	cfg.MT5Server = getEnv("MT5_SERVER", "")

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	switch cfg.Broker {
	case BrokerPaper:
	case BrokerMT5Bridge:
		if cfg.MT5BridgeURL == "" {
			errs = append(errs, "MT5_BRIDGE_URL must be set for the mt5bridge broker")
		}
	case BrokerBinance:
		if cfg.APIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set")
		}
		if cfg.SecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set")
		}
	default:
		errs = append(errs, fmt.Sprintf("BROKER must be one of %s, %s, %s", BrokerPaper, BrokerMT5Bridge, BrokerBinance))
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/mt5_assistant.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	timeoutSeconds, err := getEnvAsIntRequired("REQUEST_TIMEOUT_SECONDS", 30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REQUEST_TIMEOUT_SECONDS: %v", err))
	} else if timeoutSeconds <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT_SECONDS must be positive")
	}
	cfg.RequestTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.TelegramToken = getEnv("TELEGRAM_API_TOKEN", "")
	if chat := getEnv("TELEGRAM_CHAT_ID", ""); chat != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chat, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
		}
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		errs = append(errs, "TELEGRAM_CHAT_ID must be set when TELEGRAM_API_TOKEN is set")
	}

	// Connection Settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfiguration, strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
