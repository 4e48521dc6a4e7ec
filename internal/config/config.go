/**
 * @description
 * This package handles the configuration management for the gateway. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the banking-gateway.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string  `mapstructure:"SERVER_PORT"`
	CoreAPIBaseURL        string  `mapstructure:"CORE_API_BASE_URL"`
	CoreAPIKey            string  `mapstructure:"CORE_API_KEY"`
	JWTSecret             string  `mapstructure:"JWT_SECRET"`
	RedisURL              string  `mapstructure:"REDIS_URL"`
	SessionKeyPrefix      string  `mapstructure:"SESSION_KEY_PREFIX"`
	ReversalWindowSeconds int     `mapstructure:"REVERSAL_WINDOW_SECONDS"`
	DepositLocale         string  `mapstructure:"DEPOSIT_LOCALE"`
	DepositCurrency       string  `mapstructure:"DEPOSIT_CURRENCY"`
	TransactionLocale     string  `mapstructure:"TRANSACTION_LOCALE"`
	TransactionCurrency   string  `mapstructure:"TRANSACTION_CURRENCY"`
	GrowthFactor          float64 `mapstructure:"GROWTH_FACTOR"`
	DashboardTxLimit      int     `mapstructure:"DASHBOARD_TX_LIMIT"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SESSION_KEY_PREFIX", "gateway:session")
	viper.SetDefault("REVERSAL_WINDOW_SECONDS", 60)
	viper.SetDefault("DEPOSIT_LOCALE", "es-GT")
	viper.SetDefault("DEPOSIT_CURRENCY", "GTQ")
	viper.SetDefault("TRANSACTION_LOCALE", "es-MX")
	viper.SetDefault("TRANSACTION_CURRENCY", "MXN")
	viper.SetDefault("GROWTH_FACTOR", 0.000009)
	viper.SetDefault("DASHBOARD_TX_LIMIT", 50)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("CORE_API_BASE_URL")
	_ = viper.BindEnv("CORE_API_KEY")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("SESSION_KEY_PREFIX")
	_ = viper.BindEnv("REVERSAL_WINDOW_SECONDS")
	_ = viper.BindEnv("DEPOSIT_LOCALE")
	_ = viper.BindEnv("DEPOSIT_CURRENCY")
	_ = viper.BindEnv("TRANSACTION_LOCALE")
	_ = viper.BindEnv("TRANSACTION_CURRENCY")
	_ = viper.BindEnv("GROWTH_FACTOR")
	_ = viper.BindEnv("DASHBOARD_TX_LIMIT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.CoreAPIBaseURL = strings.TrimRight(strings.TrimSpace(config.CoreAPIBaseURL), "/")
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.SessionKeyPrefix = strings.TrimSpace(config.SessionKeyPrefix)
	if config.SessionKeyPrefix == "" {
		config.SessionKeyPrefix = "gateway:session"
	}

	if config.ReversalWindowSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive reversal window configured; using default\" window_seconds=%d", config.ReversalWindowSeconds)
		config.ReversalWindowSeconds = 60
	}
	if config.GrowthFactor <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive growth factor configured; using default\" growth_factor=%f", config.GrowthFactor)
		config.GrowthFactor = 0.000009
	}
	if config.DashboardTxLimit <= 0 {
		config.DashboardTxLimit = 50
	}

	return
}
