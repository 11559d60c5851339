package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

const defaultJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	IsProduction   bool
	EnableDBCheck  bool
	StorageDriver  string
	MigrationsPath string

	JWTSecret string
	JWTIssuer string

	RedisURL           string
	NATSURL            string
	RateLimit          string
	CORSAllowedOrigins []string

	// BudgetAlertThresholdPercent is the utilization above which a threshold notification is sent.
	BudgetAlertThresholdPercent decimal.Decimal
	// ConflictOfInterestCheckEnabled gates the evaluator conflict check. Changing it is security sensitive.
	ConflictOfInterestCheckEnabled bool
	// InvoiceMatchTolerancePercent is the three-way match variance accepted without justification.
	InvoiceMatchTolerancePercent decimal.Decimal
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ISSUER", "procure-to-pay")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("NATS_URL", "")
	viper.SetDefault("RATE_LIMIT", "200-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("BUDGET_ALERT_THRESHOLD_PERCENT", "90")
	viper.SetDefault("COI_CHECK_ENABLED", true)
	viper.SetDefault("INVOICE_MATCH_TOLERANCE_PERCENT", "5")

	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:                    viper.GetString("PGSQL_URL"),
		Port:                           viper.GetString("PORT"),
		IsProduction:                   viper.GetBool("IS_PRODUCTION"),
		EnableDBCheck:                  viper.GetBool("ENABLE_DB_CHECK"),
		StorageDriver:                  strings.ToLower(viper.GetString("STORAGE_DRIVER")),
		MigrationsPath:                 viper.GetString("MIGRATIONS_PATH"),
		JWTSecret:                      viper.GetString("JWT_SECRET"),
		JWTIssuer:                      viper.GetString("JWT_ISSUER"),
		RedisURL:                       viper.GetString("REDIS_URL"),
		NATSURL:                        viper.GetString("NATS_URL"),
		RateLimit:                      viper.GetString("RATE_LIMIT"),
		ConflictOfInterestCheckEnabled: viper.GetBool("COI_CHECK_ENABLED"),
	}

	for _, origin := range strings.Split(viper.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	var err error
	cfg.BudgetAlertThresholdPercent, err = percent("BUDGET_ALERT_THRESHOLD_PERCENT")
	if err != nil {
		return nil, err
	}
	cfg.InvoiceMatchTolerancePercent, err = percent("INVOICE_MATCH_TOLERANCE_PERCENT")
	if err != nil {
		return nil, err
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			log.Println("Warning: PGSQL_URL environment variable not set.")
		}
	case StorageDriverMemory:
		log.Println("Warning: STORAGE_DRIVER=memory, data is lost on restart.")
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: want %s or %s", cfg.StorageDriver, StorageDriverPostgres, StorageDriverMemory)
	}

	if cfg.JWTSecret == defaultJWTSecret {
		if cfg.IsProduction {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}
	if !cfg.ConflictOfInterestCheckEnabled {
		log.Println("Warning: COI_CHECK_ENABLED=false, bid evaluators are not checked for conflicts of interest.")
	}

	return cfg, nil
}

func percent(key string) (decimal.Decimal, error) {
	raw := viper.GetString(key)
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("invalid %s %q: must be between 0 and 100", key, raw)
	}
	return d, nil
}
