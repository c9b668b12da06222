package utils

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server and CLI read from the environment.
type Config struct {
	Port            string
	MongoURI        string
	MongoDB         string
	MongoTx         bool
	SessionSecret   string
	SessionCookie   string
	SessionTTL      time.Duration
	BcryptCost      int
	UploadDir       string
	MaxUploadBytes  int64
	DBTimeout       time.Duration
	MailProvider    string
	PostmarkToken   string
	SendgridKey     string
	EmailSender     string
	BaseURL         string
	LogLevel        string
	UsingDefaultKey bool
}

const defaultSessionSecret = "greenexchange_secret"

// LoadConfig loads the optional .env files and reads the configuration.
// A missing .env file is reported through the returned flag, not as an error.
func LoadConfig(envFiles ...string) (*Config, bool) {
	envLoaded := godotenv.Load(envFiles...) == nil

	cfg := &Config{
		Port:           GetEnvAsString("PORT", "3000"),
		MongoURI:       GetEnvAsString("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:        GetEnvAsString("MONGO_DB", "greenex_db"),
		MongoTx:        GetEnvAsBool("MONGO_TRANSACTIONS", true),
		SessionSecret:  GetEnvAsString("SESSION_SECRET", defaultSessionSecret),
		SessionCookie:  GetEnvAsString("SESSION_COOKIE", "greenexchange"),
		SessionTTL:     GetEnvAsDuration("SESSION_TTL", 24*time.Hour),
		BcryptCost:     GetEnvAsInt("BCRYPT_COST", 12),
		UploadDir:      GetEnvAsString("UPLOAD_DIR", "public/uploads"),
		MaxUploadBytes: GetEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
		DBTimeout:      GetEnvAsDuration("DB_TIMEOUT", 5*time.Second),
		MailProvider:   strings.ToLower(GetEnvAsString("MAIL_PROVIDER", "")),
		PostmarkToken:  os.Getenv("POSTMARK_API_TOKEN"),
		SendgridKey:    os.Getenv("SENDGRID_API_KEY"),
		EmailSender:    GetEnvAsString("EMAIL_SENDER", "no-reply@greenexchange.local"),
		BaseURL:        GetEnvAsString("BASE_URL", ""),
		LogLevel:       GetEnvAsString("LOG_LEVEL", "info"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	cfg.UsingDefaultKey = cfg.SessionSecret == defaultSessionSecret
	return cfg, envLoaded
}

// GetEnvAsString gets environment variable as string with default value
func GetEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt gets environment variable as int with default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsInt64 gets environment variable as int64 with default value
func GetEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsBool gets environment variable as bool with default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration gets environment variable as duration with default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
