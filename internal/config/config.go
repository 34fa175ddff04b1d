package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Store   StoreConfig
	DB      DBConfig
	S3      S3Config
	Email   EmailConfig
	Log     LogConfig
	Session SessionConfig
}

// StoreConfig selects where the entity collections are persisted.
type StoreConfig struct {
	Provider            string `mapstructure:"provider"`
	SQLitePath          string `mapstructure:"sqlite_path"`
	SeedDemoObligations bool   `mapstructure:"seed_demo_obligations"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings. An empty Bucket disables file storage.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// EmailConfig holds email delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	FrontendURL string `mapstructure:"frontend_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SessionConfig holds login and registration settings.
type SessionConfig struct {
	Latency           time.Duration `mapstructure:"latency"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
}

// Load reads configuration from environment variables with the PORTAL_
// prefix. A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Store defaults
	v.SetDefault("store.provider", "sqlite")
	v.SetDefault("store.sqlite_path", "portal.db")
	v.SetDefault("store.seed_demo_obligations", true)

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "portal")
	v.SetDefault("db.password", "portal_secret")
	v.SetDefault("db.name", "portal_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 5)
	v.SetDefault("db.max_idle", 2)

	// S3 defaults
	v.SetDefault("s3.region", "eu-west-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 20)
	v.SetDefault("s3.presign_expiry", 900)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "eu-west-1")
	v.SetDefault("email.from_address", "noreply@contaportal.pt")
	v.SetDefault("email.from_name", "ContaPortal")
	v.SetDefault("email.frontend_url", "http://localhost:3000")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	// Session defaults
	v.SetDefault("session.latency", "0s")
	v.SetDefault("session.min_password_length", 6)

	envBindings := map[string]string{
		"store.provider":              "PORTAL_STORE_PROVIDER",
		"store.sqlite_path":           "PORTAL_STORE_SQLITE_PATH",
		"store.seed_demo_obligations": "PORTAL_STORE_SEED_DEMO_OBLIGATIONS",
		"db.host":                     "PORTAL_DB_HOST",
		"db.port":                     "PORTAL_DB_PORT",
		"db.user":                     "PORTAL_DB_USER",
		"db.password":                 "PORTAL_DB_PASSWORD",
		"db.name":                     "PORTAL_DB_NAME",
		"db.sslmode":                  "PORTAL_DB_SSLMODE",
		"db.max_open":                 "PORTAL_DB_MAX_OPEN",
		"db.max_idle":                 "PORTAL_DB_MAX_IDLE",
		"s3.region":                   "PORTAL_S3_REGION",
		"s3.bucket":                   "PORTAL_S3_BUCKET",
		"s3.endpoint":                 "PORTAL_S3_ENDPOINT",
		"s3.access_key":               "PORTAL_S3_ACCESS_KEY",
		"s3.secret_key":               "PORTAL_S3_SECRET_KEY",
		"s3.max_file_size_mb":         "PORTAL_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":           "PORTAL_S3_PRESIGN_EXPIRY",
		"email.provider":              "PORTAL_EMAIL_PROVIDER",
		"email.region":                "PORTAL_EMAIL_REGION",
		"email.from_address":          "PORTAL_EMAIL_FROM_ADDRESS",
		"email.from_name":             "PORTAL_EMAIL_FROM_NAME",
		"email.frontend_url":          "PORTAL_EMAIL_FRONTEND_URL",
		"log.level":                   "PORTAL_LOG_LEVEL",
		"log.format":                  "PORTAL_LOG_FORMAT",
		"log.output":                  "PORTAL_LOG_OUTPUT",
		"session.latency":             "PORTAL_SESSION_LATENCY",
		"session.min_password_length": "PORTAL_SESSION_MIN_PASSWORD_LENGTH",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}
	cfg.Store = StoreConfig{
		Provider:            strings.ToLower(v.GetString("store.provider")),
		SQLitePath:          v.GetString("store.sqlite_path"),
		SeedDemoObligations: v.GetBool("store.seed_demo_obligations"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		FrontendURL: v.GetString("email.frontend_url"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
		Output: v.GetString("log.output"),
	}
	cfg.Session = SessionConfig{
		Latency:           v.GetDuration("session.latency"),
		MinPasswordLength: v.GetInt("session.min_password_length"),
	}

	switch cfg.Store.Provider {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
	return cfg, nil
}
