package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Mail        MailConfig
	OTP         OTPConfig
	Uploads     UploadsConfig
	Dashboard   DashboardConfig
	Circulars   CircularsConfig
	FrontendURL string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig configures the SMTP sender and its delivery queue.
// Delivery is best-effort: a failed send never fails the triggering
// request.
type MailConfig struct {
	Host        string
	Port        int
	SenderEmail string
	SenderName  string
	Password    string
	Workers     int
	BufferSize  int
	MaxRetries  int
}

// Enabled reports whether SMTP credentials are present.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.SenderEmail != "" && m.Password != ""
}

// OTPConfig tunes signup verification codes.
type OTPConfig struct {
	Length int
	TTL    time.Duration
}

// UploadsConfig controls attachment storage and signed downloads.
type UploadsConfig struct {
	Dir              string
	MaxFileSizeBytes int64
	AllowedExts      []string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
}

// DashboardConfig governs stats caching.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// CircularsConfig tunes the deadline expiry sweep.
type CircularsConfig struct {
	ExpirySweepInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.FrontendURL = v.GetString("FRONTEND_URL")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Mail = MailConfig{
		Host:        v.GetString("MAIL_SMTP_HOST"),
		Port:        v.GetInt("MAIL_SMTP_PORT"),
		SenderEmail: v.GetString("MAIL_SENDER_EMAIL"),
		SenderName:  v.GetString("MAIL_SENDER_NAME"),
		Password:    v.GetString("MAIL_SENDER_PASSWORD"),
		Workers:     v.GetInt("MAIL_WORKERS"),
		BufferSize:  v.GetInt("MAIL_BUFFER_SIZE"),
		MaxRetries:  v.GetInt("MAIL_MAX_RETRIES"),
	}

	cfg.OTP = OTPConfig{
		Length: v.GetInt("OTP_LENGTH"),
		TTL:    parseDuration(v.GetString("OTP_TTL"), 10*time.Minute),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 50 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Dir:              v.GetString("UPLOADS_DIR"),
		MaxFileSizeBytes: maxUploadSize,
		AllowedExts:      splitAndTrim(v.GetString("UPLOADS_ALLOWED_EXTENSIONS")),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 30*time.Minute),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Circulars = CircularsConfig{
		ExpirySweepInterval: parseDuration(v.GetString("CIRCULAR_EXPIRY_SWEEP_INTERVAL"), time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("FRONTEND_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rcms")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MAIL_SMTP_HOST", "")
	v.SetDefault("MAIL_SMTP_PORT", 465)
	v.SetDefault("MAIL_SENDER_EMAIL", "")
	v.SetDefault("MAIL_SENDER_NAME", "RCMS")
	v.SetDefault("MAIL_SENDER_PASSWORD", "")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_BUFFER_SIZE", 64)
	v.SetDefault("MAIL_MAX_RETRIES", 3)

	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_TTL", "10m")

	v.SetDefault("UPLOADS_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 50*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_EXTENSIONS", "pdf,doc,docx,xls,xlsx,png,jpg,jpeg")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "30m")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("CIRCULAR_EXPIRY_SWEEP_INTERVAL", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
