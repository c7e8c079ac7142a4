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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	SMTP      SMTPConfig
	S3        S3Config
	CORS      CORSConfig
	Log       LogConfig
	Cookie    CookieConfig
	Lockout   LockoutConfig
	Email     EmailConfig
	Cleanup   CleanupConfig
	RateLimit RateLimitConfig
	Dishes    DishConfig
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
	Secret            string
	Issuer            string
	Audience          string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	CacheControl string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CookieConfig controls token cookie delivery.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// LockoutConfig is the failed-login policy.
type LockoutConfig struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

// EmailConfig controls verification-code issuance and dispatch.
type EmailConfig struct {
	CodeTTL     time.Duration
	Workers     int
	QueueBuffer int
}

// CleanupConfig controls the background garbage collection of expired rows.
type CleanupConfig struct {
	Interval time.Duration
}

// RateLimitConfig holds per-operation token bucket sizes (events per window).
type RateLimitConfig struct {
	AuthPerMinute    int
	RefreshPerMinute int
	EmailPer5Minutes int
	PasswordPerHour  int
	GeneralPerMinute int
}

// DishConfig bounds dish image uploads and menu cache freshness.
type DishConfig struct {
	MaxImageSizeBytes int64
	CacheTTL          time.Duration
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
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Audience:          v.GetString("JWT_AUDIENCE"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 15*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
	}

	cfg.S3 = S3Config{
		Endpoint:     v.GetString("S3_ENDPOINT"),
		Region:       v.GetString("S3_REGION"),
		Bucket:       v.GetString("S3_BUCKET"),
		AccessKey:    v.GetString("S3_ACCESS_KEY"),
		SecretKey:    v.GetString("S3_SECRET_KEY"),
		CacheControl: v.GetString("S3_CACHE_CONTROL"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cookie = CookieConfig{
		Secure:     v.GetBool("COOKIE_SECURE"),
		AccessTTL:  parseDuration(v.GetString("COOKIE_ACCESS_TTL"), 15*time.Minute),
		RefreshTTL: parseDuration(v.GetString("COOKIE_REFRESH_TTL"), 7*24*time.Hour),
	}

	cfg.Lockout = LockoutConfig{
		MaxFailedAttempts: v.GetInt("LOCKOUT_MAX_FAILED_ATTEMPTS"),
		LockDuration:      parseDuration(v.GetString("LOCKOUT_DURATION"), 30*time.Minute),
	}

	cfg.Email = EmailConfig{
		CodeTTL:     parseDuration(v.GetString("VERIFICATION_CODE_TTL"), 15*time.Minute),
		Workers:     v.GetInt("EMAIL_WORKERS"),
		QueueBuffer: v.GetInt("EMAIL_QUEUE_BUFFER"),
	}

	cfg.Cleanup = CleanupConfig{
		Interval: parseDuration(v.GetString("CLEANUP_INTERVAL"), 24*time.Hour),
	}

	cfg.RateLimit = RateLimitConfig{
		AuthPerMinute:    v.GetInt("RATE_LIMIT_AUTH_PER_MINUTE"),
		RefreshPerMinute: v.GetInt("RATE_LIMIT_REFRESH_PER_MINUTE"),
		EmailPer5Minutes: v.GetInt("RATE_LIMIT_EMAIL_PER_5_MINUTES"),
		PasswordPerHour:  v.GetInt("RATE_LIMIT_PASSWORD_PER_HOUR"),
		GeneralPerMinute: v.GetInt("RATE_LIMIT_GENERAL_PER_MINUTE"),
	}

	cfg.Dishes = DishConfig{
		MaxImageSizeBytes: v.GetInt64("DISH_IMAGE_MAX_BYTES"),
		CacheTTL:          parseDuration(v.GetString("DISH_CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "katering")
	v.SetDefault("DB_PASSWORD", "katering")
	v.SetDefault("DB_NAME", "katering")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_ISSUER", "azhur-katering")
	v.SetDefault("JWT_AUDIENCE", "azhur-katering-frontend")
	v.SetDefault("JWT_EXPIRATION", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("SMTP_PORT", 465)

	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "katering-images")
	v.SetDefault("S3_CACHE_CONTROL", "public, max-age=86400")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_ACCESS_TTL", "15m")
	v.SetDefault("COOKIE_REFRESH_TTL", "168h")

	v.SetDefault("LOCKOUT_MAX_FAILED_ATTEMPTS", 5)
	v.SetDefault("LOCKOUT_DURATION", "30m")

	v.SetDefault("VERIFICATION_CODE_TTL", "15m")
	v.SetDefault("EMAIL_WORKERS", 2)
	v.SetDefault("EMAIL_QUEUE_BUFFER", 16)

	v.SetDefault("CLEANUP_INTERVAL", "24h")

	v.SetDefault("RATE_LIMIT_AUTH_PER_MINUTE", 5)
	v.SetDefault("RATE_LIMIT_REFRESH_PER_MINUTE", 10)
	v.SetDefault("RATE_LIMIT_EMAIL_PER_5_MINUTES", 3)
	v.SetDefault("RATE_LIMIT_PASSWORD_PER_HOUR", 3)
	v.SetDefault("RATE_LIMIT_GENERAL_PER_MINUTE", 100)

	v.SetDefault("DISH_IMAGE_MAX_BYTES", int64(5*1024*1024))
	v.SetDefault("DISH_CACHE_TTL", "10m")
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
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
