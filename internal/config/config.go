package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port" env:"PORT"`
		BaseURL        string   `yaml:"base_url" env:"BASE_URL"`
		FrontendURL    string   `yaml:"frontend_url" env:"FRONTEND_URL"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
		// TrustedProxies lists the peer addresses or CIDRs whose forwarding headers are honored.
		TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" envSeparator:","`
		UploadDir      string   `yaml:"upload_dir" env:"UPLOAD_DIR"`
		MaxUploadMB    int64    `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB"`
	} `yaml:"server"`
	Log struct {
		Development bool `yaml:"development" env:"LOG_DEVELOPMENT"`
	} `yaml:"log"`
	Storage struct {
		Driver string `yaml:"driver" env:"STORAGE_DRIVER"`
	} `yaml:"storage"`
	Mongo struct {
		URI            string `yaml:"uri" env:"MONGO_URI"`
		Database       string `yaml:"database" env:"MONGO_DATABASE"`
		ConnectTimeout string `yaml:"connect_timeout" env:"MONGO_CONNECT_TIMEOUT"`
	} `yaml:"mongo"`
	Postgres struct {
		URL string `yaml:"url" env:"DATABASE_URL"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret" env:"JWT_SECRET"`
		TokenTTL   string `yaml:"token_ttl" env:"TOKEN_TTL"`
		BcryptCost int    `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
	} `yaml:"auth"`
	Google struct {
		ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
		ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
		CallbackURL  string `yaml:"callback_url" env:"GOOGLE_CALLBACK_URL"`
		StateTTL     string `yaml:"state_ttl" env:"GOOGLE_STATE_TTL"`
	} `yaml:"google"`
	Mail struct {
		Driver   string `yaml:"driver" env:"MAIL_DRIVER"`
		From     string `yaml:"from" env:"MAIL_FROM"`
		FromName string `yaml:"from_name" env:"MAIL_FROM_NAME"`
		SMTP     struct {
			Host     string `yaml:"host" env:"SMTP_HOST"`
			Port     string `yaml:"port" env:"SMTP_PORT"`
			Username string `yaml:"username" env:"EMAIL_USER"`
			Password string `yaml:"password" env:"EMAIL_PASS"`
		} `yaml:"smtp"`
		Postmark struct {
			ServerToken  string `yaml:"server_token" env:"POSTMARK_SERVER_TOKEN"`
			AccountToken string `yaml:"account_token" env:"POSTMARK_ACCOUNT_TOKEN"`
		} `yaml:"postmark"`
	} `yaml:"mail"`
	Avatar struct {
		Driver string `yaml:"driver" env:"AVATAR_DRIVER"`
		S3     struct {
			Bucket         string `yaml:"bucket" env:"S3_BUCKET"`
			Region         string `yaml:"region" env:"S3_REGION"`
			AccessKeyID    string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
			SecretKey      string `yaml:"secret_key" env:"S3_SECRET_KEY"`
			Endpoint       string `yaml:"endpoint" env:"S3_ENDPOINT"`
			BaseURL        string `yaml:"base_url" env:"S3_BASE_URL"`
			ForcePathStyle bool   `yaml:"force_path_style" env:"S3_FORCE_PATH_STYLE"`
		} `yaml:"s3"`
	} `yaml:"avatar"`
	Quiz struct {
		Source          string `yaml:"source" env:"QUIZ_SOURCE"`
		ProviderURL     string `yaml:"provider_url" env:"quizurl"`
		APIKey          string `yaml:"api_key" env:"x_rapidapi_key"`
		APIHost         string `yaml:"api_host" env:"x_rapidapi_host"`
		Timeout         string `yaml:"timeout" env:"QUIZ_TIMEOUT"`
		RefreshInterval string `yaml:"refresh_interval" env:"QUIZ_REFRESH_INTERVAL"`
		CacheTTL        string `yaml:"cache_ttl" env:"QUIZ_CACHE_TTL"`
		Timezone        string `yaml:"timezone" env:"QUIZ_TIMEZONE"`
	} `yaml:"quiz"`
	OTP struct {
		TTL        string `yaml:"ttl" env:"OTP_TTL"`
		RateLimit  int    `yaml:"rate_limit" env:"OTP_RATE_LIMIT"`
		RateWindow string `yaml:"rate_window" env:"OTP_RATE_WINDOW"`
	} `yaml:"otp"`
}

// Load reads YAML config from path, then applies a .env file (if any) and the
// process environment on top. A missing YAML file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:5000"
	}
	if cfg.Server.FrontendURL == "" {
		cfg.Server.FrontendURL = "http://localhost:3000"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 5
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "mongo"
		if cfg.Mongo.URI == "" {
			cfg.Storage.Driver = "memory"
		}
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "quizzy"
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 10
	}
	if cfg.Mail.Driver == "" {
		cfg.Mail.Driver = "log"
		if cfg.Mail.SMTP.Username != "" {
			cfg.Mail.Driver = "smtp"
		}
	}
	if cfg.Mail.SMTP.Host == "" {
		cfg.Mail.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.Mail.SMTP.Port == "" {
		cfg.Mail.SMTP.Port = "465"
	}
	if cfg.Avatar.Driver == "" {
		cfg.Avatar.Driver = "local"
	}
	if cfg.Quiz.Source == "" {
		cfg.Quiz.Source = "provider"
	}
	if cfg.Quiz.Timezone == "" {
		cfg.Quiz.Timezone = "UTC"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
