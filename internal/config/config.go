package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Spotify    SpotifyConfig    `yaml:"spotify"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Reset      ResetConfig      `yaml:"reset"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	// MaxUploadBytes caps multipart and JSON bodies on /detect-emotion.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// MetricsKey, when set, is required on /metrics and /ws.
	MetricsKey string `yaml:"metrics_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// TokenURL and APIBaseURL default to the public Spotify endpoints.
	TokenURL    string        `yaml:"token_url"`
	APIBaseURL  string        `yaml:"api_base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	ResultLimit int           `yaml:"result_limit"`
	// Breaker settings for the search circuit breaker.
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// Enabled reports whether client credentials are present.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

type ClassifierConfig struct {
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`
	InputName   string `yaml:"input_name"`
	OutputName  string `yaml:"output_name"`
}

type ResetConfig struct {
	TokenTTL      time.Duration `yaml:"token_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// A missing file is not an error; the service then runs on env and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 10 << 20
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "emotion_app_db"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 5
	}
	if cfg.Spotify.TokenURL == "" {
		cfg.Spotify.TokenURL = "https://accounts.spotify.com/api/token"
	}
	if cfg.Spotify.APIBaseURL == "" {
		cfg.Spotify.APIBaseURL = "https://api.spotify.com/v1/"
	}
	if cfg.Spotify.Timeout == 0 {
		cfg.Spotify.Timeout = 10 * time.Second
	}
	if cfg.Spotify.ResultLimit == 0 {
		cfg.Spotify.ResultLimit = 10
	}
	if cfg.Spotify.BreakerFailures == 0 {
		cfg.Spotify.BreakerFailures = 5
	}
	if cfg.Spotify.BreakerCooldown == 0 {
		cfg.Spotify.BreakerCooldown = 30 * time.Second
	}
	if cfg.Classifier.ModelPath == "" {
		cfg.Classifier.ModelPath = "models/rafdb_cnn.onnx"
	}
	if cfg.Classifier.InputName == "" {
		cfg.Classifier.InputName = "input"
	}
	if cfg.Classifier.OutputName == "" {
		cfg.Classifier.OutputName = "output"
	}
	if cfg.Reset.TokenTTL <= 0 {
		cfg.Reset.TokenTTL = time.Hour
	}
	if cfg.Reset.SweepInterval <= 0 {
		cfg.Reset.SweepInterval = 10 * time.Minute
	}
	if cfg.Reset.BcryptCost == 0 {
		cfg.Reset.BcryptCost = 12
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "emotune-captures"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMOTUNE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EMOTUNE_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("EMOTUNE_METRICS_KEY"); v != "" {
		cfg.Server.MetricsKey = v
	}
	if v := os.Getenv("EMOTUNE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("EMOTUNE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("EMOTUNE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("EMOTUNE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("EMOTUNE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	// The unprefixed names are kept for existing .env files.
	if v := firstEnv("EMOTUNE_SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_ID"); v != "" {
		cfg.Spotify.ClientID = v
	}
	if v := firstEnv("EMOTUNE_SPOTIFY_CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET"); v != "" {
		cfg.Spotify.ClientSecret = v
	}
	if v := firstEnv("EMOTUNE_MODEL_PATH", "MODEL_PATH"); v != "" {
		cfg.Classifier.ModelPath = v
	}
	if v := os.Getenv("EMOTUNE_ONNX_LIBRARY"); v != "" {
		cfg.Classifier.LibraryPath = v
	}
	if v := os.Getenv("EMOTUNE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("EMOTUNE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
		cfg.MinIO.Enabled = true
	}
	if v := os.Getenv("EMOTUNE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("EMOTUNE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("EMOTUNE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("EMOTUNE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
