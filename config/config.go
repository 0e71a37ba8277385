package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	API        APIConfig        `yaml:"api"`
	Camera     CameraConfig     `yaml:"camera"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Roster     RosterConfig     `yaml:"roster"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Push is disabled when either key is empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// TelegramConfig configures the optional admin chat alerts.
type TelegramConfig struct {
	BotToken string `yaml:"-"` // TELEGRAM_BOT_TOKEN only
	ChatID   int64  `yaml:"chat_id"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// APIConfig describes the external fleet API.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
	AllowInsecure  bool          `yaml:"allow_insecure"`
	HTTPProxy      string        `yaml:"http_proxy"`

	// Credentials come from the environment (.env), never from the YAML file.
	Token    string `yaml:"-"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// CameraConfig selects the frame source.
type CameraConfig struct {
	// Source is either "mjpeg" or "dir".
	Source    string  `yaml:"source"`
	StreamURL string  `yaml:"stream_url"`
	Dir       string  `yaml:"dir"`
	FrameRate float64 `yaml:"frame_rate"`
}

// ScannerConfig holds the scan controller timings.
type ScannerConfig struct {
	ResolveFeedbackMillis    int  `yaml:"resolve_feedback_ms"`
	TransitionFeedbackMillis int  `yaml:"transition_feedback_ms"`
	SettleMillis             int  `yaml:"settle_ms"`
	AllowNameMatch           bool `yaml:"allow_name_match"`
}

// RosterConfig controls how often the roster is refetched.
type RosterConfig struct {
	RefreshSeconds int           `yaml:"refresh_seconds"`
	Refresh        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
// DSNs starting with postgres:// or postgresql:// use Postgres, anything else is
// treated as a SQLite file path.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path and overlays secrets from the
// environment. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("godotenv.Load() error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Config{
		Scanner: ScannerConfig{AllowNameMatch: true},
	}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FLEET_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	cfg.API.Token = os.Getenv("FLEET_API_TOKEN")
	cfg.API.Username = os.Getenv("FLEET_API_USERNAME")
	cfg.API.Password = os.Getenv("FLEET_API_PASSWORD")
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 30
	}
	cfg.API.Timeout = time.Duration(cfg.API.TimeoutSeconds) * time.Second

	if cfg.Camera.Source == "" {
		cfg.Camera.Source = "mjpeg"
	}
	if cfg.Camera.FrameRate <= 0 {
		cfg.Camera.FrameRate = 60
	}

	if cfg.Scanner.ResolveFeedbackMillis <= 0 {
		cfg.Scanner.ResolveFeedbackMillis = 2500
	}
	if cfg.Scanner.TransitionFeedbackMillis <= 0 {
		cfg.Scanner.TransitionFeedbackMillis = 3500
	}
	if cfg.Scanner.SettleMillis <= 0 {
		cfg.Scanner.SettleMillis = 300
	}

	if cfg.Roster.RefreshSeconds <= 0 {
		cfg.Roster.RefreshSeconds = 60
	}
	cfg.Roster.Refresh = time.Duration(cfg.Roster.RefreshSeconds) * time.Second

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "checkpoint.db"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
