package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Monitor struct {
		Interval         time.Duration `yaml:"interval"`
		FailureThreshold int           `yaml:"failure_threshold"`
		HealPause        time.Duration `yaml:"heal_pause"`
		SnapshotDir      string        `yaml:"snapshot_dir"`
	} `yaml:"monitor"`

	Capture struct {
		FFmpegPath  string        `yaml:"ffmpeg_path"`
		Width       int           `yaml:"width"`
		Height      int           `yaml:"height"`
		ReadTimeout time.Duration `yaml:"read_timeout"`
	} `yaml:"capture"`

	Resolver struct {
		BinPath   string        `yaml:"bin_path"`
		Timeout   time.Duration `yaml:"timeout"`
		MaxHeight int           `yaml:"max_height"`
	} `yaml:"resolver"`

	Registry struct {
		Path      string `yaml:"path"`
		BackupDir string `yaml:"backup_dir"`
	} `yaml:"registry"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Crawler struct {
		SearchLimit    int            `yaml:"search_limit"`
		RequestsPerMin float64        `yaml:"requests_per_minute"`
		HTTPTimeout    time.Duration  `yaml:"http_timeout"`
		SearchTargets  []SearchTarget `yaml:"search_targets"`
		ScrapeTargets  []ScrapeTarget `yaml:"scrape_targets"`
	} `yaml:"crawler"`

	Audit struct {
		Workers   int `yaml:"workers"`
		MinHeight int `yaml:"min_height"`
	} `yaml:"audit"`

	Classifier struct {
		BlackMeanThreshold    float64 `yaml:"black_mean_threshold"`
		FrozenStdDevThreshold float64 `yaml:"frozen_stddev_threshold"`
	} `yaml:"classifier"`

	RateLimit struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		MaxConcurrent     int     `yaml:"max_concurrent"`
	} `yaml:"rate_limit"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

type SearchTarget struct {
	Term     string `yaml:"term"`
	Location string `yaml:"location"`
	Sector   string `yaml:"sector"`
}

type ScrapeTarget struct {
	URL      string `yaml:"url"`
	Location string `yaml:"location"`
	Sector   string `yaml:"sector"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Monitor
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be > 0")
	}
	if c.Monitor.FailureThreshold <= 0 {
		return fmt.Errorf("monitor.failure_threshold must be > 0")
	}
	if c.Monitor.HealPause < 0 {
		return fmt.Errorf("monitor.heal_pause must be >= 0")
	}

	// Capture
	if c.Capture.FFmpegPath == "" {
		return fmt.Errorf("capture.ffmpeg_path must not be empty")
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("capture.width and capture.height must be > 0")
	}
	if c.Capture.ReadTimeout <= 0 {
		return fmt.Errorf("capture.read_timeout must be > 0")
	}

	// Resolver
	if c.Resolver.BinPath == "" {
		return fmt.Errorf("resolver.bin_path must not be empty")
	}
	if c.Resolver.Timeout <= 0 {
		return fmt.Errorf("resolver.timeout must be > 0")
	}
	if c.Resolver.MaxHeight <= 0 {
		return fmt.Errorf("resolver.max_height must be > 0")
	}

	// Registry
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Crawler
	if c.Crawler.SearchLimit <= 0 {
		return fmt.Errorf("crawler.search_limit must be > 0")
	}
	if c.Crawler.RequestsPerMin <= 0 {
		return fmt.Errorf("crawler.requests_per_minute must be > 0")
	}
	if c.Crawler.HTTPTimeout <= 0 {
		return fmt.Errorf("crawler.http_timeout must be > 0")
	}

	// Audit
	if c.Audit.Workers <= 0 {
		return fmt.Errorf("audit.workers must be > 0")
	}
	if c.Audit.MinHeight <= 0 {
		return fmt.Errorf("audit.min_height must be > 0")
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit.requests_per_second must be > 0 when rate_limit.enabled=true")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be > 0 when rate_limit.enabled=true")
		}
	}

	// Classifier
	if c.Classifier.BlackMeanThreshold < 0 {
		return fmt.Errorf("classifier.black_mean_threshold must be >= 0")
	}
	if c.Classifier.FrozenStdDevThreshold < 0 {
		return fmt.Errorf("classifier.frozen_stddev_threshold must be >= 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Monitor.Interval = 2 * time.Second
	cfg.Monitor.FailureThreshold = 3
	cfg.Monitor.HealPause = 2 * time.Second
	cfg.Monitor.SnapshotDir = "."

	cfg.Capture.FFmpegPath = "ffmpeg"
	cfg.Capture.Width = 640
	cfg.Capture.Height = 360
	cfg.Capture.ReadTimeout = 10 * time.Second

	cfg.Resolver.BinPath = "yt-dlp"
	cfg.Resolver.Timeout = 15 * time.Second
	cfg.Resolver.MaxHeight = 720

	cfg.Registry.Path = "cameras.json"
	cfg.Registry.BackupDir = "backups"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Crawler.SearchLimit = 15
	cfg.Crawler.RequestsPerMin = 20
	cfg.Crawler.HTTPTimeout = 10 * time.Second

	cfg.Audit.Workers = 4
	cfg.Audit.MinHeight = 720

	cfg.Classifier.BlackMeanThreshold = 10
	cfg.Classifier.FrozenStdDevThreshold = 2

	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 20
	cfg.RateLimit.Burst = 40
	cfg.RateLimit.MaxConcurrent = 0

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	// Apply environment variable overrides
	if addr := os.Getenv("VIGIL_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("VIGIL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv("VIGIL_REGISTRY_PATH"); path != "" {
		c.Registry.Path = path
	}
	if addr := os.Getenv("VIGIL_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
}
