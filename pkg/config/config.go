package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		AlertTopic   string   `yaml:"alert_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Sources struct {
		Market struct {
			APIKey         string        `yaml:"api_key"`
			WebSocketURL   string        `yaml:"websocket_url"`
			Symbols        []string      `yaml:"symbols"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay"`
			PingInterval   time.Duration `yaml:"ping_interval"`
		} `yaml:"market"`
		News struct {
			BaseURL string  `yaml:"base_url"`
			APIKey  string  `yaml:"api_key"`
			RPS     float64 `yaml:"rps"`
			Burst   int     `yaml:"burst"`
		} `yaml:"news"`
		Social struct {
			BaseURL string  `yaml:"base_url"`
			APIKey  string  `yaml:"api_key"`
			RPS     float64 `yaml:"rps"`
			Burst   int     `yaml:"burst"`
		} `yaml:"social"`
		RSS struct {
			Feeds []string `yaml:"feeds"`
		} `yaml:"rss"`
	} `yaml:"sources"`
	Enrichment struct {
		Enabled  bool          `yaml:"enabled"`
		BaseURL  string        `yaml:"base_url"`
		APIKey   string        `yaml:"api_key"`
		Model    string        `yaml:"model"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"enrichment"`
	Fusion struct {
		CorrelationWindow time.Duration `yaml:"correlation_window"`
		Lookback          time.Duration `yaml:"lookback"`
		MinSeverity       int           `yaml:"min_severity"`
		OneMinPct         float64       `yaml:"one_min_pct"`
		FiveMinPct        float64       `yaml:"five_min_pct"`
		HourPct           float64       `yaml:"hour_pct"`
		VolumeSpikeRatio  float64       `yaml:"volume_spike_ratio"`
		WatchTerms        []string      `yaml:"watch_terms"`
	} `yaml:"fusion"`
	RateLimit struct {
		MaxRequests int           `yaml:"max_requests"`
		Window      time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// Secrets always win from the environment so they stay out of config files.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("MARKET_API_KEY"); v != "" {
		c.Sources.Market.APIKey = v
	}
	if v := os.Getenv("MARKET_SYMBOLS"); v != "" {
		c.Sources.Market.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		c.Sources.News.APIKey = v
	}
	if v := os.Getenv("SOCIAL_API_KEY"); v != "" {
		c.Sources.Social.APIKey = v
	}
	if v := os.Getenv("ENRICHMENT_API_KEY"); v != "" {
		c.Enrichment.APIKey = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Enrichment.Enabled && c.Enrichment.BaseURL == "" {
		return fmt.Errorf("enrichment.base_url is required when enrichment is enabled")
	}
	return nil
}
