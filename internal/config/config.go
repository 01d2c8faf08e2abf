package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "CONTENT_ORCHESTRATOR_CONFIG"

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Cache         CacheConfig        `yaml:"cache"`
	Providers     ProviderConfig     `yaml:"providers"`
	Publisher     PublisherConfig    `yaml:"publisher"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Server        ServerConfig       `yaml:"server"`
	Generator     GeneratorConfig    `yaml:"generator"`
	Workflow      WorkflowConfig     `yaml:"workflow"`
}

// LoggingConfig selects the slog level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the Postgres task table. An empty DSN selects the in-memory source.
type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// RedisConfig enables the shared content cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig bounds the content cache.
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// ProviderConfig groups content-generation backends in priority order (openai first).
type ProviderConfig struct {
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Inference InferenceConfig `yaml:"inference"`
}

// OpenAIConfig defines how to contact an OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL        string  `yaml:"baseUrl"`
	Model          string  `yaml:"model"`
	ImageModel     string  `yaml:"imageModel"`
	APIKey         string  `yaml:"apiKey"`
	RequestsPerMin float64 `yaml:"requestsPerMinute"`
}

// InferenceConfig describes a self-hosted JSON inference endpoint.
type InferenceConfig struct {
	Name           string  `yaml:"name"`
	URL            string  `yaml:"url"`
	APIKey         string  `yaml:"apiKey"`
	RequestsPerMin float64 `yaml:"requestsPerMinute"`
}

// PublisherConfig points at the WordPress REST API.
type PublisherConfig struct {
	URL       string `yaml:"url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	SEOPlugin string `yaml:"seoPlugin"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// SchedulerConfig defines how often batches run; zero disables recurring runs.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ServerConfig enables the HTTP surface when Addr is set.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// GeneratorConfig tunes content generation.
type GeneratorConfig struct {
	Strategy          string `yaml:"strategy"`
	PreferredProvider string `yaml:"preferredProvider"`
	Language          string `yaml:"language"`
	Tone              string `yaml:"tone"`
	TargetWords       int    `yaml:"targetWords"`
	ImageStyle        string `yaml:"imageStyle"`
}

type envOverrides struct {
	LogLevel         string `env:"LOG_LEVEL"`
	DatabaseDSN      string `env:"DATABASE_DSN"`
	RedisAddr        string `env:"REDIS_ADDR"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIModel      string `env:"OPENAI_MODEL"`
	InferenceURL     string `env:"INFERENCE_URL"`
	InferenceAPIKey  string `env:"INFERENCE_API_KEY"`
	PublisherURL     string `env:"WP_URL"`
	PublisherUser    string `env:"WP_USERNAME"`
	PublisherPass    string `env:"WP_PASSWORD"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
	HTTPAddr         string `env:"HTTP_ADDR"`
	MaxWorkers       int    `env:"MAX_WORKERS"`
	MaxRetries       *int   `env:"MAX_RETRIES, noinit"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if fileCfg, err := Parse(raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = fileCfg
		}
	}

	if err := cfg.applyEnvOverrides(context.Background(), envconfig.OsLookuper()); err != nil {
		log.Printf("config: cannot read environment: %v", err)
	}

	return cfg
}

// Parse decodes YAML on top of the defaults so omitted keys keep their default values.
func Parse(raw []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides(ctx context.Context, lookuper envconfig.Lookuper) error {
	var env envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: lookuper}); err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&c.Logging.Level, env.LogLevel)
	set(&c.Database.DSN, env.DatabaseDSN)
	set(&c.Redis.Addr, env.RedisAddr)
	set(&c.Redis.Password, env.RedisPassword)
	set(&c.Providers.OpenAI.APIKey, env.OpenAIAPIKey)
	set(&c.Providers.OpenAI.Model, env.OpenAIModel)
	set(&c.Providers.Inference.URL, env.InferenceURL)
	set(&c.Providers.Inference.APIKey, env.InferenceAPIKey)
	set(&c.Publisher.URL, env.PublisherURL)
	set(&c.Publisher.Username, env.PublisherUser)
	set(&c.Publisher.Password, env.PublisherPass)
	set(&c.Notifications.Telegram.BotToken, env.TelegramBotToken)
	set(&c.Notifications.Telegram.ChatID, env.TelegramChatID)
	set(&c.Server.Addr, env.HTTPAddr)

	if env.MaxWorkers > 0 {
		c.Workflow.MaxWorkers = env.MaxWorkers
	}
	if env.MaxRetries != nil {
		c.Workflow.MaxRetries = *env.MaxRetries
	}

	return nil
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Table: "content_tasks"},
		Cache:    CacheConfig{Size: 512, TTL: 24 * time.Hour},
		Providers: ProviderConfig{
			OpenAI: OpenAIConfig{
				BaseURL:        "https://api.openai.com/v1",
				Model:          "gpt-4o-mini",
				ImageModel:     "dall-e-3",
				RequestsPerMin: 60,
			},
			Inference: InferenceConfig{Name: "inference", RequestsPerMin: 30},
		},
		Publisher: PublisherConfig{SEOPlugin: "yoast"},
		Generator: GeneratorConfig{
			Strategy:    "seo",
			Language:    "vi",
			Tone:        "professional",
			TargetWords: 800,
			ImageStyle:  "professional",
		},
		Workflow: DefaultWorkflow(),
	}
}
