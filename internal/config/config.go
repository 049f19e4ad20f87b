package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "SUPPLAI"
	DefaultConfigName = "supplai"

	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"

	RegistryStatic = "static"
	RegistrySQLite = "sqlite"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Registry RegistryConfig `mapstructure:"registry"`
	Redis    RedisConfig    `mapstructure:"redis"`
	S3       S3Config       `mapstructure:"s3"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// MaxUploadSize is the per-file limit in bytes.
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type LLMConfig struct {
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type PipelineConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type RegistryConfig struct {
	Mode     string `mapstructure:"mode"`
	Database string `mapstructure:"database"`
}

// RedisConfig configures the status lookup cache. An empty Address disables it.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// S3Config configures tender retrieval by object key. An empty Endpoint
// disables it.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Load reads configuration from defaults, an optional YAML file and
// SUPPLAI_* environment variables, in increasing order of precedence.
// An empty cfgFile looks for supplai.yaml in the working directory.
func Load(cfgFile string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}

	if err := cfg.validateBase(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.idle_timeout", 2*time.Minute)
	v.SetDefault("server.max_upload_size", 20<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.provider", ProviderOpenRouter)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.request_timeout", 2*time.Minute)

	v.SetDefault("pipeline.timeout", 8*time.Minute)

	v.SetDefault("registry.mode", RegistryStatic)
	v.SetDefault("registry.database", "./data/registry.db")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 6*time.Hour)

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket", "tenders")
	v.SetDefault("s3.use_ssl", false)
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.5-flash"
	}
	return "openai/gpt-4o-mini"
}

// Validate rejects configurations the analysis pipeline cannot run with.
// Load already checks everything except the LLM credentials, which only the
// commands that generate text need.
func (c *Config) Validate() error {
	if err := c.validateBase(); err != nil {
		return err
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required for provider %q", c.LLM.Provider)
	}
	return nil
}

func (c *Config) validateBase() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Registry.Mode {
	case RegistryStatic:
	case RegistrySQLite:
		if c.Registry.Database == "" {
			return errors.New("registry.database is required in sqlite mode")
		}
	default:
		return fmt.Errorf("unknown registry mode %q", c.Registry.Mode)
	}

	if c.Server.MaxUploadSize <= 0 {
		return errors.New("server.max_upload_size must be positive")
	}
	if c.Pipeline.Timeout <= 0 {
		return errors.New("pipeline.timeout must be positive")
	}
	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		return errors.New("s3.bucket is required when s3.endpoint is set")
	}
	return nil
}

// loadEnvFile loads .env from the working directory when present. Variables
// already set in the environment win.
func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}
