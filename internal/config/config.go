package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"motorgestor-api/internal/cache"
	"motorgestor-api/internal/client"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Fipe     FipeConfig     `yaml:"fipe"`
	Cache    CacheConfig    `yaml:"cache"`
	APIPort  string         `yaml:"api_port" validate:"required,numeric"`
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	Metrics  bool           `yaml:"metrics"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns" validate:"min=0"`
	MinConns int    `yaml:"min_conns" validate:"min=0"`
}

// Enabled reports whether a database was configured. The FIPE lookup works without one.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type FipeConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	UserAgent      string        `yaml:"user_agent" validate:"required"`
	TimeoutMarcas  time.Duration `yaml:"timeout_marcas" validate:"gt=0"`
	TimeoutModelos time.Duration `yaml:"timeout_modelos" validate:"gt=0"`
	TimeoutAnos    time.Duration `yaml:"timeout_anos" validate:"gt=0"`
	TimeoutValor   time.Duration `yaml:"timeout_valor" validate:"gt=0"`
	RateLimit      float64       `yaml:"rate_limit" validate:"min=0"`
}

// ClientConfig converts to the client's configuration
func (f FipeConfig) ClientConfig() client.FipeConfig {
	return client.FipeConfig{
		BaseURL:   f.BaseURL,
		UserAgent: f.UserAgent,
		Timeouts: client.Timeouts{
			Marcas:  f.TimeoutMarcas,
			Modelos: f.TimeoutModelos,
			Anos:    f.TimeoutAnos,
			Valor:   f.TimeoutValor,
		},
		RateLimit: f.RateLimit,
	}
}

type CacheConfig struct {
	Backend    string        `yaml:"backend" validate:"oneof=memory redis"`
	TTL        time.Duration `yaml:"ttl" validate:"gt=0"`
	MaxEntries int           `yaml:"max_entries" validate:"min=0"`
	Redis      RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"min=0"`
	KeyPrefix string `yaml:"key_prefix"`
}

// StoreConfig converts to the Redis store's configuration
func (r RedisConfig) StoreConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:         r.Addr,
		Password:     r.Password,
		DB:           r.DB,
		KeyPrefix:    r.KeyPrefix,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	timeouts := client.DefaultTimeouts()
	return &Config{
		Database: DatabaseConfig{
			Port:     5432,
			Name:     "motorgestor",
			User:     "motorgestor",
			SSLMode:  "disable",
			MaxConns: 10,
			MinConns: 2,
		},
		Fipe: FipeConfig{
			BaseURL:        client.DefaultFipeBaseURL,
			UserAgent:      client.DefaultFipeUserAgent,
			TimeoutMarcas:  timeouts.Marcas,
			TimeoutModelos: timeouts.Modelos,
			TimeoutAnos:    timeouts.Anos,
			TimeoutValor:   timeouts.Valor,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     10 * time.Minute,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "motorgestor:fipe",
			},
		},
		APIPort:  "8080",
		LogLevel: "info",
		Metrics:  true,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(CacheConfig)
		if c.Backend == "redis" && c.Redis.Addr == "" {
			sl.ReportError(c.Redis.Addr, "Addr", "addr", "required_with_redis", "")
		}
	}, CacheConfig{})

	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func applyEnv(cfg *Config) {
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvInt("DB_MIN_CONNS", cfg.Database.MinConns)

	cfg.Fipe.BaseURL = getEnv("FIPE_API_BASE_URL", cfg.Fipe.BaseURL)
	cfg.Fipe.UserAgent = getEnv("FIPE_USER_AGENT", cfg.Fipe.UserAgent)
	cfg.Fipe.TimeoutMarcas = getEnvDuration("FIPE_TIMEOUT_MARCAS", cfg.Fipe.TimeoutMarcas)
	cfg.Fipe.TimeoutModelos = getEnvDuration("FIPE_TIMEOUT_MODELOS", cfg.Fipe.TimeoutModelos)
	cfg.Fipe.TimeoutAnos = getEnvDuration("FIPE_TIMEOUT_ANOS", cfg.Fipe.TimeoutAnos)
	cfg.Fipe.TimeoutValor = getEnvDuration("FIPE_TIMEOUT_VALOR", cfg.Fipe.TimeoutValor)
	cfg.Fipe.RateLimit = getEnvFloat("FIPE_RATE_LIMIT", cfg.Fipe.RateLimit)

	cfg.Cache.Backend = getEnv("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.MaxEntries = getEnvInt("CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.Redis.Addr = getEnv("REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = getEnvInt("REDIS_DB", cfg.Cache.Redis.DB)
	cfg.Cache.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", cfg.Cache.Redis.KeyPrefix)

	cfg.APIPort = getEnv("API_PORT", cfg.APIPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Metrics = getEnvBool("METRICS_ENABLED", cfg.Metrics)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
