package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Engine      EngineConfig    `mapstructure:"engine"`
	Probe       ProbeConfig     `mapstructure:"probe"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Namespace string `mapstructure:"namespace"`
}

type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Exporter       string  `mapstructure:"exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRate     float64 `mapstructure:"sample_rate"`
	LogsEnabled    bool    `mapstructure:"logs_enabled"`
}

type EngineConfig struct {
	Smoother  SmootherConfig  `mapstructure:"smoother"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Feedback  FeedbackConfig  `mapstructure:"feedback"`
	Pool      PoolConfig      `mapstructure:"pool"`
}

// SmootherConfig overrides per-metric noise parameters. Metrics not listed use
// the built-in defaults.
type SmootherConfig struct {
	ProcessNoise     map[string]float64 `mapstructure:"process_noise"`
	MeasurementNoise map[string]float64 `mapstructure:"measurement_noise"`
}

type ValidatorConfig struct {
	MinSamples     int     `mapstructure:"min_samples"`
	Dampening      float64 `mapstructure:"dampening"`
	BacktestWindow int     `mapstructure:"backtest_window"`
}

type FeedbackConfig struct {
	LearningRate      float64 `mapstructure:"learning_rate"`
	MaxNudge          float64 `mapstructure:"max_nudge"`
	DefaultConfidence float64 `mapstructure:"default_confidence"`
}

type PoolConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	CostPerQuery float64       `mapstructure:"cost_per_query"`
	VarianceSeed uint64        `mapstructure:"variance_seed"`

	// SweepInterval drives the server-side ClearExpired loop; zero disables it.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig guards the external acquisition call.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

type ProbeConfig struct {
	ServiceURL string `mapstructure:"service_url"`
	Timeout    int    `mapstructure:"timeout"`
	APIKey     string `mapstructure:"api_key" json:"-" yaml:"-"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("probe.api_key", "PROBE_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind PROBE_API_KEY environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects engine settings that would break the engine's invariants.
func (c *Config) Validate() error {
	fb := c.Engine.Feedback
	if fb.LearningRate <= 0 || fb.LearningRate > 1 {
		return fmt.Errorf("engine.feedback.learning_rate must be in (0,1], got %v", fb.LearningRate)
	}
	if fb.MaxNudge < 0 || fb.MaxNudge > 0.05 {
		return fmt.Errorf("engine.feedback.max_nudge must be in [0,0.05], got %v", fb.MaxNudge)
	}
	if fb.DefaultConfidence < 0 || fb.DefaultConfidence > 1 {
		return fmt.Errorf("engine.feedback.default_confidence must be in [0,1], got %v", fb.DefaultConfidence)
	}

	if c.Engine.Pool.TTL <= 0 {
		return fmt.Errorf("engine.pool.ttl must be positive, got %v", c.Engine.Pool.TTL)
	}
	if c.Engine.Pool.SweepInterval < 0 {
		return fmt.Errorf("engine.pool.sweep_interval must not be negative, got %v", c.Engine.Pool.SweepInterval)
	}
	if c.Engine.Pool.CostPerQuery < 0 {
		return fmt.Errorf("engine.pool.cost_per_query must not be negative, got %v", c.Engine.Pool.CostPerQuery)
	}

	v := c.Engine.Validator
	if v.Dampening < 0 || v.Dampening > 1 {
		return fmt.Errorf("engine.validator.dampening must be in [0,1], got %v", v.Dampening)
	}
	if v.MinSamples < 2 {
		return fmt.Errorf("engine.validator.min_samples must be at least 2, got %d", v.MinSamples)
	}

	for metric, q := range c.Engine.Smoother.ProcessNoise {
		if q <= 0 {
			return fmt.Errorf("engine.smoother.process_noise.%s must be positive", metric)
		}
	}
	for metric, r := range c.Engine.Smoother.MeasurementNoise {
		if r <= 0 {
			return fmt.Errorf("engine.smoother.measurement_noise.%s must be positive", metric)
		}
	}

	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Redis
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.namespace", "dte:")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.exporter", "otlp")
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	viper.SetDefault("telemetry.service_name", "dealer-trust-engine")
	viper.SetDefault("telemetry.service_version", "1.0.0")
	viper.SetDefault("telemetry.sample_rate", 0.2)
	viper.SetDefault("telemetry.logs_enabled", false)

	// Engine
	viper.SetDefault("engine.validator.min_samples", 5)
	viper.SetDefault("engine.validator.dampening", 0.5)
	viper.SetDefault("engine.validator.backtest_window", 12)
	viper.SetDefault("engine.feedback.learning_rate", 0.2)
	viper.SetDefault("engine.feedback.max_nudge", 0.05)
	viper.SetDefault("engine.feedback.default_confidence", 0.85)
	viper.SetDefault("engine.pool.ttl", "24h")
	viper.SetDefault("engine.pool.cost_per_query", 0.015)
	viper.SetDefault("engine.pool.variance_seed", 0)
	viper.SetDefault("engine.pool.sweep_interval", "1h")
	viper.SetDefault("engine.pool.breaker.failure_threshold", 5)
	viper.SetDefault("engine.pool.breaker.success_threshold", 2)
	viper.SetDefault("engine.pool.breaker.open_timeout", "60s")

	// Probe
	viper.SetDefault("probe.service_url", "http://localhost:3001")
	viper.SetDefault("probe.timeout", 30)
	viper.SetDefault("probe.api_key", "")
}
