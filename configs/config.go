package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/neurosim-io/neurosim/pkg/spectral"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// Signal generation configuration
	Signal SignalConfig `mapstructure:"signal" yaml:"signal"`

	// Metric derivation configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Streaming dispatcher configuration
	Stream StreamConfig `mapstructure:"stream" yaml:"stream"`

	// Session lifecycle configuration
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// Server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// SignalConfig contains waveform generation settings
type SignalConfig struct {
	SampleRate int   `mapstructure:"sample_rate" yaml:"sample_rate"`
	WindowSize int   `mapstructure:"window_size" yaml:"window_size"`
	Seed       int64 `mapstructure:"seed" yaml:"seed"`
}

// MetricsConfig contains metric derivation settings
type MetricsConfig struct {
	SmoothingWindow int `mapstructure:"smoothing_window" yaml:"smoothing_window"`
}

// StreamConfig contains streaming dispatcher settings
type StreamConfig struct {
	RawInterval     time.Duration `mapstructure:"raw_interval" yaml:"raw_interval"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval" yaml:"metrics_interval"`
	PushTimeout     time.Duration `mapstructure:"push_timeout" yaml:"push_timeout"`
}

// SessionConfig contains session lifecycle settings
type SessionConfig struct {
	MinCalibration  time.Duration `mapstructure:"min_calibration" yaml:"min_calibration"`
	MaxCalibration  time.Duration `mapstructure:"max_calibration" yaml:"max_calibration"`
	CalibrationTick time.Duration `mapstructure:"calibration_tick" yaml:"calibration_tick"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ReapInterval    time.Duration `mapstructure:"reap_interval" yaml:"reap_interval"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Signal.SampleRate <= 0 {
		return fmt.Errorf("signal sample rate must be positive")
	}

	if !spectral.IsPowerOfTwo(config.Signal.WindowSize) {
		return fmt.Errorf("signal window size must be a power of two")
	}

	if config.Metrics.SmoothingWindow < 1 {
		return fmt.Errorf("metrics smoothing window must be at least 1")
	}

	if config.Stream.RawInterval <= 0 || config.Stream.MetricsInterval <= 0 {
		return fmt.Errorf("stream intervals must be positive")
	}

	if config.Session.MinCalibration <= 0 ||
		config.Session.MaxCalibration < config.Session.MinCalibration {
		return fmt.Errorf("calibration bounds must satisfy 0 < min <= max")
	}

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port out of range")
	}

	return nil
}
