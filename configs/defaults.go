package configs

import (
	"time"

	"github.com/spf13/viper"

	"github.com/neurosim-io/neurosim/pkg/metrics"
)

// SetDefaults sets default configuration values for all components
func SetDefaults(v *viper.Viper) {
	// Application defaults
	if !v.IsSet("verbose") {
		v.Set("verbose", false)
	}
	if !v.IsSet("log_level") {
		v.Set("log_level", "info")
	}

	// Signal generation defaults
	if !v.IsSet("signal.sample_rate") {
		v.Set("signal.sample_rate", 256)
	}
	if !v.IsSet("signal.window_size") {
		v.Set("signal.window_size", 256)
	}
	if !v.IsSet("signal.seed") {
		v.Set("signal.seed", 0)
	}

	// Metric derivation defaults
	if !v.IsSet("metrics.smoothing_window") {
		v.Set("metrics.smoothing_window", metrics.DefaultSmoothingWindow)
	}

	// Streaming defaults
	if !v.IsSet("stream.raw_interval") {
		v.Set("stream.raw_interval", 100*time.Millisecond)
	}
	if !v.IsSet("stream.metrics_interval") {
		v.Set("stream.metrics_interval", 1*time.Second)
	}
	if !v.IsSet("stream.push_timeout") {
		v.Set("stream.push_timeout", 50*time.Millisecond)
	}

	// Session lifecycle defaults
	if !v.IsSet("session.min_calibration") {
		v.Set("session.min_calibration", 30*time.Second)
	}
	if !v.IsSet("session.max_calibration") {
		v.Set("session.max_calibration", 300*time.Second)
	}
	if !v.IsSet("session.calibration_tick") {
		v.Set("session.calibration_tick", 250*time.Millisecond)
	}
	if !v.IsSet("session.idle_timeout") {
		v.Set("session.idle_timeout", 5*time.Minute)
	}
	if !v.IsSet("session.reap_interval") {
		v.Set("session.reap_interval", 30*time.Second)
	}

	// Server defaults
	if !v.IsSet("server.host") {
		v.Set("server.host", "0.0.0.0")
	}
	if !v.IsSet("server.port") {
		v.Set("server.port", 8090)
	}
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	return &Config{
		Verbose:  false,
		LogLevel: "info",
		Signal: SignalConfig{
			SampleRate: 256,
			WindowSize: 256,
			Seed:       0,
		},
		Metrics: MetricsConfig{
			SmoothingWindow: metrics.DefaultSmoothingWindow,
		},
		Stream: StreamConfig{
			RawInterval:     100 * time.Millisecond,
			MetricsInterval: 1 * time.Second,
			PushTimeout:     50 * time.Millisecond,
		},
		Session: SessionConfig{
			MinCalibration:  30 * time.Second,
			MaxCalibration:  300 * time.Second,
			CalibrationTick: 250 * time.Millisecond,
			IdleTimeout:     5 * time.Minute,
			ReapInterval:    30 * time.Second,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
	}
}
