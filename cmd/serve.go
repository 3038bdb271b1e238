package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neurosim-io/neurosim/configs"
	"github.com/neurosim-io/neurosim/internal/dispatch"
	"github.com/neurosim-io/neurosim/internal/session"
	"github.com/neurosim-io/neurosim/internal/transport"
	"github.com/neurosim-io/neurosim/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the streaming engine as an HTTP/WebSocket server",
	Long: `Start the engine and expose it over HTTP. Session lifecycle operations
(connect, calibrate, status, metrics, disconnect) are served as JSON
endpoints, and /ws upgrades to a WebSocket that streams raw signal windows
and derived metrics on independent cadences.

The server shuts down gracefully on SIGINT/SIGTERM: in-flight requests are
drained and every active session is disconnected before exit.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "listen address")
	serveCmd.Flags().Int("port", 8090, "listen port")
	serveCmd.Flags().Int("sample-rate", 256, "simulated acquisition rate in Hz")
	serveCmd.Flags().Int("window-size", 256, "analysis window length in samples (power of two)")
	serveCmd.Flags().Int64("seed", 0, "generator seed (0 selects a time-based seed per session)")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("signal.sample_rate", serveCmd.Flags().Lookup("sample-rate"))
	viper.BindPFlag("signal.window_size", serveCmd.Flags().Lookup("window-size"))
	viper.BindPFlag("signal.seed", serveCmd.Flags().Lookup("seed"))
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := configs.ValidateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.WithFields(logging.Fields{"component": "serve"})

	manager, err := session.NewManager(managerConfig(config), logger.WithFields(logging.Fields{
		"component": "session_manager",
	}))
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	defer manager.Close()

	server := transport.NewServer(manager, logger.WithFields(logging.Fields{
		"component": "transport",
	}))

	addr := net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", logging.Fields{
			"addr":        addr,
			"sample_rate": config.Signal.SampleRate,
			"window_size": config.Signal.WindowSize,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", logging.Fields{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("shutdown did not complete cleanly", logging.Fields{"error": err.Error()})
	}

	return nil
}

// managerConfig maps the application configuration onto the session manager's
// configuration.
func managerConfig(config *configs.Config) *session.Config {
	return &session.Config{
		SampleRate:      config.Signal.SampleRate,
		WindowSize:      config.Signal.WindowSize,
		SmoothingWindow: config.Metrics.SmoothingWindow,
		Seed:            config.Signal.Seed,
		MinCalibration:  config.Session.MinCalibration,
		MaxCalibration:  config.Session.MaxCalibration,
		CalibrationTick: config.Session.CalibrationTick,
		IdleTimeout:     config.Session.IdleTimeout,
		ReapInterval:    config.Session.ReapInterval,
		Dispatch: &dispatch.Config{
			RawInterval:     config.Stream.RawInterval,
			MetricsInterval: config.Stream.MetricsInterval,
			PushTimeout:     config.Stream.PushTimeout,
		},
	}
}
