package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/neurosim-io/neurosim/internal/dispatch"
	"github.com/neurosim-io/neurosim/internal/session"
	"github.com/neurosim-io/neurosim/pkg/logging"
)

var sessionTestCmd = &cobra.Command{
	Use:   "session-test",
	Short: "Run a full session lifecycle locally and print the results",
	Long: `Drive one session through its complete lifecycle without a server:
connect, calibrate against a task, subscribe to the stream, collect ticks
for a while, then disconnect. Useful for eyeballing generator output and
metric behavior before pointing real clients at the engine.`,
	RunE: runSessionTest,
}

var (
	testDevice   string
	testTask     string
	testDuration time.Duration
)

func init() {
	rootCmd.AddCommand(sessionTestCmd)

	sessionTestCmd.Flags().StringVar(&testDevice, "device", "sim-001", "device identifier to connect")
	sessionTestCmd.Flags().StringVar(&testTask, "task", "baseline", "calibration task (baseline, stress, empathy, focus)")
	sessionTestCmd.Flags().DurationVar(&testDuration, "duration", 5*time.Second, "how long to stream after calibration")
}

func runSessionTest(cmd *cobra.Command, args []string) error {
	logger := logging.WithFields(logging.Fields{"component": "session_test"})

	config := session.DefaultConfig()
	config.Seed = 42
	config.MinCalibration = 500 * time.Millisecond
	config.CalibrationTick = 100 * time.Millisecond
	config.Dispatch = &dispatch.Config{
		RawInterval:     100 * time.Millisecond,
		MetricsInterval: 500 * time.Millisecond,
		PushTimeout:     50 * time.Millisecond,
	}

	manager, err := session.NewManager(config, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	fmt.Println("🧠 Session Lifecycle Test")
	fmt.Println("=========================")

	s, err := manager.Connect(testDevice, "local-test", false)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	fmt.Printf("Connected: session=%s device=%s channels=%d\n",
		s.ID, s.Device.Type, s.Device.Channels)

	fmt.Printf("Calibrating (%s task)...\n", testTask)
	err = manager.StartCalibration(s.ID, session.CalibrationParams{
		Duration: time.Second,
		TaskType: session.TaskType(testTask),
	})
	if err != nil {
		return fmt.Errorf("calibration failed to start: %w", err)
	}

	for s.State() == session.StateCalibrating || s.State() == session.StateCreated {
		time.Sleep(50 * time.Millisecond)
	}

	if b := s.Baseline(); b != nil {
		fmt.Printf("Baseline: stress=%.1f focus=%.1f empathy=%.1f regulation=%.1f\n",
			b.Stress, b.Focus, b.Empathy, b.Regulation)
	}

	sub := dispatch.NewChanSubscriber(32)
	if err := manager.Subscribe(s.ID, sub); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	fmt.Printf("Streaming for %s...\n", testDuration)
	deadline := time.After(testDuration)
	var rawTicks, metricTicks int

collect:
	for {
		select {
		case res, ok := <-sub.C():
			if !ok {
				break collect
			}
			switch res.Kind {
			case dispatch.KindRaw:
				rawTicks++
			case dispatch.KindMetrics:
				metricTicks++
				fmt.Printf("  [%s] stress=%5.1f focus=%5.1f empathy=%5.1f regulation=%5.1f quality=%.2f\n",
					res.Timestamp.Format("15:04:05.000"),
					res.Metrics.Stress, res.Metrics.Focus,
					res.Metrics.Empathy, res.Metrics.Regulation,
					res.SignalQuality)
			}
		case <-deadline:
			break collect
		}
	}

	manager.Unsubscribe(s.ID, sub.ID())
	sub.Close()

	if err := manager.Disconnect(s.ID); err != nil {
		return fmt.Errorf("disconnect failed: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Done: %d raw ticks, %d metric ticks\n", rawTicks, metricTicks)
	return nil
}
