package session

import (
	"context"
	"sync"
	"time"

	"github.com/neurosim-io/neurosim/internal/dispatch"
	"github.com/neurosim-io/neurosim/pkg/metrics"
	"github.com/neurosim-io/neurosim/pkg/signal"
	"github.com/neurosim-io/neurosim/pkg/spectral"
)

// State is a session lifecycle state.
type State string

const (
	StateCreated      State = "created"
	StateCalibrating  State = "calibrating"
	StateReady        State = "ready"
	StateStreaming    State = "streaming"
	StateDisconnected State = "disconnected"
)

// TaskType selects the calibration task shaping applied to the generator
// during a baseline pass.
type TaskType string

const (
	TaskBaseline TaskType = "baseline"
	TaskStress   TaskType = "stress"
	TaskEmpathy  TaskType = "empathy"
	TaskFocus    TaskType = "focus"
)

func validTask(t TaskType) bool {
	switch t {
	case TaskBaseline, TaskStress, TaskEmpathy, TaskFocus:
		return true
	}
	return false
}

// CalibrationParams configures one calibration run.
type CalibrationParams struct {
	Duration time.Duration `json:"duration"`
	TaskType TaskType      `json:"task_type"`
}

// Status is the read-only session summary returned to callers.
type Status struct {
	Connected     bool      `json:"connected"`
	State         State     `json:"state"`
	DeviceType    string    `json:"device_type"`
	SignalQuality float64   `json:"signal_quality"`
	LastUpdate    time.Time `json:"last_update"`
}

// Session is one user's connection to one simulated device. All mutable
// fields are guarded by the session's own mutex; there is no repository-wide
// lock on the pipeline path.
type Session struct {
	ID         string
	UserID     string
	DeviceID   string
	Device     DeviceProfile
	SampleRate int
	WindowSize int
	CreatedAt  time.Time

	mu           sync.Mutex
	state        State
	baseline     *metrics.NeuralMetrics
	lastMetrics  metrics.NeuralMetrics
	hasMetrics   bool
	lastActivity time.Time
	gen          *signal.Generator
	analyzer     *spectral.Analyzer
	deriver      *metrics.Deriver
	calCancel    context.CancelFunc
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Baseline returns a copy of the calibration baseline, or nil before the
// first calibration completes.
func (s *Session) Baseline() *metrics.NeuralMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseline == nil {
		return nil
	}
	b := *s.baseline
	return &b
}

// status builds the caller-facing summary. Caller must hold s.mu.
func (s *Session) status() *Status {
	return &Status{
		Connected:     s.state != StateDisconnected,
		State:         s.state,
		DeviceType:    s.Device.Type,
		SignalQuality: s.signalQuality(),
		LastUpdate:    s.lastActivity,
	}
}

// signalQuality maps the generator's current noise level onto [0, 1].
// Caller must hold s.mu.
func (s *Session) signalQuality() float64 {
	if s.gen == nil {
		return 0
	}
	q := 1 - s.gen.NoiseLevel()/10
	if q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}

// rawSampleLen is the number of decimated samples included in the raw tap.
const rawSampleLen = 64

// tick runs one generate→analyze→derive pass and records its results as the
// session's latest state. Caller must hold s.mu.
func (s *Session) tick(now time.Time) (*dispatch.TickResult, error) {
	w := s.gen.Generate(s.WindowSize)

	var acc spectral.BandPowers
	for _, ch := range w.Channels {
		bp, err := s.analyzer.BandPowers(ch)
		if err != nil {
			return nil, err
		}
		acc.Delta += bp.Delta
		acc.Theta += bp.Theta
		acc.Alpha += bp.Alpha
		acc.Beta += bp.Beta
		acc.Gamma += bp.Gamma
	}
	n := float64(len(w.Channels))
	acc.Delta /= n
	acc.Theta /= n
	acc.Alpha /= n
	acc.Beta /= n
	acc.Gamma /= n

	stats := signal.ComputeStats(w)
	m := s.deriver.Derive(acc, stats, now)

	s.lastMetrics = m
	s.hasMetrics = true
	s.lastActivity = now

	return &dispatch.TickResult{
		SessionID:     s.ID,
		Timestamp:     now,
		Metrics:       m,
		Bands:         acc,
		RawSample:     decimate(w.Channels[0], rawSampleLen),
		SignalQuality: s.signalQuality(),
	}, nil
}

// decimate reduces a window to at most n evenly spaced samples for the raw
// stream tap.
func decimate(samples []float64, n int) []float64 {
	if len(samples) <= n {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}
	out := make([]float64, n)
	stride := float64(len(samples)) / float64(n)
	for i := range n {
		out[i] = samples[int(float64(i)*stride)]
	}
	return out
}

// applyTaskBias shapes the generator's band targets for a calibration task.
func applyTaskBias(g *signal.Generator, task TaskType) {
	switch task {
	case TaskStress:
		g.ScaleBand("beta", 1.8)
		g.ScaleBand("alpha", 0.7)
	case TaskFocus:
		g.ScaleBand("beta", 1.5)
		g.SetNoiseLevel(1.0)
	case TaskEmpathy:
		g.ScaleBand("alpha", 1.5)
		g.ScaleBand("theta", 1.4)
	case TaskBaseline:
		// Unbiased resting state.
	}
}
