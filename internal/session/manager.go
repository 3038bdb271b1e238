package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neurosim-io/neurosim/internal/dispatch"
	"github.com/neurosim-io/neurosim/pkg/logging"
	"github.com/neurosim-io/neurosim/pkg/metrics"
	"github.com/neurosim-io/neurosim/pkg/signal"
	"github.com/neurosim-io/neurosim/pkg/spectral"
)

// Config holds configuration for the session manager.
type Config struct {
	// SampleRate is the simulated acquisition rate in Hz.
	SampleRate int `json:"sample_rate"`
	// WindowSize is the pipeline window length in samples; must be a power
	// of two for the transform.
	WindowSize int `json:"window_size"`
	// SmoothingWindow is the metric moving-average length in passes.
	SmoothingWindow int `json:"smoothing_window"`
	// Seed fixes the generator seed for reproducible signals; zero selects
	// a time-based seed per session.
	Seed int64 `json:"seed"`
	// MinCalibration and MaxCalibration bound accepted calibration
	// durations. MaxCalibration is enforced by the manager even if a caller
	// holds its connection open longer.
	MinCalibration time.Duration `json:"min_calibration"`
	MaxCalibration time.Duration `json:"max_calibration"`
	// CalibrationTick is the pipeline cadence during a calibration run.
	CalibrationTick time.Duration `json:"calibration_tick"`
	// IdleTimeout reclaims sessions that have had no subscribers and no
	// activity for this long. Zero disables the reaper.
	IdleTimeout time.Duration `json:"idle_timeout"`
	// ReapInterval is how often the idle reaper scans.
	ReapInterval time.Duration `json:"reap_interval"`
	// Dispatch configures the streaming dispatcher.
	Dispatch *dispatch.Config `json:"dispatch"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		SampleRate:      256,
		WindowSize:      256,
		SmoothingWindow: metrics.DefaultSmoothingWindow,
		MinCalibration:  30 * time.Second,
		MaxCalibration:  300 * time.Second,
		CalibrationTick: 250 * time.Millisecond,
		IdleTimeout:     5 * time.Minute,
		ReapInterval:    30 * time.Second,
	}
}

// Manager owns all session state and coordinates the generation, analysis
// and derivation pipeline per session. The streaming dispatcher it creates
// references sessions by identifier only and never owns them.
type Manager struct {
	config     *Config
	logger     logging.Logger
	dispatcher *dispatch.Dispatcher

	mu       sync.Mutex
	sessions map[string]*Session
	owners   map[string]string // (deviceID, userID) -> sessionID

	reapCancel context.CancelFunc
	reapDone   chan struct{}
}

// NewManager creates a session manager. A nil config selects defaults.
func NewManager(config *Config, logger logging.Logger) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.SampleRate <= 0 {
		return nil, NewSessionError(ErrCodeInvalidParameters, "",
			fmt.Sprintf("sample rate must be positive, got %d", config.SampleRate), nil)
	}
	if !spectral.IsPowerOfTwo(config.WindowSize) {
		return nil, NewSessionError(ErrCodeInvalidParameters, "",
			fmt.Sprintf("window size must be a power of two, got %d", config.WindowSize), nil)
	}
	if config.SmoothingWindow < 1 {
		config.SmoothingWindow = metrics.DefaultSmoothingWindow
	}
	if config.CalibrationTick <= 0 {
		config.CalibrationTick = 250 * time.Millisecond
	}
	if config.ReapInterval <= 0 {
		config.ReapInterval = 30 * time.Second
	}
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "session_manager"})
	}

	m := &Manager{
		config:   config,
		logger:   logger,
		sessions: make(map[string]*Session),
		owners:   make(map[string]string),
	}
	m.dispatcher = dispatch.New(m, config.Dispatch, logger.WithFields(logging.Fields{
		"component": "dispatcher",
	}))

	if config.IdleTimeout > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		m.reapCancel = cancel
		m.reapDone = make(chan struct{})
		go m.reapLoop(ctx)
	}

	return m, nil
}

// Dispatcher exposes the manager-owned streaming dispatcher.
func (m *Manager) Dispatcher() *dispatch.Dispatcher {
	return m.dispatcher
}

func ownerKey(deviceID, userID string) string {
	return deviceID + "\x00" + userID
}

// Connect creates a session binding a user to a simulated device. An active
// session for the same (device, user) pair fails with DUPLICATE_SESSION
// unless replace is set, in which case the existing session is disconnected
// first.
func (m *Manager) Connect(deviceID, userID string, replace bool) (*Session, error) {
	if deviceID == "" || userID == "" {
		return nil, NewSessionError(ErrCodeInvalidParameters, "",
			"device and user identifiers are required", nil)
	}
	profile, ok := lookupDevice(deviceID)
	if !ok {
		return nil, NewSessionError(ErrCodeInvalidDevice, "",
			fmt.Sprintf("unknown device %q", deviceID), nil)
	}

	key := ownerKey(deviceID, userID)

	m.mu.Lock()
	// The lock is dropped for the disconnect, so a concurrent Connect for
	// the same pair may install a new owner in the meantime; re-check until
	// the entry is free and insert under the same lock hold.
	for {
		existing, ok := m.owners[key]
		if !ok {
			break
		}
		m.mu.Unlock()
		if !replace {
			return nil, NewSessionError(ErrCodeDuplicateSession, existing,
				fmt.Sprintf("active session exists for device %q", deviceID), nil)
		}
		m.Disconnect(existing)
		m.mu.Lock()
	}

	now := time.Now()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		DeviceID:     deviceID,
		Device:       profile,
		SampleRate:   m.config.SampleRate,
		WindowSize:   m.config.WindowSize,
		CreatedAt:    now,
		state:        StateCreated,
		lastActivity: now,
		gen:          signal.NewGenerator(profile.Channels, m.config.SampleRate, m.config.Seed),
		analyzer:     spectral.NewAnalyzer(m.config.SampleRate),
		deriver:      metrics.NewDeriver(m.config.SmoothingWindow),
	}
	m.sessions[s.ID] = s
	m.owners[key] = s.ID
	m.mu.Unlock()

	m.logger.Info("session connected", logging.Fields{
		"session_id": s.ID,
		"device_id":  deviceID,
		"user_id":    userID,
		"device":     profile.Type,
		"channels":   profile.Channels,
	})
	return s, nil
}

// Disconnect tears down a session: it cancels any calibration run, stops the
// delivery loop and releases generator state. Idempotent; disconnecting an
// unknown or already-disconnected session succeeds, so it is safe to call
// during error unwind.
func (m *Manager) Disconnect(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
		// The owner entry may already name a replacement session; only
		// remove it while it still points at this one.
		key := ownerKey(s.DeviceID, s.UserID)
		if m.owners[key] == sessionID {
			delete(m.owners, key)
		}
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	if s.calCancel != nil {
		s.calCancel()
		s.calCancel = nil
	}
	s.state = StateDisconnected
	s.gen = nil
	s.mu.Unlock()

	m.dispatcher.StopSession(sessionID)

	m.logger.Info("session disconnected", logging.Fields{
		"session_id": sessionID,
	})
	return nil
}

// lookup finds a live session.
func (m *Manager) lookup(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, NewSessionError(ErrCodeSessionNotFound, sessionID,
			"session not found", nil)
	}
	return s, nil
}

// Status returns the read-only session summary.
func (m *Manager) Status(sessionID string) (*Status, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return nil, NewSessionError(ErrCodeSessionNotFound, sessionID,
			"session not connected", nil)
	}
	return s.status(), nil
}

// Metrics returns the session's derived metrics. With realtime set it runs
// one synchronous pipeline pass; otherwise it returns the last smoothed
// value without forcing a new pass.
func (m *Manager) Metrics(sessionID string, realtime bool) (metrics.NeuralMetrics, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return metrics.NeuralMetrics{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected || s.gen == nil {
		return metrics.NeuralMetrics{}, NewSessionError(ErrCodeSessionNotFound, sessionID,
			"session not connected", nil)
	}
	if !realtime {
		return s.lastMetrics, nil
	}
	res, err := s.tick(time.Now())
	if err != nil {
		return metrics.NeuralMetrics{}, err
	}
	return res.Metrics, nil
}

// StartCalibration begins a fixed-duration baseline run. Valid only from
// Created or Ready; the run executes on a manager-owned goroutine, bounded
// by MaxCalibration, and stores the resulting metrics as the session
// baseline on completion.
func (m *Manager) StartCalibration(sessionID string, params CalibrationParams) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	if params.Duration < m.config.MinCalibration || params.Duration > m.config.MaxCalibration {
		return NewSessionError(ErrCodeInvalidParameters, sessionID,
			fmt.Sprintf("calibration duration %s outside [%s, %s]",
				params.Duration, m.config.MinCalibration, m.config.MaxCalibration), nil)
	}
	if !validTask(params.TaskType) {
		return NewSessionError(ErrCodeInvalidParameters, sessionID,
			fmt.Sprintf("unknown calibration task %q", params.TaskType), nil)
	}

	s.mu.Lock()
	if s.state != StateCreated && s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return NewSessionError(ErrCodeInvalidState, sessionID,
			fmt.Sprintf("cannot calibrate from state %q", state), nil)
	}
	s.state = StateCalibrating
	s.deriver.Reset()
	applyTaskBias(s.gen, params.TaskType)

	duration := params.Duration
	if duration > m.config.MaxCalibration {
		duration = m.config.MaxCalibration
	}
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	s.calCancel = cancel
	s.mu.Unlock()

	m.logger.Info("calibration started", logging.Fields{
		"session_id": sessionID,
		"task":       string(params.TaskType),
		"duration":   params.Duration.String(),
	})
	go m.runCalibration(ctx, s)
	return nil
}

// runCalibration drives pipeline passes until the calibration deadline, then
// promotes the last derived metrics to the session baseline. If the session
// was disconnected mid-run the result is discarded.
func (m *Manager) runCalibration(ctx context.Context, s *Session) {
	ticker := time.NewTicker(m.config.CalibrationTick)
	defer ticker.Stop()

	pass := func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != StateCalibrating || s.gen == nil {
			return false
		}
		if _, err := s.tick(time.Now()); err != nil {
			m.logger.Error("calibration pass failed", logging.Fields{
				"session_id": s.ID,
				"error":      err.Error(),
			})
			// Leave the session in Ready, without a baseline, so it can
			// be recalibrated or reaped rather than stuck Calibrating.
			s.state = StateReady
			if s.calCancel != nil {
				s.calCancel()
				s.calCancel = nil
			}
			return false
		}
		return true
	}

	if !pass() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			m.finishCalibration(s)
			return
		case <-ticker.C:
			if !pass() {
				return
			}
		}
	}
}

func (m *Manager) finishCalibration(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCalibrating {
		return
	}
	baseline := s.lastMetrics
	s.baseline = &baseline
	s.state = StateReady
	s.calCancel = nil

	m.logger.Info("calibration completed", logging.Fields{
		"session_id": s.ID,
		"stress":     baseline.Stress,
		"focus":      baseline.Focus,
		"empathy":    baseline.Empathy,
		"regulation": baseline.Regulation,
	})
}

// Subscribe attaches a delivery target to the session's stream and starts
// streaming. Valid from Ready or Streaming; repeated subscribes are
// idempotent with respect to state.
func (m *Manager) Subscribe(sessionID string, sub dispatch.Subscriber) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateReady && s.state != StateStreaming {
		state := s.state
		s.mu.Unlock()
		return NewSessionError(ErrCodeInvalidState, sessionID,
			fmt.Sprintf("cannot subscribe from state %q", state), nil)
	}
	s.state = StateStreaming
	s.lastActivity = time.Now()
	s.mu.Unlock()

	m.dispatcher.Subscribe(sessionID, sub)
	return nil
}

// Unsubscribe removes a delivery target. Removing the last subscriber stops
// the session's delivery loop; unknown subscribers are ignored.
func (m *Manager) Unsubscribe(sessionID, subscriberID string) {
	m.dispatcher.Unsubscribe(sessionID, subscriberID)
	if s, err := m.lookup(sessionID); err == nil {
		s.mu.Lock()
		s.lastActivity = time.Now()
		s.mu.Unlock()
	}
}

// RunTick implements dispatch.Pipeline: one pipeline pass for the session,
// serialized against all other access to that session's state.
func (m *Manager) RunTick(sessionID string) (*dispatch.TickResult, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected || s.gen == nil {
		return nil, NewSessionError(ErrCodeSessionNotFound, sessionID,
			"session not connected", nil)
	}
	return s.tick(time.Now())
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// reapLoop disconnects sessions that have had no subscribers and no
// activity past the idle timeout, bounding per-session memory in
// long-running deployments.
func (m *Manager) reapLoop(ctx context.Context) {
	defer close(m.reapDone)

	ticker := time.NewTicker(m.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range m.idleSessions() {
				m.logger.Info("reclaiming idle session", logging.Fields{
					"session_id": id,
				})
				m.Disconnect(id)
			}
		}
	}
}

func (m *Manager) idleSessions() []string {
	now := time.Now()

	m.mu.Lock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.Unlock()

	var idle []string
	for _, s := range candidates {
		if m.dispatcher.SubscriberCount(s.ID) > 0 {
			continue
		}
		s.mu.Lock()
		stale := s.state != StateCalibrating && now.Sub(s.lastActivity) > m.config.IdleTimeout
		s.mu.Unlock()
		if stale {
			idle = append(idle, s.ID)
		}
	}
	return idle
}

// Close disconnects every session and stops the dispatcher and reaper.
func (m *Manager) Close() {
	if m.reapCancel != nil {
		m.reapCancel()
		<-m.reapDone
	}

	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Disconnect(id)
	}
	m.dispatcher.Close()
}
