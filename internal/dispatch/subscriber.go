package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neurosim-io/neurosim/pkg/metrics"
	"github.com/neurosim-io/neurosim/pkg/spectral"
)

// Tick kinds. Raw ticks carry the decimated window tap at the fast cadence;
// metrics ticks carry the aggregated push at the slow cadence. Both carry the
// full payload of the pipeline pass that produced them.
const (
	KindRaw     = "raw"
	KindMetrics = "metrics"
)

var (
	// ErrDeliveryTimeout reports a subscriber push that exceeded its bound.
	// The offending subscriber is dropped; others are unaffected.
	ErrDeliveryTimeout = errors.New("dispatch: delivery timed out")

	// ErrTransportClosed reports a push to a subscriber whose transport has
	// closed. Expected during disconnect, not an error condition.
	ErrTransportClosed = errors.New("dispatch: transport closed")
)

// TickResult is the payload of one pipeline pass, fanned out unmodified to
// every subscriber of the session so all of them observe the same tick.
type TickResult struct {
	SessionID     string                `json:"session_id"`
	Kind          string                `json:"kind"`
	Timestamp     time.Time             `json:"timestamp"`
	Metrics       metrics.NeuralMetrics `json:"metrics"`
	Bands         spectral.BandPowers   `json:"band_powers"`
	RawSample     []float64             `json:"raw_window_sample"`
	SignalQuality float64               `json:"signal_quality"`
}

// Pipeline runs one generate→analyze→derive pass for a session. Implemented
// by the session manager.
type Pipeline interface {
	RunTick(sessionID string) (*TickResult, error)
}

// Subscriber is one live delivery target attached to a session's stream.
// Send must return within the given timeout; implementations report
// ErrDeliveryTimeout or ErrTransportClosed rather than blocking the tick.
type Subscriber interface {
	ID() string
	Send(res *TickResult, timeout time.Duration) error
	Close() error
}

// ChanSubscriber is an in-process Subscriber backed by a buffered channel.
// It is the delivery target used by local consumers and tests; network
// transports implement the same interface.
type ChanSubscriber struct {
	id   string
	ch   chan *TickResult
	done chan struct{}
	once sync.Once
}

// NewChanSubscriber creates a channel subscriber with the given buffer depth.
func NewChanSubscriber(buffer int) *ChanSubscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &ChanSubscriber{
		id:   uuid.NewString(),
		ch:   make(chan *TickResult, buffer),
		done: make(chan struct{}),
	}
}

func (s *ChanSubscriber) ID() string {
	return s.id
}

// C returns the receive side of the subscription. Consumers should also
// select on Done to observe teardown.
func (s *ChanSubscriber) C() <-chan *TickResult {
	return s.ch
}

// Done is closed when the subscriber is torn down.
func (s *ChanSubscriber) Done() <-chan struct{} {
	return s.done
}

func (s *ChanSubscriber) Send(res *TickResult, timeout time.Duration) error {
	select {
	case <-s.done:
		return ErrTransportClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.ch <- res:
		return nil
	case <-s.done:
		return ErrTransportClosed
	case <-timer.C:
		return ErrDeliveryTimeout
	}
}

func (s *ChanSubscriber) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
