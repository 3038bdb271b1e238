package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/neurosim-io/neurosim/pkg/logging"
)

// Config holds configuration for the streaming dispatcher.
type Config struct {
	// RawInterval is the cadence of the raw signal tap.
	RawInterval time.Duration `json:"raw_interval"`
	// MetricsInterval is the cadence of the aggregated metrics push.
	MetricsInterval time.Duration `json:"metrics_interval"`
	// PushTimeout bounds one subscriber delivery; a push exceeding it drops
	// that subscriber without affecting the others.
	PushTimeout time.Duration `json:"push_timeout"`
}

// Dispatcher runs one periodic delivery loop per session that has live
// subscribers. The loop starts on the first subscription and stops exactly
// when the last one is removed, releasing its timers. Sessions are fully
// independent: there is no shared tick and no global lock on the hot path.
type Dispatcher struct {
	pipeline Pipeline
	config   *Config
	logger   logging.Logger

	mu    sync.Mutex
	loops map[string]*loop
}

// loop is the delivery state for a single session.
type loop struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}

	mu   sync.Mutex
	subs map[string]Subscriber
}

// New creates a dispatcher driving the given pipeline. A nil config selects
// the default cadences (raw 100ms, metrics 1s, push bound 50ms).
func New(pipeline Pipeline, config *Config, logger logging.Logger) *Dispatcher {
	if config == nil {
		config = &Config{}
	}
	if config.RawInterval <= 0 {
		config.RawInterval = 100 * time.Millisecond
	}
	if config.MetricsInterval <= 0 {
		config.MetricsInterval = time.Second
	}
	if config.PushTimeout <= 0 {
		config.PushTimeout = 50 * time.Millisecond
	}
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "dispatcher"})
	}

	return &Dispatcher{
		pipeline: pipeline,
		config:   config,
		logger:   logger,
		loops:    make(map[string]*loop),
	}
}

// Subscribe attaches a subscriber to a session's stream, starting the
// session's delivery loop if it is the first. Returns the new subscriber
// count for the session.
func (d *Dispatcher) Subscribe(sessionID string, sub Subscriber) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.loops[sessionID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		l = &loop{
			sessionID: sessionID,
			cancel:    cancel,
			done:      make(chan struct{}),
			subs:      make(map[string]Subscriber),
		}
		d.loops[sessionID] = l
		go d.run(ctx, l)
	}

	l.mu.Lock()
	l.subs[sub.ID()] = sub
	n := len(l.subs)
	l.mu.Unlock()

	d.logger.Debug("subscriber added", logging.Fields{
		"session_id":  sessionID,
		"subscribers": n,
	})
	return n
}

// Unsubscribe detaches a subscriber, closing it and stopping the session's
// loop when it was the last one. Unknown subscribers are ignored. Returns
// the remaining subscriber count.
func (d *Dispatcher) Unsubscribe(sessionID, subID string) int {
	d.mu.Lock()
	l, ok := d.loops[sessionID]
	if !ok {
		d.mu.Unlock()
		return 0
	}

	l.mu.Lock()
	sub, found := l.subs[subID]
	delete(l.subs, subID)
	n := len(l.subs)
	l.mu.Unlock()

	if n == 0 {
		delete(d.loops, sessionID)
		l.cancel()
	}
	d.mu.Unlock()

	if found {
		sub.Close()
		d.logger.Debug("subscriber removed", logging.Fields{
			"session_id":  sessionID,
			"subscribers": n,
		})
	}
	return n
}

// SubscriberCount returns the number of live subscriptions for a session.
func (d *Dispatcher) SubscriberCount(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.loops[sessionID]
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// StopSession tears down a session's delivery loop and closes all of its
// subscribers. It waits for the loop goroutine to exit, so no timer outlives
// the session. Safe to call for sessions with no loop.
func (d *Dispatcher) StopSession(sessionID string) {
	d.mu.Lock()
	l, ok := d.loops[sessionID]
	if ok {
		delete(d.loops, sessionID)
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	l.cancel()
	<-l.done
	l.closeSubs()
}

// Close stops every delivery loop and waits for them to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	loops := make([]*loop, 0, len(d.loops))
	for id, l := range d.loops {
		loops = append(loops, l)
		delete(d.loops, id)
	}
	d.mu.Unlock()

	for _, l := range loops {
		l.cancel()
		<-l.done
		l.closeSubs()
	}
}

func (d *Dispatcher) run(ctx context.Context, l *loop) {
	defer close(l.done)

	raw := time.NewTicker(d.config.RawInterval)
	defer raw.Stop()
	agg := time.NewTicker(d.config.MetricsInterval)
	defer agg.Stop()

	d.logger.Debug("delivery loop started", logging.Fields{
		"session_id":       l.sessionID,
		"raw_interval":     d.config.RawInterval.String(),
		"metrics_interval": d.config.MetricsInterval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("delivery loop stopped", logging.Fields{
				"session_id": l.sessionID,
			})
			return
		case <-raw.C:
			if !d.tick(l, KindRaw) {
				return
			}
		case <-agg.C:
			if !d.tick(l, KindMetrics) {
				return
			}
		}
	}
}

// tick runs one pipeline pass and fans the result out to every subscriber.
// All subscribers of the session receive the same TickResult, so a given
// tick is never observed partially. Returns false when the session is gone
// and the loop must exit.
func (d *Dispatcher) tick(l *loop, kind string) bool {
	res, err := d.pipeline.RunTick(l.sessionID)
	if err != nil {
		// Session disconnected out from under the loop; tear down.
		d.logger.Warn("pipeline tick failed, stopping delivery loop", logging.Fields{
			"session_id": l.sessionID,
			"error":      err.Error(),
		})
		d.mu.Lock()
		if d.loops[l.sessionID] == l {
			delete(d.loops, l.sessionID)
		}
		d.mu.Unlock()
		l.cancel()
		l.closeSubs()
		return false
	}
	res.Kind = kind

	l.mu.Lock()
	snapshot := make(map[string]Subscriber, len(l.subs))
	for id, sub := range l.subs {
		snapshot[id] = sub
	}
	l.mu.Unlock()

	for id, sub := range snapshot {
		if err := sub.Send(res, d.config.PushTimeout); err != nil {
			if errors.Is(err, ErrTransportClosed) {
				d.logger.Debug("subscriber transport closed", logging.Fields{
					"session_id":    l.sessionID,
					"subscriber_id": id,
				})
			} else {
				d.logger.Warn("subscriber delivery timed out, dropping", logging.Fields{
					"session_id":    l.sessionID,
					"subscriber_id": id,
				})
			}
			d.Unsubscribe(l.sessionID, id)
		}
	}
	return true
}

func (l *loop) closeSubs() {
	l.mu.Lock()
	subs := make([]Subscriber, 0, len(l.subs))
	for id, sub := range l.subs {
		subs = append(subs, sub)
		delete(l.subs, id)
	}
	l.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
