package transport

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/neurosim-io/neurosim/internal/dispatch"
	"github.com/neurosim-io/neurosim/pkg/logging"
)

// wsSubscriber adapts a websocket connection to dispatch.Subscriber. Writes
// go through a buffered send channel drained by a single write pump, so a
// slow peer shows up as a full channel and a DeliveryTimeout instead of a
// blocked tick.
type wsSubscriber struct {
	id     string
	conn   *websocket.Conn
	send   chan *dispatch.TickResult
	done   chan struct{}
	once   sync.Once
	logger logging.Logger
}

func newWSSubscriber(conn *websocket.Conn, logger logging.Logger) *wsSubscriber {
	s := &wsSubscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan *dispatch.TickResult, 16),
		done: make(chan struct{}),
		logger: logger.WithFields(logging.Fields{
			"component": "ws_subscriber",
		}),
	}
	go s.writePump()
	return s
}

func (s *wsSubscriber) ID() string {
	return s.id
}

func (s *wsSubscriber) Send(res *dispatch.TickResult, timeout time.Duration) error {
	select {
	case <-s.done:
		return dispatch.ErrTransportClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.send <- res:
		return nil
	case <-s.done:
		return dispatch.ErrTransportClosed
	case <-timer.C:
		return dispatch.ErrDeliveryTimeout
	}
}

func (s *wsSubscriber) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

func (s *wsSubscriber) writePump() {
	defer s.Close()
	for {
		select {
		case <-s.done:
			return
		case res := <-s.send:
			if err := s.conn.WriteJSON(res); err != nil {
				s.logger.Debug("websocket write failed", logging.Fields{
					"subscriber_id": s.id,
					"error":         err.Error(),
				})
				return
			}
		}
	}
}
