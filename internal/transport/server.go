package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neurosim-io/neurosim/internal/session"
	"github.com/neurosim-io/neurosim/pkg/logging"
)

// Server exposes the session manager's logical operations over JSON HTTP and
// streams pipeline ticks to websocket subscribers. It is a thin adapter: all
// state and validation live in the manager.
type Server struct {
	manager  *session.Manager
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer creates the HTTP/websocket adapter around a manager.
func NewServer(manager *session.Manager, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "transport"})
	}
	return &Server{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// Routes returns the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/connect", s.handleConnect)
	mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/calibrate", s.handleCalibrate)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws", s.handleStream)
	return mux
}

type connectRequest struct {
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
	Replace  bool   `json:"replace,omitempty"`
}

type connectResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	sess, err := s.manager.Connect(req.DeviceID, req.UserID, req.Replace)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{SessionID: sess.ID})
}

type disconnectRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req disconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	// Disconnect is idempotent: unknown sessions still succeed.
	s.manager.Disconnect(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.manager.Status(r.URL.Query().Get("session_id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type calibrateRequest struct {
	SessionID string `json:"session_id"`
	Duration  int    `json:"duration_seconds"`
	TaskType  string `json:"task_type"`
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req calibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	err := s.manager.StartCalibration(req.SessionID, session.CalibrationParams{
		Duration: time.Duration(req.Duration) * time.Second,
		TaskType: session.TaskType(req.TaskType),
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	realtime := q.Get("realtime") == "true"
	m, err := s.manager.Metrics(q.Get("session_id"), realtime)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleStream upgrades the connection and attaches it as a subscriber to
// the session's stream. The subscription lives until the peer closes the
// socket or the session is torn down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Fields{
			"error": err.Error(),
		})
		return
	}

	sub := newWSSubscriber(conn, s.logger)
	if err := s.manager.Subscribe(sessionID, sub); err != nil {
		s.logger.Warn("stream subscribe rejected", logging.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		msg, _ := json.Marshal(errorBody(err))
		conn.WriteMessage(websocket.TextMessage, msg)
		sub.Close()
		return
	}

	s.logger.Info("stream subscriber attached", logging.Fields{
		"session_id":    sessionID,
		"subscriber_id": sub.ID(),
	})

	// Read pump: we never expect client frames, but reading is how the
	// close is observed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.manager.Unsubscribe(sessionID, sub.ID())
				sub.Close()
				return
			}
		}
	}()
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorBody(err error) errorResponse {
	var se *session.SessionError
	if errors.As(err, &se) {
		return errorResponse{Code: se.Code, Message: se.Message}
	}
	return errorResponse{Code: "INTERNAL", Message: err.Error()}
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case session.IsCode(err, session.ErrCodeSessionNotFound):
		status = http.StatusNotFound
	case session.IsCode(err, session.ErrCodeDuplicateSession):
		status = http.StatusConflict
	case session.IsCode(err, session.ErrCodeInvalidState):
		status = http.StatusConflict
	case session.IsCode(err, session.ErrCodeInvalidParameters),
		session.IsCode(err, session.ErrCodeInvalidDevice):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorBody(err))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
