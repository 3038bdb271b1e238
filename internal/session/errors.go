package session

import "errors"

// Error codes for session operations.
const (
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeDuplicateSession  = "DUPLICATE_SESSION"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeInvalidDevice     = "INVALID_DEVICE"
)

// SessionError represents session lifecycle and validation errors.
type SessionError struct {
	Code      string `json:"code"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Cause     error  `json:"-"`
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// NewSessionError creates a new session error.
func NewSessionError(code, sessionID, message string, cause error) *SessionError {
	return &SessionError{
		Code:      code,
		SessionID: sessionID,
		Message:   message,
		Cause:     cause,
	}
}

// IsCode reports whether err is a SessionError carrying the given code.
func IsCode(err error, code string) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Code == code
}
