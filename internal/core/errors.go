package core

import "errors"

// Error codes for session errors.
const (
	ErrCodeTransport           = "transport_error"
	ErrCodeProtocolViolation   = "protocol_violation"
	ErrCodeRegistrationTimeout = "registration_timeout"
)

// ErrClientQuit is returned once the observed client has sent QUIT.
var ErrClientQuit = errors.New("client quit")

// CoreError wraps a code, a human-readable message and an optional cause.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func protocolViolation(msg string) *CoreError {
	return &CoreError{Code: ErrCodeProtocolViolation, Message: msg}
}

// TransportError marks err as fatal to the current session.
func TransportError(msg string, err error) *CoreError {
	return &CoreError{Code: ErrCodeTransport, Message: msg, Err: err}
}

// RegistrationTimeout reports a client that never completed registration.
func RegistrationTimeout(err error) *CoreError {
	return &CoreError{Code: ErrCodeRegistrationTimeout, Message: "registration not completed in time", Err: err}
}

// HasCode reports whether err wraps a CoreError with the given code.
func HasCode(err error, code string) bool {
	var ce *CoreError
	return errors.As(err, &ce) && ce.Code == code
}
