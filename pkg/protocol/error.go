package protocol

import (
	"github.com/vango-dev/vreconcile/internal/errors"
)

// ErrorMessage reports a failure to the other side of a connection.
type ErrorMessage struct {
	Code    string // Registry code, e.g. "R301"
	Message string // Human-readable error message
	Fatal   bool   // If true, the connection is closed after sending
}

// NewErrorMessage builds an ErrorMessage from err, keeping its code.
func NewErrorMessage(err error, fatal bool) *ErrorMessage {
	code := errors.CodeOf(err)
	if code == "" {
		code = "R302"
	}
	return &ErrorMessage{Code: code, Message: err.Error(), Fatal: fatal}
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code + ": " + em.Message
	}
	return em.Code + ": " + em.Message
}

// EncodeErrorMessage encodes an ErrorMessage to bytes.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteString(em.Code)
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage decodes an ErrorMessage. Errors carry code R403.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	var em ErrorMessage
	var err error

	em.Code, err = d.ReadString()
	if err == nil {
		em.Message, err = d.ReadString()
	}
	if err == nil {
		em.Fatal, err = d.ReadBool()
	}
	if err == nil {
		err = d.finish()
	}
	if err != nil {
		return nil, malformed(err, "error message")
	}
	return &em, nil
}
