package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnauthorized means the server rejected the session. The session has
// already been cleared when it is returned.
var ErrUnauthorized = errors.New("your session has expired, please sign in again")

const (
	networkMessage = "network error, please try again"
	genericMessage = "something went wrong, please try again"
)

// ValidationError is raised before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// NetworkError means no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return networkMessage }

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a response the server rejected with a message.
type ServerError struct {
	Status  int
	Message string
	Data    json.RawMessage
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// ActionError is what a dispatcher command returns on failure. Message is
// safe to show to the user as is.
type ActionError struct {
	Action  string
	Message string
	Err     error
}

func (e *ActionError) Error() string { return e.Message }

func (e *ActionError) Unwrap() error { return e.Err }

func actionError(action string, err error) *ActionError {
	return &ActionError{Action: action, Message: userMessage(err), Err: err}
}

// userMessage picks the text an actor sees for err.
func userMessage(err error) string {
	var (
		verr *ValidationError
		nerr *NetworkError
		serr *ServerError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized.Error()
	case errors.As(err, &nerr):
		return networkMessage
	case errors.As(err, &serr) && serr.Message != "":
		return serr.Message
	}
	return genericMessage
}
