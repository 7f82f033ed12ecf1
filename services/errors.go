package services

import (
	"errors"

	"github.com/yeremiapane/delivery-app/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("not allowed")
)

// ValidationError is returned for requests that are malformed before any
// state is read.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// ConflictError means the order is no longer in the state the caller
// assumed. Order holds the authoritative copy so the caller can re-sync.
type ConflictError struct {
	Reason string
	Order  models.Order
}

func (e *ConflictError) Error() string { return e.Reason }
