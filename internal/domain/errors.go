package domain

import (
	"errors"
	"net/http"
)

// Sentinel errors, match with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// NotFoundError indicates an unknown article or conversation.
type NotFoundError struct {
	Message string
}

// ValidationError indicates input rejected at the boundary.
type ValidationError struct {
	Message string
}

func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int   { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// HTTPError is implemented by errors that know their HTTP status.
type HTTPError interface {
	error
	StatusCode() int
}
