// Package apierrors defines the failures surfaced by connections, requests and
// stores. Every typed error matches its sentinel through errors.Is, so callers
// can branch on the class of failure without type assertions.
package apierrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a component is built without a required collaborator.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidResponse is returned when a feed or entry payload is missing or malformed.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrTransport is returned when the HTTP exchange fails.
	ErrTransport = errors.New("transport failure")

	// ErrAborted is returned when an operation is cancelled before it settles.
	ErrAborted = errors.New("aborted")

	// ErrNotImplemented is returned by operations that exist in the contract but have no implementation.
	ErrNotImplemented = errors.New("not implemented")

	// ErrBatched is returned when an operation was queued on a batch scope instead of executed.
	ErrBatched = errors.New("operation queued in batch scope")
)

// ConfigurationError reports a missing or invalid collaborator.
type ConfigurationError struct {
	Component string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// InvalidResponseError reports a payload the caller cannot interpret.
type InvalidResponseError struct {
	Message string
	Body    []byte
}

func (e *InvalidResponseError) Error() string {
	return e.Message
}

func (e *InvalidResponseError) Is(target error) bool {
	return target == ErrInvalidResponse
}

// TransportError reports an HTTP-level failure. StatusCode is zero when no
// response was received.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Cause)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// AbortedError reports a cancelled operation. It always carries status 0.
type AbortedError struct {
	Reason string
}

func (e *AbortedError) Error() string {
	if e.Reason == "" {
		return "aborted"
	}
	return "aborted: " + e.Reason
}

func (e *AbortedError) Is(target error) bool {
	return target == ErrAborted
}

// Aborted is always true; it lets callers distinguish cancellation from server errors.
func (e *AbortedError) Aborted() bool { return true }

// Status is always 0 for aborted operations.
func (e *AbortedError) Status() int { return 0 }

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(component, message string) error {
	return &ConfigurationError{Component: component, Message: message}
}

// NewInvalidResponseError creates a new InvalidResponseError
func NewInvalidResponseError(message string, body []byte) error {
	return &InvalidResponseError{Message: message, Body: body}
}

// NewAbortedError creates a new AbortedError
func NewAbortedError(reason string) error {
	return &AbortedError{Reason: reason}
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsInvalidResponse checks if an error is an invalid response error
func IsInvalidResponse(err error) bool {
	return errors.Is(err, ErrInvalidResponse)
}

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsAborted checks if an error is an aborted error
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
