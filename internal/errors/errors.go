package errors

import (
	"fmt"
	"sync"
	"time"
)

// BuildError is a single positioned diagnostic produced by a bundling pass.
type BuildError struct {
	Plugin    string
	File      string
	Line      int
	Column    int
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (be *BuildError) Error() string {
	if be.File == "" {
		return fmt.Sprintf("%s: %s", be.Severity, be.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", be.File, be.Line, be.Column, be.Severity, be.Message)
}

// ErrorCollector holds the diagnostics of the most recent build pass.
type ErrorCollector struct {
	buildErrors []BuildError
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		buildErrors: make([]BuildError, 0),
	}
}

// Replace swaps the collected diagnostics for the given set.
func (ec *ErrorCollector) Replace(errs []BuildError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.buildErrors = append(ec.buildErrors[:0], errs...)
}

// GetErrors returns all collected build errors
func (ec *ErrorCollector) GetErrors() []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]BuildError, len(ec.buildErrors))
	copy(result, ec.buildErrors)
	return result
}
