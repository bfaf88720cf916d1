package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// KilnError is a structured error type with context.
type KilnError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *KilnError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *KilnError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code, so sentinel values built with the
// constructors below can be used with errors.Is.
func (e *KilnError) Is(target error) bool {
	var t *KilnError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *KilnError) WithContext(key string, value interface{}) *KilnError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *KilnError) WithLocation(filePath string, line, column int) *KilnError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *KilnError {
	return &KilnError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *KilnError {
	return &KilnError{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewBuildError creates a build error. Build errors are recoverable: the
// development watcher keeps running and retries on the next change.
func NewBuildError(code, message string, cause error) *KilnError {
	return &KilnError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *KilnError {
	return &KilnError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *KilnError {
	return &KilnError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *KilnError {
	return &KilnError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *KilnError
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var te *KilnError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeSecurity
	}

	return false
}

// HasCode reports whether err is a KilnError carrying code.
func HasCode(err error, code string) bool {
	var te *KilnError
	if errors.As(err, &te) {
		return te.Code == code
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle logs err at a level that depends on its kind. Rejected requests
// and recoverable errors are warnings; everything else is an error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var te *KilnError
	if !errors.As(err, &te) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{"type", te.Type, "code", te.Code}
	if te.FilePath != "" {
		fields = append(fields, "file", te.FilePath)
	}

	switch {
	case IsSecurityError(te):
		h.logger.Warn(ctx, te, "Request rejected", fields...)
	case IsRecoverable(te) && te.Type == ErrorTypeBuild:
		h.logger.Warn(ctx, te, "Build error occurred", fields...)
	case IsRecoverable(te):
		h.logger.Warn(ctx, te, "Recoverable error occurred", fields...)
	default:
		h.logger.Error(ctx, te, "Error occurred", fields...)
	}
}

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodePathTraversal    = "ERR_PATH_TRAVERSAL"
	ErrCodeInvalidOrigin    = "ERR_INVALID_ORIGIN"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeCSSTransform     = "ERR_CSS_TRANSFORM"
	ErrCodeMountNotFound    = "ERR_MOUNT_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *KilnError {
	return NewSecurityError(ErrCodePathTraversal, "path escapes project root: "+path)
}

// ErrInvalidOrigin creates an invalid origin security error.
func ErrInvalidOrigin(origin string) *KilnError {
	return NewSecurityError(ErrCodeInvalidOrigin, "invalid origin: "+origin)
}

// ErrBuildFailed wraps the formatted diagnostics of a failed bundling pass.
func ErrBuildFailed(count int, cause error) *KilnError {
	return NewBuildError(
		ErrCodeBuildFailed,
		fmt.Sprintf("build failed with %d error(s)", count),
		cause,
	)
}

// ErrMountNotFound is returned when the document shell has no element to
// mount the application into. It is never recoverable.
func ErrMountNotFound(document, id string) *KilnError {
	return &KilnError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeMountNotFound,
		Message:     fmt.Sprintf("mount element #%s not found", id),
		FilePath:    document,
		Recoverable: false,
	}
}

// ErrCSSTransform wraps a failure of the stylesheet pipeline.
func ErrCSSTransform(path string, cause error) *KilnError {
	return NewBuildError(ErrCodeCSSTransform, "css transform failed", cause).
		WithLocation(path, 0, 0)
}

// ErrConfigInvalid creates a configuration validation error.
func ErrConfigInvalid(message string) *KilnError {
	return NewConfigError(ErrCodeConfigInvalid, message)
}
