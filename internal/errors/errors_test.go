package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorSeverityString(t *testing.T) {
	testCases := []struct {
		severity ErrorSeverity
		expected string
	}{
		{ErrorSeverityInfo, "info"},
		{ErrorSeverityWarning, "warning"},
		{ErrorSeverityError, "error"},
		{ErrorSeverityFatal, "fatal"},
		{ErrorSeverity(999), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.severity.String())
		})
	}
}

func TestBuildErrorError(t *testing.T) {
	err := BuildError{
		File:     "src/App.tsx",
		Line:     10,
		Column:   5,
		Message:  "Expected \";\" but found \"}\"",
		Severity: ErrorSeverityError,
	}

	assert.Equal(t, `src/App.tsx:10:5: error: Expected ";" but found "}"`, err.Error())

	noFile := BuildError{Message: "boom", Severity: ErrorSeverityWarning}
	assert.Equal(t, "warning: boom", noFile.Error())
}

func TestErrorCollector(t *testing.T) {
	collector := NewErrorCollector()
	assert.Empty(t, collector.GetErrors())

	collector.Replace([]BuildError{
		{File: "a.tsx", Message: "warn", Severity: ErrorSeverityWarning},
		{File: "b.css", Message: "bad", Severity: ErrorSeverityError},
	})
	require.Len(t, collector.GetErrors(), 2)

	collector.Replace([]BuildError{{Message: "only", Severity: ErrorSeverityError}})
	assert.Len(t, collector.GetErrors(), 1)

	collector.Replace(nil)
	assert.Empty(t, collector.GetErrors())
}

func TestErrorCollectorReturnsCopy(t *testing.T) {
	collector := NewErrorCollector()
	collector.Replace([]BuildError{{Message: "original"}})

	errs := collector.GetErrors()
	errs[0].Message = "mutated"

	assert.Equal(t, "original", collector.GetErrors()[0].Message)
}

func TestErrorCollectorConcurrency(t *testing.T) {
	collector := NewErrorCollector()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			collector.Replace([]BuildError{{Message: fmt.Sprintf("err %d", i), Severity: ErrorSeverityError}})
			_ = collector.GetErrors()
		}(i)
	}
	wg.Wait()

	assert.Len(t, collector.GetErrors(), 1)
}

func TestKilnErrorFormatting(t *testing.T) {
	err := NewBuildError(ErrCodeBuildFailed, "build failed", stderrors.New("syntax"))
	err.WithLocation("src/main.tsx", 3, 7)

	assert.Equal(t, "[ERR_BUILD_FAILED] src/main.tsx:3:7 build failed: syntax", err.Error())
	assert.True(t, IsRecoverable(err))
	assert.False(t, IsSecurityError(err))
	assert.EqualError(t, stderrors.Unwrap(err), "syntax")
}

func TestKilnErrorIs(t *testing.T) {
	err := fmt.Errorf("startup: %w", ErrMountNotFound("index.html", "root"))

	assert.True(t, stderrors.Is(err, ErrMountNotFound("other.html", "app")))
	assert.False(t, stderrors.Is(err, ErrPathTraversal("/../x")))
	assert.True(t, HasCode(err, ErrCodeMountNotFound))
	assert.False(t, IsRecoverable(err))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name        string
		err         *KilnError
		errType     ErrorType
		code        string
		recoverable bool
	}{
		{"validation", NewValidationError(ErrCodeValidationFailed, "bad"), ErrorTypeValidation, ErrCodeValidationFailed, true},
		{"security", ErrPathTraversal("/../../etc/passwd"), ErrorTypeSecurity, ErrCodePathTraversal, false},
		{"origin", ErrInvalidOrigin("http://evil.example"), ErrorTypeSecurity, ErrCodeInvalidOrigin, false},
		{"io", NewIOError(ErrCodeFileNotFound, "missing", nil), ErrorTypeIO, ErrCodeFileNotFound, false},
		{"config", ErrConfigInvalid("port"), ErrorTypeConfig, ErrCodeConfigInvalid, false},
		{"internal", NewInternalError(ErrCodeInternalError, "oops", nil), ErrorTypeInternal, ErrCodeInternalError, false},
		{"css", ErrCSSTransform("src/index.css", stderrors.New("exit 1")), ErrorTypeBuild, ErrCodeCSSTransform, true},
		{"build failed", ErrBuildFailed(2, nil), ErrorTypeBuild, ErrCodeBuildFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.errType, tt.err.Type)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.recoverable, tt.err.Recoverable)
		})
	}
}

func TestWithContext(t *testing.T) {
	err := NewValidationError(ErrCodeInvalidPath, "bad path").
		WithContext("path", "/x").
		WithContext("attempt", 2)

	assert.Equal(t, "/x", err.Context["path"])
	assert.Equal(t, 2, err.Context["attempt"])
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.warns = append(r.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)
	ctx := context.Background()

	handler.Handle(ctx, nil)
	handler.Handle(ctx, ErrBuildFailed(1, nil))
	handler.Handle(ctx, NewValidationError(ErrCodeValidationFailed, "x"))
	handler.Handle(ctx, ErrPathTraversal("/.."))
	handler.Handle(ctx, ErrMountNotFound("index.html", "root"))
	handler.Handle(ctx, stderrors.New("plain"))

	assert.Equal(t, []string{"Build error occurred", "Recoverable error occurred", "Request rejected"}, logger.warns)
	assert.Equal(t, []string{"Error occurred", "Unhandled error occurred"}, logger.errors)
}
