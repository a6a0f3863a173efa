package logging

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different categories of errors for classification
type ErrorCategory string

const (
	// Interaction intents that failed while handling an event
	ErrorCategoryRegistration ErrorCategory = "registration"
	// Database/Storage errors
	ErrorCategoryStorage ErrorCategory = "storage"
	// Event transport errors (HTTP, websocket, queue)
	ErrorCategoryTransport ErrorCategory = "transport"
	// Configuration errors
	ErrorCategoryConfig ErrorCategory = "config"
	// Uncategorized errors, the default when no category is set
	ErrorCategoryUnknown ErrorCategory = "unknown"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "critical"
	ErrorSeverityHigh     ErrorSeverity = "high"
	ErrorSeverityMedium   ErrorSeverity = "medium"
	ErrorSeverityLow      ErrorSeverity = "low"
)

// ErrorContext provides additional context for error logging
type ErrorContext struct {
	Category  ErrorCategory          `json:"category"`
	Severity  ErrorSeverity          `json:"severity"`
	Component string                 `json:"component"`
	Operation string                 `json:"operation"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// StructuredError represents a structured error with context
type StructuredError struct {
	Err       error        `json:"error"`
	Context   ErrorContext `json:"context"`
	Timestamp time.Time    `json:"timestamp"`
	Stack     string       `json:"stack,omitempty"`
}

// Error implements the error interface
func (se *StructuredError) Error() string {
	if se.Err != nil {
		return se.Err.Error()
	}
	return "unknown error"
}

// Unwrap returns the underlying error
func (se *StructuredError) Unwrap() error {
	return se.Err
}

// NewStructuredError creates a new structured error with context
func NewStructuredError(err error, context ErrorContext) *StructuredError {
	if context.Category == "" {
		context.Category = ErrorCategoryUnknown
	}

	structuredErr := &StructuredError{
		Err:       err,
		Context:   context,
		Timestamp: time.Now(),
	}

	// Capture stack trace for critical and high severity errors
	if context.Severity == ErrorSeverityCritical || context.Severity == ErrorSeverityHigh {
		structuredErr.Stack = captureStackTrace()
	}

	return structuredErr
}

// LogStructuredError logs a structured error with appropriate level and context
func LogStructuredError(logger *logrus.Entry, structuredErr *StructuredError) {
	if logger == nil || structuredErr == nil {
		return
	}

	entry := logger.WithFields(logrus.Fields{
		"error_category": structuredErr.Context.Category,
		"error_severity": structuredErr.Context.Severity,
		"operation":      structuredErr.Context.Operation,
	})
	if structuredErr.Context.Component != "" {
		entry = entry.WithField("component", structuredErr.Context.Component)
	}
	for key, value := range structuredErr.Context.Metadata {
		entry = entry.WithField(fmt.Sprintf("meta_%s", key), value)
	}
	if structuredErr.Stack != "" {
		entry = entry.WithField("stack_trace", structuredErr.Stack)
	}

	switch structuredErr.Context.Severity {
	case ErrorSeverityMedium, ErrorSeverityLow:
		entry.Warn(structuredErr.Error())
	default:
		entry.Error(structuredErr.Error())
	}
}

// LogStorageError logs database/storage-related errors
func LogStorageError(logger *logrus.Entry, err error, operation string) {
	LogStructuredError(logger, NewStructuredError(err, ErrorContext{
		Category:  ErrorCategoryStorage,
		Severity:  ErrorSeverityHigh,
		Component: "database",
		Operation: operation,
	}))
}

// LogTransportError logs a rejected or undeliverable event
func LogTransportError(logger *logrus.Entry, err error, transport, operation string) {
	LogStructuredError(logger, NewStructuredError(err, ErrorContext{
		Category:  ErrorCategoryTransport,
		Severity:  ErrorSeverityLow,
		Component: transport,
		Operation: operation,
	}))
}

// LogConfigError logs configuration problems that keep the bridge from starting
func LogConfigError(logger *logrus.Entry, err error, operation string) {
	LogStructuredError(logger, NewStructuredError(err, ErrorContext{
		Category:  ErrorCategoryConfig,
		Severity:  ErrorSeverityCritical,
		Component: "config",
		Operation: operation,
	}))
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
