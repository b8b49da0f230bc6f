package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory classifies pipeline errors for handling policy.
//
// The categories follow the runtime failure taxonomy of the pipeline:
// transient I/O is retried, not-yet-published falls back to the previous
// interval, malformed input is row-scoped and skipped, missing reference
// data skips the affected aggregate, and contract violations are the only
// class that propagates to the caller.
type ErrorCategory string

const (
	CategoryTransient        ErrorCategory = "transient"
	CategoryNotPublished     ErrorCategory = "not_published"
	CategoryMalformedInput   ErrorCategory = "malformed_input"
	CategoryMissingReference ErrorCategory = "missing_reference"
	CategoryContract         ErrorCategory = "contract"
	CategoryConfiguration    ErrorCategory = "configuration"
	CategoryInternal         ErrorCategory = "internal"
)

// AppError wraps an errbuilder error with pipeline context.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(e.Category)), e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// NewAppError creates an AppError from an errbuilder with category context.
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now().UTC(),
	}
}

// NewTransientError marks a network/5xx failure that the retry layer may retry.
func NewTransientError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return NewAppError(builder, CategoryTransient, http.StatusBadGateway)
}

// NewNotPublishedError marks a snapshot that does not exist upstream yet.
// Retrying the same interval is futile; callers fall back to the previous one.
func NewNotPublishedError(url string) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("url", errors.New(url))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg("snapshot not published yet").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	return NewAppError(builder, CategoryNotPublished, http.StatusNotFound)
}

// NewMalformedInputError marks a row- or field-scoped parse failure.
func NewMalformedInputError(message string, detail string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if detail != "" {
		errorMap := errbuilder.ErrorMap{}
		errorMap.Set("detail", errors.New(detail))
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return NewAppError(builder, CategoryMalformedInput, http.StatusUnprocessableEntity)
}

// NewMissingReferenceError marks unknown reference data, e.g. a country code
// with no centroid entry. The affected hotspot or flow is skipped.
func NewMissingReferenceError(kind, key string) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set(kind, errors.New(key))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("unknown %s %q", kind, key)).
		WithDetails(errbuilder.NewErrDetails(errorMap))

	return NewAppError(builder, CategoryMissingReference, http.StatusUnprocessableEntity)
}

// NewContractError marks a caller bug. This is the only category that should
// surface out of a pipeline run.
func NewContractError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(message)

	return NewAppError(builder, CategoryContract, http.StatusBadRequest)
}

// NewConfigurationError marks invalid configuration at startup.
func NewConfigurationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return NewAppError(builder, CategoryInternal, http.StatusInternalServerError)
}

// IsRetryableError reports whether the retry layer should attempt the
// operation again. Not-published and malformed-input errors never are.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category == CategoryTransient
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout")
}

// IsNotPublished reports whether err is the 404/not-yet-published case.
func IsNotPublished(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Category == CategoryNotPublished
}

// ToAppError converts any error to an AppError.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	if IsRetryableError(err) {
		return NewTransientError(err.Error(), err)
	}

	return NewInternalError(err.Error(), err)
}

// LogError logs an AppError with request context.
func LogError(c *gin.Context, appErr *AppError) {
	slog.Error("request failed",
		"category", string(appErr.Category),
		"message", appErr.ErrBuilder.Msg,
		"status", appErr.HTTPStatus,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"ip", c.ClientIP(),
	)
}

// ErrorHandler is a gin middleware providing centralized error responses.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			appErr := ToAppError(err)
			LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, gin.H{
				"error":    appErr.ErrBuilder.Msg,
				"category": appErr.Category,
			})
		}
	}
}

// RecoveryHandler provides panic recovery with structured error responses.
func RecoveryHandler() gin.HandlerFunc {
	return gin.RecoveryWithWriter(nil, func(c *gin.Context, err interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("panic recovered: %v", err),
			fmt.Errorf("%v", err),
		)
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, gin.H{
			"error":    appErr.ErrBuilder.Msg,
			"category": appErr.Category,
		})
	})
}
