package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCategory groups failures for analytics and task-source error logs.
type ErrorCategory string

const (
	CategoryNone                ErrorCategory = ""
	CategoryNoProviderAvailable ErrorCategory = "no_provider_available"
	CategoryProviderError       ErrorCategory = "provider_error"
	CategoryQualityTooLow       ErrorCategory = "quality_too_low"
	CategoryPublishFailed       ErrorCategory = "publish_failed"
	CategoryTimeout             ErrorCategory = "timeout"
	CategoryTaskSourceWrite     ErrorCategory = "task_source_write_failed"
	CategoryUnknown             ErrorCategory = "unknown"
)

var (
	ErrNoProviderAvailable = errors.New("no content provider available")
	ErrProvider            = errors.New("provider error")
	ErrQualityTooLow       = errors.New("content quality too low")
	ErrPublishFailed       = errors.New("publish failed")
	ErrTimeout             = errors.New("task timed out")
	ErrTaskSourceWrite     = errors.New("task source write failed")
	ErrUnknownStrategy     = errors.New("unknown strategy")
)

// CategoryOf maps an error onto its category. Unrecognised errors are CategoryUnknown.
func CategoryOf(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrNoProviderAvailable):
		return CategoryNoProviderAvailable
	case errors.Is(err, ErrQualityTooLow):
		return CategoryQualityTooLow
	case errors.Is(err, ErrPublishFailed):
		return CategoryPublishFailed
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, ErrTaskSourceWrite):
		return CategoryTaskSourceWrite
	case errors.Is(err, ErrProvider):
		return CategoryProviderError
	default:
		return CategoryUnknown
	}
}

// Retryable reports whether a task failing with the category may be attempted again.
// Configuration problems are not.
func (c ErrorCategory) Retryable() bool {
	switch c {
	case CategoryTimeout, CategoryProviderError, CategoryQualityTooLow, CategoryPublishFailed, CategoryUnknown:
		return true
	default:
		return false
	}
}

// ErrorNote renders the error-log entry stored alongside a task.
func ErrorNote(at time.Time, category ErrorCategory, message string) string {
	if category == CategoryNone {
		category = CategoryUnknown
	}
	return fmt.Sprintf("[%s] %s: %s", at.Format("2006-01-02 15:04:05"), strings.ToUpper(string(category)), message)
}
