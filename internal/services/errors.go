package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth re-dispatching: timeouts, resource
	// contention, flaky backends.
	ErrTransient = errors.New("transient failure")
	// ErrTimeout marks stage executions that exceeded their deadline. Treated
	// as transient by the retry policy.
	ErrTimeout = errors.New("timeout")
	// ErrValidation marks permanently invalid input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrModeration marks content-moderation rejections. Never retried.
	ErrModeration = errors.New("moderation rejected")
	// ErrExternalTool marks failures reported by an external generation
	// backend without further classification. Treated as transient.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later retry classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether a stage error should feed the retry policy.
// Unclassified errors are treated as transient so that infrastructure flakes
// are not promoted to permanent job failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrModeration) {
		return false
	}
	return true
}

// ModerationError carries the user-facing category list for a content
// rejection. It is permanent and terminates the job.
type ModerationError struct {
	Categories []string
}

func (e *ModerationError) Error() string {
	if len(e.Categories) == 0 {
		return "content rejected by moderation"
	}
	return fmt.Sprintf("content rejected by moderation: %s", strings.Join(e.Categories, ", "))
}

// Unwrap ties moderation errors into the sentinel taxonomy.
func (e *ModerationError) Unwrap() error {
	return ErrModeration
}

// Message extracts a human-readable failure message for persistence on the
// job record.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
