package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable marks transport failures and 5xx responses. The poll
	// loop treats these as transient and keeps the current client status.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrTimeout marks requests that hit their deadline.
	ErrTimeout = errors.New("timeout")
	// ErrNotFound marks 404 responses: unknown task or no search results.
	ErrNotFound = errors.New("not found")
	// ErrRejected marks 4xx responses other than 404.
	ErrRejected = errors.New("request rejected")
	// ErrProtocol marks responses whose payload cannot be decoded.
	ErrProtocol = errors.New("protocol error")
	// ErrValidation marks client-side rejection before any request is sent.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether the poll loop should retain the current status
// and retry on the next tick instead of failing the task.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
