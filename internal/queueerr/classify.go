package queueerr

import (
	"context"
	"errors"
	"strings"
)

// Classify assigns a Kind to an arbitrary error. Typed errors are inspected
// first; anything else falls back to case-insensitive keyword matching over
// the message. Deterministic: the same error identity and message always
// classify identically.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	s := strings.ToLower(err.Error())

	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "timed out") ||
		strings.Contains(s, "deadline"):
		return KindTimeout
	case strings.Contains(s, "database") || strings.Contains(s, "sql") ||
		strings.Contains(s, "postgres"):
		return KindDatabase
	case strings.Contains(s, "redis") || strings.Contains(s, "cache"):
		return KindCacheBackend
	case strings.Contains(s, "connection") || strings.Contains(s, "network") ||
		strings.Contains(s, "dial"):
		return KindNetwork
	case strings.Contains(s, "parse") || strings.Contains(s, "unmarshal"):
		return KindParsing
	case strings.Contains(s, "http") || strings.Contains(s, "service") ||
		strings.Contains(s, "api"):
		return KindExternalService
	case strings.Contains(s, "validation") || strings.Contains(s, "invalid"):
		return KindValidation
	default:
		return KindUnknown
	}
}
