package queueerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a job failure. Consumers switch on Kind exhaustively
// instead of probing optional fields.
type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindDatabase        Kind = "DATABASE"
	KindCacheBackend    Kind = "CACHE_BACKEND"
	KindParsing         Kind = "PARSING"
	KindExternalService Kind = "EXTERNAL_SERVICE"
	KindNetwork         Kind = "NETWORK"
	KindTimeout         Kind = "TIMEOUT"
	KindWorker          Kind = "WORKER"
	KindUnknown         Kind = "UNKNOWN"
)

// Severity governs both the logging channel and retry eligibility.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// DefaultSeverity returns the severity inferred for a kind. CRITICAL is
// never inferred; only a caller that knows the failure is unrecoverable
// sets it, via WithSeverity.
func DefaultSeverity(kind Kind) Severity {
	switch kind {
	case KindDatabase, KindCacheBackend:
		return SeverityHigh
	case KindValidation, KindParsing:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// JobError is the typed failure produced by the retry engine and by actions
// that know their failure class up front.
type JobError struct {
	Kind      Kind
	Severity  Severity
	Message   string
	Code      string
	Context   map[string]any
	Cause     error
	Timestamp time.Time
	JobID     string
	QueueName string
	Attempt   int
}

func (e *JobError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

// New creates a JobError of the given kind with its default severity.
func New(kind Kind, message string) *JobError {
	return &JobError{
		Kind:      kind,
		Severity:  DefaultSeverity(kind),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap creates a JobError of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *JobError {
	e := New(kind, message)
	e.Cause = cause
	return e
}

func NewValidation(message string) *JobError      { return New(KindValidation, message) }
func NewDatabase(message string) *JobError        { return New(KindDatabase, message) }
func NewCacheBackend(message string) *JobError    { return New(KindCacheBackend, message) }
func NewParsing(message string) *JobError         { return New(KindParsing, message) }
func NewExternalService(message string) *JobError { return New(KindExternalService, message) }
func NewNetwork(message string) *JobError         { return New(KindNetwork, message) }
func NewTimeout(message string) *JobError         { return New(KindTimeout, message) }
func NewWorker(message string) *JobError          { return New(KindWorker, message) }

// WithSeverity overrides the inferred severity. The only way to mark an
// error CRITICAL.
func (e *JobError) WithSeverity(s Severity) *JobError {
	e.Severity = s
	return e
}

// WithCode attaches a machine-readable code for the HTTP error envelope.
func (e *JobError) WithCode(code string) *JobError {
	e.Code = code
	return e
}

// WithContext merges a key-value pair into the structured context.
func (e *JobError) WithContext(key string, value any) *JobError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithJob attaches job correlation fields.
func (e *JobError) WithJob(jobID, queueName string, attempt int) *JobError {
	e.JobID = jobID
	e.QueueName = queueName
	e.Attempt = attempt
	return e
}

// From returns err as a *JobError, classifying and wrapping it if needed.
func From(err error) *JobError {
	var je *JobError
	if errors.As(err, &je) {
		return je
	}
	return Wrap(Classify(err), err.Error(), err)
}
