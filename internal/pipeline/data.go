package pipeline

import (
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// Data is the additive envelope threaded through a queue's ordered actions.
// A stage never removes a field written upstream: Set copies the map, so
// every stage's output wraps the prior stage's output.
type Data map[string]any

// Clone returns a shallow copy of the envelope.
func (d Data) Clone() Data {
	out := make(Data, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Set returns a copy of the envelope with key set. The receiver is left
// untouched so earlier stages' views stay intact.
func (d Data) Set(key string, value any) Data {
	out := d.Clone()
	out[key] = value
	return out
}

// Value returns the raw field and whether it is present.
func (d Data) Value(key string) (any, bool) {
	v, ok := d[key]
	return v, ok
}

// String returns a required string field. A missing or mistyped field is a
// non-retryable validation error: the stage must not proceed on partial data.
func (d Data) String(key string) (string, error) {
	v, ok := d[key]
	if !ok {
		return "", missingField(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(key, "string")
	}
	return s, nil
}

// Strings returns a required string-slice field. Values decoded from JSON
// arrive as []any and are converted.
func (d Data) Strings(key string) ([]string, error) {
	v, ok := d[key]
	if !ok {
		return nil, missingField(key)
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, wrongType(key, "[]string")
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, wrongType(key, "[]string")
	}
}

func missingField(key string) *queueerr.JobError {
	return queueerr.NewValidation("required field missing: " + key).
		WithCode("MISSING_FIELD").
		WithContext("field", key)
}

func wrongType(key, want string) *queueerr.JobError {
	return queueerr.NewValidation("field has wrong type: " + key).
		WithCode("INVALID_FIELD").
		WithContext("field", key).
		WithContext("expected", want)
}
