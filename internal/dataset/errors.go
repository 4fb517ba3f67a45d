package dataset

import "fmt"

// MalformedPayloadError reports a payload whose shape does not match the
// expected dataset layout. It is not retryable without fixing the source.
type MalformedPayloadError struct {
	Section string
	Region  string
	Reason  string
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	msg := "malformed payload"
	if e.Section != "" {
		msg += fmt.Sprintf(" [section %s]", e.Section)
	}
	if e.Region != "" {
		msg += fmt.Sprintf(" [region %s]", e.Region)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

func malformed(reason string, args ...any) *MalformedPayloadError {
	return &MalformedPayloadError{Reason: fmt.Sprintf(reason, args...)}
}
