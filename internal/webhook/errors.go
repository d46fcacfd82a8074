package webhook

import "fmt"

// UnsupportedEventKindError is returned for an event kind outside the known set.
type UnsupportedEventKindError struct {
	Kind string
}

func (e *UnsupportedEventKindError) Error() string {
	return fmt.Sprintf("unsupported event kind %q", e.Kind)
}

// MalformedPayloadError is returned when the payload does not have the shape
// required by its event kind. FieldPath is the dotted JSON path of the
// offending field, or empty when the document itself is not valid JSON.
type MalformedPayloadError struct {
	FieldPath string
	Err       error
}

func (e *MalformedPayloadError) Error() string {
	if e.FieldPath == "" {
		return fmt.Sprintf("malformed payload: %v", e.Err)
	}
	return fmt.Sprintf("malformed payload at %s: %v", e.FieldPath, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }
