package condb

import "fmt"

// TransportError reports a failed HTTP exchange: a network-level failure or
// an error status returned by the service.
type TransportError struct {
	URL        string
	StatusCode int // zero when the request never completed
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conditions database request %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("conditions database request %s: status %d", e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a response body that is not valid JSON.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ShapeError reports JSON that parsed but lacks an expected field or carries
// it with the wrong type. The whole call fails; no partial paths survive.
type ShapeError struct {
	Index int
	Field string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("response entry %d: missing or ill-typed %s", e.Index, e.Field)
}
