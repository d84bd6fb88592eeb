package faceapi

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge is returned when an image exceeds the configured ceiling.
	ErrPayloadTooLarge = errors.New("image exceeds maximum size")
	// ErrEmptyImage is returned when there are no image bytes to send.
	ErrEmptyImage = errors.New("image is empty")
)

// ErrorKind classifies detection failures.
type ErrorKind string

const (
	KindTransport ErrorKind = "TRANSPORT"
	KindUpstream  ErrorKind = "UPSTREAM"
	KindDecode    ErrorKind = "DECODE"
)

// DetectionError reports a failed call to the detection provider.
type DetectionError struct {
	Kind ErrorKind
	// StatusCode, Code and Message are set for KindUpstream.
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *DetectionError) Error() string {
	switch {
	case e.Kind == KindUpstream && e.Code != "":
		return fmt.Sprintf("face detection %s: status %d: %s: %s", e.Kind, e.StatusCode, e.Code, e.Message)
	case e.Kind == KindUpstream:
		return fmt.Sprintf("face detection %s: status %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("face detection %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("face detection %s", e.Kind)
	}
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a DetectionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var detErr *DetectionError
	return errors.As(err, &detErr) && detErr.Kind == kind
}
