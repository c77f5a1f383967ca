package classifier

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the part of a classification run that failed.
type ErrorKind string

const (
	KindImageReadFailed       ErrorKind = "image_read_failed"
	KindVisionServiceFailed   ErrorKind = "vision_service_failed"
	KindAdviceServiceFailed   ErrorKind = "advice_service_failed"
	KindCondenseServiceFailed ErrorKind = "condense_service_failed"
	KindTimeout               ErrorKind = "timeout"
	KindCanceled              ErrorKind = "canceled"
)

// Sentinels matched by errors.Is against a *ClassificationError of the same kind.
var (
	ErrImageReadFailed       = errors.New("image read failed")
	ErrVisionServiceFailed   = errors.New("vision service failed")
	ErrAdviceServiceFailed   = errors.New("advice service failed")
	ErrCondenseServiceFailed = errors.New("condense service failed")
	ErrTimeout               = errors.New("service call timed out")
	ErrCanceled              = errors.New("classification canceled")
)

// ErrMalformedResponse is returned by service adapters when a response lacks
// the structure the pipeline depends on.
var ErrMalformedResponse = errors.New("malformed service response")

var kindSentinels = map[ErrorKind]error{
	KindImageReadFailed:       ErrImageReadFailed,
	KindVisionServiceFailed:   ErrVisionServiceFailed,
	KindAdviceServiceFailed:   ErrAdviceServiceFailed,
	KindCondenseServiceFailed: ErrCondenseServiceFailed,
	KindTimeout:               ErrTimeout,
	KindCanceled:              ErrCanceled,
}

// ClassificationError is the single failure type returned by Classify.
// Stage is the working stage the run was in when it failed.
type ClassificationError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *ClassificationError) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		msg = sentinel.Error()
	}
	if e.Err == nil {
		return fmt.Sprintf("classify: %s (stage=%s)", msg, e.Stage)
	}
	return fmt.Sprintf("classify: %s (stage=%s): %v", msg, e.Stage, e.Err)
}

// Unwrap exposes the cause reported by the failing step.
func (e *ClassificationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *ClassificationError) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the kind of the first ClassificationError in err's chain,
// or an empty kind when there is none.
func KindOf(err error) ErrorKind {
	var classErr *ClassificationError
	if errors.As(err, &classErr) {
		return classErr.Kind
	}
	return ""
}
