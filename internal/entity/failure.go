package entity

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// FailureKind names an expected, recoverable outcome of an attendance
// operation. Anything that is not a Failure is an internal error.
type FailureKind string

const (
	KindCardNotRegistered     FailureKind = "CardNotRegistered"
	KindUserNotFound          FailureKind = "UserNotFound"
	KindEventNotFound         FailureKind = "EventNotFound"
	KindEventNotOpen          FailureKind = "EventNotOpen"
	KindNotRegisteredForEvent FailureKind = "NotRegisteredForEvent"
	KindAlreadyJoined         FailureKind = "AlreadyJoined"
	KindAlreadyFinalized      FailureKind = "AlreadyFinalized"
	KindAudienceIneligible    FailureKind = "AudienceIneligible"
	KindValidation            FailureKind = "ValidationError"
	KindBusy                  FailureKind = "Busy"
)

var failureStatus = map[FailureKind]int{
	KindCardNotRegistered:     http.StatusNotFound,
	KindUserNotFound:          http.StatusNotFound,
	KindEventNotFound:         http.StatusNotFound,
	KindEventNotOpen:          http.StatusConflict,
	KindNotRegisteredForEvent: http.StatusUnprocessableEntity,
	KindAlreadyJoined:         http.StatusConflict,
	KindAlreadyFinalized:      http.StatusConflict,
	KindAudienceIneligible:    http.StatusForbidden,
	KindValidation:            http.StatusBadRequest,
	KindBusy:                  http.StatusServiceUnavailable,
}

type Failure struct {
	Kind    FailureKind
	Message string
	Fields  map[string]interface{}
}

func NewFailure(kind FailureKind, format string, args ...interface{}) *Failure {
	return &Failure{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// With attaches a detail that is reported to the client.
func (f *Failure) With(key string, value interface{}) *Failure {
	if f.Fields == nil {
		f.Fields = map[string]interface{}{}
	}
	f.Fields[key] = value
	return f
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) HTTPStatus() int {
	if status, ok := failureStatus[f.Kind]; ok {
		return status
	}
	return http.StatusBadRequest
}

func (f *Failure) Code() string {
	return string(f.Kind)
}

func (f *Failure) Details() map[string]interface{} {
	return f.Fields
}

// AsFailure unwraps err down to a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsFailure reports whether err is a Failure of the given kind.
func IsFailure(err error, kind FailureKind) bool {
	f, ok := AsFailure(err)
	return ok && f.Kind == kind
}
