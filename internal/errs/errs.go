// Package errs defines the error taxonomy shared by the scheduling core.
//
// Every rejection returned by a core operation is an *Error with a Kind and a
// stable Code. Callers render Msg to users and switch on Kind/Code.
//
// Persistence errors are special: the in-memory mutation that preceded the
// failed write is kept, so a later commit can succeed without redoing the
// operation. Operators should treat them as "applied but not yet durable".
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Codes.
const (
	CodeInvalidCategory  = "invalid_category"
	CodeInvalidFormat    = "invalid_format"
	CodeInvalidSlot      = "invalid_slot"
	CodeInvalidClass     = "invalid_class"
	CodeInvalidArgument  = "invalid_argument"
	CodePastTime         = "past_time"
	CodeThrottled        = "throttled"
	CodeHorizonExceeded  = "horizon_exceeded"
	CodeSlotTaken        = "slot_taken"
	CodeNoSlot           = "no_slot"
	CodeCapacityExceeded = "capacity_exceeded"
	CodeNotFound         = "not_found"
	CodeRateLimited      = "rate_limited"
	CodeWriteFailed      = "write_failed"
)

// Sentinels for errors.Is matching on code.
var (
	ErrInvalidCategory  = &Error{Kind: KindValidation, Code: CodeInvalidCategory}
	ErrInvalidFormat    = &Error{Kind: KindValidation, Code: CodeInvalidFormat}
	ErrInvalidSlot      = &Error{Kind: KindValidation, Code: CodeInvalidSlot}
	ErrInvalidClass     = &Error{Kind: KindValidation, Code: CodeInvalidClass}
	ErrInvalidArgument  = &Error{Kind: KindValidation, Code: CodeInvalidArgument}
	ErrPastTime         = &Error{Kind: KindValidation, Code: CodePastTime}
	ErrThrottled        = &Error{Kind: KindConflict, Code: CodeThrottled}
	ErrHorizonExceeded  = &Error{Kind: KindConflict, Code: CodeHorizonExceeded}
	ErrSlotTaken        = &Error{Kind: KindConflict, Code: CodeSlotTaken}
	ErrNoSlot           = &Error{Kind: KindConflict, Code: CodeNoSlot}
	ErrCapacityExceeded = &Error{Kind: KindConflict, Code: CodeCapacityExceeded}
	ErrRateLimited      = &Error{Kind: KindConflict, Code: CodeRateLimited}
	ErrNotFound         = &Error{Kind: KindNotFound, Code: CodeNotFound}
	ErrPersistence      = &Error{Kind: KindPersistence, Code: CodeWriteFailed}
)

// Error is a classified, user-presentable failure.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and Code (when the target sets one).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...any) error {
	return newf(KindValidation, code, format, args...)
}

func Conflict(code, format string, args ...any) error {
	return newf(KindConflict, code, format, args...)
}

func NotFound(code, format string, args ...any) error {
	return newf(KindNotFound, code, format, args...)
}

// Persistence wraps a failed durable write for region.
func Persistence(region string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind: KindPersistence,
		Code: CodeWriteFailed,
		Msg:  fmt.Sprintf("save region %q (change kept in memory, retry commit)", region),
		Err:  err,
	}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// Recoverable reports whether err is a rejection that left state untouched.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindConflict, KindNotFound:
		return true
	default:
		return false
	}
}
