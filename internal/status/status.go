// Package status classifies camera failures and maps them onto the RPC
// status codes sent back to callers.
//
// Every property access, driver call and config operation returns either nil
// or an error that wraps a *Error. Callers classify with KindOf / CodeOf,
// which look through fmt.Errorf("%w") chains.
package status

import (
	"errors"
	"fmt"
)

// Code is the transport-agnostic reply code carried by RPC replies.
type Code int32

const (
	OK Code = iota
	Unimplemented
	InternalError
	FailedPrecondition
	InvalidArgument
	PermissionDenied
)

// String returns the wire name of the code.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Unimplemented:
		return "UNIMPLEMENTED"
	case InternalError:
		return "INTERNAL_ERROR"
	case FailedPrecondition:
		return "FAILED_PRECONDITION"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	default:
		return fmt.Sprintf("CODE(%d)", int32(c))
	}
}

// Kind classifies why an operation against the camera failed.
type Kind int

const (
	// KindDeviceError is an underlying hardware or transport failure.
	KindDeviceError Kind = iota
	// KindUnavailable means the property does not exist on this hardware
	// (or is not available in the current device mode).
	KindUnavailable
	KindNotReadable
	KindNotWritable
	// KindOutOfRange means a numeric value was rejected against the live
	// [min, max] range of the property.
	KindOutOfRange
	// KindInvalidArgument covers unknown enum symbols and malformed
	// structural input such as a region with the wrong vertex count.
	KindInvalidArgument
	KindFailedPrecondition
	// KindPermissionDenied is a valid value that the current capture state
	// does not allow (region of interest or colour space while streaming).
	KindPermissionDenied
	// KindUnimplemented is a read the driver family does not offer.
	KindUnimplemented
	// KindUnsupported is a write the driver family does not offer.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindDeviceError:
		return "device_error"
	case KindUnavailable:
		return "unavailable"
	case KindNotReadable:
		return "not_readable"
	case KindNotWritable:
		return "not_writable"
	case KindOutOfRange:
		return "out_of_range"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindFailedPrecondition:
		return "failed_precondition"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUnimplemented:
		return "unimplemented"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Code maps the kind onto the reply code seen by RPC callers.
func (k Kind) Code() Code {
	switch k {
	case KindUnavailable, KindUnimplemented, KindUnsupported:
		return Unimplemented
	case KindNotReadable, KindNotWritable, KindOutOfRange, KindFailedPrecondition:
		return FailedPrecondition
	case KindInvalidArgument:
		return InvalidArgument
	case KindPermissionDenied:
		return PermissionDenied
	default:
		return InternalError
	}
}

// Error is a classified camera failure.
//
// Property names the hardware node or driver operation involved. Field is
// the configuration path (for example "camera.gain") and is filled in by the
// config layer with Annotate. Err keeps the underlying cause for logs; it is
// never part of Why, so raw SDK text does not reach RPC callers.
type Error struct {
	Kind     Kind
	Property string
	Field    string
	Message  string
	Err      error
}

// Why is the caller-facing description: field path plus message.
func (e *Error) Why() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Why() + ": " + e.Err.Error()
	}
	return e.Why()
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the RPC code for the error's kind.
func (e *Error) Code() Code { return e.Kind.Code() }

// Newf builds a classified error with a formatted message.
func Newf(kind Kind, property, format string, args ...any) *Error {
	return &Error{Kind: kind, Property: property, Message: fmt.Sprintf(format, args...)}
}

func Unavailable(property string) error {
	return Newf(KindUnavailable, property, "property '%s' is not available", property)
}

func NotReadable(property string) error {
	return Newf(KindNotReadable, property, "property '%s' is not readable", property)
}

func NotWritable(property string) error {
	return Newf(KindNotWritable, property, "property '%s' is not writable", property)
}

// OutOfRange reports a value rejected against the live range of property.
func OutOfRange[T int64 | float64](property string, value, min, max T) error {
	return Newf(KindOutOfRange, property,
		"property '%s' must be in interval [%v, %v], got %v", property, min, max, value)
}

func InvalidArgumentf(property, format string, args ...any) error {
	return Newf(KindInvalidArgument, property, format, args...)
}

func FailedPreconditionf(property, format string, args ...any) error {
	return Newf(KindFailedPrecondition, property, format, args...)
}

func PermissionDeniedf(property, format string, args ...any) error {
	return Newf(KindPermissionDenied, property, format, args...)
}

func Unimplementedf(property string) error {
	return Newf(KindUnimplemented, property, "%s is not implemented for this camera", property)
}

func Unsupportedf(property string) error {
	return Newf(KindUnsupported, property, "%s is not supported by this camera", property)
}

// DeviceError wraps a hardware/SDK failure on property.
func DeviceError(property string, err error) error {
	return &Error{
		Kind:     KindDeviceError,
		Property: property,
		Message:  fmt.Sprintf("device error on '%s'", property),
		Err:      err,
	}
}

// Annotate attaches a configuration field path to err. Errors that are not
// classified become device errors so the caller still gets a sanitised reply.
func Annotate(err error, field string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		cp := *se
		cp.Field = field
		return &cp
	}
	return &Error{Kind: KindDeviceError, Field: field, Message: "operation failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// Unclassified errors are device errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindDeviceError
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// CodeOf returns OK for nil and the mapped code otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	return KindOf(err).Code()
}

// Status is the reply status carried on the wire.
type Status struct {
	Code Code   `msgpack:"code" json:"code"`
	Why  string `msgpack:"why,omitempty" json:"why,omitempty"`
}

// OKStatus is the status of a successful reply.
var OKStatus = Status{Code: OK}

// FromError converts err into a wire status.
func FromError(err error) Status {
	if err == nil {
		return OKStatus
	}
	var se *Error
	if errors.As(err, &se) {
		return Status{Code: se.Code(), Why: se.Why()}
	}
	return Status{Code: InternalError, Why: "internal error"}
}

// Err turns a non-OK status received from a peer back into an error.
func (s Status) Err() error {
	if s.Code == OK {
		return nil
	}
	return &RemoteError{Status: s}
}

// RemoteError is a non-OK status returned by a remote gateway.
type RemoteError struct {
	Status Status
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status.Code, e.Status.Why)
}
