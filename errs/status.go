// Package errs defines the status taxonomy shared by every layer of the
// RPC runtime (buffer, codec, transport, arbitrator, client, server).
//
// A single Status value is carried through the codec for each call. The
// first non-success outcome wins; downstream steps become no-ops until an
// explicit reset. Call sites compare against the sentinel errors below with
// errors.Is, or recover the Status with errors.As when they need the raw
// code (for example, an installed error handler logging it).
package errs

import "fmt"

// Status enumerates the outcome codes a call through the runtime can end in.
type Status int

const (
	StatusSuccess Status = iota
	StatusFail
	StatusInvalidArgument
	StatusTimeout
	StatusInvalidMessageVersion
	StatusExpectedReply
	StatusCrcCheckFailed
	StatusBufferOverrun
	StatusUnknownName
	StatusConnectionFailure
	StatusConnectionClosed
	StatusMemoryError
	StatusServerIsDown
	StatusInitFailed
	StatusReceiveFailed
	StatusSendFailed
	StatusUnknownCallback
	StatusNestedCallFailure
	StatusBadAddressScale
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFail:
		return "fail"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusTimeout:
		return "timeout"
	case StatusInvalidMessageVersion:
		return "invalid message version"
	case StatusExpectedReply:
		return "expected reply"
	case StatusCrcCheckFailed:
		return "crc check failed"
	case StatusBufferOverrun:
		return "buffer overrun"
	case StatusUnknownName:
		return "unknown name"
	case StatusConnectionFailure:
		return "connection failure"
	case StatusConnectionClosed:
		return "connection closed"
	case StatusMemoryError:
		return "memory error"
	case StatusServerIsDown:
		return "server is down"
	case StatusInitFailed:
		return "init failed"
	case StatusReceiveFailed:
		return "receive failed"
	case StatusSendFailed:
		return "send failed"
	case StatusUnknownCallback:
		return "unknown callback"
	case StatusNestedCallFailure:
		return "nested call failure"
	case StatusBadAddressScale:
		return "bad address scale"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusError wraps a Status as an error, optionally annotated with extra
// context (the offending offset, method id, etc). Two StatusErrors compare
// equal under errors.Is when their Status matches, regardless of Detail.
type StatusError struct {
	Status Status
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Detail)
}

// Is makes errors.Is(err, errs.ErrBufferOverrun) match any StatusError
// carrying StatusBufferOverrun, regardless of Detail.
func (e *StatusError) Is(target error) bool {
	other, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return e.Status == other.Status
}

// New builds a StatusError with detail, suitable for wrapping with fmt.Errorf("%w: ...", ...).
func New(status Status, detail string) *StatusError {
	return &StatusError{Status: status, Detail: detail}
}

// Sentinel errors, one per Status, for errors.Is comparisons at call sites.
var (
	ErrFail                   = &StatusError{Status: StatusFail}
	ErrInvalidArgument        = &StatusError{Status: StatusInvalidArgument}
	ErrTimeout                = &StatusError{Status: StatusTimeout}
	ErrInvalidMessageVersion  = &StatusError{Status: StatusInvalidMessageVersion}
	ErrExpectedReply          = &StatusError{Status: StatusExpectedReply}
	ErrCrcCheckFailed         = &StatusError{Status: StatusCrcCheckFailed}
	ErrBufferOverrun          = &StatusError{Status: StatusBufferOverrun}
	ErrUnknownName            = &StatusError{Status: StatusUnknownName}
	ErrConnectionFailure      = &StatusError{Status: StatusConnectionFailure}
	ErrConnectionClosed       = &StatusError{Status: StatusConnectionClosed}
	ErrMemoryError            = &StatusError{Status: StatusMemoryError}
	ErrServerIsDown           = &StatusError{Status: StatusServerIsDown}
	ErrInitFailed             = &StatusError{Status: StatusInitFailed}
	ErrReceiveFailed          = &StatusError{Status: StatusReceiveFailed}
	ErrSendFailed             = &StatusError{Status: StatusSendFailed}
	ErrUnknownCallback        = &StatusError{Status: StatusUnknownCallback}
	ErrNestedCallFailure      = &StatusError{Status: StatusNestedCallFailure}
	ErrBadAddressScale        = &StatusError{Status: StatusBadAddressScale}
	ErrNotAppendPosition      = &StatusError{Status: StatusBufferOverrun, Detail: "cursor is not positioned at used"}
	ErrReceiveUnderrun        = &StatusError{Status: StatusBufferOverrun, Detail: "read past used"}
)

// Fatal reports whether a status is defined as fatal per the runtime's
// fatal-vs-recoverable split: init failures and connection teardown require
// the caller to stop using the handle/transport rather than retry.
func Fatal(status Status) bool {
	switch status {
	case StatusInitFailed, StatusConnectionClosed:
		return true
	default:
		return false
	}
}
