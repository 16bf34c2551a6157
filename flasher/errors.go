package flasher

import (
	"fmt"

	"github.com/m16c-tools/m16cflash/status"
)

// ErrKind names one entry of the spec's error taxonomy (spec.md §7).
// A tagged kind rather than a hierarchy of exception types — per
// DESIGN NOTE #1, the uniform result channel is a Go error with a
// Kind the caller can switch on instead of a type hierarchy.
type ErrKind int

const (
	_ ErrKind = iota
	HandshakeFailed
	InvalidBaud
	BaudNegotiation
	IDValidationFailed
	NotValidated
	ShortRead
	FlashErr
	AddressOutOfRange
	Internal
)

func (k ErrKind) String() string {
	switch k {
	case HandshakeFailed:
		return "HandshakeFailed"
	case InvalidBaud:
		return "InvalidBaud"
	case BaudNegotiation:
		return "BaudNegotiation"
	case IDValidationFailed:
		return "IdValidationFailed"
	case NotValidated:
		return "NotValidated"
	case ShortRead:
		return "ShortRead"
	case FlashErr:
		return "FlashError"
	case AddressOutOfRange:
		return "AddressOutOfRange"
	case Internal:
		return "Internal"
	default:
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
}

// Error is the uniform error type surfaced by every Session and
// SegmentWriter operation. Addr is the originating flash address, set
// only when the failure is address-scoped (page/block operations).
type Error struct {
	Kind  ErrKind
	Addr  *uint32
	Flash status.FlashErrorKind
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Kind == FlashErr {
		msg = fmt.Sprintf("%s(%s)", msg, e.Flash)
	}
	if e.Addr != nil {
		msg = fmt.Sprintf("%s at address 0x%06x", msg, *e.Addr)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newErr(kind ErrKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func newErrAt(kind ErrKind, addr uint32, err error) *Error {
	a := addr
	return &Error{Kind: kind, Addr: &a, Err: err}
}

// newFlashErr wraps a decoded device-side flash error (spec.md §7
// "FlashError(kind)"), tagging it with the page/block address that
// triggered it.
func newFlashErr(addr uint32, kind status.FlashErrorKind) *Error {
	a := addr
	return &Error{Kind: FlashErr, Addr: &a, Flash: kind}
}
