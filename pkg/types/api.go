package types

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindUnknown     ErrKind = iota // not produced by this module
	ErrKindPath                       // malformed path string or unknown hive
	ErrKindMalformed                  // value payload could not be decoded
	ErrKindNotFound                   // missing key or value
	ErrKindDenied                     // write refused or not confirmed
	ErrKindWait                       // native change wait failed
	ErrKindUnsupported                // operation unavailable on this platform
	ErrKindState                      // invalid operation for current state (e.g., closed)
)

// String returns the short taxonomy name of the kind.
func (k ErrKind) String() string {
	switch k {
	case ErrKindPath:
		return "InvalidPath"
	case ErrKindMalformed:
		return "MalformedBinary"
	case ErrKindNotFound:
		return "NotFound"
	case ErrKindDenied:
		return "WriteDenied"
	case ErrKindWait:
		return "NativeWaitFailure"
	case ErrKindUnsupported:
		return "Unsupported"
	case ErrKindState:
		return "State"
	default:
		return "Unknown"
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinels commonly returned by implementations.
var (
	// ErrInvalidPath indicates a registry path string that cannot be resolved.
	ErrInvalidPath = &Error{Kind: ErrKindPath, Msg: "invalid registry path"}
	// ErrUnknownHive indicates a root token that names no well-known hive.
	ErrUnknownHive = &Error{Kind: ErrKindPath, Msg: "unknown hive"}
	// ErrMalformedBinary indicates a hex payload that fails byte decoding.
	ErrMalformedBinary = &Error{Kind: ErrKindMalformed, Msg: "malformed value payload"}
	// ErrKeyNotFound indicates the key does not exist in the store.
	ErrKeyNotFound = &Error{Kind: ErrKindNotFound, Msg: "key not found"}
	// ErrValueMissing indicates the key exists but the value does not.
	ErrValueMissing = &Error{Kind: ErrKindNotFound, Msg: "value missing"}
	// ErrWriteDenied indicates a write was refused or did not stick.
	ErrWriteDenied = &Error{Kind: ErrKindDenied, Msg: "write denied"}
	// ErrNativeWait indicates the change-notification wait failed.
	ErrNativeWait = &Error{Kind: ErrKindWait, Msg: "native wait failed"}
	// ErrUnsupported indicates the store is unavailable on this platform.
	ErrUnsupported = &Error{Kind: ErrKindUnsupported, Msg: "unsupported on this platform"}
	// ErrWatchClosed is returned by Wait after the waiter has been closed.
	ErrWatchClosed = &Error{Kind: ErrKindState, Msg: "watch closed"}
)

// Errorf builds an error of the given kind whose cause is cause.
func Errorf(kind ErrKind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// IsNotFound reports whether err is a key or value lookup miss.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// -----------------------------------------------------------------------------
// Value Types
// -----------------------------------------------------------------------------

// RegType enumerates the registry value types a policy can declare.
// (The numbers align with Windows definitions.)
type RegType uint32

const (
	REG_NONE             RegType = 0
	REG_SZ               RegType = 1
	REG_EXPAND_SZ        RegType = 2
	REG_BINARY           RegType = 3
	REG_DWORD            RegType = 4
	REG_DWORD_BIG_ENDIAN RegType = 5
	REG_MULTI_SZ         RegType = 7
	REG_QWORD            RegType = 11
)

// String implements the Stringer interface for RegType
func (t RegType) String() string {
	switch t {
	case REG_NONE:
		return "REG_NONE"
	case REG_SZ:
		return "REG_SZ"
	case REG_EXPAND_SZ:
		return "REG_EXPAND_SZ"
	case REG_BINARY:
		return "REG_BINARY"
	case REG_DWORD:
		return "REG_DWORD"
	case REG_DWORD_BIG_ENDIAN:
		return "REG_DWORD_BIG_ENDIAN"
	case REG_MULTI_SZ:
		return "REG_MULTI_SZ"
	case REG_QWORD:
		return "REG_QWORD"
	default:
		return fmt.Sprintf("UNKNOWN_TYPE_%d", int32(t))
	}
}
