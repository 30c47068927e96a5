// Package sdxerr defines the typed error taxonomy shared by every
// sparsedex subsystem. It is a separate, import-free leaf package so that
// low-level packages (segment, manifest, posting) can return typed errors
// without creating an import cycle back through the root package.
package sdxerr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a sparsedex error so callers can branch on failure
// category without string-matching messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidArgument
	KindIOError
	KindCorruption
	KindResourceExhausted
	KindAlreadyExists
	KindNotFound
	KindBusy
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindIOError:
		return "io_error"
	case KindCorruption:
		return "corruption"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindAlreadyExists:
		return "already_exists"
	case KindNotFound:
		return "not_found"
	case KindBusy:
		return "busy"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by all sparsedex operations. A single
// concrete type keeps errors.As trivial for callers while still letting
// Unwrap reach the underlying OS/codec error.
type Error struct {
	kind  ErrorKind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("sparsedex: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("sparsedex: %s", e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's category.
func (e *Error) Kind() ErrorKind { return e.kind }

func New(kind ErrorKind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// Kind extracts the ErrorKind of err, walking the Unwrap chain. Returns
// KindUnknown if err is nil or not a *Error anywhere in its chain.
func Kind(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

var (
	// ErrNotFound is returned when a segment, row, or manifest entry a
	// caller asked for does not exist.
	ErrNotFound = New(KindNotFound, "not found", nil)

	// ErrClosed is returned by any operation attempted after Close.
	ErrClosed = New(KindInvalidArgument, "index is closed", nil)

	// ErrAlreadyExists is returned by Create when the target directory
	// already holds an index.
	ErrAlreadyExists = New(KindAlreadyExists, "index already exists", nil)

	// ErrBusy is returned by Open/Create when another process holds the
	// index directory's lock (the lock is taken on non-Windows platforms).
	ErrBusy = New(KindBusy, "index directory is locked by another process", nil)
)

// InvalidArgument wraps err as a KindInvalidArgument error, used for
// malformed vectors (non-finite weight, duplicate dimension) and K<=0,
// rejected before any durable state changes.
func InvalidArgument(msg string, err error) error {
	return New(KindInvalidArgument, msg, err)
}

// IOError wraps a filesystem/mmap failure as a KindIOError error.
func IOError(msg string, err error) error {
	return New(KindIOError, msg, err)
}

// Corruption wraps a checksum mismatch or malformed segment header as a
// KindCorruption error. A segment that fails these checks when the index
// is opened makes the open fail.
func Corruption(msg string, err error) error {
	return New(KindCorruption, msg, err)
}

// ResourceExhausted wraps a resource.Controller rejection (memory or
// background worker slots) as a KindResourceExhausted error.
func ResourceExhausted(msg string, err error) error {
	return New(KindResourceExhausted, msg, err)
}

// Timeout wraps a context deadline/cancellation as a KindTimeout error.
func Timeout(msg string, err error) error {
	return New(KindTimeout, msg, err)
}
