package sparsedex

import "github.com/hupe1980/sparsedex/sdxerr"

// ErrorKind classifies a sparsedex error so callers can branch on failure
// category without string-matching messages.
type ErrorKind = sdxerr.ErrorKind

const (
	KindUnknown           = sdxerr.KindUnknown
	KindInvalidArgument   = sdxerr.KindInvalidArgument
	KindIOError           = sdxerr.KindIOError
	KindCorruption        = sdxerr.KindCorruption
	KindResourceExhausted = sdxerr.KindResourceExhausted
	KindAlreadyExists     = sdxerr.KindAlreadyExists
	KindNotFound          = sdxerr.KindNotFound
	KindBusy              = sdxerr.KindBusy
	KindTimeout           = sdxerr.KindTimeout
)

// Error is the typed error returned by all sparsedex operations.
type Error = sdxerr.Error

// Kind extracts the ErrorKind of err, walking the Unwrap chain.
func Kind(err error) ErrorKind { return sdxerr.Kind(err) }

var (
	// ErrNotFound is returned when a segment, row, or manifest entry a
	// caller asked for does not exist.
	ErrNotFound = sdxerr.ErrNotFound

	// ErrClosed is returned by any operation attempted after Close.
	ErrClosed = sdxerr.ErrClosed

	// ErrAlreadyExists is returned by Create when the target directory
	// already holds an index.
	ErrAlreadyExists = sdxerr.ErrAlreadyExists

	// ErrBusy is returned by Open/Create when another process holds the
	// index directory's lock (the lock is taken on non-Windows platforms).
	ErrBusy = sdxerr.ErrBusy
)

// InvalidArgument wraps err as a KindInvalidArgument error.
func InvalidArgument(msg string, err error) error { return sdxerr.InvalidArgument(msg, err) }

// IOError wraps a filesystem/mmap failure as a KindIOError error.
func IOError(msg string, err error) error { return sdxerr.IOError(msg, err) }

// Corruption wraps a checksum mismatch or malformed segment header as a
// KindCorruption error.
func Corruption(msg string, err error) error { return sdxerr.Corruption(msg, err) }

// ResourceExhausted wraps a resource.Controller rejection as a
// KindResourceExhausted error.
func ResourceExhausted(msg string, err error) error { return sdxerr.ResourceExhausted(msg, err) }

// Timeout wraps a context deadline/cancellation as a KindTimeout error.
func Timeout(msg string, err error) error { return sdxerr.Timeout(msg, err) }
