package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/canisnap/types"
)

// Kind classifies a transfer failure. The set is closed.
type Kind int

const (
	// KindFolderAlreadyExists: the download target folder is already present.
	KindFolderAlreadyExists Kind = iota + 1
	// KindSizeMismatch: a byte count differs from the declared or recorded size.
	KindSizeMismatch
	// KindHashMismatch: a SHA-256 differs from the recorded or addressed hash.
	KindHashMismatch
	// KindShortRead: a local random-access read returned fewer bytes than planned.
	KindShortRead
	// KindTransport: a remote call failed.
	KindTransport
	// KindCanceled: the context was canceled before the transfer finished.
	KindCanceled
	// KindManifest: metadata.json is missing, malformed or inconsistent.
	KindManifest
	// KindIO: a local filesystem operation failed.
	KindIO
)

// Sentinel errors, one per Kind. Use errors.Is(err, ErrXxx).
var (
	ErrFolderAlreadyExists = errors.New("snapshot folder already exists")
	ErrSizeMismatch        = errors.New("size mismatch")
	ErrHashMismatch        = errors.New("hash mismatch")
	ErrShortRead           = errors.New("short read")
	ErrTransport           = errors.New("remote call failed")
	ErrCanceled            = errors.New("transfer canceled")
	ErrManifest            = errors.New("invalid snapshot manifest")
	ErrIO                  = errors.New("local I/O failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindFolderAlreadyExists:
		return ErrFolderAlreadyExists
	case KindSizeMismatch:
		return ErrSizeMismatch
	case KindHashMismatch:
		return ErrHashMismatch
	case KindShortRead:
		return ErrShortRead
	case KindTransport:
		return ErrTransport
	case KindCanceled:
		return ErrCanceled
	case KindManifest:
		return ErrManifest
	case KindIO:
		return ErrIO
	default:
		return nil
	}
}

// String returns the snake_case kind name used in logs and notifications.
func (k Kind) String() string {
	switch k {
	case KindFolderAlreadyExists:
		return "folder_already_exists"
	case KindSizeMismatch:
		return "size_mismatch"
	case KindHashMismatch:
		return "hash_mismatch"
	case KindShortRead:
		return "short_read"
	case KindTransport:
		return "transport"
	case KindCanceled:
		return "canceled"
	case KindManifest:
		return "manifest"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a classified transfer failure. Fields beyond Kind are set when
// they apply.
type Error struct {
	Kind     Kind
	Artifact types.Artifact
	Filename string
	Path     string
	// Expected and Actual are rendered values (byte counts or hex digests).
	Expected string
	Actual   string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Artifact != "" {
		msg = fmt.Sprintf("%s: %s", e.Artifact, msg)
	}
	switch {
	case e.Filename != "" && e.Path == "":
		msg = fmt.Sprintf("%s (%s)", msg, e.Filename)
	case e.Path != "":
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Expected != "" || e.Actual != "" {
		msg = fmt.Sprintf("%s: expected %s, got %s", msg, e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

func sizeMismatch(a types.Artifact, path string, expected, actual uint64) *Error {
	return &Error{
		Kind:     KindSizeMismatch,
		Artifact: a,
		Filename: a.Filename(),
		Path:     path,
		Expected: fmt.Sprintf("%d bytes", expected),
		Actual:   fmt.Sprintf("%d bytes", actual),
	}
}

func hashMismatch(a types.Artifact, path string, expected, actual string) *Error {
	return &Error{
		Kind:     KindHashMismatch,
		Artifact: a,
		Filename: a.Filename(),
		Path:     path,
		Expected: expected,
		Actual:   actual,
	}
}

func ioError(a types.Artifact, path string, err error) *Error {
	return &Error{Kind: KindIO, Artifact: a, Filename: a.Filename(), Path: path, Err: err}
}

// planError reports a linear artifact whose declared size cannot be planned.
func planError(a types.Artifact, err error) *Error {
	return &Error{Kind: KindSizeMismatch, Artifact: a, Filename: a.Filename(), Err: err}
}

func manifestError(err error) *Error {
	return &Error{Kind: KindManifest, Err: err}
}

// transportError classifies a failed remote call. Cancellation of ctx wins
// over whatever the transport reported.
func transportError(ctx context.Context, a types.Artifact, err error) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Artifact: a, Err: err}
	}
	return &Error{Kind: KindTransport, Artifact: a, Err: err}
}
