package core

import "errors"

// Error kind sentinels, per the error taxonomy. Use errors.Is against
// these, or errors.As against *OpError to recover the path and op.
var (
	ErrClosed           = errors.New("closed filesystem")
	ErrNoSuchFile       = errors.New("no such file")
	ErrFileExists       = errors.New("file already exists")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrNotADirectory    = errors.New("not a directory")
	ErrAccessDenied     = errors.New("access denied")
	ErrIO               = errors.New("io error")
	ErrUnsupported      = errors.New("unsupported operation")
	ErrIllegalState     = errors.New("illegal state")
)

// OpError wraps one of the sentinel kinds above with the operation and
// path that produced it, following the teacher's ValidationError shape
// (a concrete struct implementing error and Unwrap, rather than a bare
// formatted string).
type OpError struct {
	Op    string
	Path  string
	Kind  error
	Cause error
}

func (e *OpError) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the sentinel kind so errors.Is(err, ErrNoSuchFile)
// works through an *OpError.
func (e *OpError) Unwrap() error { return e.Kind }

// NewOpError builds an *OpError for op/path with the given kind and
// optional underlying cause.
func NewOpError(op, path string, kind error, cause error) *OpError {
	return &OpError{Op: op, Path: path, Kind: kind, Cause: cause}
}
