package incremental

import (
	"errors"
	"fmt"
)

// Kind classifies the errors returned by this package.
type Kind int

const (
	KindUnknown Kind = iota
	// InvalidEncoding indicates a path that is not valid UTF-8.
	InvalidEncoding
	// NotAFile indicates a path that denotes a directory, a root or is empty.
	NotAFile
	// AlreadyExists indicates that the exact target path exists.
	AlreadyExists
	// IOFailure is any other filesystem error.
	IOFailure
)

var (
	ErrInvalidEncoding = errors.New("not valid unicode")
	ErrNotAFile        = errors.New("not a file")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrIOFailure       = errors.New("i/o failure")
)

var kindSentinels = map[Kind]error{
	InvalidEncoding: ErrInvalidEncoding,
	NotAFile:        ErrNotAFile,
	AlreadyExists:   ErrAlreadyExists,
	IOFailure:       ErrIOFailure,
}

func (k Kind) String() string {
	switch k {
	case InvalidEncoding:
		return "invalid encoding"
	case NotAFile:
		return "not a file"
	case AlreadyExists:
		return "already exists"
	case IOFailure:
		return "i/o failure"
	}
	return "unknown"
}

// Error records the operation and path that failed. Err is the
// underlying cause, if any, eg. the *fs.PathError returned by os.OpenFile.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %q: %s", e.Op, e.Path, kindSentinels[e.Kind])
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind so that
// errors.Is(err, ErrAlreadyExists) works regardless of the cause.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
