package incremental

import (
	"errors"
	"io/fs"
	"os"
)

const (
	DefaultDirPerm  fs.FileMode = 0o755
	DefaultFilePerm fs.FileMode = 0o644
)

type options struct {
	dirPerm  fs.FileMode
	filePerm fs.FileMode
}

// Option configures CreateAppend and CreateNextAppend.
type Option func(*options)

// WithDirPerm sets the permissions for any parent directories created.
func WithDirPerm(perm fs.FileMode) Option {
	return func(o *options) {
		o.dirPerm = perm
	}
}

// WithFilePerm sets the permissions for the created file.
func WithFilePerm(perm fs.FileMode) Option {
	return func(o *options) {
		o.filePerm = perm
	}
}

// CreateAppend creates a new file at path, opened for writing in append
// mode, after creating any missing parent directories. It never opens
// an existing file: the O_EXCL flag is used so that the existence check
// and the creation are a single atomic operation, and an existing path
// results in an error of kind AlreadyExists. The caller owns, and must
// close, the returned file.
func CreateAppend(path string, opts ...Option) (*os.File, error) {
	o := options{dirPerm: DefaultDirPerm, filePerm: DefaultFilePerm}
	for _, fn := range opts {
		fn(&o)
	}
	if err := requireFile("create", path); err != nil {
		return nil, err
	}
	if dir, _ := splitPath(path); len(dir) > 0 {
		if err := os.MkdirAll(dir, o.dirPerm); err != nil {
			return nil, newError(IOFailure, "mkdir", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_EXCL, o.filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, newError(AlreadyExists, "create", path, err)
		}
		return nil, newError(IOFailure, "create", path, err)
	}
	return f, nil
}

// CreateNextAppend calls CreateAppend on the path returned by NextPath
// and returns both. Errors from either step are returned as is; in
// particular a file created by another process between the two steps
// results in AlreadyExists and callers that need to succeed in the
// presence of such races should call CreateNextAppend again.
func CreateNextAppend(base string, mode Mode, opts ...Option) (string, *os.File, error) {
	path, err := NextPath(base, mode)
	if err != nil {
		return "", nil, err
	}
	f, err := CreateAppend(path, opts...)
	if err != nil {
		return "", nil, err
	}
	return path, f, nil
}
