package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cosnicolaou/seqfile/incremental"
)

// createWithRetry calls incremental.CreateNextAppend until it either
// succeeds, fails with an error other than AlreadyExists or has been
// retried retries times. AlreadyExists is only seen when another process
// creates the chosen name between naming and creation.
func createWithRetry(base string, mode incremental.Mode, retries int, opts ...incremental.Option) (string, *os.File, error) {
	for i := 0; ; i++ {
		path, f, err := incremental.CreateNextAppend(base, mode, opts...)
		if err == nil || !errors.Is(err, incremental.ErrAlreadyExists) || i >= retries {
			return path, f, err
		}
	}
}

// outputs creates the incrementally named files written by captures.
type outputs struct {
	dir     string
	mode    incremental.Mode
	retries int
}

func (o outputs) create(name string) (string, *os.File, error) {
	return createWithRetry(filepath.Join(o.dir, name), o.mode, o.retries)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// newLogfile never reopens an existing log, each run gets its own
// file. A directory results in a log file named for the executable
// within that directory.
func (a *appContext) newLogfile(name string) (io.WriteCloser, string, error) {
	if len(name) == 0 || name == "-" {
		return nopWriteCloser{a.stderr}, "-", nil
	}
	ok, err := incremental.IsFileCandidate(name)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		name = filepath.Join(name, a.exeName+".slog")
	}
	path, f, err := createWithRetry(name, incremental.Extension, DefaultRetries, incremental.WithDirPerm(0700))
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

func (a *appContext) newLogger(ctx context.Context, flags LogFlags) (*Logger, io.Closer, error) {
	level, err := parseLevel(flags.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	lf, path, err := a.newLogfile(flags.LogFile)
	if err != nil {
		return nil, nil, err
	}
	l, err := NewLogger(lf, &slog.HandlerOptions{Level: level}, flags.LogFormat)
	if err != nil {
		lf.Close()
		return nil, nil, err
	}
	l.Debug(ctx, "main", "logging", "exe", a.exeName, "file", path)
	return l, lf, nil
}
