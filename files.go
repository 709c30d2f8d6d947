package main

import (
	"context"
	"fmt"
	"io"

	"cloudeng.io/errors"
	"github.com/cosnicolaou/seqfile/incremental"
)

type ModeFlags struct {
	Mode string `subcmd:"mode,suffix,naming mode: suffix (file.txt-0) or extension (file-0.txt)"`
}

func (m ModeFlags) mode() (incremental.Mode, error) {
	return incremental.ParseMode(m.Mode)
}

type CheckFlags struct{}

type NextFlags struct {
	ModeFlags
}

type CreateFlags struct {
	ModeFlags
	LogFlags
	Retries int  `subcmd:"retries,10,number of times to retry when another process creates the same file concurrently"`
	Stdin   bool `subcmd:"stdin,false,copy stdin to the created file"`
}

type Files struct {
	app *appContext
}

func (fc *Files) Check(ctx context.Context, flags any, args []string) error {
	errs := &errors.M{}
	for _, path := range args {
		ok, err := incremental.IsFileCandidate(path)
		if err != nil {
			errs.Append(err)
			continue
		}
		if ok {
			fmt.Fprintf(fc.app.stdout, "%s: file\n", path)
		} else {
			fmt.Fprintf(fc.app.stdout, "%s: not a file\n", path)
		}
	}
	return errs.Err()
}

func (fc *Files) Next(ctx context.Context, flags any, args []string) error {
	fv := flags.(*NextFlags)
	mode, err := fv.mode()
	if err != nil {
		return err
	}
	errs := &errors.M{}
	for _, base := range args {
		path, err := incremental.NextPath(base, mode)
		if err != nil {
			errs.Append(err)
			continue
		}
		fmt.Fprintln(fc.app.stdout, path)
	}
	return errs.Err()
}

func (fc *Files) Create(ctx context.Context, flags any, args []string) error {
	fv := flags.(*CreateFlags)
	mode, err := fv.mode()
	if err != nil {
		return err
	}
	if fv.Stdin && len(args) != 1 {
		return fmt.Errorf("--stdin requires exactly one path, got %v", len(args))
	}
	l, lf, err := fc.app.newLogger(ctx, fv.LogFlags)
	if err != nil {
		return err
	}
	defer lf.Close()
	errs := &errors.M{}
	for _, base := range args {
		path, err := fc.create(ctx, l, base, mode, fv.Retries, fv.Stdin)
		if err != nil {
			l.Warn(ctx, "create", "failed", "base", base, "kind", incremental.KindOf(err).String(), "err", err)
			errs.Append(err)
			continue
		}
		fmt.Fprintln(fc.app.stdout, path)
	}
	return errs.Err()
}

func (fc *Files) create(ctx context.Context, l *Logger, base string, mode incremental.Mode, retries int, stdin bool) (string, error) {
	path, f, err := createWithRetry(base, mode, retries)
	if err != nil {
		return "", err
	}
	l.Debug(ctx, "create", "created", "base", base, "path", path, "mode", mode.String())
	if !stdin {
		return path, f.Close()
	}
	n, err := io.Copy(f, fc.app.stdin)
	if err != nil {
		f.Close()
		return "", fmt.Errorf("%v: %v", path, err)
	}
	l.Debug(ctx, "create", "copied stdin", "path", path, "bytes", n)
	return path, f.Close()
}
