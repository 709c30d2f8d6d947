package main

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"cloudeng.io/sync/errgroup"
)

// ExecCapture periodically runs commands, eg. arp -an or netstat -rn,
// and saves their output to a new file named <name><ext> (incremented),
// but only when the output differs from the previous run.
type ExecCapture struct {
	l   *Logger
	out outputs
}

func NewExecCapture(l *Logger, out outputs) *ExecCapture {
	return &ExecCapture{l: l, out: out}
}

func (m *ExecCapture) log(ctx context.Context, format string, args ...any) {
	m.l.Log(ctx, "exec", format, args...)
}

func (m *ExecCapture) warn(ctx context.Context, format string, args ...any) {
	m.l.Warn(ctx, "exec", format, args...)
}

func (m *ExecCapture) CaptureAll(ctx context.Context, srcs []ExecSource) error {
	var g errgroup.T
	for _, src := range srcs {
		g.Go(func() error {
			return m.CaptureSource(ctx, src)
		})
	}
	return g.Wait()
}

func (m *ExecCapture) CaptureSource(ctx context.Context, src ExecSource) error {
	var (
		previous []byte
		saved    bool
	)
	for {
		out, err := runCommand(ctx, src.Command)
		switch {
		case err != nil:
			m.warn(ctx, "command failed", "name", src.Name, "command", src.Command, "err", err)
		case saved && bytes.Equal(out, previous):
			m.log(ctx, "no changes", "name", src.Name)
		default:
			path, err := m.save(src, out)
			if err != nil {
				return err
			}
			m.log(ctx, "saved", "name", src.Name, "file", path, "bytes", len(out))
			previous, saved = out, true
		}
		if src.OnceOnly {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(src.Interval):
		}
	}
}

func (m *ExecCapture) save(src ExecSource, out []byte) (string, error) {
	path, f, err := m.out.create(src.Name + src.Ext)
	if err != nil {
		return "", err
	}
	_, err = f.Write(out)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("%v: %v", path, err)
	}
	return path, nil
}

func runCommand(ctx context.Context, command []string) ([]byte, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("no command specified")
	}
	return exec.CommandContext(ctx, command[0], command[1:]...).Output()
}
