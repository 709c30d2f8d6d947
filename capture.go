package main

import (
	"context"
	"fmt"
	"strings"

	"cloudeng.io/errors"
	"cloudeng.io/sync/errgroup"
)

type CaptureFlags struct {
	ConfigFlags
	LogFlags
	Syslog bool `subcmd:"syslog,false,enable the syslog receiver"`
	RTSP   bool `subcmd:"rtsp,false,enable rtsp stream capture"`
	HTTP   bool `subcmd:"http,false,enable http fetches"`
	Exec   bool `subcmd:"exec,false,enable command output snapshots"`
}

var errNoCaptures = errors.New("no captures enabled: use one or more of --syslog, --rtsp, --http or --exec")

type Capture struct {
	app *appContext
}

func (c *Capture) Run(ctx context.Context, flags any, args []string) error {
	fv := flags.(*CaptureFlags)
	if !fv.Syslog && !fv.RTSP && !fv.HTTP && !fv.Exec {
		return errNoCaptures
	}
	config, err := ParseConfig(ctx, fv.ConfigFlags)
	if err != nil {
		return err
	}
	if unknown := config.unknownNames(args); len(unknown) > 0 {
		return fmt.Errorf("unknown sources: %v", strings.Join(unknown, ", "))
	}
	l, lf, err := c.app.newLogger(ctx, fv.LogFlags)
	if err != nil {
		return err
	}
	defer lf.Close()
	out := config.outputs()
	captures := []func() error{}
	if fv.Syslog {
		captures = append(captures, func() error {
			return c.syslogCapture(ctx, config, out, l)
		})
	}
	if fv.RTSP {
		srcs, err := config.RTSPSources(args)
		if err != nil {
			return err
		}
		captures = append(captures, func() error {
			return c.rtspCapture(ctx, srcs, out, l)
		})
	}
	if fv.HTTP {
		srcs, err := config.HTTPSources(args)
		if err != nil {
			return err
		}
		captures = append(captures, func() error {
			return c.httpCapture(ctx, srcs, out, l)
		})
	}
	if fv.Exec {
		srcs, err := config.ExecSources(args)
		if err != nil {
			return err
		}
		captures = append(captures, func() error {
			return c.execCapture(ctx, srcs, out, l)
		})
	}
	var g errgroup.T
	for _, m := range captures {
		g.Go(m)
	}
	return g.Wait()
}

func (c *Capture) syslogCapture(ctx context.Context, config *Config, out outputs, l *Logger) error {
	s := newSyslogServer(l, out, config.SyslogSource())
	return s.run(ctx)
}

func (c *Capture) rtspCapture(ctx context.Context, srcs []RTSPSource, out outputs, l *Logger) error {
	if len(srcs) == 0 {
		return nil
	}
	capture := NewRTSPCapture(l, out)
	return capture.CaptureAll(ctx, srcs)
}

func (c *Capture) httpCapture(ctx context.Context, srcs []HTTPSource, out outputs, l *Logger) error {
	if len(srcs) == 0 {
		return nil
	}
	capture := NewHTTPCapture(l, out)
	return capture.CaptureAll(ctx, srcs)
}

func (c *Capture) execCapture(ctx context.Context, srcs []ExecSource, out outputs, l *Logger) error {
	if len(srcs) == 0 {
		return nil
	}
	capture := NewExecCapture(l, out)
	return capture.CaptureAll(ctx, srcs)
}
