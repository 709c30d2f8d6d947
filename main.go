package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
)

const cmdSpec = `name: seqfile
summary: create incrementally named, append only, output files without clobbering earlier runs
commands:
  - name: check
    summary: report whether each path can be used to create a file
    args:
      - <path>... - the paths to check
  - name: next
    summary: print the next available incrementally named path for each path
    args:
      - <path>... - the base paths
  - name: create
    summary: create the next available incrementally named file for each path
    args:
      - <path>... - the base paths
  - name: capture
    summary: capture syslog, rtsp, http and command output into incrementally named files according to the specified configuration file
    args:
      - <name>... - the rtsp, http and exec sources to capture, capture all if none specified
`

// appContext is computed once at startup and passed to all commands.
type appContext struct {
	exeName string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func newAppContext(args []string) *appContext {
	return &appContext{
		exeName: exeName(args),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
}

func exeName(args []string) string {
	if len(args) == 0 || len(args[0]) == 0 {
		return "seqfile"
	}
	return filepath.Base(args[0])
}

func cli(app *appContext) *subcmd.CommandSetYAML {
	cmd := subcmd.MustFromYAML(cmdSpec)
	files := &Files{app: app}
	cmd.Set("check").MustRunner(files.Check, &CheckFlags{})
	cmd.Set("next").MustRunner(files.Next, &NextFlags{})
	cmd.Set("create").MustRunner(files.Create, &CreateFlags{})
	capture := &Capture{app: app}
	cmd.Set("capture").MustRunner(capture.Run, &CaptureFlags{})
	return cmd
}

var interrupt = errors.New("interrupt")

func main() {
	ctx := context.Background()
	ctx, cancel := context.WithCancelCause(ctx)
	cmdutil.HandleSignals(func() { cancel(interrupt) }, os.Interrupt)
	err := cli(newAppContext(os.Args)).Dispatch(ctx)
	if context.Cause(ctx) == interrupt {
		cmdutil.Exit("%v", interrupt)
	}
	if err != nil {
		cmdutil.Exit("%v", err)
	}
}
