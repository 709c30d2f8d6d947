package main

import (
	"context"
	"fmt"
	"sort"

	"cloudeng.io/sync/errgroup"
	"gopkg.in/mcuadros/go-syslog.v2"
	"gopkg.in/mcuadros/go-syslog.v2/format"
)

type syslogServer struct {
	l   *Logger
	out outputs
	cfg SyslogConfig
}

func newSyslogServer(l *Logger, out outputs, cfg SyslogConfig) *syslogServer {
	return &syslogServer{l: l, out: out, cfg: cfg}
}

func (s *syslogServer) log(ctx context.Context, format string, args ...any) {
	s.l.Log(ctx, "syslog", format, args...)
}

// kv flattens the parts of a syslog message into sorted key/value pairs.
func kv(parts format.LogParts) []any {
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res := make([]any, 0, len(parts)*2)
	for _, k := range keys {
		res = append(res, k, parts[k])
	}
	return res
}

func syslogFormat(name string) (format.Format, error) {
	switch name {
	case "rfc3164":
		return syslog.RFC3164, nil
	case "rfc5424":
		return syslog.RFC5424, nil
	case "rfc6587":
		return syslog.RFC6587, nil
	case "automatic":
		return syslog.Automatic, nil
	}
	return nil, fmt.Errorf("unsupported syslog format: %q", name)
}

func (s *syslogServer) listen(server *syslog.Server) error {
	switch s.cfg.Protocol {
	case "udp":
		return server.ListenUDP(s.cfg.Listen)
	case "tcp":
		return server.ListenTCP(s.cfg.Listen)
	}
	return fmt.Errorf("unsupported syslog protocol: %q", s.cfg.Protocol)
}

// run receives syslog messages and writes each one as a JSON line to
// a newly created file.
func (s *syslogServer) run(ctx context.Context) error {
	sf, err := syslogFormat(s.cfg.Format)
	if err != nil {
		return err
	}
	path, f, err := s.out.create(s.cfg.Name)
	if err != nil {
		return err
	}
	defer f.Close()
	records, err := NewLogger(f, nil, "json")
	if err != nil {
		return err
	}

	channel := make(syslog.LogPartsChannel)
	handler := syslog.NewChannelHandler(channel)

	server := syslog.NewServer()
	server.SetFormat(sf)
	server.SetHandler(handler)
	if err := s.listen(server); err != nil {
		return err
	}
	if err := server.Boot(); err != nil {
		return err
	}
	s.log(ctx, "receiving", "listen", s.cfg.Listen, "protocol", s.cfg.Protocol, "format", s.cfg.Format, "file", path)

	done := make(chan struct{})
	var g errgroup.T
	g.Go(func() error {
		for {
			select {
			case logParts := <-channel:
				records.Log(ctx, "syslog", "received", kv(logParts)...)
			case <-ctx.Done():
				server.Kill()
				// Drain until the server's goroutines have exited.
				for {
					select {
					case <-channel:
					case <-done:
						return ctx.Err()
					}
				}
			}
		}
	})
	g.Go(func() error {
		server.Wait()
		close(done)
		return nil
	})
	return g.Wait()
}
