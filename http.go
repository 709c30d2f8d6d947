package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"cloudeng.io/sync/errgroup"
	"github.com/icholy/digest"
)

// HTTPCapture periodically fetches URLs and saves every response body
// to a new file named <name><ext> (incremented).
type HTTPCapture struct {
	l   *Logger
	out outputs
}

func NewHTTPCapture(l *Logger, out outputs) *HTTPCapture {
	return &HTTPCapture{l: l, out: out}
}

type perHostState struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func (h *perHostState) Lock() {
	h.mu.Lock()
}

func (h *perHostState) Unlock() {
	h.mu.Unlock()
}

func (s *HTTPCapture) CaptureAll(ctx context.Context, srcs []HTTPSource) error {
	// Requests to the same host are serialized and share cookies.
	perHost := map[string]*perHostState{}
	for _, src := range srcs {
		if _, ok := perHost[src.Host]; !ok {
			jar, _ := cookiejar.New(nil)
			perHost[src.Host] = &perHostState{
				jar: jar,
			}
		}
	}

	var g errgroup.T
	for _, src := range srcs {
		r := &httpGet{src: src, hostState: perHost[src.Host], l: s.l, out: s.out}
		g.Go(func() error {
			return r.issueCalls(ctx)
		})
	}
	return g.Wait()
}

type httpGet struct {
	src       HTTPSource
	hostState *perHostState
	l         *Logger
	out       outputs
}

func (c *httpGet) log(ctx context.Context, format string, args ...any) {
	c.l.Log(ctx, "http", format, args...)
}

func (c *httpGet) warn(ctx context.Context, format string, args ...any) {
	c.l.Warn(ctx, "http", format, args...)
}

func (c *httpGet) issueCalls(ctx context.Context) error {
	for {
		src := c.src
		if err := c.call(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				c.warn(ctx, "exiting", "name", src.Name, "url", src.URL, "err", ctx.Err())
				return err
			}
			c.warn(ctx, "call failed", "name", src.Name, "url", src.URL, "err", err)
		}
		if src.OnceOnly {
			return nil
		}
		select {
		case <-ctx.Done():
			c.warn(ctx, "exiting", "name", src.Name, "url", src.URL, "err", ctx.Err())
			return ctx.Err()
		case <-time.After(src.Interval):
		}
	}
}

func (c *httpGet) call(ctx context.Context) error {
	c.hostState.Lock()
	defer c.hostState.Unlock()
	src := c.src
	ctx, cancel := context.WithTimeout(ctx, src.Timeout)
	defer cancel()
	client := &http.Client{
		Transport: &digest.Transport{
			Jar:      c.hostState.jar,
			Username: src.Auth.User,
			Password: src.Auth.Token,
		},
	}
	req, err := http.NewRequestWithContext(ctx, "GET", src.URL, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.log(ctx, "timeout", "name", src.Name, "url", src.URL, "timeout", src.Timeout, "err", err)
			return nil
		}
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %v", res.Status)
	}
	path, f, err := c.out.create(src.Name + src.Ext)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, res.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%v: %v", path, err)
	}
	c.log(ctx, "ok", "name", src.Name, "url", src.URL, "file", path, "bytes", n)
	return nil
}
