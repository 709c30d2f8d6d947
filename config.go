package main

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"cloudeng.io/cmdutil/cmdyaml"
	"cloudeng.io/cmdutil/keystore"
	"github.com/cosnicolaou/seqfile/incremental"
)

const (
	DefaultRetries = 10

	DefaultSyslogName   = "syslog.jsonl"
	DefaultSyslogListen = "0.0.0.0:514"

	DefaultRTSPTimeout  = 5 * time.Second
	DefaultRTSPInterval = 30 * time.Second
	DefaultRSTPPort     = 554

	DefaultHTTPTimeout  = 5 * time.Second
	DefaultHTTPInterval = time.Minute
	DefaultHTTPExt      = ".body"

	DefaultExecInterval = time.Minute
	DefaultExecExt      = ".out"
)

type OutputConfig struct {
	Dir     string            `yaml:"dir"`
	Mode    *incremental.Mode `yaml:"mode,omitempty"`
	Retries int               `yaml:"retries,omitempty"`
}

type SyslogConfig struct {
	Name     string `yaml:"name,omitempty"`
	Listen   string `yaml:"listen,omitempty"`
	Protocol string `yaml:"protocol,omitempty"`
	Format   string `yaml:"format,omitempty"`
}

type RTSPConfig struct {
	Name     string        `yaml:"name"`
	Host     string        `yaml:"host"`
	Path     string        `yaml:"path,omitempty"`
	AuthID   string        `yaml:"key_id,omitempty"`
	Port     int           `yaml:"port,omitempty"`
	Media    string        `yaml:"media,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

type HTTPConfig struct {
	Name     string        `yaml:"name"`
	URL      string        `yaml:"url"`
	Ext      string        `yaml:"ext,omitempty"`
	AuthID   string        `yaml:"key_id,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	OnceOnly bool          `yaml:"once_only,omitempty"`
}

type ExecConfig struct {
	Name     string        `yaml:"name"`
	Command  []string      `yaml:"command"`
	Ext      string        `yaml:"ext,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	OnceOnly bool          `yaml:"once_only,omitempty"`
}

type Config struct {
	Output OutputConfig  `yaml:"output"`
	Syslog *SyslogConfig `yaml:"syslog,omitempty"`
	RTSP   []RTSPConfig  `yaml:"rtsp,omitempty"`
	HTTP   []HTTPConfig  `yaml:"http,omitempty"`
	Exec   []ExecConfig  `yaml:"exec,omitempty"`
	auth   keystore.Keys
}

type ConfigFlags struct {
	AuthFile   string `subcmd:"auth,,auth config file to use"`
	ConfigFile string `subcmd:"config,$HOME/.seqfile.yaml,config file to use"`
}

func ParseConfig(ctx context.Context, flags ConfigFlags) (*Config, error) {
	var config Config
	if len(flags.AuthFile) > 0 {
		keys, err := keystore.ParseConfigURI(ctx, flags.AuthFile, nil)
		if err != nil {
			return nil, err
		}
		config.auth = keys
	}
	if err := cmdyaml.ParseConfigFile(ctx, flags.ConfigFile, &config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%v: %v", flags.ConfigFile, err)
	}
	return &config, nil
}

func (c Config) validate() error {
	if len(c.Output.Dir) == 0 {
		return fmt.Errorf("output.dir must be specified")
	}
	if c.Syslog != nil && len(c.Syslog.Name) > 0 {
		if err := validName("syslog", c.Syslog.Name); err != nil {
			return err
		}
	}
	seen := map[string]bool{}
	for _, r := range c.RTSP {
		if err := validName("rtsp", r.Name); err != nil {
			return err
		}
		if seen[r.Name] {
			return fmt.Errorf("rtsp: duplicate name %q", r.Name)
		}
		seen[r.Name] = true
	}
	seen = map[string]bool{}
	for _, h := range c.HTTP {
		if err := validName("http", h.Name); err != nil {
			return err
		}
		if seen[h.Name] {
			return fmt.Errorf("http: duplicate name %q", h.Name)
		}
		seen[h.Name] = true
	}
	seen = map[string]bool{}
	for _, e := range c.Exec {
		if err := validName("exec", e.Name); err != nil {
			return err
		}
		if seen[e.Name] {
			return fmt.Errorf("exec: duplicate name %q", e.Name)
		}
		if len(e.Command) == 0 {
			return fmt.Errorf("exec: %q: no command specified", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// validName ensures that name can be used as the base of an output file
// directly within the output directory.
func validName(section, name string) error {
	ok, err := incremental.IsFileCandidate(name)
	if err != nil {
		return fmt.Errorf("%s: %v", section, err)
	}
	if !ok || filepath.Base(name) != name {
		return fmt.Errorf("%s: %q is not a valid file name", section, name)
	}
	return nil
}

// outputs defaults to Extension naming so that captured files keep
// their extension, eg. status-0.body.
func (c Config) outputs() outputs {
	retries := c.Output.Retries
	if retries == 0 {
		retries = DefaultRetries
	}
	mode := incremental.Extension
	if c.Output.Mode != nil {
		mode = *c.Output.Mode
	}
	return outputs{
		dir:     c.Output.Dir,
		mode:    mode,
		retries: retries,
	}
}

// selectFor returns the entries in all whose names appear in names, or
// all of them if names is empty or "all". Names not present in all are
// ignored since they may refer to another kind of source.
func selectFor[T any](all []T, name func(T) string, names []string) []T {
	if len(names) == 0 || (len(names) == 1 && names[0] == "all") {
		return all
	}
	var selected []T
	for _, n := range names {
		for _, v := range all {
			if name(v) == n {
				selected = append(selected, v)
			}
		}
	}
	return selected
}

// unknownNames returns those names that do not refer to any source.
func (c Config) unknownNames(names []string) []string {
	known := map[string]bool{"all": true}
	for _, r := range c.RTSP {
		known[r.Name] = true
	}
	for _, h := range c.HTTP {
		known[h.Name] = true
	}
	for _, e := range c.Exec {
		known[e.Name] = true
	}
	var unknown []string
	for _, n := range names {
		if !known[n] {
			unknown = append(unknown, n)
		}
	}
	return unknown
}

func defaultIntervalTimeout(interval, timeout, defaultInterval, defaultTimeout time.Duration) (time.Duration, time.Duration) {
	if interval == 0 {
		interval = defaultInterval
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return interval, timeout
}

func (c Config) authFor(authID string) (keystore.KeyInfo, bool) {
	auth, ok := c.auth[authID]
	return auth, ok
}

func defaultPort(port, defaultPort int) int {
	if port == 0 {
		port = defaultPort
	}
	return port
}

func (c Config) SyslogSource() SyslogConfig {
	var s SyslogConfig
	if c.Syslog != nil {
		s = *c.Syslog
	}
	if len(s.Name) == 0 {
		s.Name = DefaultSyslogName
	}
	if len(s.Listen) == 0 {
		s.Listen = DefaultSyslogListen
	}
	if len(s.Protocol) == 0 {
		s.Protocol = "udp"
	}
	if len(s.Format) == 0 {
		s.Format = "rfc3164"
	}
	return s
}

type RTSPSource struct {
	Name     string
	URL      string
	SafeURL  string // no password
	Media    string
	Interval time.Duration
	Timeout  time.Duration
}

func (c Config) RTSPSources(names []string) ([]RTSPSource, error) {
	selected := selectFor(c.RTSP, func(r RTSPConfig) string { return r.Name }, names)
	srcs := make([]RTSPSource, 0, len(selected))
	for _, d := range selected {
		v := RTSPSource{
			Name:  d.Name,
			Media: "H264",
		}
		if len(d.Media) != 0 {
			v.Media = d.Media
		}
		port := defaultPort(d.Port, DefaultRSTPPort)
		v.Interval, v.Timeout = defaultIntervalTimeout(d.Interval, d.Timeout, DefaultRTSPInterval, DefaultRTSPTimeout)
		path := strings.TrimPrefix(d.Path, "/")
		if auth, ok := c.authFor(d.AuthID); ok {
			v.URL = fmt.Sprintf("rtsp://%s:%s@%s:%d/%s", auth.User, auth.Token, d.Host, port, path)
			v.SafeURL = fmt.Sprintf("rtsp://%s:%s@%s:%d/%s", auth.User, "****", d.Host, port, path)
		} else {
			v.URL = fmt.Sprintf("rtsp://%s:%d/%s", d.Host, port, path)
			v.SafeURL = v.URL
		}
		srcs = append(srcs, v)
	}
	return srcs, nil
}

type HTTPSource struct {
	Name     string
	URL      string
	Host     string
	Ext      string
	Interval time.Duration
	Timeout  time.Duration
	OnceOnly bool
	Auth     keystore.KeyInfo
}

func (c Config) HTTPSources(names []string) ([]HTTPSource, error) {
	selected := selectFor(c.HTTP, func(h HTTPConfig) string { return h.Name }, names)
	srcs := make([]HTTPSource, 0, len(selected))
	for _, d := range selected {
		u, err := url.Parse(d.URL)
		if err != nil {
			return nil, fmt.Errorf("http source %q: %v", d.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("http source %q: unsupported scheme %q", d.Name, u.Scheme)
		}
		v := HTTPSource{
			Name:     d.Name,
			URL:      d.URL,
			Host:     u.Host,
			Ext:      d.Ext,
			OnceOnly: d.OnceOnly,
		}
		v.Ext = defaultExt(v.Ext, DefaultHTTPExt)
		v.Interval, v.Timeout = defaultIntervalTimeout(d.Interval, d.Timeout, DefaultHTTPInterval, DefaultHTTPTimeout)
		v.Auth, _ = c.authFor(d.AuthID)
		srcs = append(srcs, v)
	}
	return srcs, nil
}

func defaultExt(ext, defaultExt string) string {
	if len(ext) == 0 {
		return defaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

type ExecSource struct {
	Name     string
	Command  []string
	Ext      string
	Interval time.Duration
	OnceOnly bool
}

func (c Config) ExecSources(names []string) ([]ExecSource, error) {
	selected := selectFor(c.Exec, func(e ExecConfig) string { return e.Name }, names)
	srcs := make([]ExecSource, 0, len(selected))
	for _, d := range selected {
		v := ExecSource{
			Name:     d.Name,
			Command:  d.Command,
			Ext:      defaultExt(d.Ext, DefaultExecExt),
			Interval: d.Interval,
			OnceOnly: d.OnceOnly,
		}
		if v.Interval == 0 {
			v.Interval = DefaultExecInterval
		}
		srcs = append(srcs, v)
	}
	return srcs, nil
}
