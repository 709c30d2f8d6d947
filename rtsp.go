package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"cloudeng.io/sync/errgroup"
	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"
)

// RTSPCapture records the RTP packets of RTSP streams. Every session
// that receives packets is written to a new file named <name>.rtp
// (incremented) in which each packet is stored as a 4 byte big endian
// length followed by the marshalled packet.
type RTSPCapture struct {
	l   *Logger
	out outputs
}

func NewRTSPCapture(l *Logger, out outputs) *RTSPCapture {
	return &RTSPCapture{l: l, out: out}
}

func (m *RTSPCapture) log(ctx context.Context, format string, args ...any) {
	m.l.Log(ctx, "rtsp", format, args...)
}

func (m *RTSPCapture) warn(ctx context.Context, format string, args ...any) {
	m.l.Warn(ctx, "rtsp", format, args...)
}

func (m *RTSPCapture) CaptureAll(ctx context.Context, srcs []RTSPSource) error {
	var g errgroup.T
	for _, src := range srcs {
		g.Go(func() error {
			return m.CaptureSource(ctx, src)
		})
	}
	return g.Wait()
}

func (m *RTSPCapture) CaptureSource(ctx context.Context, src RTSPSource) error {
	for {
		m.log(ctx, "connecting", "name", src.Name, "url", src.SafeURL, "media", src.Media)
		stream, err := m.connect(ctx, src)
		if err != nil {
			m.warn(ctx, "failed to connect", "name", src.Name, "url", src.SafeURL, "media", src.Media, "err", err)
		} else {
			err = stream.sink(ctx, func() (string, *os.File, error) {
				return m.out.create(src.Name + ".rtp")
			}, time.Second*10)
			stream.close()
			if stream.createErr != nil {
				return stream.createErr
			}
			m.warn(ctx, "recording ended", "name", src.Name, "url", src.SafeURL, "file", stream.path, "packets", stream.written, "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(src.Interval):
		}
	}
}

type rtpPacket struct {
	pts  time.Duration
	data []byte
}

type rtspStream struct {
	m       *RTSPCapture
	client  *gortsplib.Client
	media   *description.Media
	format  format.Format
	src     RTSPSource
	pkts    chan rtpPacket
	written int

	path      string
	createErr error
}

func (m *RTSPCapture) connect(ctx context.Context, src RTSPSource) (*rtspStream, error) {
	c := &gortsplib.Client{}

	u, err := base.ParseURL(src.URL)
	if err != nil {
		return nil, err
	}

	err = c.Start(u.Scheme, u.Host)
	if err != nil {
		return nil, err
	}

	desc, _, err := c.Describe(u)
	if err != nil {
		c.Close()
		return nil, err
	}

	stream := &rtspStream{
		m:      m,
		client: c,
		src:    src,
		pkts:   make(chan rtpPacket, 1000),
	}

	switch src.Media {
	case "H264":
		h264 := &format.H264{}
		stream.media = desc.FindFormat(&h264)
		stream.format = h264
	case "H265":
		h265 := &format.H265{}
		stream.media = desc.FindFormat(&h265)
		stream.format = h265
	case "any":
		if len(desc.Medias) > 0 && len(desc.Medias[0].Formats) > 0 {
			stream.media = desc.Medias[0]
			stream.format = desc.Medias[0].Formats[0]
		}
	default:
		c.Close()
		return nil, fmt.Errorf("unsupported media: %q", src.Media)
	}
	if stream.media == nil {
		c.Close()
		return nil, fmt.Errorf("%v not supported", src.Media)
	}

	if _, err = c.Setup(desc.BaseURL, stream.media, 0, 0); err != nil {
		c.Close()
		return nil, err
	}

	// called when a RTP packet arrives
	c.OnPacketRTP(stream.media, stream.format, func(pkt *rtp.Packet) {
		stream.callback(ctx, pkt)
	})

	return stream, nil
}

func (s *rtspStream) callback(ctx context.Context, pkt *rtp.Packet) {
	pts, ok := s.client.PacketPTS(s.media, pkt)
	if !ok {
		s.m.warn(ctx, "waiting for timestamp", "name", s.src.Name, "url", s.src.SafeURL)
		return
	}
	buf, err := pkt.Marshal()
	if err != nil {
		s.m.warn(ctx, "failed to marshal packet", "name", s.src.Name, "url", s.src.SafeURL, "err", err)
		return
	}
	select {
	case s.pkts <- rtpPacket{pts: pts, data: buf}:
	case <-ctx.Done():
		return
	default:
		s.m.warn(ctx, "dropped packet", "name", s.src.Name, "url", s.src.SafeURL, "pts", pts.String())
	}
}

func writePacket(w io.Writer, data []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// sink writes packets to the file returned by create, which is only
// called once the first packet has been received.
func (s *rtspStream) sink(ctx context.Context, create func() (string, *os.File, error), progressDurationSecs time.Duration) error {
	resp, err := s.client.Play(nil)
	if err != nil {
		return fmt.Errorf("play failed: %v", err)
	}
	if resp.StatusCode != base.StatusOK {
		return fmt.Errorf("play failed: %v", resp.StatusMessage)
	}
	var f *os.File
	defer func() {
		if f == nil {
			return
		}
		if err := f.Close(); err != nil {
			s.m.warn(ctx, "close failed", "name", s.src.Name, "file", s.path, "err", err)
		}
	}()
	last := 0 * time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt := <-s.pkts:
			if f == nil {
				s.path, f, s.createErr = create()
				if s.createErr != nil {
					return s.createErr
				}
				s.m.log(ctx, "recording", "name", s.src.Name, "url", s.src.SafeURL, "media", s.src.Media, "file", s.path)
			}
			if err := writePacket(f, pkt.data); err != nil {
				return err
			}
			s.written++
			if n := pkt.pts.Round(progressDurationSecs); n > last {
				last = n
				s.m.log(ctx, "ok", "name", s.src.Name, "url", s.src.SafeURL, "pts", pkt.pts.String(), "packets", s.written)
			}
		case <-time.After(s.src.Timeout):
			return fmt.Errorf("timeout after %s", s.src.Timeout)
		}
	}
}

func (s *rtspStream) close() {
	s.client.Close()
}
