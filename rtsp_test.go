package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/cosnicolaou/seqfile/incremental"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func readPacket(t *testing.T, r io.Reader) *rtp.Packet {
	t.Helper()
	var hdr [4]byte
	_, err := io.ReadFull(r, hdr[:])
	require.NoError(t, err)
	buf := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	var pkt rtp.Packet
	require.NoError(t, pkt.Unmarshal(buf))
	return &pkt
}

func TestWritePacket(t *testing.T) {
	var out bytes.Buffer
	var sent []*rtp.Packet
	for i := 0; i < 3; i++ {
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    96,
				SequenceNumber: uint16(100 + i),
				Timestamp:      uint32(90000 * i),
				SSRC:           0xdeadbeef,
				Marker:         i == 2,
			},
			Payload: bytes.Repeat([]byte{byte(i)}, 10*(i+1)),
		}
		buf, err := pkt.Marshal()
		require.NoError(t, err)
		require.NoError(t, writePacket(&out, buf))
		sent = append(sent, pkt)
	}
	for _, exp := range sent {
		got := readPacket(t, &out)
		require.Equal(t, exp.SequenceNumber, got.SequenceNumber)
		require.Equal(t, exp.Timestamp, got.Timestamp)
		require.Equal(t, exp.SSRC, got.SSRC)
		require.Equal(t, exp.Marker, got.Marker)
		require.Equal(t, exp.Payload, got.Payload)
	}
	require.Zero(t, out.Len())
}

// readPackets returns the complete packets framed in buf.
func readPackets(buf []byte) []*rtp.Packet {
	var pkts []*rtp.Packet
	for len(buf) >= 4 {
		n := int(binary.BigEndian.Uint32(buf[:4]))
		if len(buf) < 4+n {
			break
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[4 : 4+n]); err != nil {
			break
		}
		pkts = append(pkts, &pkt)
		buf = buf[4+n:]
	}
	return pkts
}

type testRTSPServer struct {
	server *gortsplib.Server
	stream *gortsplib.ServerStream
	media  *description.Media
	status base.StatusCode
	plays  atomic.Int64
	url    string
}

func (ts *testRTSPServer) OnDescribe(ctx *gortsplib.ServerHandlerOnDescribeCtx) (*base.Response, *gortsplib.ServerStream, error) {
	return &base.Response{StatusCode: base.StatusOK}, ts.stream, nil
}

func (ts *testRTSPServer) OnSetup(ctx *gortsplib.ServerHandlerOnSetupCtx) (*base.Response, *gortsplib.ServerStream, error) {
	return &base.Response{StatusCode: base.StatusOK}, ts.stream, nil
}

func (ts *testRTSPServer) OnPlay(ctx *gortsplib.ServerHandlerOnPlayCtx) (*base.Response, error) {
	ts.plays.Add(1)
	return &base.Response{StatusCode: ts.status}, nil
}

func newTestRTSPServer(t *testing.T, status base.StatusCode) *testRTSPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ts := &testRTSPServer{
		status: status,
		media: &description.Media{
			Type: description.MediaTypeVideo,
			Formats: []format.Format{&format.H264{
				PayloadTyp:        96,
				PacketizationMode: 1,
			}},
		},
		url: "rtsp://" + addr + "/stream",
	}
	ts.server = &gortsplib.Server{Handler: ts, RTSPAddress: addr}
	require.NoError(t, ts.server.Start())
	ts.stream = gortsplib.NewServerStream(ts.server, &description.Session{Medias: []*description.Media{ts.media}})
	t.Cleanup(func() {
		ts.stream.Close()
		ts.server.Close()
	})
	return ts
}

// publish writes an IDR packet every few milliseconds until ctx is done.
func (ts *testRTSPServer) publish(ctx context.Context) {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Millisecond):
		}
		_ = ts.stream.WritePacketRTP(ts.media, &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    96,
				SequenceNumber: uint16(i),
				Timestamp:      uint32(i * 3000),
				SSRC:           0x1234,
			},
			Payload: []byte{0x65, byte(i), 0xaa, 0xbb},
		})
	}
}

func newTestRTSPCapture(t *testing.T) (*RTSPCapture, string) {
	app, _, _ := newTestApp("")
	l, _, err := app.newLogger(context.Background(), LogFlags{})
	require.NoError(t, err)
	dir := t.TempDir()
	return NewRTSPCapture(l, outputs{dir: dir, mode: incremental.Extension, retries: DefaultRetries}), dir
}

func TestRTSPCapture(t *testing.T) {
	ts := newTestRTSPServer(t, base.StatusOK)
	capture, dir := newTestRTSPCapture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ts.publish(ctx)

	src := RTSPSource{Name: "cam", URL: ts.url, SafeURL: ts.url, Media: "H264", Interval: 50 * time.Millisecond, Timeout: 2 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- capture.CaptureSource(ctx, src)
	}()

	file := filepath.Join(dir, "cam-0.rtp")
	require.Eventually(t, func() bool {
		buf, err := os.ReadFile(file)
		return err == nil && len(readPackets(buf)) >= 5
	}, 10*time.Second, 20*time.Millisecond)
	cancel()
	require.ErrorContains(t, <-errCh, context.Canceled.Error())

	buf, err := os.ReadFile(file)
	require.NoError(t, err)
	pkts := readPackets(buf)
	require.GreaterOrEqual(t, len(pkts), 5)
	for i, pkt := range pkts {
		require.Equal(t, uint32(0x1234), pkt.SSRC)
		require.Equal(t, uint8(96), pkt.PayloadType)
		require.Len(t, pkt.Payload, 4)
		require.Equal(t, byte(0x65), pkt.Payload[0])
		if i > 0 {
			require.Equal(t, pkts[i-1].SequenceNumber+1, pkt.SequenceNumber)
		}
	}
}

func TestRTSPCapturePlayFails(t *testing.T) {
	ts := newTestRTSPServer(t, base.StatusBadRequest)
	capture, dir := newTestRTSPCapture(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go ts.publish(ctx)

	src := RTSPSource{Name: "cam", URL: ts.url, SafeURL: ts.url, Media: "H264", Interval: 200 * time.Millisecond, Timeout: time.Second}
	err := capture.CaptureSource(ctx, src)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Failed sessions create no files and are retried after the interval.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
	plays := ts.plays.Load()
	require.GreaterOrEqual(t, plays, int64(2))
	require.LessOrEqual(t, plays, int64(6))
}
