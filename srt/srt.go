// Package srt is a fused access and demuxer for SRT sources: it dials the
// remote listener itself, owns the connection, and runs the transport
// stream it carries through the MPEG-TS demuxer. Because the source is
// live, it reports no seeking and no pace control.
package srt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/demux"
	"github.com/zsiec/demux/mpegts"
	"github.com/zsiec/demux/stream"
)

// FormatName is the demux-method name matched by forced selection.
const FormatName = "srt"

// scheme is the path prefix that selects this access method.
const scheme = "srt://"

// latencyNs is the SRT receive latency in nanoseconds (120ms).
const latencyNs = 120_000_000

// latency is the same value as a duration, reported as the PTS delay.
const latency = latencyNs * time.Nanosecond

// dialTimeout bounds how long Open waits for the remote listener.
const dialTimeout = 10 * time.Second

// Format registers the fused SRT access+demux. It has no file extension;
// selection goes by the srt:// scheme or the forced name.
var Format = demux.Format{Name: FormatName, Open: Open}

// Demuxer owns an SRT connection and an inner MPEG-TS demuxer reading
// from it.
type Demuxer struct {
	log   *slog.Logger
	conn  io.ReadCloser
	inner *mpegts.Demuxer
}

// Open dials the SRT listener named by the instance path. It declines
// instances that already carry a byte stream: the connection is this
// demuxer's to open.
func Open(in *demux.Instance) (demux.Demuxer, error) {
	if in.Stream != nil {
		return nil, demux.ErrUnsupported
	}
	if !strings.HasPrefix(in.Path(), scheme) && !in.IsForced(FormatName) {
		return nil, demux.ErrUnsupported
	}

	address, streamID, err := splitTarget(in.Path())
	if err != nil {
		return nil, err
	}

	cfg := srtgo.DefaultConfig()
	cfg.Latency = latencyNs
	cfg.StreamID = streamID

	conn, err := dial(address, cfg)
	if err != nil {
		return nil, err
	}
	return newDemuxer(in, conn, nil), nil
}

// newDemuxer wires a connection into the inner transport stream demuxer.
// Split from Open so tests can feed a local source.
func newDemuxer(in *demux.Instance, conn io.ReadCloser, log *slog.Logger) *Demuxer {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "srt")
	return &Demuxer{
		log:   log,
		conn:  conn,
		inner: mpegts.New(in, stream.New(conn), log),
	}
}

// splitTarget extracts the host address and optional streamid query from
// an srt:// path.
func splitTarget(path string) (address, streamID string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("srt: parse %s: %w", path, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("srt: missing host in %s", path)
	}
	return u.Host, u.Query().Get("streamid"), nil
}

// dial connects with a bounded wait, closing a connection that arrives
// after the timeout fires.
func dial(address string, cfg srtgo.Config) (*srtgo.Conn, error) {
	type result struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := srtgo.Dial(address, cfg)
		ch <- result{conn, err}
	}()

	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("srt: dial %s: %w", address, res.err)
		}
		return res.conn, nil
	case <-timer.C:
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("srt: dial %s: timed out after %s", address, dialTimeout)
	}
}

// Demux reads one transport packet from the connection.
func (d *Demuxer) Demux(ctx context.Context) error {
	return d.inner.Demux(ctx)
}

// Control reports the live-source capability set and delegates the
// format queries to the inner demuxer.
func (d *Demuxer) Control(q demux.Query) error {
	switch q := q.(type) {
	case *demux.CanPause:
		q.CanPause = false
		return nil

	case *demux.CanSeek:
		q.CanSeek = false
		return nil

	case *demux.CanControlPace:
		// The remote sender paces delivery.
		q.CanControl = false
		return nil

	case *demux.CanControlRate:
		q.CanControl = false
		q.NeedsRescale = false
		return nil

	case *demux.GetPTSDelay:
		q.Delay = latency
		return nil

	case *demux.GetLength:
		q.Length = 0
		return nil

	case *demux.GetPosition:
		q.Position = 0
		return nil

	case *demux.GetTime, *demux.GetFPS, *demux.SetGroup, *demux.SetNextDemuxTime:
		return d.inner.Control(q)
	}

	return demux.ErrUnsupported
}

// Close shuts down the inner demuxer and the connection it reads from.
func (d *Demuxer) Close() error {
	if err := d.inner.Close(); err != nil {
		d.conn.Close()
		return err
	}
	return d.conn.Close()
}
