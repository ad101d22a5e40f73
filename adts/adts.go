// Package adts demuxes raw AAC elementary streams in ADTS framing. Each
// frame carries its own header, so the demuxer derives the track format
// from the first frame and timestamps from the accumulated sample count.
package adts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zsiec/demux"
	"github.com/zsiec/demux/media"
	"github.com/zsiec/demux/stream"
)

// FormatName is the demux-method name matched by forced selection.
const FormatName = "adts"

// samplesPerFrame is fixed for AAC: one frame decodes to 1024 PCM samples.
const samplesPerFrame = 1024

const headerSize = 7

const defaultPTSDelay = 300 * time.Millisecond

// ErrInvalidHeader is returned when the ADTS sync word or header is
// malformed.
var ErrInvalidHeader = errors.New("adts: invalid header")

// Sample rate index table (ISO 14496-3).
var sampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

// Format registers the ADTS demuxer: .aac extension, "adts" forced name,
// two-frame sync probe otherwise.
var Format = demux.Format{Name: FormatName, Extension: "aac", Open: Open}

// header is one parsed ADTS frame header.
type header struct {
	frameLen   int // complete frame including the header
	sampleRate int
	channels   int
}

// parseHeader decodes a 7-byte ADTS header.
func parseHeader(b []byte) (header, error) {
	var h header
	if len(b) < headerSize {
		return h, ErrInvalidHeader
	}
	if b[0] != 0xFF || b[1]&0xF0 != 0xF0 {
		return h, ErrInvalidHeader
	}

	sampleRateIdx := b[2] >> 2 & 0x0F
	if int(sampleRateIdx) >= len(sampleRates) {
		return h, ErrInvalidHeader
	}
	h.sampleRate = sampleRates[sampleRateIdx]
	h.channels = int(b[2]&0x01<<2 | b[3]>>6&0x03)
	h.frameLen = int(b[3]&0x03)<<11 | int(b[4])<<3 | int(b[5]>>5)

	minLen := headerSize
	if b[1]&0x01 == 0 { // protection_absent clear: 2-byte CRC follows
		minLen += 2
	}
	if h.frameLen < minLen {
		return h, ErrInvalidHeader
	}
	return h, nil
}

// Demuxer reads one ADTS frame per Demux call.
type Demuxer struct {
	log    *slog.Logger
	in     *demux.Instance
	helper demux.Helper

	track int

	base     time.Duration // presentation time at the last seek target
	samples  int64         // samples emitted since base
	rate     int
	deadline time.Duration

	bytesRead int64
}

// Open probes the instance and returns a Demuxer when it carries an ADTS
// stream.
func Open(in *demux.Instance) (demux.Demuxer, error) {
	if in.Stream == nil {
		return nil, demux.ErrUnsupported
	}
	if !in.IsPathExtension("aac") && !in.IsForced(FormatName) {
		if err := probe(in.Stream); err != nil {
			return nil, err
		}
	}

	d := &Demuxer{
		log:    slog.Default().With("component", "adts"),
		in:     in,
		track:  -1,
		helper: demux.Helper{End: -1, Align: 1},
	}
	if s, ok := in.Stream.(stream.Seeker); ok {
		d.helper.Stream = s
		if size, known := s.Size(); known {
			d.helper.End = size
		}
	}
	return d, nil
}

// probe requires two consecutive valid frame headers, so a stray 0xFF pair
// in arbitrary data does not claim the stream.
func probe(s stream.Reader) error {
	buf, err := s.Peek(headerSize)
	if err != nil || len(buf) < headerSize {
		return demux.ErrNotEnoughData
	}
	h, err := parseHeader(buf)
	if err != nil {
		return demux.ErrUnsupported
	}

	buf, err = s.Peek(h.frameLen + headerSize)
	if err != nil || len(buf) < h.frameLen+headerSize {
		return demux.ErrNotEnoughData
	}
	if _, err := parseHeader(buf[h.frameLen:]); err != nil {
		return demux.ErrUnsupported
	}
	return nil
}

// Demux reads and delivers one frame, scanning forward byte by byte when
// the stream is not aligned on a sync word.
func (d *Demuxer) Demux(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.deadline > 0 && d.clock() > d.deadline {
		return nil
	}

	buf, err := d.in.Stream.Peek(headerSize)
	if len(buf) < headerSize {
		// A short peek at end of stream (including a trailing partial
		// header) is a clean end; anything else is a stream failure.
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return fmt.Errorf("adts: read: %w", err)
	}

	h, err := parseHeader(buf)
	if err != nil {
		// Lost sync: consume one byte and rescan on the next call.
		var skip [1]byte
		if _, err := io.ReadFull(d.in.Stream, skip[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return io.EOF
			}
			return fmt.Errorf("adts: read: %w", err)
		}
		d.bytesRead++
		return nil
	}

	frame := make([]byte, h.frameLen)
	if _, err := io.ReadFull(d.in.Stream, frame); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return fmt.Errorf("adts: read: %w", err)
	}
	d.bytesRead += int64(h.frameLen)

	if d.track < 0 {
		f := media.Format{
			Type:       media.TypeAudio,
			Codec:      "aac",
			SampleRate: h.sampleRate,
			Channels:   h.channels,
		}
		track, err := d.in.Out.AddTrack(f)
		if err != nil {
			return fmt.Errorf("adts: add track: %w", err)
		}
		d.track = track
		d.rate = h.sampleRate
		d.log.Info("found audio stream",
			"sample_rate", h.sampleRate, "channels", h.channels)
	}

	pts := d.clock()
	d.samples += samplesPerFrame

	err = d.in.Out.Send(&media.Packet{
		Track: d.track,
		PTS:   pts,
		DTS:   pts,
		Data:  frame,
	})
	if err != nil {
		return fmt.Errorf("adts: send: %w", err)
	}
	return nil
}

// Control answers the queries a raw frame stream can and delegates the
// byte-interpolation ones to the helper.
func (d *Demuxer) Control(q demux.Query) error {
	switch q := q.(type) {
	case *demux.GetTime:
		q.Time = d.clock()
		return nil

	case *demux.GetPTSDelay:
		q.Delay = defaultPTSDelay
		return nil

	case *demux.CanControlPace:
		q.CanControl = true
		return nil

	case *demux.CanPause:
		q.CanPause = true
		return nil

	case *demux.SetPauseState:
		return nil

	case *demux.SetNextDemuxTime:
		d.deadline = q.Deadline
		return nil

	case *demux.SetPosition, *demux.SetTime:
		d.refreshBitrate()
		if err := d.helper.Control(q); err != nil {
			return err
		}
		d.rebase()
		return nil

	case *demux.GetLength, *demux.GetPosition:
		d.refreshBitrate()
		return d.helper.Control(q)
	}

	return d.helper.Control(q)
}

// Close releases the demuxer's private state.
func (d *Demuxer) Close() error {
	return nil
}

// clock is the current presentation time: the time at the last seek target
// plus the samples emitted since.
func (d *Demuxer) clock() time.Duration {
	if d.rate <= 0 {
		return d.base
	}
	return d.base + time.Duration(d.samples*int64(time.Second)/int64(d.rate))
}

func (d *Demuxer) refreshBitrate() {
	us := int64(d.clock() / time.Microsecond)
	if us <= 0 || d.bytesRead == 0 {
		return
	}
	d.helper.Bitrate = d.bytesRead * 8 * 1_000_000 / us
}

// rebase restarts the sample clock at the interpolated time of the new byte
// position. The next Demux calls rescan for a sync word from there.
func (d *Demuxer) rebase() {
	var gt demux.GetTime
	if err := d.helper.Control(&gt); err == nil {
		d.base = gt.Time
	}
	d.samples = 0
}
