package mpegts

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
const FormatName = "mpegts"

// Stream types from the PMT this demuxer maps to elementary streams.
const (
	streamTypeH264 = 0x1B
	streamTypeH265 = 0x24
	streamTypeAAC  = 0x0F
)

// defaultPTSDelay is the buffering delay reported for plain stream input.
const defaultPTSDelay = 300 * time.Millisecond

// probePackets is how many consecutive sync bytes content probing checks.
const probePackets = 5

// Format registers the MPEG-TS demuxer: .ts extension, "mpegts" forced
// name, sync-byte content probe otherwise.
var Format = demux.Format{Name: FormatName, Extension: "ts", Open: Open}

// Demuxer demuxes an MPEG transport stream into video, audio, and caption
// elementary streams on the instance's sink. One Demux call consumes one
// transport packet and emits whatever units completed.
type Demuxer struct {
	log    *slog.Logger
	in     *demux.Instance
	src    stream.Reader
	helper demux.Helper

	table *programTable
	asm   *reassembly

	readBuf [packetSize]byte

	group        int
	firstProgram uint16
	tracks       map[uint16]int
	videoPID     uint16
	videoIsH264  bool

	captions     *captionDecoder
	captionTrack int

	lastPTS      time.Duration
	prevVideoPTS time.Duration
	fps          float64
	deadline     time.Duration

	bytesRead int64
	eof       bool
	pending   [][]packet
}

// Open probes the instance and returns a Demuxer when it carries a
// transport stream. Declining leaves no side effects.
func Open(in *demux.Instance) (demux.Demuxer, error) {
	if in.Stream == nil {
		return nil, demux.ErrUnsupported
	}
	if !in.IsPathExtension("ts") && !in.IsForced(FormatName) {
		if err := probe(in.Stream); err != nil {
			return nil, err
		}
	}
	return New(in, in.Stream, nil), nil
}

// probe peeks for a run of packet-aligned sync bytes. A short peek is
// reported as not-enough-data so the engine can retry or move on without
// failing the stream.
func probe(s stream.Reader) error {
	need := packetSize*(probePackets-1) + 1
	buf, err := s.Peek(need)
	if err != nil || len(buf) < need {
		return demux.ErrNotEnoughData
	}
	for i := 0; i < probePackets; i++ {
		if buf[i*packetSize] != syncByte {
			return demux.ErrUnsupported
		}
	}
	return nil
}

// New creates a Demuxer reading transport packets from src on behalf of in,
// bypassing probing. Fused access demuxers use this to feed a source they
// own; everyone else goes through Open. If log is nil, slog.Default() is
// used.
func New(in *demux.Instance, src stream.Reader, log *slog.Logger) *Demuxer {
	if log == nil {
		log = slog.Default()
	}
	table := newProgramTable()
	d := &Demuxer{
		log:          log.With("component", "mpegts"),
		in:           in,
		src:          src,
		table:        table,
		asm:          newReassembly(table),
		group:        demux.GroupDefault,
		tracks:       make(map[uint16]int),
		captions:     newCaptionDecoder(),
		captionTrack: -1,
		helper:       demux.Helper{End: -1, Align: packetSize},
	}
	if s, ok := src.(stream.Seeker); ok {
		d.helper.Stream = s
		if size, known := s.Size(); known {
			d.helper.End = size
		}
	}
	return d
}

// Demux reads one transport packet and processes whatever unit it
// completes. Corrupt packets and sections are skipped, not fatal.
func (d *Demuxer) Demux(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Advisory bound from SetNextDemuxTime: don't read past the deadline.
	if d.deadline > 0 && d.lastPTS > d.deadline {
		return nil
	}

	if d.eof {
		if len(d.pending) > 0 {
			unit := d.pending[0]
			d.pending = d.pending[1:]
			return d.process(unit)
		}
		return io.EOF
	}

	if _, err := io.ReadFull(d.src, d.readBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.eof = true
			d.pending = d.asm.drain()
			return nil
		}
		return fmt.Errorf("mpegts: read: %w", err)
	}
	d.bytesRead += packetSize

	p, err := parsePacket(d.readBuf[:])
	if err != nil {
		d.log.Debug("skipping corrupt packet", "error", err)
		return nil
	}

	if unit := d.asm.add(p); unit != nil {
		return d.process(unit)
	}
	return nil
}

// Control answers the queries a transport stream can, and hands the
// byte-interpolation ones to the helper.
func (d *Demuxer) Control(q demux.Query) error {
	switch q := q.(type) {
	case *demux.GetTime:
		if d.lastPTS > 0 {
			q.Time = d.lastPTS
			return nil
		}
		d.refreshBitrate()
		return d.helper.Control(q)

	case *demux.GetFPS:
		if d.fps <= 0 {
			return demux.ErrUnsupported
		}
		q.FPS = d.fps
		return nil

	case *demux.SetGroup:
		// Advisory program selection; affects tracks registered from
		// PMTs parsed after this point.
		d.group = q.Group
		return nil

	case *demux.SetNextDemuxTime:
		d.deadline = q.Deadline
		return nil

	case *demux.GetPTSDelay:
		q.Delay = defaultPTSDelay
		return nil

	case *demux.CanControlPace:
		// Plain byte-stream input: the engine reads at its own pace.
		q.CanControl = true
		return nil

	case *demux.CanPause:
		q.CanPause = true
		return nil

	case *demux.SetPauseState:
		// Pausing a pace-controlled source means the engine stops
		// calling Demux; nothing to do here.
		return nil

	case *demux.SetPosition, *demux.SetTime:
		d.refreshBitrate()
		if err := d.helper.Control(q); err != nil {
			return err
		}
		d.resync()
		return nil

	case *demux.GetLength, *demux.GetPosition:
		d.refreshBitrate()
		return d.helper.Control(q)
	}

	return d.helper.Control(q)
}

// Close releases the demuxer's private state. The input stream and sink
// are engine-owned.
func (d *Demuxer) Close() error {
	d.asm.reset()
	d.pending = nil
	return nil
}

// refreshBitrate re-estimates the stream bitrate from bytes consumed per
// presentation time, feeding the helper's interpolation.
func (d *Demuxer) refreshBitrate() {
	us := int64(d.lastPTS / time.Microsecond)
	if us <= 0 || d.bytesRead == 0 {
		return
	}
	d.helper.Bitrate = d.bytesRead * 8 * 1_000_000 / us
}

// resync discards partial units and timing state after a seek; timestamps
// re-establish from the next PES.
func (d *Demuxer) resync() {
	d.asm.reset()
	d.pending = nil
	d.eof = false
	d.lastPTS = 0
	d.prevVideoPTS = 0
}

func (d *Demuxer) process(unit []packet) error {
	pid := unit[0].pid
	payload := joinPayloads(unit)
	if len(payload) == 0 {
		return nil
	}

	if d.table.isPSI(pid) {
		pats, pmts, err := parsePSI(payload)
		if err != nil {
			d.log.Debug("skipping corrupt section", "pid", pid, "error", err)
			return nil
		}
		for _, e := range pats {
			d.table.addPMT(e.pmtPID, e.program)
		}
		for _, pmt := range pmts {
			if err := d.registerProgram(pmt); err != nil {
				return err
			}
		}
		return nil
	}

	if !startCodePresent(payload) {
		return nil
	}
	pes, err := parsePES(payload)
	if err != nil {
		d.log.Debug("skipping corrupt PES", "pid", pid, "error", err)
		return nil
	}
	return d.emit(pid, pes)
}

// wantProgram applies the advisory group selection: all programs, one
// specific program number, or (the default) the first program announced.
func (d *Demuxer) wantProgram(program uint16) bool {
	switch {
	case d.group == demux.GroupAll:
		return true
	case d.group > 0:
		return int(program) == d.group
	default:
		if d.firstProgram == 0 {
			d.firstProgram = program
		}
		return program == d.firstProgram
	}
}

// registerProgram maps a PMT's elementary streams to sink tracks.
func (d *Demuxer) registerProgram(pmt pmtInfo) error {
	if !d.wantProgram(pmt.program) {
		return nil
	}
	for _, es := range pmt.streams {
		if _, ok := d.tracks[es.pid]; ok {
			continue
		}
		var f media.Format
		switch es.streamType {
		case streamTypeH264:
			f = media.Format{Type: media.TypeVideo, Codec: "h264"}
		case streamTypeH265:
			f = media.Format{Type: media.TypeVideo, Codec: "h265"}
		case streamTypeAAC:
			f = media.Format{Type: media.TypeAudio, Codec: "aac"}
		default:
			continue
		}

		track, err := d.in.Out.AddTrack(f)
		if err != nil {
			return fmt.Errorf("mpegts: add track: %w", err)
		}
		d.tracks[es.pid] = track
		if f.Type == media.TypeVideo && d.videoPID == 0 {
			d.videoPID = es.pid
			d.videoIsH264 = es.streamType == streamTypeH264
		}
		d.log.Info("found elementary stream",
			"program", pmt.program, "pid", es.pid, "codec", f.Codec, "track", track)
	}
	return nil
}

func (d *Demuxer) emit(pid uint16, pes pesUnit) error {
	track, ok := d.tracks[pid]
	if !ok {
		return nil
	}
	if len(pes.data) == 0 {
		return nil
	}

	var pts, dts time.Duration
	if pes.pts >= 0 {
		pts = ptsToDuration(pes.pts)
	}
	if pes.dts >= 0 {
		dts = ptsToDuration(pes.dts)
	} else {
		dts = pts
	}
	if pts > d.lastPTS {
		d.lastPTS = pts
	}

	pkt := &media.Packet{Track: track, PTS: pts, DTS: dts, Data: pes.data}

	if pid == d.videoPID {
		if d.videoIsH264 {
			pkt.Keyframe = hasIDR(pes.data)
			if err := d.emitCaptions(pes.data, pts); err != nil {
				return err
			}
		}
		d.trackFPS(pts)
	}

	if err := d.in.Out.Send(pkt); err != nil {
		return fmt.Errorf("mpegts: send: %w", err)
	}
	return nil
}

// emitCaptions decodes CEA-608 captions carried in the access unit's SEI
// messages and delivers them as subtitle packets, registering the caption
// track on first use.
func (d *Demuxer) emitCaptions(accessUnit []byte, pts time.Duration) error {
	caps := d.captions.extract(accessUnit)
	if len(caps) == 0 {
		return nil
	}
	if d.captionTrack < 0 {
		track, err := d.in.Out.AddTrack(media.Format{Type: media.TypeSubtitle, Codec: "cea608"})
		if err != nil {
			return fmt.Errorf("mpegts: add caption track: %w", err)
		}
		d.captionTrack = track
		d.log.Info("found captions", "track", track)
	}
	for _, c := range caps {
		err := d.in.Out.Send(&media.Packet{
			Track: d.captionTrack,
			PTS:   pts,
			DTS:   pts,
			Data:  []byte(c.text),
		})
		if err != nil {
			return fmt.Errorf("mpegts: send caption: %w", err)
		}
	}
	return nil
}

// trackFPS estimates the frame rate from consecutive video timestamps.
func (d *Demuxer) trackFPS(pts time.Duration) {
	if d.prevVideoPTS > 0 && pts > d.prevVideoPTS {
		d.fps = float64(time.Second) / float64(pts-d.prevVideoPTS)
	}
	d.prevVideoPTS = pts
}
