package demux

import (
	"time"

	"github.com/zsiec/demux/media"
)

// Query is the closed set of control commands understood by Demuxer.Control.
// Each variant is a small struct passed by pointer; fields documented as
// "out" are filled in by the demuxer. Adding a variant is a protocol version
// change: engine and formats must agree on the set.
//
// Group I variants are legal for any demuxer. Group II variants (CanPause,
// SetPauseState, GetPTSDelay, CanControlPace, CanControlRate, SetRate,
// CanSeek) concern the byte source and are primarily answered by demuxers
// that are also their own access method; a plain stream-fed demuxer may
// answer them from knowledge of its input stream or decline them.
type Query interface {
	isQuery()
}

// GetPosition reports the current position as a fraction of the whole
// stream. Never fails; a demuxer that cannot tell reports 0.
type GetPosition struct {
	Position float64 // out: in [0.0, 1.0]
}

// SetPosition seeks to a fraction of the whole stream. Fails with
// ErrUnsupported when seeking is impossible or the fraction is out of range.
type SetPosition struct {
	Position float64 // in: in [0.0, 1.0]
}

// GetLength reports the total stream duration with microsecond precision.
// Never fails; 0 means unknown.
type GetLength struct {
	Length time.Duration // out
}

// GetTime reports the current play time with microsecond precision.
// Never fails; 0 means unknown.
type GetTime struct {
	Time time.Duration // out
}

// SetTime seeks to an absolute play time. Fails with ErrUnsupported when
// seeking is impossible.
type SetTime struct {
	Time time.Duration // in
}

// GetTitleInfo retrieves the title table. Fails when the container exposes
// at most one title with at most one chapter; SetTitle and SetSeekpoint are
// legal only after it succeeded.
type GetTitleInfo struct {
	Titles          []media.Title // out
	TitleOffset     int           // out: index shown to the user for title 0
	SeekpointOffset int           // out: index shown for seekpoint 0
}

// SetTitle selects a title by index. May fail.
type SetTitle struct {
	Title int // in: >= 0
}

// SetSeekpoint selects a seekpoint within the current title. May fail.
type SetSeekpoint struct {
	Seekpoint int // in: >= 0
}

// Group arguments for SetGroup.
const (
	GroupAll     = -1
	GroupDefault = 0
)

// SetGroup hints which elementary-stream group the engine is interested in
// so the demuxer can skip the rest. Advisory: a demuxer may ignore it
// without any correctness consequence.
type SetGroup struct {
	Group int // in: GroupAll, GroupDefault, or a format-specific group id
}

// SetNextDemuxTime bounds how far the next Demux call should read: an
// advisory deadline, mandatory to honor only for subtitle-like demuxers
// that would otherwise over-read and starve pacing.
type SetNextDemuxTime struct {
	Deadline time.Duration // in
}

// GetFPS reports the video frame rate, for subtitle timing. May fail.
type GetFPS struct {
	FPS float64 // out
}

// GetMeta retrieves container metadata. May fail.
type GetMeta struct {
	Meta media.Meta // out
}

// HasUnsupportedMeta reports whether the container carries metadata this
// demuxer cannot expose. May fail.
type HasUnsupportedMeta struct {
	Unsupported bool // out
}

// GetAttachments retrieves embedded attachments. May fail.
type GetAttachments struct {
	Attachments []media.Attachment // out
}

// CanPause reports whether the source can be paused. On failure the engine
// assumes false.
type CanPause struct {
	CanPause bool // out
}

// CanSeek reports whether the source supports seeking. On failure the
// engine assumes false.
type CanSeek struct {
	CanSeek bool // out
}

// SetPauseState pauses or resumes the source. Legal only after CanPause
// reported true; may fail.
type SetPauseState struct {
	Paused bool // in
}

// GetPTSDelay reports the buffering delay the engine should apply to
// timestamps from this source. Never fails.
type GetPTSDelay struct {
	Delay time.Duration // out
}

// CanControlPace reports whether the engine may read at its own pace. When
// true, rate queries are never issued; when false the source runs in real
// time and CanControlRate becomes relevant. On failure the engine assumes
// false.
type CanControlPace struct {
	CanControl bool // out
}

// CanControlRate is issued only after CanControlPace reported false. It
// reports whether the source's delivery rate can be changed and whether
// timestamps must be rescaled by the engine after a rate change. On failure
// the engine assumes false.
type CanControlRate struct {
	CanControl   bool // out
	NeedsRescale bool // out
}

// SetRate changes the delivery rate. Legal only after CanControlRate
// reported true. The demuxer writes back the rate actually applied, which
// may differ from the request.
type SetRate struct {
	Rate float64 // in/out: multiplier, 1.0 = normal speed
}

func (*GetPosition) isQuery()        {}
func (*SetPosition) isQuery()        {}
func (*GetLength) isQuery()          {}
func (*GetTime) isQuery()            {}
func (*SetTime) isQuery()            {}
func (*GetTitleInfo) isQuery()       {}
func (*SetTitle) isQuery()           {}
func (*SetSeekpoint) isQuery()       {}
func (*SetGroup) isQuery()           {}
func (*SetNextDemuxTime) isQuery()   {}
func (*GetFPS) isQuery()             {}
func (*GetMeta) isQuery()            {}
func (*HasUnsupportedMeta) isQuery() {}
func (*GetAttachments) isQuery()     {}
func (*CanPause) isQuery()           {}
func (*CanSeek) isQuery()            {}
func (*SetPauseState) isQuery()      {}
func (*GetPTSDelay) isQuery()        {}
func (*CanControlPace) isQuery()     {}
func (*CanControlRate) isQuery()     {}
func (*SetRate) isQuery()            {}
