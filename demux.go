package demux

import (
	"context"

	"github.com/zsiec/demux/media"
	"github.com/zsiec/demux/stream"
)

// Demuxer is a container parser bound to one stream. The engine calls Demux
// and Control synchronously and never concurrently on the same instance, so
// implementations may keep unsynchronized private state.
type Demuxer interface {
	// Demux performs one unit of work: typically reading one packet or frame
	// from the input stream and delivering the resulting elementary-stream
	// packets to the sink. It returns nil to request another call, io.EOF at
	// end of stream, and any other error to report a fatal stream failure.
	// Demux may block on the input stream's read.
	Demux(ctx context.Context) error

	// Control executes one query. Queries the implementation does not handle
	// must return ErrUnsupported rather than panic; a failed state-changing
	// query must leave observable state unchanged.
	Control(q Query) error

	// Close releases the demuxer's private state. A fused access+demux also
	// releases the byte source it owns. The shared input stream and sink are
	// engine-owned and are not closed here.
	Close() error
}

// Update reports which navigation state a demuxer changed since the engine
// last looked. It is a single-writer/single-reader handshake: only the
// demuxer sets flags (through Instance.SetTitle and Instance.SetSeekpoint)
// and only the engine clears them (through Instance.TakeUpdates).
type Update uint

// Navigation update flags.
const (
	UpdateTitle Update = 1 << iota
	UpdateSeekpoint
)

// Has reports whether flag is set.
func (u Update) Has(flag Update) bool {
	return u&flag != 0
}

// Config carries everything needed to create an Instance.
type Config struct {
	// Access names the byte-source method ("file", "srt"). Informative.
	Access string
	// Name is the demux method requested by the user, empty when the engine
	// should probe. A non-empty Name forces the matching format.
	Name string
	// Path is the resolved location of the stream.
	Path string
	// Stream is the input byte stream. Nil when the access method and the
	// demuxer are fused into one component that owns its own source.
	Stream stream.Reader
	// Out receives track registrations and demuxed packets. Required.
	Out media.Sink
}

// Instance is the per-stream state shared by the engine and one demuxer:
// immutable identity, the collaborator handles, and the title/seekpoint
// navigation state with its pending-update handshake. A concrete demuxer
// keeps the Instance it was opened with; the engine keeps it to observe
// navigation changes.
type Instance struct {
	access string
	name   string
	path   string

	// Stream is the input byte stream, nil for a fused access+demux.
	Stream stream.Reader
	// Out is the elementary-stream sink. Always non-nil.
	Out media.Sink

	title     int
	seekpoint int
	pending   Update
}

// NewInstance creates an Instance with zeroed navigation state.
func NewInstance(cfg Config) *Instance {
	return &Instance{
		access: cfg.Access,
		name:   cfg.Name,
		path:   cfg.Path,
		Stream: cfg.Stream,
		Out:    cfg.Out,
	}
}

// Access returns the access-method name.
func (in *Instance) Access() string { return in.access }

// Name returns the requested demux-method name, empty when probing.
func (in *Instance) Name() string { return in.name }

// Path returns the resolved stream path.
func (in *Instance) Path() string { return in.path }

// Title returns the current title index, 0 being the default title.
func (in *Instance) Title() int { return in.title }

// Seekpoint returns the current seekpoint index within the current title.
func (in *Instance) Seekpoint() int { return in.seekpoint }

// SetTitle records a demuxer-side title change and marks it pending for the
// engine. Demuxer use only.
func (in *Instance) SetTitle(title int) {
	if title < 0 {
		title = 0
	}
	in.title = title
	in.pending |= UpdateTitle
}

// SetSeekpoint records a demuxer-side seekpoint change and marks it pending
// for the engine. Demuxer use only.
func (in *Instance) SetSeekpoint(seekpoint int) {
	if seekpoint < 0 {
		seekpoint = 0
	}
	in.seekpoint = seekpoint
	in.pending |= UpdateSeekpoint
}

// TakeUpdates returns the pending navigation updates and clears them.
// Engine use only; after a drain, an unrelated demux call reports nothing.
func (in *Instance) TakeUpdates() Update {
	u := in.pending
	in.pending = 0
	return u
}
