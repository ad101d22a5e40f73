package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/zsiec/demux"
)

// Runner owns the demux loop for one instance. Exactly one goroutine calls
// into the demuxer for the Runner's whole lifetime, upholding the protocol's
// single-threaded contract; capability queries issued through Caps must
// happen on the same goroutine, before Run or from the callbacks.
type Runner struct {
	log  *slog.Logger
	inst *demux.Instance
	d    demux.Demuxer
	caps *Caps

	// OnNavigation is invoked from the demux loop whenever the demuxer
	// reported a title or seekpoint change since the previous unit of work.
	OnNavigation func(update demux.Update, title, seekpoint int)

	// Clock, when set, supplies the advisory deadline sent to the demuxer
	// before each unit of work via SetNextDemuxTime. Demuxers that do not
	// honor the hint simply decline it.
	Clock func() time.Duration

	units int64
}

// NewRunner creates a Runner for an opened demuxer. If log is nil,
// slog.Default() is used.
func NewRunner(inst *demux.Instance, d demux.Demuxer, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		log:  log.With("component", "runner"),
		inst: inst,
		d:    d,
		caps: NewCaps(d),
	}
}

// Caps returns the capability cache bound to this runner's demuxer.
func (r *Runner) Caps() *Caps {
	return r.caps
}

// Units returns how many units of work have completed so far.
func (r *Runner) Units() int64 {
	return r.units
}

// Run executes the demux loop until end of stream, a fatal demux error, or
// context cancellation. End of stream is a clean return.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r.Clock != nil {
			// Advisory hint; ErrUnsupported from the demuxer is expected.
			_ = r.d.Control(&demux.SetNextDemuxTime{Deadline: r.Clock()})
		}

		err := r.d.Demux(ctx)
		r.units++

		if u := r.inst.TakeUpdates(); u != 0 {
			r.log.Debug("navigation update",
				"title", r.inst.Title(), "seekpoint", r.inst.Seekpoint())
			if r.OnNavigation != nil {
				r.OnNavigation(u, r.inst.Title(), r.inst.Seekpoint())
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.log.Debug("end of stream", "units", r.units)
				return nil
			}
			return err
		}
	}
}
