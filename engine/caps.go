// Package engine drives demuxer instances the way a playback core does:
// it probes capabilities once per instance, enforces the legal query
// ordering, runs the demux loop on a dedicated goroutine, and observes
// navigation updates through the instance handshake.
package engine

import (
	"github.com/zsiec/demux"
	"github.com/zsiec/demux/media"
)

// capability is one probeable flag: unknown until the query has been issued
// once, then cached for the instance lifetime with false as the value when
// the query failed.
type capability struct {
	probed bool
	value  bool
}

// Caps is the engine-side capability cache for one demuxer instance. Each
// capability is queried at most once; pace and rate are mutually exclusive
// (a pace-controllable source never sees rate queries); and the dependent
// state changes (SetRate, SetPause, SetTitle, SetSeekpoint) are rejected
// defensively unless their prerequisite probe succeeded.
//
// Caps is not safe for concurrent use, matching the single-threaded
// contract of the demuxer itself.
type Caps struct {
	d demux.Demuxer

	pause capability
	seek  capability
	pace  capability
	rate  capability

	rescale bool

	titlesProbed bool
	titles       []media.Title
	title        int // current title, bounds seekpoint selection
}

// NewCaps creates a capability cache for d with every capability unknown.
func NewCaps(d demux.Demuxer) *Caps {
	return &Caps{d: d}
}

// probe issues the query once and caches the out value, defaulting to false
// when the demuxer declines.
func (c *Caps) probe(state *capability, issue func() (bool, error)) bool {
	if !state.probed {
		if v, err := issue(); err == nil {
			state.value = v
		}
		state.probed = true
	}
	return state.value
}

// CanPause reports whether the source can be paused, false when the demuxer
// does not implement the query.
func (c *Caps) CanPause() bool {
	return c.probe(&c.pause, func() (bool, error) {
		q := &demux.CanPause{}
		err := c.d.Control(q)
		return q.CanPause, err
	})
}

// CanSeek reports whether the source supports seeking, false when the
// demuxer does not implement the query.
func (c *Caps) CanSeek() bool {
	return c.probe(&c.seek, func() (bool, error) {
		q := &demux.CanSeek{}
		err := c.d.Control(q)
		return q.CanSeek, err
	})
}

// CanControlPace reports whether the engine may pace reads itself.
func (c *Caps) CanControlPace() bool {
	return c.probe(&c.pace, func() (bool, error) {
		q := &demux.CanControlPace{}
		err := c.d.Control(q)
		return q.CanControl, err
	})
}

// CanControlRate reports whether the delivery rate can be changed and
// whether timestamps need rescaling afterwards. When the source is
// pace-controllable the rate query is never issued and both results are
// false: pace and rate control are mutually exclusive.
func (c *Caps) CanControlRate() (changeable, needsRescale bool) {
	if c.CanControlPace() {
		return false, false
	}
	changeable = c.probe(&c.rate, func() (bool, error) {
		q := &demux.CanControlRate{}
		err := c.d.Control(q)
		if err == nil {
			c.rescale = q.NeedsRescale
		}
		return q.CanControl, err
	})
	return changeable, c.rescale
}

// SetRate asks the demuxer to change its delivery rate and returns the
// rate actually applied. Calling it without a prior successful
// CanControlRate probe is a caller error and is rejected with
// ErrUnsupported instead of reaching the demuxer.
func (c *Caps) SetRate(rate float64) (float64, error) {
	if !c.rate.probed || !c.rate.value {
		return 0, demux.ErrUnsupported
	}
	q := &demux.SetRate{Rate: rate}
	if err := c.d.Control(q); err != nil {
		return 0, err
	}
	return q.Rate, nil
}

// SetPause pauses or resumes the source. Rejected unless a prior CanPause
// probe reported true.
func (c *Caps) SetPause(paused bool) error {
	if !c.pause.probed || !c.pause.value {
		return demux.ErrUnsupported
	}
	return c.d.Control(&demux.SetPauseState{Paused: paused})
}

// TitleInfo retrieves and caches the title table. SetTitle and SetSeekpoint
// are only legal after a successful TitleInfo call.
func (c *Caps) TitleInfo() ([]media.Title, error) {
	q := &demux.GetTitleInfo{}
	if err := c.d.Control(q); err != nil {
		return nil, err
	}
	c.titlesProbed = true
	c.titles = q.Titles
	return q.Titles, nil
}

// SetTitle selects a title. Rejected when TitleInfo was never issued,
// reported no titles, or the index is out of range.
func (c *Caps) SetTitle(title int) error {
	if !c.titlesProbed || len(c.titles) == 0 {
		return demux.ErrUnsupported
	}
	if title < 0 || title >= len(c.titles) {
		return demux.ErrUnsupported
	}
	if err := c.d.Control(&demux.SetTitle{Title: title}); err != nil {
		return err
	}
	c.title = title
	return nil
}

// SetSeekpoint selects a seekpoint within the current title, gated the same
// way as SetTitle and bounds-checked against that title's seekpoint table.
func (c *Caps) SetSeekpoint(seekpoint int) error {
	if !c.titlesProbed || len(c.titles) == 0 {
		return demux.ErrUnsupported
	}
	if seekpoint < 0 || seekpoint >= len(c.titles[c.title].Seekpoints) {
		return demux.ErrUnsupported
	}
	return c.d.Control(&demux.SetSeekpoint{Seekpoint: seekpoint})
}
