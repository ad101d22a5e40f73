package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/zsiec/demux"
	"github.com/zsiec/demux/media"
)

// fakeDemuxer is a scriptable demuxer that counts every query it receives.
type fakeDemuxer struct {
	pace        bool
	paceErr     error
	rate        bool
	rescale     bool
	pause       bool
	pauseImpl   bool // whether CanPause is implemented at all
	titles      []media.Title
	appliedRate float64

	queries map[string]int
}

func newFakeDemuxer() *fakeDemuxer {
	return &fakeDemuxer{queries: make(map[string]int), appliedRate: 1}
}

func (f *fakeDemuxer) Demux(ctx context.Context) error { return nil }
func (f *fakeDemuxer) Close() error                    { return nil }

func (f *fakeDemuxer) Control(q demux.Query) error {
	switch q := q.(type) {
	case *demux.CanControlPace:
		f.queries["pace"]++
		if f.paceErr != nil {
			return f.paceErr
		}
		q.CanControl = f.pace
		return nil
	case *demux.CanControlRate:
		f.queries["rate"]++
		q.CanControl = f.rate
		q.NeedsRescale = f.rescale
		return nil
	case *demux.SetRate:
		f.queries["setrate"]++
		if !f.rate {
			return demux.ErrUnsupported
		}
		q.Rate = f.appliedRate
		return nil
	case *demux.CanPause:
		f.queries["canpause"]++
		if !f.pauseImpl {
			return demux.ErrUnsupported
		}
		q.CanPause = f.pause
		return nil
	case *demux.SetPauseState:
		f.queries["setpause"]++
		return nil
	case *demux.GetTitleInfo:
		f.queries["titleinfo"]++
		if len(f.titles) == 0 {
			return demux.ErrUnsupported
		}
		q.Titles = f.titles
		return nil
	case *demux.SetTitle:
		f.queries["settitle"]++
		return nil
	case *demux.SetSeekpoint:
		f.queries["setseekpoint"]++
		return nil
	}
	return demux.ErrUnsupported
}

func TestCapsPaceRateMutualExclusion(t *testing.T) {
	t.Parallel()
	f := newFakeDemuxer()
	f.pace = true
	f.rate = true // even though the demuxer would claim it
	c := NewCaps(f)

	changeable, rescale := c.CanControlRate()
	if changeable || rescale {
		t.Error("rate control must be denied when pace is controllable")
	}
	if f.queries["rate"] != 0 {
		t.Errorf("CanControlRate was issued %d times to a pace-controllable demuxer, want 0", f.queries["rate"])
	}
	if f.queries["pace"] != 1 {
		t.Errorf("CanControlPace issued %d times, want 1", f.queries["pace"])
	}
}

func TestCapsRateWhenNotPaced(t *testing.T) {
	t.Parallel()
	f := newFakeDemuxer()
	f.rate = true
	f.rescale = true
	f.appliedRate = 1.5
	c := NewCaps(f)

	changeable, rescale := c.CanControlRate()
	if !changeable || !rescale {
		t.Errorf("CanControlRate = %v,%v, want true,true", changeable, rescale)
	}

	applied, err := c.SetRate(2.0)
	if err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if applied != 1.5 {
		t.Errorf("applied rate = %v, want the demuxer's 1.5", applied)
	}
}

func TestCapsSetRateWithoutProbeRejected(t *testing.T) {
	t.Parallel()
	f := newFakeDemuxer()
	f.rate = true
	c := NewCaps(f)

	// No CanControlRate probe yet: defensive rejection, never a crash.
	if _, err := c.SetRate(2.0); !errors.Is(err, demux.ErrUnsupported) {
		t.Errorf("SetRate before probe = %v, want ErrUnsupported", err)
	}
	if f.queries["setrate"] != 0 {
		t.Error("SetRate must not reach the demuxer before the probe")
	}
}

func TestCapsProbesOnce(t *testing.T) {
	t.Parallel()
	f := newFakeDemuxer()
	f.pauseImpl = true
	f.pause = true
	c := NewCaps(f)

	for i := 0; i < 5; i++ {
		if !c.CanPause() {
			t.Fatal("CanPause should be true")
		}
	}
	if f.queries["canpause"] != 1 {
		t.Errorf("CanPause issued %d times, want 1 (cached)", f.queries["canpause"])
	}
}

func TestCapsUnimplementedPauseDefaultsFalse(t *testing.T) {
	t.Parallel()
	f := newFakeDemuxer() // CanPause not implemented
	c := NewCaps(f)

	if c.CanPause() {
		t.Error("unimplemented CanPause must default to false")
	}
	if err := c.SetPause(true); !errors.Is(err, demux.ErrUnsupported) {
		t.Errorf("SetPause = %v, want ErrUnsupported", err)
	}
	if f.queries["setpause"] != 0 {
		t.Error("SetPauseState must not be issued when pause is unavailable")
	}
}

func TestCapsPaceProbeFailureDefaultsFalse(t *testing.T) {
	t.Parallel()
	f := newFakeDemuxer()
	f.paceErr = demux.ErrUnsupported
	c := NewCaps(f)

	if c.CanControlPace() {
		t.Error("failed pace probe must default to false")
	}
	// Failure is cached like any probe result.
	c.CanControlPace()
	if f.queries["pace"] != 1 {
		t.Errorf("pace probed %d times, want 1", f.queries["pace"])
	}
}

func TestCapsTitleGating(t *testing.T) {
	t.Parallel()
	f := newFakeDemuxer()
	f.titles = []media.Title{
		{Name: "Feature", Seekpoints: []media.Seekpoint{{Name: "Opening"}, {Name: "Credits"}}},
		{Name: "Extras", Seekpoints: []media.Seekpoint{{Name: "Trailer"}}},
	}
	c := NewCaps(f)

	// Before TitleInfo: rejected.
	if err := c.SetTitle(0); !errors.Is(err, demux.ErrUnsupported) {
		t.Errorf("SetTitle before TitleInfo = %v, want ErrUnsupported", err)
	}
	if f.queries["settitle"] != 0 {
		t.Error("SetTitle must not reach the demuxer before TitleInfo")
	}

	titles, err := c.TitleInfo()
	if err != nil {
		t.Fatalf("TitleInfo: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("titles = %d, want 2", len(titles))
	}

	if err := c.SetTitle(1); err != nil {
		t.Errorf("SetTitle after TitleInfo: %v", err)
	}
	if err := c.SetTitle(2); !errors.Is(err, demux.ErrUnsupported) {
		t.Errorf("out-of-range SetTitle = %v, want ErrUnsupported", err)
	}
	if err := c.SetSeekpoint(0); err != nil {
		t.Errorf("SetSeekpoint after TitleInfo: %v", err)
	}
}

func TestCapsSeekpointBoundedByCurrentTitle(t *testing.T) {
	t.Parallel()
	f := newFakeDemuxer()
	f.titles = []media.Title{
		{Name: "Feature", Seekpoints: []media.Seekpoint{{Name: "Opening"}, {Name: "Credits"}}},
		{Name: "Extras", Seekpoints: []media.Seekpoint{{Name: "Trailer"}}},
	}
	c := NewCaps(f)

	if _, err := c.TitleInfo(); err != nil {
		t.Fatalf("TitleInfo: %v", err)
	}

	// Title 0 has two seekpoints.
	if err := c.SetSeekpoint(1); err != nil {
		t.Errorf("SetSeekpoint(1) in title 0: %v", err)
	}
	if err := c.SetSeekpoint(2); !errors.Is(err, demux.ErrUnsupported) {
		t.Errorf("out-of-range SetSeekpoint = %v, want ErrUnsupported", err)
	}

	// Title 1 has only one, so the bound follows the selected title.
	if err := c.SetTitle(1); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}
	if err := c.SetSeekpoint(0); err != nil {
		t.Errorf("SetSeekpoint(0) in title 1: %v", err)
	}
	if err := c.SetSeekpoint(1); !errors.Is(err, demux.ErrUnsupported) {
		t.Errorf("SetSeekpoint past title 1's table = %v, want ErrUnsupported", err)
	}
	if f.queries["setseekpoint"] != 2 {
		t.Errorf("SetSeekpoint reached the demuxer %d times, want 2", f.queries["setseekpoint"])
	}
}

func TestCapsTitleInfoFailureKeepsGate(t *testing.T) {
	t.Parallel()
	f := newFakeDemuxer() // no titles: TitleInfo declines
	c := NewCaps(f)

	if _, err := c.TitleInfo(); !errors.Is(err, demux.ErrUnsupported) {
		t.Fatalf("TitleInfo = %v, want ErrUnsupported", err)
	}
	if err := c.SetTitle(0); !errors.Is(err, demux.ErrUnsupported) {
		t.Errorf("SetTitle after failed TitleInfo = %v, want ErrUnsupported", err)
	}
}
