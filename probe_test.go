package demux

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/zsiec/demux/media"
)

func newTestInstance(path, name string) *Instance {
	return NewInstance(Config{
		Access: "file",
		Name:   name,
		Path:   path,
		Out:    &media.Buffer{},
	})
}

func TestIsPathExtension(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path, ext string
		want      bool
	}{
		{"movie.MKV", "mkv", true}, // case-insensitive
		{"movie.mkv", "MKV", true},
		{"movie.mkv", ".mkv", true}, // leading dot optional
		{"movie.mkv", "avi", false},
		{"stream", "mkv", false}, // no extension
		{"dir.d/stream", "d/stream", false},
		{"archive.tar.gz", "gz", true}, // last suffix only
		{"archive.tar.gz", "tar.gz", false},
	}
	for _, tc := range cases {
		in := newTestInstance(tc.path, "")
		if got := in.IsPathExtension(tc.ext); got != tc.want {
			t.Errorf("IsPathExtension(%q, %q) = %v, want %v", tc.path, tc.ext, got, tc.want)
		}
	}
}

func TestIsForced(t *testing.T) {
	t.Parallel()
	in := newTestInstance("stream", "mkv")
	if !in.IsForced("mkv") {
		t.Error("exact name should match")
	}
	if in.IsForced("MKV") {
		t.Error("forced match must be case-sensitive")
	}
	if in.IsForced("mkv2") {
		t.Error("different name should not match")
	}

	unforced := newTestInstance("movie.mkv", "")
	if unforced.IsForced("") {
		t.Error("empty demux name must never count as forced")
	}
}

func TestFormatMatchesEitherPredicate(t *testing.T) {
	t.Parallel()
	f := Format{Name: "mkv", Extension: "mkv"}

	// Extension alone.
	if !f.Matches(newTestInstance("movie.MKV", "")) {
		t.Error("extension match should accept")
	}
	// Forced name alone, no extension on path.
	if !f.Matches(newTestInstance("stream", "mkv")) {
		t.Error("forced match should accept")
	}
	// Neither.
	if f.Matches(newTestInstance("stream", "")) {
		t.Error("no predicate should reject")
	}
}

// probeRecord counts probe attempts to verify ordering and side effects.
type probeRecord struct {
	opened int
}

func TestRegistryOpenProbesInOrder(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	var first, second probeRecord
	r.Register(Format{Name: "a", Open: func(in *Instance) (Demuxer, error) {
		first.opened++
		return nil, ErrUnsupported
	}})
	r.Register(Format{Name: "b", Open: func(in *Instance) (Demuxer, error) {
		second.opened++
		return &nopDemuxer{}, nil
	}})

	d, err := r.Open(newTestInstance("movie.b", ""))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d == nil {
		t.Fatal("Open returned nil demuxer")
	}
	if first.opened != 1 || second.opened != 1 {
		t.Errorf("probe counts = %d,%d, want 1,1", first.opened, second.opened)
	}
}

func TestRegistryOpenAllDecline(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(Format{Name: "a", Open: func(in *Instance) (Demuxer, error) {
		return nil, ErrUnsupported
	}})
	r.Register(Format{Name: "b", Open: func(in *Instance) (Demuxer, error) {
		return nil, ErrNotEnoughData
	}})

	if _, err := r.Open(newTestInstance("stream", "")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Open = %v, want ErrUnsupported", err)
	}
}

func TestRegistryOpenRealFailureAborts(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	boom := fmt.Errorf("out of memory")
	var probedAfter bool
	r.Register(Format{Name: "a", Open: func(in *Instance) (Demuxer, error) {
		return nil, boom
	}})
	r.Register(Format{Name: "b", Open: func(in *Instance) (Demuxer, error) {
		probedAfter = true
		return &nopDemuxer{}, nil
	}})

	if _, err := r.Open(newTestInstance("stream", "")); !errors.Is(err, boom) {
		t.Errorf("Open = %v, want wrapped %v", err, boom)
	}
	if probedAfter {
		t.Error("a real failure must abort selection, not continue probing")
	}
}

func TestRegistryOpenRequiresSink(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	in := NewInstance(Config{Path: "x"})
	if _, err := r.Open(in); err == nil {
		t.Error("Open without a sink should fail")
	}
}

type nopDemuxer struct{}

func (*nopDemuxer) Demux(ctx context.Context) error { return nil }
func (*nopDemuxer) Control(q Query) error           { return ErrUnsupported }
func (*nopDemuxer) Close() error                    { return nil }
