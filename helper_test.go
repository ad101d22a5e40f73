package demux

import (
	"testing"
	"time"

	"github.com/zsiec/demux/stream"
)

const (
	testStreamSize = 1_000_000 // bytes
	testBitrate    = 8_000_000 // bits per second
	testAlign      = 188
)

func newTestHelper(size int64) *Helper {
	return &Helper{
		Stream:  stream.NewBytes(make([]byte, size)),
		Start:   0,
		End:     size,
		Bitrate: testBitrate,
		Align:   testAlign,
	}
}

func TestHelperLength(t *testing.T) {
	t.Parallel()
	h := newTestHelper(testStreamSize)

	// 1,000,000 bytes at 8,000,000 bit/s is exactly one second.
	q := &GetLength{}
	if err := h.Control(q); err != nil {
		t.Fatalf("GetLength: %v", err)
	}
	if q.Length != time.Second {
		t.Errorf("length = %v, want %v", q.Length, time.Second)
	}
}

func TestHelperLengthUnknown(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		h    *Helper
	}{
		{"no bitrate", &Helper{Stream: stream.NewBytes(make([]byte, 100)), End: 100}},
		{"no end", &Helper{Stream: stream.NewBytes(nil), End: -1, Bitrate: testBitrate}},
		{"empty span", &Helper{Start: 50, End: 50, Bitrate: testBitrate}},
	}
	for _, tc := range cases {
		q := &GetLength{}
		if err := tc.h.Control(q); err != nil {
			t.Errorf("%s: GetLength should never fail, got %v", tc.name, err)
		}
		if q.Length != 0 {
			t.Errorf("%s: length = %v, want 0", tc.name, q.Length)
		}
	}
}

func TestHelperPositionRoundTrip(t *testing.T) {
	t.Parallel()
	h := newTestHelper(testStreamSize)

	// One alignment block expressed as a position fraction.
	blockFrac := float64(testAlign) / float64(testStreamSize)

	for _, f := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.999, 1} {
		if err := h.Control(&SetPosition{Position: f}); err != nil {
			t.Fatalf("SetPosition(%v): %v", f, err)
		}
		q := &GetPosition{}
		if err := h.Control(q); err != nil {
			t.Fatalf("GetPosition: %v", err)
		}
		if diff := f - q.Position; diff < 0 || diff > blockFrac {
			t.Errorf("position after SetPosition(%v) = %v, want within one block below", f, q.Position)
		}
	}
}

func TestHelperSeekAlignment(t *testing.T) {
	t.Parallel()
	h := newTestHelper(testStreamSize)

	if err := h.Control(&SetPosition{Position: 0.5}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	off := h.Stream.Tell()
	if off%testAlign != 0 {
		t.Errorf("seek landed at %d, not a multiple of %d", off, testAlign)
	}
}

func TestHelperPositionToTime(t *testing.T) {
	t.Parallel()
	h := newTestHelper(testStreamSize)

	// Seek to the middle; time should read ~500ms, within one block.
	if err := h.Control(&SetPosition{Position: 0.5}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	q := &GetTime{}
	if err := h.Control(q); err != nil {
		t.Fatalf("GetTime: %v", err)
	}
	blockDur := time.Duration(8_000_000*testAlign/testBitrate) * time.Microsecond
	want := 500 * time.Millisecond
	if q.Time > want || q.Time < want-blockDur {
		t.Errorf("time at position 0.5 = %v, want %v within one block", q.Time, want)
	}
}

func TestHelperSetTime(t *testing.T) {
	t.Parallel()
	h := newTestHelper(testStreamSize)

	if err := h.Control(&SetTime{Time: 250 * time.Millisecond}); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	// 250ms at 8 Mbit/s is 250,000 bytes, snapped down to the 188 grid.
	wantOff := int64(250_000 - 250_000%testAlign)
	if got := h.Stream.Tell(); got != wantOff {
		t.Errorf("offset after SetTime = %d, want %d", got, wantOff)
	}
}

func TestHelperSetRejectedWhenUnknown(t *testing.T) {
	t.Parallel()

	// Unknown end: position seeks are impossible.
	h := &Helper{Stream: stream.NewBytes(make([]byte, 100)), End: -1, Bitrate: testBitrate}
	if err := h.Control(&SetPosition{Position: 0.5}); err != ErrUnsupported {
		t.Errorf("SetPosition with unknown end = %v, want ErrUnsupported", err)
	}

	// Unknown bitrate: time seeks are impossible.
	h = &Helper{Stream: stream.NewBytes(make([]byte, 100)), End: 100}
	if err := h.Control(&SetTime{Time: time.Second}); err != ErrUnsupported {
		t.Errorf("SetTime with unknown bitrate = %v, want ErrUnsupported", err)
	}

	// No seekable stream at all.
	h = &Helper{End: 100, Bitrate: testBitrate}
	if err := h.Control(&SetPosition{Position: 0.5}); err != ErrUnsupported {
		t.Errorf("SetPosition without stream = %v, want ErrUnsupported", err)
	}
}

func TestHelperFailedSetLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	h := newTestHelper(testStreamSize)

	if err := h.Control(&SetPosition{Position: 0.25}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	before := h.Stream.Tell()

	if err := h.Control(&SetPosition{Position: 1.5}); err != ErrUnsupported {
		t.Fatalf("out-of-range SetPosition = %v, want ErrUnsupported", err)
	}
	if got := h.Stream.Tell(); got != before {
		t.Errorf("offset changed by failed seek: %d -> %d", before, got)
	}
}

func TestHelperGetsNeverFail(t *testing.T) {
	t.Parallel()
	// A helper that knows nothing must still answer the get queries.
	h := &Helper{End: -1}

	if err := h.Control(&GetPosition{}); err != nil {
		t.Errorf("GetPosition: %v", err)
	}
	if err := h.Control(&GetTime{}); err != nil {
		t.Errorf("GetTime: %v", err)
	}
	if err := h.Control(&GetLength{}); err != nil {
		t.Errorf("GetLength: %v", err)
	}
}

func TestHelperDeclinesForeignQueries(t *testing.T) {
	t.Parallel()
	h := newTestHelper(testStreamSize)

	for _, q := range []Query{&GetFPS{}, &GetMeta{}, &SetRate{Rate: 2}, &GetTitleInfo{}} {
		if err := h.Control(q); err != ErrUnsupported {
			t.Errorf("%T = %v, want ErrUnsupported", q, err)
		}
	}
}

func TestHelperCanSeek(t *testing.T) {
	t.Parallel()
	h := newTestHelper(testStreamSize)
	q := &CanSeek{}
	if err := h.Control(q); err != nil || !q.CanSeek {
		t.Errorf("CanSeek = %v,%v, want true,nil", q.CanSeek, err)
	}

	h = &Helper{End: 100}
	q = &CanSeek{}
	if err := h.Control(q); err != nil || q.CanSeek {
		t.Errorf("CanSeek without stream = %v,%v, want false,nil", q.CanSeek, err)
	}
}
