package demux

import "time"

// Helper implements the common position, time, and length queries for
// demuxers that read a generic byte stream and have no format-native seek
// logic: position maps linearly onto the byte range [Start, End] and time is
// interpolated through the bitrate. A concrete demuxer embeds or holds a
// Helper and delegates the queries it has no better answer for.
type Helper struct {
	// Stream is the seekable input, nil when the input cannot seek. With a
	// nil Stream the Set queries and CanSeek decline.
	Stream StreamSeeker

	// Start and End are the byte offsets of the payload within the stream.
	// End < 0 means the total size is unknown.
	Start int64
	End   int64

	// Bitrate is the estimated payload bitrate in bits per second, 0 when
	// unknown. Time queries decline without it.
	Bitrate int64

	// Align is the block size seeks are snapped down to, so a re-entering
	// parser lands on a unit boundary. Values below 1 behave as 1.
	Align int64
}

// StreamSeeker is the slice of the stream package's Seeker the Helper needs.
// Declared here so the Helper states its own requirement.
type StreamSeeker interface {
	Seek(offset int64) error
	Tell() int64
}

// Control answers the byte-interpolation queries and declines everything
// else with ErrUnsupported.
func (h *Helper) Control(q Query) error {
	switch q := q.(type) {
	case *GetLength:
		q.Length = h.length()
		return nil

	case *GetTime:
		if h.Stream == nil || h.Bitrate <= 0 {
			q.Time = 0
			return nil
		}
		q.Time = h.byteDuration(h.Stream.Tell() - h.Start)
		return nil

	case *GetPosition:
		span := h.End - h.Start
		if h.Stream == nil || h.End < 0 || span <= 0 {
			q.Position = 0
			return nil
		}
		off := h.Stream.Tell() - h.Start
		if off < 0 {
			off = 0
		}
		pos := float64(off) / float64(span)
		if pos > 1 {
			pos = 1
		}
		q.Position = pos
		return nil

	case *SetPosition:
		if h.Stream == nil || h.End < 0 || q.Position < 0 || q.Position > 1 {
			return ErrUnsupported
		}
		target := h.Start + int64(q.Position*float64(h.End-h.Start))
		return h.seekAligned(target)

	case *SetTime:
		if h.Stream == nil || h.Bitrate <= 0 {
			return ErrUnsupported
		}
		us := int64(q.Time / time.Microsecond)
		if us < 0 {
			return ErrUnsupported
		}
		target := h.Start + us*h.Bitrate/8_000_000
		if h.End >= 0 && target > h.End {
			return ErrUnsupported
		}
		return h.seekAligned(target)

	case *CanSeek:
		q.CanSeek = h.Stream != nil
		return nil
	}

	return ErrUnsupported
}

// length derives the total duration from the byte span and bitrate, 0 when
// either is unknown.
func (h *Helper) length() time.Duration {
	if h.Bitrate <= 0 || h.End < 0 || h.End <= h.Start {
		return 0
	}
	return h.byteDuration(h.End - h.Start)
}

// byteDuration converts a payload byte count to a duration through the
// bitrate, with microsecond precision.
func (h *Helper) byteDuration(bytes int64) time.Duration {
	if bytes <= 0 || h.Bitrate <= 0 {
		return 0
	}
	return time.Duration(8_000_000*bytes/h.Bitrate) * time.Microsecond
}

// seekAligned snaps the target down to the alignment grid anchored at Start
// and seeks there.
func (h *Helper) seekAligned(target int64) error {
	align := h.Align
	if align < 1 {
		align = 1
	}
	if target < h.Start {
		target = h.Start
	}
	target -= (target - h.Start) % align
	return h.Stream.Seek(target)
}
