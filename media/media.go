// Package media defines the elementary-stream types that cross the boundary
// between a demuxer and the engine's output sink: track formats, demuxed
// packets, and the Sink interface that receives them.
package media

import (
	"fmt"
	"time"
)

// Type classifies an elementary stream.
type Type int

// Elementary stream types.
const (
	TypeUnknown Type = iota
	TypeVideo
	TypeAudio
	TypeSubtitle
	TypeData
)

// String returns a short lowercase name for the type.
func (t Type) String() string {
	switch t {
	case TypeVideo:
		return "video"
	case TypeAudio:
		return "audio"
	case TypeSubtitle:
		return "subtitle"
	case TypeData:
		return "data"
	}
	return "unknown"
}

// Format describes one elementary stream as announced by a demuxer when it
// registers a track on the sink. Zero values mean "not known at demux time".
type Format struct {
	Type       Type
	Codec      string // e.g. "h264", "aac", "cea608"
	SampleRate int
	Channels   int
	Width      int
	Height     int
}

// Packet is one demuxed elementary-stream unit. PTS and DTS carry microsecond
// precision; a zero DTS on video packets means DTS equals PTS.
type Packet struct {
	Track    int
	PTS      time.Duration
	DTS      time.Duration
	Keyframe bool
	Data     []byte
}

// Sink receives track registrations and demuxed packets from a demuxer.
// The demuxer holds exactly one Sink reference for its entire lifetime and
// never closes it; the engine owns the sink.
type Sink interface {
	// AddTrack registers a new elementary stream and returns its track index.
	AddTrack(f Format) (int, error)
	// Send delivers one packet. Send may block; the demuxer treats an error
	// as fatal for the stream.
	Send(p *Packet) error
}

// Buffer is an in-memory Sink that records everything it receives. It is
// used by tests and by tools that inspect a stream without a live consumer.
type Buffer struct {
	tracks  []Format
	packets []*Packet
}

// AddTrack registers a track and returns its index.
func (b *Buffer) AddTrack(f Format) (int, error) {
	b.tracks = append(b.tracks, f)
	return len(b.tracks) - 1, nil
}

// Send records a packet. It fails if the packet references an unknown track.
func (b *Buffer) Send(p *Packet) error {
	if p.Track < 0 || p.Track >= len(b.tracks) {
		return fmt.Errorf("media: packet for unregistered track %d", p.Track)
	}
	b.packets = append(b.packets, p)
	return nil
}

// Tracks returns the registered track formats in registration order.
func (b *Buffer) Tracks() []Format {
	return b.tracks
}

// Packets returns all recorded packets in arrival order.
func (b *Buffer) Packets() []*Packet {
	return b.packets
}

// TrackPackets returns the recorded packets for a single track.
func (b *Buffer) TrackPackets(track int) []*Packet {
	var out []*Packet
	for _, p := range b.packets {
		if p.Track == track {
			out = append(out, p)
		}
	}
	return out
}
