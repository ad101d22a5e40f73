// Package demux defines the contract between a playback engine and the
// container parsers ("demuxers") it drives. A demuxer exposes exactly two
// entry points: Demux, which performs one unit of work, and Control, which
// executes a typed capability or state-change query. The query set is a
// closed sum type; a demuxer answers the queries it understands and returns
// ErrUnsupported for the rest, so the engine can probe dozens of formats
// against the same stream without any of them needing to implement the full
// surface.
//
// The package also provides the shared pieces every concrete format needs:
// the Instance carrying identity, collaborator handles, and navigation state;
// the Helper implementing byte-interpolated position and time queries for
// formats without native seek logic; and the Registry with the extension and
// forced-name predicates used to decide which format accepts a stream.
package demux
