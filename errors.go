package demux

import "errors"

// ErrUnsupported is the uniform "cannot" status of the control protocol: the
// query is not meaningful for this format, or the operation cannot be carried
// out on this particular stream. It is an ordinary, recoverable condition,
// never a fatal one.
var ErrUnsupported = errors.New("demux: not supported")

// ErrNotEnoughData is returned while probing when the stream does not yet
// hold enough bytes to decide whether a format applies. Like ErrUnsupported
// it declines the stream without failing it.
var ErrNotEnoughData = errors.New("demux: not enough data")
