package mpegts

import (
	"fmt"
	"time"
)

// pesUnit is one reassembled packetized elementary stream unit. PTS and DTS
// are 90 kHz clock values, negative when absent.
type pesUnit struct {
	streamID uint8
	pts      int64
	dts      int64
	data     []byte
}

// ptsToDuration converts a 90 kHz clock value to a duration with
// microsecond precision.
func ptsToDuration(clock int64) time.Duration {
	return time.Duration(clock*1_000_000/90_000) * time.Microsecond
}

// startCodePresent checks for the PES start code prefix 0x000001.
func startCodePresent(payload []byte) bool {
	return len(payload) >= 3 && payload[0] == 0x00 && payload[1] == 0x00 && payload[2] == 0x01
}

// parsePES decodes one reassembled PES payload.
func parsePES(payload []byte) (pesUnit, error) {
	unit := pesUnit{pts: -1, dts: -1}
	if len(payload) < 6 {
		return unit, fmt.Errorf("mpegts: PES packet too short (%d bytes)", len(payload))
	}
	if !startCodePresent(payload) {
		return unit, fmt.Errorf("mpegts: invalid PES start code")
	}

	unit.streamID = payload[3]
	packetLength := int(payload[4])<<8 | int(payload[5])

	// Stream IDs without an optional header: padding (0xBE),
	// private_stream_2 (0xBF), ECM/EMM (0xF0/0xF1), DSMCC (0xF2),
	// H.222.1 type E (0xF8), directory (0xFF).
	switch unit.streamID {
	case 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		if packetLength > 0 && 6+packetLength <= len(payload) {
			unit.data = payload[6 : 6+packetLength]
		} else {
			unit.data = payload[6:]
		}
		return unit, nil
	}

	if len(payload) < 9 {
		return unit, fmt.Errorf("mpegts: PES optional header too short")
	}

	ptsDTSFlags := (payload[7] >> 6) & 0x03
	headerDataLength := int(payload[8])
	dataStart := 9 + headerDataLength
	if dataStart > len(payload) {
		dataStart = len(payload)
	}

	switch ptsDTSFlags {
	case 2: // PTS only
		if len(payload) >= 14 {
			unit.pts = parseTimestamp(payload[9:14])
		}
	case 3: // PTS + DTS
		if len(payload) >= 19 {
			unit.pts = parseTimestamp(payload[9:14])
			unit.dts = parseTimestamp(payload[14:19])
		}
	}

	// packetLength 0 means unbounded, common for video.
	if packetLength > 0 && 6+packetLength <= len(payload) {
		unit.data = payload[dataStart : 6+packetLength]
	} else {
		unit.data = payload[dataStart:]
	}
	return unit, nil
}

// parseTimestamp extracts a 33-bit 90 kHz timestamp from its 5-byte PES
// encoding, or -1 when truncated.
func parseTimestamp(b []byte) int64 {
	if len(b) < 5 {
		return -1
	}
	return int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1&0x7F)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1&0x7F)
}
