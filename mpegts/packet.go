// Package mpegts is the MPEG transport stream demuxer: 188-byte packet
// parsing, per-PID reassembly, PAT/PMT program discovery, and PES payload
// extraction with PTS/DTS conversion. It conforms to the demux.Demuxer
// contract and registers elementary streams on the instance's sink as they
// are discovered.
package mpegts

import "fmt"

const (
	packetSize = 188
	syncByte   = 0x47
)

// packet is one parsed transport stream packet.
type packet struct {
	pid         uint16
	cc          uint8 // continuity counter
	unitStart   bool  // payload_unit_start_indicator
	hasPayload  bool
	transportErr,
	discontinuity bool
	payload []byte
}

// parsePacket decodes one 188-byte packet. The payload is copied out of buf
// so the caller may reuse its read buffer.
func parsePacket(buf []byte) (packet, error) {
	var p packet
	if len(buf) != packetSize {
		return p, fmt.Errorf("mpegts: packet size %d, expected %d", len(buf), packetSize)
	}
	if buf[0] != syncByte {
		return p, fmt.Errorf("mpegts: invalid sync byte 0x%02X", buf[0])
	}

	p.transportErr = buf[1]&0x80 != 0
	p.unitStart = buf[1]&0x40 != 0
	p.pid = uint16(buf[1]&0x1F)<<8 | uint16(buf[2])
	hasAdaptation := buf[3]&0x20 != 0
	p.hasPayload = buf[3]&0x10 != 0
	p.cc = buf[3] & 0x0F

	offset := 4
	if hasAdaptation {
		if offset >= packetSize {
			return p, nil
		}
		afLen := int(buf[offset])
		if afLen > 0 && offset+1 < packetSize {
			p.discontinuity = buf[offset+1]&0x80 != 0
		}
		offset += 1 + afLen
		if offset > packetSize {
			offset = packetSize
		}
	}

	if p.hasPayload && offset < packetSize {
		p.payload = make([]byte, packetSize-offset)
		copy(p.payload, buf[offset:])
	}
	return p, nil
}
