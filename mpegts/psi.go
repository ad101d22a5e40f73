package mpegts

import "fmt"

const (
	tableIDPAT = 0x00
	tableIDPMT = 0x02
)

type patEntry struct {
	program uint16
	pmtPID  uint16
}

type esInfo struct {
	pid        uint16
	streamType uint8
}

type pmtInfo struct {
	program uint16
	streams []esInfo
}

// psiComplete reports whether payload holds at least one complete PSI
// section, so the assembler knows when to flush without waiting for the
// next unit start.
func psiComplete(payload []byte) bool {
	if len(payload) < 1 {
		return false
	}
	offset := 1 + int(payload[0]) // pointer field
	if offset >= len(payload) {
		return false
	}

	for offset < len(payload) {
		if payload[offset] == 0xFF {
			return true // stuffing
		}
		if offset+3 > len(payload) {
			return false
		}
		// Padding bytes have the section_syntax_indicator clear.
		if payload[offset+1]&0x80 == 0 {
			return true
		}
		sectionLength := int(payload[offset+1]&0x0F)<<8 | int(payload[offset+2])
		if offset+3+sectionLength > len(payload) {
			return false
		}
		offset += 3 + sectionLength
	}
	return true
}

// parsePSI walks the sections in a reassembled PSI payload and returns the
// PAT entries and PMTs it finds.
func parsePSI(payload []byte) (pats []patEntry, pmts []pmtInfo, err error) {
	if len(payload) < 1 {
		return nil, nil, fmt.Errorf("mpegts: PSI payload too short")
	}
	offset := 1 + int(payload[0])
	if offset >= len(payload) {
		return nil, nil, fmt.Errorf("mpegts: PSI pointer field out of range")
	}

	for offset < len(payload) {
		tableID := payload[offset]
		if tableID == 0xFF {
			break // stuffing
		}
		if offset+3 > len(payload) || payload[offset+1]&0x80 == 0 {
			break
		}
		sectionLength := int(payload[offset+1]&0x0F)<<8 | int(payload[offset+2])
		sectionEnd := offset + 3 + sectionLength
		if sectionEnd > len(payload) {
			break
		}
		section := payload[offset:sectionEnd]

		switch tableID {
		case tableIDPAT:
			entries, err := parsePAT(section)
			if err != nil {
				return pats, pmts, err
			}
			pats = append(pats, entries...)
		case tableIDPMT:
			pmt, err := parsePMT(section)
			if err != nil {
				return pats, pmts, err
			}
			pmts = append(pmts, pmt)
		}
		offset = sectionEnd
	}
	return pats, pmts, nil
}

// parsePAT extracts program-number to PMT-PID associations from one PAT
// section. Layout: 8 header bytes, 4-byte program entries, 4-byte CRC.
func parsePAT(section []byte) ([]patEntry, error) {
	if err := verifyCRC(section); err != nil {
		return nil, fmt.Errorf("mpegts: PAT %w", err)
	}
	if len(section) < 12 {
		return nil, fmt.Errorf("mpegts: PAT too short")
	}

	sectionLength := int(section[1]&0x0F)<<8 | int(section[2])
	end := 3 + sectionLength - 4 // strip CRC
	if end > len(section)-4 {
		end = len(section) - 4
	}

	var entries []patEntry
	for i := 8; i+4 <= end; i += 4 {
		program := uint16(section[i])<<8 | uint16(section[i+1])
		if program == 0 {
			continue // network PID
		}
		entries = append(entries, patEntry{
			program: program,
			pmtPID:  uint16(section[i+2]&0x1F)<<8 | uint16(section[i+3]),
		})
	}
	return entries, nil
}

// parsePMT extracts the elementary-stream list from one PMT section.
// Layout: 12 header bytes (incl. PCR PID and program_info_length), program
// descriptors, 5-byte ES entries each followed by its descriptors, CRC.
func parsePMT(section []byte) (pmtInfo, error) {
	var pmt pmtInfo
	if err := verifyCRC(section); err != nil {
		return pmt, fmt.Errorf("mpegts: PMT %w", err)
	}
	if len(section) < 16 {
		return pmt, fmt.Errorf("mpegts: PMT too short")
	}

	pmt.program = uint16(section[3])<<8 | uint16(section[4])
	sectionLength := int(section[1]&0x0F)<<8 | int(section[2])
	sectionEnd := 3 + sectionLength
	if sectionEnd > len(section) {
		sectionEnd = len(section)
	}

	programInfoLength := int(section[10]&0x0F)<<8 | int(section[11])
	offset := 12 + programInfoLength

	for offset+5 <= sectionEnd-4 {
		esLen := int(section[offset+3]&0x0F)<<8 | int(section[offset+4])
		pmt.streams = append(pmt.streams, esInfo{
			pid:        uint16(section[offset+1]&0x1F)<<8 | uint16(section[offset+2]),
			streamType: section[offset],
		})
		offset += 5 + esLen
	}
	return pmt, nil
}

// MPEG-2 CRC32, polynomial 0x04C11DB7, as used by PSI sections. A section
// including its trailing CRC folds to zero when intact.
var crcTable = makeCRCTable()

func makeCRCTable() [256]uint32 {
	var table [256]uint32
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

func computeCRC(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

func verifyCRC(section []byte) error {
	if len(section) < 4 {
		return fmt.Errorf("section too short for CRC32")
	}
	if computeCRC(section) != 0 {
		return fmt.Errorf("CRC32 mismatch")
	}
	return nil
}
