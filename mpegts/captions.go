package mpegts

import "github.com/zsiec/ccx"

// H.264 NAL unit types the demuxer inspects. Everything else passes through
// untouched; this demuxer does not decode video.
const (
	nalTypeIDR = 5
	nalTypeSEI = 6
)

// splitAnnexB returns the NAL units (start codes stripped, header byte
// kept) found in an Annex B byte stream.
func splitAnnexB(data []byte) [][]byte {
	var nalus [][]byte
	start := -1
	i := 0
	for i+2 < len(data) {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			if start >= 0 {
				end := i
				// A 4-byte start code owns the preceding zero byte.
				if end > start && data[end-1] == 0 {
					end--
				}
				if end > start {
					nalus = append(nalus, data[start:end])
				}
			}
			start = i + 3
			i += 3
			continue
		}
		i++
	}
	if start >= 0 && start < len(data) {
		nalus = append(nalus, data[start:])
	}
	return nalus
}

func nalType(nalu []byte) uint8 {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & 0x1F
}

// hasIDR reports whether an Annex B access unit contains an IDR slice,
// marking the frame as a keyframe.
func hasIDR(data []byte) bool {
	for _, nalu := range splitAnnexB(data) {
		if nalType(nalu) == nalTypeIDR {
			return true
		}
	}
	return false
}

// caption is one decoded CEA-608 caption update.
type caption struct {
	channel int
	text    string
}

// captionDecoder extracts CEA-608 caption pairs from H.264 SEI NAL units
// and decodes them into display text, one decoder per caption channel.
type captionDecoder struct {
	decoders map[int]*ccx.CEA608Decoder
}

func newCaptionDecoder() *captionDecoder {
	return &captionDecoder{decoders: make(map[int]*ccx.CEA608Decoder)}
}

// extract scans a video access unit for caption SEI payloads and returns
// any caption text that became displayable.
func (c *captionDecoder) extract(accessUnit []byte) []caption {
	var out []caption
	for _, nalu := range splitAnnexB(accessUnit) {
		if nalType(nalu) != nalTypeSEI {
			continue
		}
		cd := ccx.ExtractCaptions(nalu)
		if cd == nil {
			continue
		}
		for _, pair := range cd.CC608Pairs {
			dec, ok := c.decoders[pair.Channel]
			if !ok {
				dec = ccx.NewCEA608Decoder()
				c.decoders[pair.Channel] = dec
			}
			if text := dec.Decode(pair.Data[0], pair.Data[1]); text != "" {
				out = append(out, caption{channel: pair.Channel, text: text})
			}
		}
	}
	return out
}
