package mp4source

import (
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/framegrab/pkg/ports"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecAV1     Codec = "av1"
	CodecUnknown Codec = "unknown"
)

// PixelFormat returns the frame format a source emits for the codec.
func (c Codec) PixelFormat() ports.PixelFormat {
	switch c {
	case CodecH264:
		return ports.PixelH264
	case CodecAV1:
		return ports.PixelAV1
	default:
		return ""
	}
}

// sampleEntry returns the visual sample entry of a video track and its codec.
// HEVC and other codecs are reported as CodecUnknown.
func sampleEntry(trak *mp4.TrakBox) (*mp4.VisualSampleEntryBox, Codec) {
	if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
		return nil, CodecUnknown
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return nil, CodecUnknown
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		entry, ok := child.(*mp4.VisualSampleEntryBox)
		if !ok {
			continue
		}
		switch child.Type() {
		case "avc1", "avc3":
			return entry, CodecH264
		case "av01":
			return entry, CodecAV1
		}
	}
	return nil, CodecUnknown
}

var startCode = []byte{0, 0, 0, 1}

// parameterSets joins SPS and PPS NAL units into an Annex B prefix.
func parameterSets(sps, pps [][]byte) []byte {
	var out []byte
	for _, nalu := range sps {
		out = append(out, startCode...)
		out = append(out, nalu...)
	}
	for _, nalu := range pps {
		out = append(out, startCode...)
		out = append(out, nalu...)
	}
	return out
}

// appendAnnexB converts AVCC (4-byte length-prefixed NAL units) to Annex B
// and appends the result to dst. A truncated trailing unit is dropped.
func appendAnnexB(dst, avcc []byte) []byte {
	offset := 0
	for offset+4 <= len(avcc) {
		n := int(avcc[offset])<<24 | int(avcc[offset+1])<<16 |
			int(avcc[offset+2])<<8 | int(avcc[offset+3])
		offset += 4
		if n < 0 || offset+n > len(avcc) {
			break
		}
		dst = append(dst, startCode...)
		dst = append(dst, avcc[offset:offset+n]...)
		offset += n
	}
	return dst
}
