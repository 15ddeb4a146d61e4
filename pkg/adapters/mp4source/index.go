package mp4source

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/framegrab/pkg/ports"
)

var errNoVideoTrack = errors.New("no video track found")

// sample is one coded frame of the video track.
type sample struct {
	data []byte // payload as stored in the file (AVCC or OBUs)
	pts  time.Duration
	dur  time.Duration
	sync bool
}

// track is the indexed video track of a file.
type track struct {
	codec     Codec
	res       ports.Resolution
	paramSets []byte // Annex B SPS/PPS, H.264 only
	samples   []sample
}

// frameRate returns the average rate over the whole track.
func (t *track) frameRate() float64 {
	n := len(t.samples)
	if n == 0 {
		return 0
	}
	last := t.samples[n-1]
	total := last.pts + last.dur - t.samples[0].pts
	if total <= 0 {
		return 0
	}
	return float64(n) / total.Seconds()
}

// duration returns the presentation end of the last sample.
func (t *track) duration() time.Duration {
	if len(t.samples) == 0 {
		return 0
	}
	last := t.samples[len(t.samples)-1]
	return last.pts + last.dur
}

// seekIndex returns the last sync sample at or before position.
func (t *track) seekIndex(position time.Duration) int {
	idx := 0
	for i, s := range t.samples {
		if s.pts > position {
			break
		}
		if s.sync {
			idx = i
		}
	}
	return idx
}

// indexFile parses an MP4 file held in memory and indexes its first
// supported video track. Sample payloads alias data.
func indexFile(data []byte) (*track, error) {
	f, err := mp4.DecodeFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}
	if f.IsFragmented() {
		return indexFragmented(f)
	}
	return indexProgressive(f, data)
}

// videoTrak finds the first video track with a supported sample entry.
func videoTrak(moov *mp4.MoovBox) (*mp4.TrakBox, *mp4.VisualSampleEntryBox, Codec) {
	if moov == nil {
		return nil, nil, CodecUnknown
	}
	for _, trak := range moov.Traks {
		entry, codec := sampleEntry(trak)
		if codec != CodecUnknown {
			return trak, entry, codec
		}
	}
	return nil, nil, CodecUnknown
}

func newTrack(entry *mp4.VisualSampleEntryBox, codec Codec) *track {
	t := &track{
		codec: codec,
		res:   ports.Resolution{Width: int(entry.Width), Height: int(entry.Height)},
	}
	if codec == CodecH264 && entry.AvcC != nil {
		t.paramSets = parameterSets(entry.AvcC.SPSnalus, entry.AvcC.PPSnalus)
	}
	return t
}

func timescaleOf(trak *mp4.TrakBox) uint32 {
	if trak.Mdia != nil && trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		return trak.Mdia.Mdhd.Timescale
	}
	return 1000
}

func ticks(v uint64, timescale uint32) time.Duration {
	return time.Duration(v * uint64(time.Second) / uint64(timescale))
}

func indexFragmented(f *mp4.File) (*track, error) {
	if f.Init == nil {
		return nil, errNoVideoTrack
	}
	trak, entry, codec := videoTrak(f.Init.Moov)
	if trak == nil {
		return nil, errNoVideoTrack
	}
	trackID := trak.Tkhd.TrackID
	timescale := timescaleOf(trak)

	var trex *mp4.TrexBox
	if mvex := f.Init.Moov.Mvex; mvex != nil {
		for _, t := range mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	t := newTrack(entry, codec)
	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			owns := false
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID == trackID {
					owns = true
				}
			}
			if !owns {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return nil, fmt.Errorf("get samples: %w", err)
			}
			for _, s := range samples {
				t.samples = append(t.samples, sample{
					data: s.Data,
					pts:  ticks(uint64(int64(s.DecodeTime)+int64(s.CompositionTimeOffset)), timescale),
					dur:  ticks(uint64(s.Dur), timescale),
					sync: s.Flags == mp4.SyncSampleFlags,
				})
			}
		}
	}
	if len(t.samples) == 0 {
		return nil, errors.New("video track has no samples")
	}
	return t, nil
}

func indexProgressive(f *mp4.File, data []byte) (*track, error) {
	trak, entry, codec := videoTrak(f.Moov)
	if trak == nil {
		return nil, errNoVideoTrack
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, errors.New("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil || stbl.Stsc == nil {
		return nil, errors.New("missing stsz or stsc box")
	}
	timescale := timescaleOf(trak)

	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	t := newTrack(entry, codec)
	count := stbl.Stsz.SampleNumber
	t.samples = make([]sample, 0, count)
	for nr := uint32(1); nr <= count; nr++ {
		payload, err := sampleData(stbl, data, nr)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", nr, err)
		}
		var decodeTime uint64
		var dur uint32
		if stbl.Stts != nil {
			decodeTime, dur = stbl.Stts.GetDecodeTime(nr)
		}
		t.samples = append(t.samples, sample{
			data: payload,
			pts:  ticks(decodeTime, timescale),
			dur:  ticks(uint64(dur), timescale),
			// Without stss every sample is a sync sample.
			sync: stbl.Stss == nil || syncSamples[nr],
		})
	}
	if len(t.samples) == 0 {
		return nil, errors.New("video track has no samples")
	}
	return t, nil
}

// sampleData slices one sample of a progressive file out of data.
func sampleData(stbl *mp4.StblBox, data []byte, nr uint32) ([]byte, error) {
	chunkNr, firstInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
	if err != nil {
		return nil, fmt.Errorf("get chunk nr: %w", err)
	}

	var offset uint64
	switch {
	case stbl.Stco != nil:
		offset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return nil, fmt.Errorf("get chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return nil, errors.New("chunk nr out of range")
		}
		offset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return nil, errors.New("no stco or co64 box")
	}

	for s := uint32(firstInChunk); s < nr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}
	size := uint64(stbl.Stsz.GetSampleSize(int(nr)))
	if offset+size > uint64(len(data)) {
		return nil, fmt.Errorf("sample at %d+%d beyond end of file", offset, size)
	}
	return data[offset : offset+size], nil
}
