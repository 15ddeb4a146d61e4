package mp4source

import (
	"time"

	"github.com/user/framegrab/pkg/ports"
)

// Info summarizes the video track of a file.
type Info struct {
	Codec       Codec
	Resolution  ports.Resolution
	Samples     int
	SyncSamples int
	Duration    time.Duration
	FrameRate   float64
}

// Probe indexes an MP4 file held in memory and describes its video track.
func Probe(data []byte) (Info, error) {
	t, err := indexFile(data)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Codec:      t.codec,
		Resolution: t.res,
		Samples:    len(t.samples),
		Duration:   t.duration(),
		FrameRate:  t.frameRate(),
	}
	for _, s := range t.samples {
		if s.sync {
			info.SyncSamples++
		}
	}
	return info, nil
}
