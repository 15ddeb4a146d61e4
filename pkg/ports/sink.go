package ports

import (
	"image"
)

// DebugSink abstracts debug output for worker diagnostics.
// It allows saving intermediate state for debugging purposes.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveStatsJSON saves a statistics snapshot under the given name.
	SaveStatsJSON(name string, data []byte) error

	// SaveSnapshot saves a displayed frame as an image.
	SaveSnapshot(frameNumber uint64, img image.Image) error
}
