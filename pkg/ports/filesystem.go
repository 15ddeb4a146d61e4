package ports

// FileSystem is the storage the CLI, debug sinks and summary writer go
// through. Paths are plain OS paths.
type FileSystem interface {
	// ReadFile returns the whole file, as used by probe and the mp4 source.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces path with data in one step: readers see either the
	// previous content or all of data, never a partial write. Missing parent
	// directories are created.
	WriteFile(path string, data []byte) error

	MkdirAll(path string) error

	// Exists reports whether path names a file or directory. A missing path
	// is not an error.
	Exists(path string) (bool, error)

	// Remove deletes a file or an empty directory.
	Remove(path string) error
}
