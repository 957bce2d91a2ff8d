package ports

// FileSystem abstracts the file operations the pipeline performs: reading
// render configuration and background images, and writing the exported
// MP4 and debug artifacts. Mocked in tests so exports run without disk.
type FileSystem interface {
	// ReadFile returns the entire contents of the file at path.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to path, creating missing parent directories.
	WriteFile(path string, data []byte) error

	// MkdirAll creates the directory at path along with any parents.
	MkdirAll(path string) error

	// Exists reports whether a file or directory exists at path.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory.
	Remove(path string) error
}
