package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrExists is returned by FileWriter when the target already exists.
var ErrExists = errors.New("pattern file already exists")

// Writer is the interface for pattern output destinations.
type Writer interface {
	// Write sends serialized bytes to the output destination.
	Write(data []byte) error
}

// StdoutWriter writes serialized patterns to os.Stdout.
type StdoutWriter struct {
	out io.Writer
}

// NewStdoutWriter creates a writer that sends output to the given writer.
// If w is nil, os.Stdout is used.
func NewStdoutWriter(w io.Writer) *StdoutWriter {
	if w == nil {
		w = os.Stdout
	}

	return &StdoutWriter{out: w}
}

// Write sends data to stdout.
func (sw *StdoutWriter) Write(data []byte) error {
	_, err := sw.out.Write(data)
	if err != nil {
		return fmt.Errorf("writing to stdout: %w", err)
	}

	return nil
}

// FileWriter writes a pattern file exactly once. The content is staged in a
// temporary file in the same directory and hard-linked into place, so the
// target either does not exist or is complete, and an existing target is
// never replaced.
type FileWriter struct {
	path   string
	perm   os.FileMode
	logger *slog.Logger
}

// FileWriterOption configures a FileWriter.
type FileWriterOption func(*FileWriter)

// WithPermissions overrides the default file permissions (0644).
func WithPermissions(perm os.FileMode) FileWriterOption {
	return func(fw *FileWriter) {
		fw.perm = perm
	}
}

// WithLogger sets a logger for the FileWriter.
func WithLogger(logger *slog.Logger) FileWriterOption {
	return func(fw *FileWriter) {
		fw.logger = logger
	}
}

// NewFileWriter creates a writer that writes to the specified file path.
func NewFileWriter(path string, opts ...FileWriterOption) *FileWriter {
	fw := &FileWriter{
		path:   path,
		perm:   0o644,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(fw)
	}

	return fw
}

// Write creates parent directories and publishes data at the target path.
// It returns ErrExists if the target is already present.
func (fw *FileWriter) Write(data []byte) error {
	dir := filepath.Dir(fw.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".azint-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file in %s: %w", dir, err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best effort, the link is what matters

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temporary file %s: %w", tmpName, err)
	}

	if err := tmp.Chmod(fw.perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting permissions on %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary file %s: %w", tmpName, err)
	}

	err = os.Link(tmpName, fw.path)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%s: %w", fw.path, ErrExists)
	default:
		// Some filesystems refuse hard links; fall back to an exclusive create.
		fw.logger.Debug("hard link failed, writing directly",
			slog.String("path", fw.path), slog.String("error", err.Error()))

		return fw.writeExclusive(data)
	}
}

func (fw *FileWriter) writeExclusive(data []byte) error {
	f, err := os.OpenFile(fw.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fw.perm) //nolint:gosec // path derived from destination dir
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", fw.path, ErrExists)
		}

		return fmt.Errorf("creating file %s: %w", fw.path, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(fw.path)

		return fmt.Errorf("writing file %s: %w", fw.path, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fw.path)

		return fmt.Errorf("closing file %s: %w", fw.path, err)
	}

	return nil
}

// Path returns the output file path.
func (fw *FileWriter) Path() string {
	return fw.path
}
