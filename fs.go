package dynadump

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the durable byte storage behind the file sink and the file
// checkpoint. Paths are slash separated and relative to the implementation's
// root.
type FileSystem interface {
	// AppendFile appends data to the file, creating it if needed. A failed
	// append must leave the file as it was before the call.
	AppendFile(path string, data []byte) error
	// WriteFile replaces the file contents. The replacement must be atomic:
	// readers observe either the old or the new contents.
	WriteFile(path string, data []byte) error
	// ReadFile returns the file contents, or an error wrapping fs.ErrNotExist.
	ReadFile(path string) ([]byte, error)
	// Exists reports whether the file exists.
	Exists(path string) (bool, error)
	// Remove deletes the file. Removing a missing file is an error wrapping
	// fs.ErrNotExist.
	Remove(path string) error
}

// OSFileSystem implements FileSystem on the local disk. Every write is
// flushed with fsync before returning.
type OSFileSystem struct {
	Root string // Directory that relative paths resolve against. Empty means the working directory.
}

var _ FileSystem = OSFileSystem{}

func (o OSFileSystem) path(name string) string {
	p := filepath.FromSlash(name)
	if o.Root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.Root, p)
}

// AppendFile implements FileSystem. On a short or failed write the file is
// truncated back to its previous size.
func (o OSFileSystem) AppendFile(name string, data []byte) error {
	p := o.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}

	file, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}
	size := info.Size()

	if _, err := file.Write(data); err != nil {
		return o.rollback(file, size, fmt.Errorf("failed to append to %s: %w", p, err))
	}

	if err := file.Sync(); err != nil {
		return o.rollback(file, size, fmt.Errorf("failed to sync %s: %w", p, err))
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", p, err)
	}

	return nil
}

func (o OSFileSystem) rollback(file *os.File, size int64, cause error) error {
	truncErr := file.Truncate(size)
	if truncErr == nil {
		truncErr = file.Sync()
	}
	file.Close()
	if truncErr != nil {
		return errors.Join(cause, fmt.Errorf("failed to restore previous size: %w", truncErr))
	}
	return cause
}

// WriteFile implements FileSystem by writing a temporary file, syncing it and
// renaming it over the target.
func (o OSFileSystem) WriteFile(name string, data []byte) error {
	p := o.path(name)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}

	tempPath := p + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tempPath, p); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", p, err)
	}

	// Persist the rename itself.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}

	return nil
}

// ReadFile implements FileSystem.
func (o OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(o.path(name))
}

// Exists implements FileSystem.
func (o OSFileSystem) Exists(name string) (bool, error) {
	_, err := os.Stat(o.path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Remove implements FileSystem.
func (o OSFileSystem) Remove(name string) error {
	return os.Remove(o.path(name))
}
