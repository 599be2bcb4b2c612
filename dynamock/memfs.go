package dynamock

import (
	"bytes"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

// FileHook is called before MemFileSystem applies a write. A non-nil error
// fails the write and leaves the file unchanged.
type FileHook func(path string, data []byte) error

// MemFileSystem is an in-memory implementation of the dynadump FileSystem
// interface. Writes are atomic, and hooks allow tests to fail individual
// appends or replacements.
type MemFileSystem struct {
	AppendHook FileHook // Optional failure injection for AppendFile
	WriteHook  FileHook // Optional failure injection for WriteFile

	mu      sync.Mutex
	files   map[string][]byte
	appends map[string]int
	writes  map[string]int
}

// NewMemFileSystem creates an empty file system.
func NewMemFileSystem() *MemFileSystem {
	return &MemFileSystem{
		files:   make(map[string][]byte),
		appends: make(map[string]int),
		writes:  make(map[string]int),
	}
}

// AppendFile appends data, creating the file if needed.
func (m *MemFileSystem) AppendFile(path string, data []byte) error {
	m.mu.Lock()
	hook := m.AppendHook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(path, data); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append(m.files[path], data...)
	m.appends[path]++
	return nil
}

// WriteFile replaces the file contents.
func (m *MemFileSystem) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	hook := m.WriteHook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(path, data); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = bytes.Clone(data)
	m.writes[path]++
	return nil
}

// ReadFile returns a copy of the file contents.
func (m *MemFileSystem) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return bytes.Clone(data), nil
}

// Exists reports whether the file exists.
func (m *MemFileSystem) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

// Remove deletes the file.
func (m *MemFileSystem) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[path]; !ok {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(m.files, path)
	return nil
}

// Put seeds a file without counting it as a write.
func (m *MemFileSystem) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = bytes.Clone(data)
}

// Content returns the file contents as a string, or "" when it does not exist.
func (m *MemFileSystem) Content(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.files[path])
}

// Lines returns the lines of the file without their terminating newlines.
func (m *MemFileSystem) Lines(path string) []string {
	content := m.Content(path)
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// Appends returns how many appends to path succeeded.
func (m *MemFileSystem) Appends(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appends[path]
}

// Writes returns how many replacements of path succeeded.
func (m *MemFileSystem) Writes(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[path]
}

// Paths returns the names of all files in sorted order.
func (m *MemFileSystem) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FailAfter returns a hook that lets n calls succeed and fails every later
// call with err.
func FailAfter(n int, err error) FileHook {
	var mu sync.Mutex
	calls := 0
	return func(path string, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls > n {
			return fmt.Errorf("call %d to %s: %w", calls, path, err)
		}
		return nil
	}
}
