package dynadump

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Checkpoint is the persisted resume state of an export: the cursor of the
// last committed page plus running totals.
type Checkpoint struct {
	Source    string    `json:"source"`     // Name of the exported table
	Cursor    Cursor    `json:"cursor"`     // Resume point; the next scan starts after it
	Pages     int64     `json:"pages"`      // Pages committed so far, across runs
	Records   int64     `json:"records"`    // Records committed so far, across runs
	UpdatedAt time.Time `json:"updated_at"` // Time of the last save
}

// CheckpointStore durably holds at most one Checkpoint.
type CheckpointStore interface {
	// Load returns the stored checkpoint, or nil when the export has not
	// started or has completed.
	Load(ctx context.Context) (*Checkpoint, error)
	// Save replaces the stored checkpoint. Once Save returns, the checkpoint
	// must survive a crash of the process.
	Save(ctx context.Context, cp Checkpoint) error
	// Clear removes the stored checkpoint. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// FileCheckpoint stores the checkpoint as a JSON document on a FileSystem.
type FileCheckpoint struct {
	fs     FileSystem
	path   string
	source string
}

// NewFileCheckpoint creates a FileCheckpoint for source stored at path.
func NewFileCheckpoint(fs FileSystem, path, source string) *FileCheckpoint {
	return &FileCheckpoint{fs: fs, path: path, source: source}
}

var _ CheckpointStore = (*FileCheckpoint)(nil)

// Path returns the checkpoint file path.
func (c *FileCheckpoint) Path() string { return c.path }

// Load implements CheckpointStore.
func (c *FileCheckpoint) Load(ctx context.Context) (*Checkpoint, error) {
	data, err := c.fs.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", c.path, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", c.path, err)
	}

	if err := checkSource(c.source, cp.Source); err != nil {
		return nil, err
	}

	return &cp, nil
}

// Save implements CheckpointStore.
func (c *FileCheckpoint) Save(ctx context.Context, cp Checkpoint) error {
	cp.Source = c.source

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := c.fs.WriteFile(c.path, data); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", c.path, err)
	}

	return nil
}

// Clear implements CheckpointStore.
func (c *FileCheckpoint) Clear(ctx context.Context) error {
	exists, err := c.fs.Exists(c.path)
	if err != nil {
		return fmt.Errorf("failed to stat checkpoint %s: %w", c.path, err)
	}
	if !exists {
		return nil
	}

	if err := c.fs.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint %s: %w", c.path, err)
	}

	return nil
}

func checkSource(want, got string) error {
	if want != "" && got != "" && want != got {
		return fmt.Errorf("%w: stored for %q, exporting %q", ErrCheckpointMismatch, got, want)
	}
	return nil
}
