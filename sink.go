package dynadump

import (
	"bytes"
	"context"
	"fmt"
)

// Sink is an append-only destination for exported lines.
type Sink interface {
	// Append writes lines, in order, as a single batch. An error means the
	// batch must be treated as not written.
	Append(ctx context.Context, lines [][]byte) error
}

// FileSink appends newline-terminated lines to a file. Existing content is
// never truncated, so one file accumulates the output of every run of an
// export.
type FileSink struct {
	fs   FileSystem
	path string
}

// NewFileSink creates a FileSink writing to path on fs.
func NewFileSink(fs FileSystem, path string) *FileSink {
	return &FileSink{fs: fs, path: path}
}

var _ Sink = (*FileSink)(nil)

// Path returns the destination file path.
func (s *FileSink) Path() string { return s.path }

// Append implements Sink.
func (s *FileSink) Append(ctx context.Context, lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	size := 0
	for i, line := range lines {
		if bytes.IndexByte(line, '\n') >= 0 {
			return fmt.Errorf("line %d contains a record separator", i)
		}
		size += len(line) + 1
	}

	buf := make([]byte, 0, size)
	for _, line := range lines {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	if err := s.fs.AppendFile(s.path, buf); err != nil {
		return fmt.Errorf("failed to append %d lines to %s: %w", len(lines), s.path, err)
	}

	return nil
}
