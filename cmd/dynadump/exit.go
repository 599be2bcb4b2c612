package main

import (
	"context"
	"errors"

	"github.com/nisimpson/dynadump"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFatal       = 1
	exitNotFound    = 3 // the exported table does not exist
	exitInterrupted = 130
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, dynadump.ErrSourceNotFound):
		return exitNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitInterrupted
	default:
		return exitFatal
	}
}
