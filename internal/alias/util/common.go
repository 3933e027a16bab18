package util

import (
	"log/slog"
	"os"
)

// CloseFileFunc closes f and logs a warning on failure instead of propagating
// the error, for use in defer positions where callers have no return value
// to attach an error to.
func CloseFileFunc(f *os.File) {
	if err := f.Close(); err != nil {
		slog.Warn("util: failed to close file", "name", f.Name(), "err", err)
	}
}
