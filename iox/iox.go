// Package iox provides small cleanup helpers for defers and test cleanups.
package iox

import (
	"io"
	"os"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DiscardRemoveAll removes path and everything below it, ignoring errors.
// Used to drop temp allocations of failed downloads.
func DiscardRemoveAll(path string) {
	if path == "" {
		return
	}
	_ = os.RemoveAll(path)
}
