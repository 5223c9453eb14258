// Package browser opens URLs in the local default browser for interactive
// OAuth consent.
package browser

import (
	"os"

	"github.com/skratchdot/open-golang/open"
)

// IsAvailable reports whether a graphical browser can plausibly be opened.
// Headless hosts get the URL printed instead.
func IsAvailable() bool {
	if os.Getenv("SSH_CONNECTION") != "" || os.Getenv("SSH_TTY") != "" {
		return false
	}
	return true
}

// Open launches the default browser at the given URL.
func Open(url string) error {
	return open.Run(url)
}
