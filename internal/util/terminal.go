package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// IsInteractive reports whether stderr is attached to a terminal.
// Progress bars are suppressed when output is redirected.
func IsInteractive() bool {
	return IsTerminal(os.Stderr.Fd())
}
