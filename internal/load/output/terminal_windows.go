//go:build windows

package output

import (
	"os"

	"github.com/mattn/go-isatty"
)

// checkIsTerminal reports whether the file is attached to a terminal.
func checkIsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd())
}
