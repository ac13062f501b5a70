//go:build linux

package commands

import "fmt"

type unavailableClipboard struct{}

// NewSystemClipboard returns a clipboard that reports it is unavailable. The
// clipboard library needs cgo and X11 on Linux.
func NewSystemClipboard() Clipboard {
	return unavailableClipboard{}
}

func (unavailableClipboard) WriteText(string) error {
	return fmt.Errorf("clipboard not available on this platform (Linux without X11)")
}
