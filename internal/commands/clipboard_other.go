//go:build !linux

package commands

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct {
	once    sync.Once
	initErr error
}

// NewSystemClipboard returns the platform clipboard.
func NewSystemClipboard() Clipboard {
	return &SystemClipboard{}
}

// WriteText implements Clipboard.
func (c *SystemClipboard) WriteText(text string) error {
	c.once.Do(func() { c.initErr = clipboard.Init() })
	if c.initErr != nil {
		return fmt.Errorf("clipboard not available: %w", c.initErr)
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
