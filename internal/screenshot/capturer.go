// Package screenshot writes screenshot artifacts for the screenshotting
// recorder.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/recorder"
	"github.com/oklog/ulid/v2"
)

// ErrUnbound is returned by Capture before a session has been bound.
var ErrUnbound = errors.New("screenshot capturer is not bound to a session")

// FileCapturer stores PNG screenshots of the bound session as
// <dir>/<ulid>.png. ULIDs sort by creation time, so a directory listing
// follows the order of the test.
type FileCapturer struct {
	dir string

	mu  sync.RWMutex
	src recorder.Source
}

var (
	_ recorder.ScreenshotCapturer = (*FileCapturer)(nil)
	_ recorder.SourceBinder       = (*FileCapturer)(nil)
)

// NewFileCapturer creates dir if needed.
func NewFileCapturer(dir string) (*FileCapturer, error) {
	if dir == "" {
		return nil, errors.New("screenshot directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot directory: %w", err)
	}
	return &FileCapturer{dir: dir}, nil
}

// BindSource sets the session screenshots are taken from.
func (c *FileCapturer) BindSource(src recorder.Source) {
	c.mu.Lock()
	c.src = src
	c.mu.Unlock()
}

// Capture writes a PNG of the bound session and returns its path.
func (c *FileCapturer) Capture(ctx context.Context) (string, error) {
	c.mu.RLock()
	src := c.src
	c.mu.RUnlock()
	if src == nil {
		return "", ErrUnbound
	}

	png, err := src.ScreenshotUninstrumented(ctx)
	if err != nil {
		return "", fmt.Errorf("take screenshot: %w", err)
	}
	path := filepath.Join(c.dir, ulid.Make().String()+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
