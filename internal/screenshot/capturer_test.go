package screenshot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gxo-labs/seltrace/internal/screenshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	png []byte
	err error
}

func (s stubSource) CurrentURLUninstrumented(context.Context) (string, error) { return "", nil }
func (s stubSource) ScreenshotUninstrumented(context.Context) ([]byte, error) { return s.png, s.err }

func TestCaptureWritesPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	c, err := screenshot.NewFileCapturer(dir)
	require.NoError(t, err)
	c.BindSource(stubSource{png: []byte("\x89PNG")})

	first, err := c.Capture(context.Background())
	require.NoError(t, err)
	second, err := c.Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(first))
	assert.Equal(t, ".png", filepath.Ext(first))
	assert.NotEqual(t, first, second)
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data)
}

func TestCaptureUnbound(t *testing.T) {
	c, err := screenshot.NewFileCapturer(t.TempDir())
	require.NoError(t, err)
	_, err = c.Capture(context.Background())
	assert.ErrorIs(t, err, screenshot.ErrUnbound)
}

func TestCaptureSourceFailure(t *testing.T) {
	c, err := screenshot.NewFileCapturer(t.TempDir())
	require.NoError(t, err)
	boom := errors.New("no such window")
	c.BindSource(stubSource{err: boom})
	_, err = c.Capture(context.Background())
	assert.ErrorIs(t, err, boom)
}
