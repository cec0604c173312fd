package driver

import (
	"os"
	"path/filepath"

	seltrace "github.com/gxo-labs/seltrace/pkg/seltrace/v1"
)

// LocalFileDetector treats typed text naming an existing regular file as a
// file to upload.
type LocalFileDetector struct{}

var _ seltrace.FileUploader = LocalFileDetector{}

func (LocalFileDetector) LocalFile(keys string) (string, bool) {
	if keys == "" {
		return "", false
	}
	info, err := os.Stat(keys)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	abs, err := filepath.Abs(keys)
	if err != nil {
		return "", false
	}
	return abs, true
}
