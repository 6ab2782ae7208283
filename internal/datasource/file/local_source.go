// Package file implements a local filesystem source for a previously
// downloaded CA archive (offline runs, re-processing, tests).
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens an archive from the local disk.
type Local struct{ path string }

// NewLocal returns a Local source bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Describe implements datasource.Describer.
func (l *Local) Describe() string { return "file://" + l.path }

// Open returns the file as an io.ReadCloser. A canceled context short-circuits
// before the filesystem is touched. Errors keep os.ErrNotExist reachable via
// errors.Is.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
