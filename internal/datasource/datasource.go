// Package datasource defines the byte sources the fetcher can pull the
// published CA archive from. Concrete sources live in subpackages: ftpds
// (the government FTP server), httpds (an HTTP mirror) and file (a local copy).
package datasource

import (
	"context"
	"io"
)

// Source opens the remote or local archive for reading. Callers must close the
// returned reader. Implementations perform no retries unless documented.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Describer is implemented by sources that can name their location for logs.
type Describer interface {
	Describe() string
}

// Describe returns s.Describe() when available, otherwise a generic label.
func Describe(s Source) string {
	if d, ok := s.(Describer); ok {
		return d.Describe()
	}
	return "source"
}
