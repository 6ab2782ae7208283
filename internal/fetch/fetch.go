// Package fetch downloads the CA export archive and extracts the raw
// pipe-delimited text file into the work directory.
package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/datasource"
)

// ErrFetch wraps every download, auth or decompression failure.
var ErrFetch = errors.New("fetch failed")

// Artifact describes the extracted raw file.
type Artifact struct {
	Path        string
	Entry       string // archive member that was extracted
	Size        int64
	Fingerprint string // xxh3 of the extracted bytes, hex
}

// Fetcher retrieves the archive from Source and writes the raw file to RawPath.
type Fetcher struct {
	Source  datasource.Source
	RawPath string
	// Entry selects the archive member by base name. Empty means the first
	// .txt member.
	Entry  string
	Logger zerolog.Logger
}

// Fetch removes any stale raw file, downloads the archive into memory and
// extracts the selected member to RawPath.
func (f *Fetcher) Fetch(ctx context.Context) (Artifact, error) {
	if f.Source == nil || f.RawPath == "" {
		return Artifact{}, fmt.Errorf("%w: source and raw path are required", ErrFetch)
	}

	if err := os.Remove(f.RawPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Artifact{}, fmt.Errorf("%w: remove stale %s: %v", ErrFetch, f.RawPath, err)
	}

	f.Logger.Info().Str("source", datasource.Describe(f.Source)).Msg("downloading archive")

	rc, err := f.Source.Open(ctx)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	archive, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: read archive: %w", ErrFetch, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: open zip: %w", ErrFetch, err)
	}
	member := selectEntry(zr.File, f.Entry)
	if member == nil {
		want := f.Entry
		if want == "" {
			want = "*.txt"
		}
		return Artifact{}, fmt.Errorf("%w: archive has no member %s", ErrFetch, want)
	}

	art, err := extract(member, f.RawPath)
	if err != nil {
		_ = os.Remove(f.RawPath)
		return Artifact{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	f.Logger.Info().
		Str("entry", art.Entry).
		Str("archive_size", humanize.Bytes(uint64(len(archive)))).
		Str("raw_size", humanize.Bytes(uint64(art.Size))).
		Str("fingerprint", art.Fingerprint).
		Msg("raw file extracted")
	return art, nil
}

func selectEntry(files []*zip.File, name string) *zip.File {
	for _, zf := range files {
		if zf.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(zf.Name)
		if name != "" {
			if strings.EqualFold(base, name) {
				return zf
			}
			continue
		}
		if strings.EqualFold(filepath.Ext(base), ".txt") {
			return zf
		}
	}
	return nil
}

func extract(zf *zip.File, dst string) (Artifact, error) {
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Artifact{}, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	src, err := zf.Open()
	if err != nil {
		return Artifact{}, fmt.Errorf("open member %s: %w", zf.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return Artifact{}, fmt.Errorf("create %s: %w", dst, err)
	}

	h := xxh3.New()
	n, err := io.Copy(io.MultiWriter(out, h), src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("extract %s: %w", zf.Name, err)
	}

	return Artifact{
		Path:        dst,
		Entry:       zf.Name,
		Size:        n,
		Fingerprint: fmt.Sprintf("%016x", h.Sum64()),
	}, nil
}
