package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// EncodingAuto asks the parser to sniff the charset from the first bytes.
const EncodingAuto = "auto"

// sniffSize is how much input detection looks at.
const sniffSize = 64 << 10

// lookupEncoding resolves an encoding name. A nil encoding means the input is
// already UTF-8.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "cp1252", "windows-1252":
		return charmap.Windows1252, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("parser: unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("parser: unsupported encoding %q", name)
	}
	return enc, nil
}

// detectEncoding peeks at br and guesses its charset. Anything the detector
// cannot map falls back to latin1, which the export has always used.
func detectEncoding(br *bufio.Reader) (encoding.Encoding, string) {
	sample, _ := br.Peek(sniffSize)
	if len(sample) == 0 {
		return nil, "utf-8"
	}
	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || res == nil {
		return charmap.ISO8859_1, "iso-8859-1"
	}
	enc, err := lookupEncoding(res.Charset)
	if err != nil {
		return charmap.ISO8859_1, "iso-8859-1"
	}
	return enc, strings.ToLower(res.Charset)
}

// decode wraps r so it yields UTF-8.
func decode(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil {
		return r
	}
	return enc.NewDecoder().Reader(r)
}
