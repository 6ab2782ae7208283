// Package parser turns the raw pipe-delimited CA export into fixed-width
// field arrays, repairing overlong rows where it can and quarantining the
// rest. Malformed rows are never fatal.
package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
)

// Options configures a Parser. Zero values get defaults: 19 fields, '|',
// latin1 and SpaceGuardRepairer. Encoding may be EncodingAuto.
type Options struct {
	ExpectedFields int
	Delimiter      byte
	Encoding       string
	Repairer       Repairer
	Logger         zerolog.Logger
}

// Stats counts what happened to each logical line.
type Stats struct {
	Lines       int // non-blank logical lines read
	Blank       int
	Accepted    int // exact width, unchanged
	Repaired    int
	Padded      int // short rows padded to width
	Quarantined int
}

// Result is the outcome of a parse. Every row in Rows has exactly
// ExpectedFields entries.
type Result struct {
	Rows       [][]string
	Quarantine []Quarantined
	Stats      Stats
}

// Parser parses delimited rows.
type Parser struct {
	expected int
	delim    byte
	enc      string
	repairer Repairer
	logger   zerolog.Logger
}

// New validates opts and returns a Parser.
func New(opts Options) (*Parser, error) {
	if opts.ExpectedFields <= 0 {
		opts.ExpectedFields = 19
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = '|'
	}
	if opts.Delimiter == '"' || opts.Delimiter == '\n' || opts.Delimiter == '\r' {
		return nil, fmt.Errorf("parser: invalid delimiter %q", opts.Delimiter)
	}
	if opts.Encoding == "" {
		opts.Encoding = "latin1"
	}
	if !strings.EqualFold(opts.Encoding, EncodingAuto) {
		if _, err := lookupEncoding(opts.Encoding); err != nil {
			return nil, err
		}
	}
	if opts.Repairer == nil {
		opts.Repairer = SpaceGuardRepairer{Delimiter: opts.Delimiter}
	}
	return &Parser{
		expected: opts.ExpectedFields,
		delim:    opts.Delimiter,
		enc:      opts.Encoding,
		repairer: opts.Repairer,
		logger:   opts.Logger,
	}, nil
}

// ParseFile opens path and parses it.
func (p *Parser) ParseFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("parser: open %s: %w", path, err)
	}
	defer f.Close()
	return p.Parse(ctx, f)
}

// Parse reads r to the end. Only I/O errors and cancellation are returned;
// an empty result is not an error.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (Result, error) {
	var enc encoding.Encoding
	if strings.EqualFold(p.enc, EncodingAuto) {
		br := bufio.NewReaderSize(r, sniffSize)
		var name string
		enc, name = detectEncoding(br)
		p.logger.Debug().Str("encoding", name).Msg("detected input encoding")
		r = br
	} else {
		var err error
		if enc, err = lookupEncoding(p.enc); err != nil {
			return Result{}, err
		}
	}
	lr := newLineReader(decode(r, enc), p.delim)

	var res Result
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		line, lineNo, err := lr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("parser: read line %d: %w", lineNo, err)
		}
		if strings.TrimSpace(line) == "" {
			res.Stats.Blank++
			continue
		}
		res.Stats.Lines++

		fields := Split(line, p.delim)
		switch {
		case len(fields) == p.expected:
			res.Stats.Accepted++

		case len(fields) > p.expected:
			repaired, ok := p.repairer.Repair(fields, p.expected)
			if !ok {
				res.Stats.Quarantined++
				res.Quarantine = append(res.Quarantine, Quarantined{Line: lineNo, Fields: len(fields), Raw: line})
				p.logger.Debug().Int("line", lineNo).Int("fields", len(fields)).Msg("row quarantined")
				continue
			}
			res.Stats.Repaired++
			p.logger.Debug().Int("line", lineNo).Int("fields", len(fields)).Int("repaired_fields", len(repaired)).Msg("row repaired")
			fields = p.pad(repaired)

		default:
			res.Stats.Padded++
			fields = p.pad(fields)
		}
		res.Rows = append(res.Rows, fields)
	}

	p.logger.Info().
		Int("lines", res.Stats.Lines).
		Int("accepted", res.Stats.Accepted).
		Int("repaired", res.Stats.Repaired).
		Int("padded", res.Stats.Padded).
		Int("quarantined", res.Stats.Quarantined).
		Msg("parse complete")
	return res, nil
}

func (p *Parser) pad(fields []string) []string {
	if len(fields) >= p.expected {
		return fields
	}
	out := make([]string, p.expected)
	copy(out, fields)
	return out
}
