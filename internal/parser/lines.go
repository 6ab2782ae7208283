package parser

import (
	"bufio"
	"io"
	"strings"
)

const utf8BOM = "\uFEFF"

// maxLogicalLine bounds how far an unterminated quote may pull in following
// physical lines.
const maxLogicalLine = 128 << 10

// quoteState tracks whether the scanner is inside a quoted field.
type quoteState struct {
	inQuotes     bool
	atFieldStart bool
}

// scan advances st over s. A quote opens a quoted field only at the start of
// a field; inside quotes a doubled quote is a literal and a single quote
// closes the field.
func (st *quoteState) scan(s string, delim byte) {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case st.inQuotes:
			if ch == '"' {
				if i+1 < len(s) && s[i+1] == '"' {
					i++
					continue
				}
				st.inQuotes = false
			}
		case ch == delim:
			st.atFieldStart = true
		case ch == '"' && st.atFieldStart:
			st.inQuotes = true
			st.atFieldStart = false
		default:
			st.atFieldStart = false
		}
	}
}

// lineReader yields logical lines: a quoted field may span physical lines.
type lineReader struct {
	br    *bufio.Reader
	delim byte
	line  int // physical lines consumed so far
}

func newLineReader(r io.Reader, delim byte) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, 64<<10), delim: delim}
}

// next returns the next logical line and the physical line number it starts
// on. It returns io.EOF once the input is exhausted.
func (lr *lineReader) next() (string, int, error) {
	var sb strings.Builder
	st := quoteState{atFieldStart: true}
	start := lr.line + 1
	first := true

	for {
		part, err := lr.br.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", start, err
		}
		if part == "" && err == io.EOF {
			if first {
				return "", start, io.EOF
			}
			return sb.String(), start, nil
		}
		lr.line++
		part = strings.TrimSuffix(part, "\n")
		part = strings.TrimSuffix(part, "\r")
		if lr.line == 1 {
			part = strings.TrimPrefix(part, utf8BOM)
		}

		if !first {
			sb.WriteByte('\n')
		}
		sb.WriteString(part)
		first = false

		st.scan(part, lr.delim)
		if !st.inQuotes || err == io.EOF || sb.Len() >= maxLogicalLine {
			return sb.String(), start, nil
		}
	}
}

// Split splits one logical line into fields. Quoted fields may contain the
// delimiter, newlines and doubled quotes; text after a closing quote is kept
// verbatim up to the next delimiter. Split never fails.
func Split(line string, delim byte) []string {
	fields := make([]string, 0, 20)
	var sb strings.Builder
	inQuotes := false
	atFieldStart := true

	for i := 0; i < len(line); i++ {
		ch := line[i]
		if inQuotes {
			if ch == '"' {
				if i+1 < len(line) && line[i+1] == '"' {
					sb.WriteByte('"')
					i++
					continue
				}
				inQuotes = false
				continue
			}
			sb.WriteByte(ch)
			continue
		}
		switch {
		case ch == delim:
			fields = append(fields, sb.String())
			sb.Reset()
			atFieldStart = true
		case ch == '"' && atFieldStart:
			inQuotes = true
			atFieldStart = false
		default:
			sb.WriteByte(ch)
			atFieldStart = false
		}
	}
	return append(fields, sb.String())
}
