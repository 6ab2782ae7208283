package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// row builds a 19-field line with the given overrides by position.
func row(overrides map[int]string) string {
	fields := make([]string, 19)
	for i := range fields {
		fields[i] = "f" + string(rune('a'+i))
	}
	for i, v := range overrides {
		fields[i] = v
	}
	return strings.Join(fields, "|")
}

func newUTF8(t *testing.T) *Parser {
	t.Helper()
	p, err := New(Options{Encoding: "utf8"})
	require.NoError(t, err)
	return p
}

func TestParse_ExactWidthAccepted(t *testing.T) {
	line := row(map[int]string{0: "CA123", 1: "2025-12-31", 18: "NormaX"})
	res, err := newUTF8(t).Parse(context.Background(), strings.NewReader(line+"\n"))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, strings.Split(line, "|"), res.Rows[0])
	assert.Equal(t, Stats{Lines: 1, Accepted: 1}, res.Stats)
}

func TestParse_StrayPipeRepaired(t *testing.T) {
	// description holds "Luva |tipo A": the pipe is preceded by a space
	line := row(map[int]string{0: "CA200", 8: "Luva |tipo A"})
	require.Len(t, strings.Split(line, "|"), 20)

	res, err := newUTF8(t).Parse(context.Background(), strings.NewReader(line+"\n"))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Len(t, res.Rows[0], 19)
	assert.Equal(t, "Luva |tipo A", res.Rows[0][8])
	assert.Equal(t, "CA200", res.Rows[0][0])
	assert.Equal(t, 1, res.Stats.Repaired)
	assert.Empty(t, res.Quarantine)
}

func TestParse_UnrepairableQuarantined(t *testing.T) {
	good := row(map[int]string{0: "CA1"})
	bad := good + "|x|y|z|w|v|u" // 25 fields, no space-guarded pipes
	input := good + "\n" + bad + "\n"

	res, err := newUTF8(t).Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	require.Len(t, res.Quarantine, 1)
	assert.Equal(t, bad, res.Quarantine[0].Raw)
	assert.Equal(t, 2, res.Quarantine[0].Line)
	assert.Equal(t, 25, res.Quarantine[0].Fields)
	for _, r := range res.Rows {
		assert.NotEqual(t, bad, strings.Join(r, "|"))
	}
}

func TestParse_QuotedDelimiterAndNewline(t *testing.T) {
	line := row(map[int]string{8: "\"Luva|couro\nforrada\""})
	res, err := newUTF8(t).Parse(context.Background(), strings.NewReader(line+"\n"+row(nil)+"\n"))
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Luva|couro\nforrada", res.Rows[0][8])
	assert.Equal(t, 2, res.Stats.Accepted)
}

func TestParse_ShortRowPaddedAndBlankSkipped(t *testing.T) {
	input := "CA9|01/02/2030|VÁLIDO\n\n   \n" + row(nil) + "\n"
	res, err := newUTF8(t).Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Len(t, res.Rows[0], 19)
	assert.Equal(t, "VÁLIDO", res.Rows[0][2])
	assert.Equal(t, "", res.Rows[0][18])
	assert.Equal(t, 1, res.Stats.Padded)
	assert.Equal(t, 2, res.Stats.Blank)
}

func TestParse_Latin1Decoding(t *testing.T) {
	// "Proteção" in ISO-8859-1
	raw := []byte("CA1|x|Prote\xe7\xe3o\r\n")
	p, err := New(Options{})
	require.NoError(t, err)

	res, err := p.Parse(context.Background(), strings.NewReader(string(raw)))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Proteção", res.Rows[0][2])
}

func TestParse_EveryLineAccountedFor(t *testing.T) {
	lines := []string{
		row(map[int]string{0: "A"}),
		row(map[int]string{8: "a |b"}),
		row(nil) + "|1|2|3",
		"short|row",
		row(map[int]string{0: "B"}),
	}
	res, err := newUTF8(t).Parse(context.Background(), strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)

	assert.Equal(t, len(lines), len(res.Rows)+len(res.Quarantine))
	assert.Equal(t, res.Stats.Lines, res.Stats.Accepted+res.Stats.Repaired+res.Stats.Padded+res.Stats.Quarantined)
	for _, r := range res.Rows {
		assert.Len(t, r, 19)
	}
}

func TestParse_Idempotent(t *testing.T) {
	input := strings.Join([]string{row(nil), row(map[int]string{5: "x |y"}), row(nil) + "|z|z"}, "\n")
	p := newUTF8(t)

	a, err := p.Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	b, err := p.Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParse_CustomRepairer(t *testing.T) {
	var calls int
	p, err := New(Options{Encoding: "utf8", Repairer: RepairFunc(func(f []string, n int) ([]string, bool) {
		calls++
		return f[:n], true
	})})
	require.NoError(t, err)

	res, err := p.Parse(context.Background(), strings.NewReader(row(nil)+"|extra\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, res.Rows, 1)
	assert.Len(t, res.Rows[0], 19)
}

func TestParse_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newUTF8(t).Parse(ctx, strings.NewReader(row(nil)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFile_EmptyIsNotError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	res, err := newUTF8(t).ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Encoding: "klingon-8"})
	assert.Error(t, err)
	_, err = New(Options{Delimiter: '"'})
	assert.Error(t, err)
}

func TestParse_AutoEncodingUTF8(t *testing.T) {
	p, err := New(Options{Encoding: EncodingAuto})
	require.NoError(t, err)

	input := strings.Repeat(row(map[int]string{2: "Proteção auditiva válida"})+"\n", 20)
	res, err := p.Parse(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Rows, 20)
	assert.Equal(t, "Proteção auditiva válida", res.Rows[0][2])
}
