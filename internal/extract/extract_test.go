package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manualrag/internal/chunker"
	"manualrag/internal/domain"
)

// writePDF writes a single-page PDF whose content stream is content, using
// the standard Helvetica font without a widths table.
func writePDF(t *testing.T, content string) string {
	t.Helper()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "manual.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestPDF_PageTextKeepsRows(t *testing.T) {
	path := writePDF(t, strings.Join([]string{
		"BT",
		"/F1 12 Tf",
		"72 720 Td",
		"(1. Overview) Tj",
		"0 -16 Td",
		"(This is the intro.) Tj",
		"0 -16 Td",
		"(1.1 Details) Tj",
		"0 -16 Td",
		"(More info here.) Tj",
		"ET",
		"BT",
		"/F1 12 Tf",
		"72 600 Td",
		"(Warp) Tj",
		"40 0 Td",
		"(Modes) Tj",
		"ET",
	}, "\n"))

	doc, err := OpenPDF(path)
	require.NoError(t, err)
	defer doc.Close()
	require.Equal(t, 1, doc.NumPages())

	raw, err := doc.PageText(1)
	require.NoError(t, err)
	assert.Equal(t, "1. Overview\nThis is the intro.\n1.1 Details\nMore info here.\nWarp Modes", raw)

	text, err := Text(context.Background(), doc, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, err)
	chunks := chunker.NewHeadingChunker().Chunk(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "1", chunks[0].ChunkID)
	assert.Equal(t, "Overview", chunks[0].Title)
	assert.Equal(t, "This is the intro.", chunks[0].Content)
	assert.Equal(t, "1.1", chunks[1].ChunkID)
	assert.Equal(t, "Details", chunks[1].Title)
	assert.Equal(t, "More info here. Warp Modes", chunks[1].Content)
	assert.Equal(t, []domain.ChainEntry{{ChunkID: "1", Title: "Overview"}}, chunks[1].ParentChain)
}

func TestJoinGlyphs(t *testing.T) {
	glyph := func(s string, x, y, w float64) pdf.Text {
		return pdf.Text{S: s, X: x, Y: y, W: w, FontSize: 10}
	}
	tests := []struct {
		name   string
		glyphs []pdf.Text
		want   string
	}{
		{"empty", nil, ""},
		{"adjacent glyphs", []pdf.Text{glyph("a", 0, 700, 5), glyph("b", 5, 700, 5)}, "ab"},
		{"wide gap", []pdf.Text{glyph("a", 0, 700, 5), glyph("b", 20, 700, 5)}, "a b"},
		{"new row", []pdf.Text{glyph("a", 0, 700, 5), glyph("b", 0, 688, 5)}, "a\nb"},
		{"blank glyphs collapse", []pdf.Text{glyph("a", 0, 700, 5), glyph(" ", 5, 700, 3), glyph("\n", 8, 700, 0), glyph("b", 8, 700, 5)}, "a b"},
		{"small baseline shift", []pdf.Text{glyph("x", 0, 700, 5), glyph("2", 5, 703, 5)}, "x2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinGlyphs(tt.glyphs))
		})
	}
}

type fakePages struct {
	pages []string
	fail  map[int]bool
}

func (f fakePages) NumPages() int { return len(f.pages) }

func (f fakePages) PageText(n int) (string, error) {
	if f.fail[n] {
		return "", errors.New("bad stream")
	}
	return f.pages[n-1], nil
}

func TestText_CleansAndJoinsPages(t *testing.T) {
	src := fakePages{pages: []string{
		"1 . Welcome 1\nLive is soft-\nware for music.\n",
		"---\n\n",
		"1.1 Setup 3\nInstall it.\n",
	}}
	var logs bytes.Buffer
	got, err := Text(context.Background(), src, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	assert.Equal(t, "1. Welcome\n\nLive is software for music.\n\n\n1.1 Setup\n\nInstall it.", got)

	chunks := chunker.NewHeadingChunker().Chunk(got)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Live is software for music.", chunks[0].Content)
	assert.Equal(t, "Install it.", chunks[1].Content)
}

func TestText_SkipsFailingPagesAndLogsProgress(t *testing.T) {
	pages := make([]string, 120)
	for i := range pages {
		pages[i] = fmt.Sprintf("Body text on page %d.", i+1)
	}
	var logs bytes.Buffer
	got, err := Text(context.Background(), fakePages{pages: pages, fail: map[int]bool{7: true}},
		slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	assert.NotContains(t, got, "page 7.")
	assert.Contains(t, got, "page 8.")
	assert.Equal(t, 2, strings.Count(logs.String(), "extracting pages"))
	assert.Contains(t, logs.String(), "skipping page")
}

func TestText_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Text(ctx, fakePages{pages: []string{"x"}}, slog.Default())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenPDF_Missing(t *testing.T) {
	_, err := OpenPDF(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
