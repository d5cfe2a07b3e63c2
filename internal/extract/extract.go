// Package extract turns the pages of a PDF manual into cleaned text.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"manualrag/internal/normalizer"
)

// progressEvery is the page interval between progress log lines.
const progressEvery = 50

// PageSource yields the raw text of numbered pages, starting at 1.
type PageSource interface {
	NumPages() int
	PageText(n int) (string, error)
}

// PDF is a PageSource backed by a PDF file on disk.
type PDF struct {
	f      *os.File
	reader *pdf.Reader
}

// OpenPDF opens a PDF file. The caller must Close it.
func OpenPDF(path string) (*PDF, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &PDF{f: f, reader: r}, nil
}

// NumPages returns the page count.
func (p *PDF) NumPages() int { return p.reader.NumPage() }

// PageText returns the text of page n with one line per text row. Pages
// without content yield "".
func (p *PDF) PageText(n int) (text string, err error) {
	// The decoder panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: decode panic: %v", n, r)
		}
	}()
	page := p.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return joinGlyphs(page.Content().Text), nil
}

// joinGlyphs rebuilds text from positioned glyphs in content-stream order.
// A vertical move of more than half the font size starts a new line; a
// horizontal gap wider than a quarter of the font size becomes a space.
func joinGlyphs(glyphs []pdf.Text) string {
	var b strings.Builder
	var prev *pdf.Text
	space := false
	for i := range glyphs {
		g := &glyphs[i]
		if g.S == "" {
			continue
		}
		if isBlank(g.S) {
			space = true
			continue
		}
		if prev != nil {
			size := math.Max(prev.FontSize, 2)
			switch {
			case math.Abs(g.Y-prev.Y) > size/2:
				b.WriteByte('\n')
			case space || g.X-(prev.X+prev.W) > size/4:
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
		prev = g
		space = false
	}
	return b.String()
}

func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) && !unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// Close releases the underlying file.
func (p *PDF) Close() error { return p.f.Close() }

// Text cleans every page of src and joins them with a blank line. Pages that
// fail to decode are skipped with a warning.
func Text(ctx context.Context, src PageSource, logger *slog.Logger) (string, error) {
	total := src.NumPages()
	pages := make([]string, 0, total)
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := src.PageText(n)
		if err != nil {
			logger.Warn("skipping page", "page", n, "error", err)
			continue
		}
		if lines := normalizer.CleanPage(raw); len(lines) > 0 {
			pages = append(pages, strings.Join(lines, "\n"))
		}
		if n%progressEvery == 0 {
			logger.Info("extracting pages", "done", n, "total", total)
		}
	}
	return strings.TrimSpace(strings.Join(pages, "\n\n")), nil
}
