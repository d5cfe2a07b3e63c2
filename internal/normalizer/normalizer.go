// Package normalizer cleans lines of text extracted from a PDF manual.
//
// Extraction leaves page numbers at line ends, stray heading numbers on their
// own lines and numerals split into single characters ("1 7 . Routing").
// Normalize repairs a single line, IsHeading recognises numbered section
// headings and JoinParagraph merges wrapped body lines back into paragraphs.
package normalizer

import (
	"regexp"
	"strings"
)

var (
	trailingPageRe  = regexp.MustCompile(`\s+(?:\d+\s?){1,3}$`)
	dashesRe        = regexp.MustCompile(`^-+$`)
	repeatedDotsRe  = regexp.MustCompile(`\.+`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	bareNumeralRe   = regexp.MustCompile(`^\d+(?:\.\d+)*\.?$`)
	splitLeadPairRe = regexp.MustCompile(`^(\d+)\s+(\d+)\s*\.`)
	spacedDotRe     = regexp.MustCompile(`(\d+)\s*\.\s*(\d+)`)
	adjacentNumRe   = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)*)\s+(\d+\.\d+(?:\.\d+)*)`)
	spaceBeforeDot  = regexp.MustCompile(`(\d)\s+\.`)
	dotSpaceDotRe   = regexp.MustCompile(`\.\s*\.`)
	dotRunRe        = regexp.MustCompile(`\.{2,}`)
	headingRe       = regexp.MustCompile(`^\s*\d{1,2}(?:\.\d+)*\.?\s+.+`)
)

// Normalize cleans one raw extracted line. An empty result means the line
// should be dropped.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = trailingPageRe.ReplaceAllString(s, "")
	if strings.TrimSpace(s) == "" || dashesRe.MatchString(s) {
		return ""
	}

	// A heading number with no title left after page-number removal.
	compact := whitespaceRe.ReplaceAllString(repeatedDotsRe.ReplaceAllString(s, "."), "")
	if bareNumeralRe.MatchString(compact) {
		return ""
	}

	s = splitLeadPairRe.ReplaceAllString(s, "$1$2.")
	s = spacedDotRe.ReplaceAllString(s, "$1.$2")
	s = adjacentNumRe.ReplaceAllString(s, "$1.$2")
	s = spaceBeforeDot.ReplaceAllString(s, "$1.")
	s = dotSpaceDotRe.ReplaceAllString(s, ".")
	s = dotRunRe.ReplaceAllString(s, ".")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// IsHeading reports whether a cleaned line starts with a one or two digit
// section number followed by title text.
func IsHeading(line string) bool {
	return headingRe.MatchString(line)
}

// JoinParagraph merges cleaned lines into one paragraph. A line ending in a
// hyphen or em dash is joined to the next line without a space.
func JoinParagraph(lines []string) string {
	var b strings.Builder
	glued := false
	for i, line := range lines {
		if i > 0 && !glued {
			b.WriteByte(' ')
		}
		glued = false
		if i < len(lines)-1 && (strings.HasSuffix(line, "-") || strings.HasSuffix(line, "—")) {
			line = strings.TrimRight(line, "-—")
			glued = true
		}
		b.WriteString(line)
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(b.String(), " "))
}

// CleanPage normalizes every line of one extracted page. Body lines are
// merged into paragraphs and each heading is emitted on its own line,
// surrounded by blank lines.
func CleanPage(raw string) []string {
	var out, paragraph []string
	flush := func() {
		if len(paragraph) > 0 {
			out = append(out, JoinParagraph(paragraph))
			paragraph = paragraph[:0]
		}
	}
	for _, line := range strings.Split(raw, "\n") {
		cleaned := Normalize(line)
		if cleaned == "" {
			continue
		}
		if IsHeading(cleaned) {
			flush()
			out = append(out, "", cleaned, "")
			continue
		}
		paragraph = append(paragraph, cleaned)
	}
	flush()
	return out
}
