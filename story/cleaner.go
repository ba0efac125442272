package story

import (
	"regexp"
	"strings"
)

var (
	blankLineRe  = regexp.MustCompile(`\n\s*\n`)
	fenceRe      = regexp.MustCompile("(?s)```.*?```")
	markdownRe   = regexp.MustCompile(`[*_#]+`)
	captionRe    = regexp.MustCompile(`(?im)^\s*(?:\[?image(?: description)?\]?|scene \d+|illustration)\s*[:.]?\s*.*$`)
	multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// Segments splits raw model output into cleaned story paragraphs. Image
// caption lines and formatting artifacts are removed; empty paragraphs are
// dropped.
func Segments(raw string) []string {
	raw = fenceRe.ReplaceAllString(raw, "")
	var segments []string
	for _, part := range blankLineRe.Split(raw, -1) {
		cleaned := cleanSegment(part)
		if cleaned != "" {
			segments = append(segments, cleaned)
		}
	}
	return segments
}

// Clean returns the full story text ready for narration: cleaned segments
// joined by blank lines, with the title line removed from the first segment.
func Clean(raw string) string {
	segments := Segments(raw)
	if len(segments) == 0 {
		return ""
	}
	segments[0] = stripTitleLine(segments[0])
	var nonEmpty []string
	for _, s := range segments {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

// Title extracts the story title: the first line of the first segment.
func Title(raw string) string {
	segments := Segments(raw)
	if len(segments) == 0 {
		return "Generated Story"
	}
	line, _, _ := strings.Cut(segments[0], "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "Generated Story"
	}
	return line
}

func cleanSegment(s string) string {
	s = captionRe.ReplaceAllString(s, "")
	s = markdownRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func stripTitleLine(segment string) string {
	_, rest, found := strings.Cut(segment, "\n")
	if !found {
		// Single-line first segment is the title itself.
		return ""
	}
	return strings.TrimSpace(rest)
}
