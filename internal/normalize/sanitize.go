package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	reLineBreak  = regexp.MustCompile(`\r\n?`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reParagraphs = regexp.MustCompile(`\n[ \t]*\n`)
	reBoxNoise   = regexp.MustCompile(`[│┃┆┇┊┋╎╏║▏▕]+`)
	bracketRunes = "[]{}<>|"
)

// Sanitize flattens raw extracted text into a single line: control and
// format characters are dropped, bracket/markup residue becomes a space,
// text is NFC-normalized and whitespace runs collapse to one space.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	return strings.Join(strings.Fields(cleanRunes(s, false)), " ")
}

// SanitizeLines behaves like Sanitize but keeps line structure: each line is
// collapsed on its own and runs of blank lines shrink to one, so paragraph
// boundaries survive for field extraction.
func SanitizeLines(s string) string {
	s = reLineBreak.ReplaceAllString(s, "\n")
	s = cleanRunes(s, true)
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.Join(strings.Fields(ln), " ")
	}
	out := reMultiBlank.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.Trim(out, "\n")
}

func cleanRunes(s string, keepNewlines bool) string {
	s = reBoxNoise.ReplaceAllString(s, " ")
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '\n' && keepNewlines:
			return r
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r), r == unicode.ReplacementChar:
			return -1
		case strings.ContainsRune(bracketRunes, r):
			return ' '
		}
		return r
	}, s)
	return norm.NFC.String(mapped)
}

// collapse trims and squeezes internal whitespace.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// paragraphs splits line-preserving text on blank lines.
func paragraphs(s string) []string {
	parts := reParagraphs.Split(s, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = collapse(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
