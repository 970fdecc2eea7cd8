package strings

import (
	"strings"
)

// DefaultDescriptionMaxLen is the default width of a description column in
// table output.
const DefaultDescriptionMaxLen = 60

// MinTruncateLen is the smallest maxLen TruncateDescription honours.
const MinTruncateLen = 4

// TruncateDescription collapses all whitespace in s to single spaces and
// cuts the result to maxLen runes, ending in "..." when cut. maxLen below
// MinTruncateLen is clamped.
func TruncateDescription(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Summary returns a one-line summary of a Markdown package description: the
// first paragraph that is not a heading, with inline emphasis and code
// markers removed, truncated to maxLen. A description made only of headings
// is summarised by its first heading.
func Summary(markdown string, maxLen int) string {
	var heading string
	for _, block := range strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if strings.HasPrefix(block, "#") {
			first, rest, _ := strings.Cut(block, "\n")
			if heading == "" {
				heading = strings.TrimSpace(strings.TrimLeft(first, "#"))
			}
			if rest = strings.TrimSpace(rest); rest == "" {
				continue
			}
			block = rest
		}
		return TruncateDescription(stripInline(block), maxLen)
	}
	return TruncateDescription(stripInline(heading), maxLen)
}

var inlineMarkers = strings.NewReplacer("**", "", "__", "", "`", "", "*", "")

func stripInline(s string) string {
	return inlineMarkers.Replace(s)
}
