package synthesis

import (
	"regexp"
	"strconv"
	"strings"
)

var citationMarker = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)

// ParseCitations extracts citation markers from text, keeping only indices in 1..n.
// Markers with no valid index are removed; mixed markers are rewritten to their valid
// indices. Citations are returned unique, in order of first appearance.
func ParseCitations(text string, n int) (string, []int) {
	matches := citationMarker.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var (
		out       strings.Builder
		citations []int
		seen      = make(map[int]bool)
		last      int
	)
	for _, m := range matches {
		out.WriteString(text[last:m[0]])
		last = m[1]

		valid := validIndices(text[m[2]:m[3]], n)
		if len(valid) == 0 {
			trimmed := strings.TrimRight(out.String(), " \t")
			out.Reset()
			out.WriteString(trimmed)
			continue
		}
		parts := make([]string, len(valid))
		for i, idx := range valid {
			parts[i] = strconv.Itoa(idx)
			if !seen[idx] {
				seen[idx] = true
				citations = append(citations, idx)
			}
		}
		out.WriteString("[" + strings.Join(parts, ", ") + "]")
	}
	out.WriteString(text[last:])
	return strings.TrimSpace(out.String()), citations
}

func validIndices(list string, n int) []int {
	var out []int
	dup := make(map[int]bool)
	for _, f := range strings.Split(list, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || idx < 1 || idx > n || dup[idx] {
			continue
		}
		dup[idx] = true
		out = append(out, idx)
	}
	return out
}
