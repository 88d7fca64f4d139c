package indexer

import (
	"strings"

	"github.com/hyperjump/exasperation/pkg/utils"
)

// Preprocess normalizes chunk text: control characters other than whitespace are dropped,
// whitespace is collapsed and the result trimmed.
func Preprocess(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		if r < 0x20 || r == 0x7f || r == '�' {
			return -1
		}
		return r
	}, text)
	return utils.CollapseWhitespace(text)
}
