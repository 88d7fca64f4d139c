// Package assembler packs ranked candidates into a bounded, citation-indexed context window.
package assembler

import (
	"unicode/utf8"

	"github.com/hyperjump/exasperation/internal/models"
)

// Assemble takes candidates in rank order until the next one would exceed the budget.
// Content is never truncated. The first candidate is always included, even when it
// alone exceeds MaxChars. Entries are indexed from 1.
func Assemble(candidates []*models.Candidate, budget models.Budget) *models.ContextWindow {
	w := &models.ContextWindow{Budget: budget}
	for _, c := range candidates {
		if c == nil || c.Chunk == nil {
			continue
		}
		if budget.MaxEntries > 0 && len(w.Entries) >= budget.MaxEntries {
			break
		}
		size := utf8.RuneCountInString(c.Chunk.Content)
		if len(w.Entries) > 0 && budget.MaxChars > 0 && w.TotalChars+size > budget.MaxChars {
			break
		}
		w.Entries = append(w.Entries, models.ContextEntry{Index: len(w.Entries) + 1, Candidate: c})
		w.TotalChars += size
	}
	return w
}

// BudgetFromTokens converts a token budget to characters.
func BudgetFromTokens(tokens, charsPerToken, maxEntries int) models.Budget {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	b := models.Budget{MaxEntries: maxEntries}
	if tokens > 0 {
		b.MaxChars = tokens * charsPerToken
	}
	return b
}
