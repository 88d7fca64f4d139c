package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperjump/exasperation/internal/models"
)

func cand(id string, size int) *models.Candidate {
	return &models.Candidate{Chunk: &models.Chunk{ID: id, Content: strings.Repeat("x", size)}}
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name    string
		cands   []*models.Candidate
		budget  models.Budget
		wantIDs []string
		chars   int
	}{
		{"all fit", []*models.Candidate{cand("a", 10), cand("b", 10)}, models.Budget{MaxChars: 100}, []string{"a", "b"}, 20},
		{"stops at first overflow", []*models.Candidate{cand("a", 40), cand("b", 70), cand("c", 5)}, models.Budget{MaxChars: 100}, []string{"a"}, 40},
		{"exact fit", []*models.Candidate{cand("a", 50), cand("b", 50)}, models.Budget{MaxChars: 100}, []string{"a", "b"}, 100},
		{"oversized first kept whole", []*models.Candidate{cand("a", 500), cand("b", 1)}, models.Budget{MaxChars: 100}, []string{"a"}, 500},
		{"entry cap", []*models.Candidate{cand("a", 1), cand("b", 1), cand("c", 1)}, models.Budget{MaxEntries: 2}, []string{"a", "b"}, 2},
		{"unbounded", []*models.Candidate{cand("a", 5000), cand("b", 5000)}, models.Budget{}, []string{"a", "b"}, 10000},
		{"empty", nil, models.Budget{MaxChars: 10}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Assemble(tt.cands, tt.budget)
			var got []string
			for i, e := range w.Entries {
				assert.Equal(t, i+1, e.Index)
				got = append(got, e.Candidate.Chunk.ID)
			}
			assert.Equal(t, tt.wantIDs, got)
			assert.Equal(t, tt.chars, w.TotalChars)
			assert.Equal(t, tt.budget, w.Budget)
		})
	}
}

func TestAssemble_CountsRunes(t *testing.T) {
	c := &models.Candidate{Chunk: &models.Chunk{ID: "a", Content: "héllo wörld"}}
	w := Assemble([]*models.Candidate{c, cand("b", 9)}, models.Budget{MaxChars: 20})
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 20, w.TotalChars)
}

func TestBudgetFromTokens(t *testing.T) {
	assert.Equal(t, models.Budget{MaxChars: 16000, MaxEntries: 8}, BudgetFromTokens(4000, 4, 8))
	assert.Equal(t, models.Budget{MaxChars: 400}, BudgetFromTokens(100, 0, 0))
	assert.Equal(t, models.Budget{}, BudgetFromTokens(0, 4, 0))
}
