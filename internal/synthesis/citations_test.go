package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCitations(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		n         int
		wantText  string
		wantCites []int
	}{
		{"single", "Reset it from the portal [1].", 2, "Reset it from the portal [1].", []int{1}},
		{"first appearance order", "A [2] and B [1, 2].", 2, "A [2] and B [1, 2].", []int{2, 1}},
		{"out of range removed", "See the guide [5].", 2, "See the guide.", nil},
		{"zero removed", "[0] Leading marker", 2, "Leading marker", nil},
		{"mixed rewritten", "Mixed [1, 7] support", 2, "Mixed [1] support", []int{1}},
		{"duplicates in marker", "dup [1,1] and again [1]", 3, "dup [1] and again [1]", []int{1}},
		{"adjacent markers", "Both[1][2]", 2, "Both[1][2]", []int{1, 2}},
		{"no markers", "No citations here.", 2, "No citations here.", nil},
		{"not a marker", "array[abc] stays", 2, "array[abc] stays", nil},
		{"spaces in list", "Configure MFA [ 1 ]", 1, "Configure MFA [ 1 ]", nil},
		{"huge index", "x [99999999999999999999]", 2, "x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, cites := ParseCitations(tt.text, tt.n)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantCites, cites)
			for _, c := range cites {
				assert.True(t, c >= 1 && c <= tt.n)
			}
		})
	}
}
