package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return &d
}

func TestFilterSetMatches(t *testing.T) {
	meta := ChunkMetadata{
		DocumentType: "rule",
		Vendor:       "microsoft",
		Product:      "azure_ad",
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		filter *FilterSet
		want   bool
	}{
		{"nil matches everything", nil, true},
		{"empty matches everything", &FilterSet{}, true},
		{"value in set", &FilterSet{DocumentTypes: []string{"use_case", "rule"}}, true},
		{"value not in set", &FilterSet{DocumentTypes: []string{"parser"}}, false},
		{"conjunction all satisfied", &FilterSet{DocumentTypes: []string{"rule"}, Vendors: []string{"okta", "microsoft"}}, true},
		{"conjunction one fails", &FilterSet{DocumentTypes: []string{"rule"}, Vendors: []string{"okta"}}, false},
		{"case insensitive", &FilterSet{Vendors: []string{"Microsoft"}}, true},
		{"product mismatch", &FilterSet{Products: []string{"windows"}}, false},
		{"inside date range", &FilterSet{CreatedAfter: date(t, "2024-01-01"), CreatedBefore: date(t, "2024-12-31")}, true},
		{"before lower bound", &FilterSet{CreatedAfter: date(t, "2024-06-01")}, false},
		{"after upper bound", &FilterSet{CreatedBefore: date(t, "2024-04-30")}, false},
		{"bound is inclusive", &FilterSet{CreatedAfter: date(t, "2024-05-01T12:00:00Z")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(meta))
		})
	}
}

func TestFilterSetCount(t *testing.T) {
	assert.Equal(t, 0, (*FilterSet)(nil).Count())
	assert.True(t, (&FilterSet{}).IsEmpty())

	f := &FilterSet{
		DocumentTypes: []string{"rule", "parser"},
		Vendors:       []string{"okta"},
		CreatedAfter:  date(t, "2023-01-01"),
		CreatedBefore: date(t, "2024-01-01"),
	}
	assert.Equal(t, 3, f.Count())
	assert.False(t, f.IsEmpty())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("05/03/2024")
	assert.Error(t, err)

	end := EndOfDay(d)
	assert.Equal(t, 5, end.Day())
	assert.Equal(t, 23, end.Hour())
}

func TestCatalogUnknownValues(t *testing.T) {
	c := DefaultCatalog()
	assert.Empty(t, c.UnknownValues(FilterSet{
		DocumentTypes: []string{"rule"},
		Vendors:       []string{"okta", "microsoft"},
		Products:      []string{"ise"},
	}))

	unknown := c.UnknownValues(FilterSet{
		DocumentTypes: []string{"rule", "memo"},
		Vendors:       []string{"acme"},
	})
	assert.Equal(t, []string{"memo"}, unknown["document_types"])
	assert.Equal(t, []string{"acme"}, unknown["vendors"])
	assert.NotContains(t, unknown, "products")
}
