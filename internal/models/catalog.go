package models

import (
	"sort"
	"strings"
)

// DateRange is the span of creation dates present in the corpus.
type DateRange struct {
	Oldest string `yaml:"oldest" json:"oldest"`
	Newest string `yaml:"newest" json:"newest"`
}

// Catalog lists the recognised filter values. Filters naming anything else are rejected.
type Catalog struct {
	DocumentTypes []string            `yaml:"document_types" json:"document_types"`
	Vendors       []string            `yaml:"vendors" json:"vendors"`
	Products      map[string][]string `yaml:"products" json:"products"`
	UseCases      []string            `yaml:"use_cases" json:"use_cases"`
	DateRange     DateRange           `yaml:"date_range" json:"date_range"`
}

// DefaultCatalog returns the metadata options of the documentation corpus.
func DefaultCatalog() Catalog {
	return Catalog{
		DocumentTypes: []string{"use_case", "parser", "rule", "data_source", "overview", "tutorial"},
		Vendors:       []string{"microsoft", "cisco", "okta", "palo_alto", "aws"},
		Products: map[string][]string{
			"microsoft": {"active_directory", "azure_ad", "exchange_online", "windows"},
			"cisco":     {"asa", "firepower", "ise", "meraki"},
			"okta":      {"identity_cloud"},
		},
		UseCases:  []string{"account_takeover", "data_exfiltration", "lateral_movement", "privilege_escalation"},
		DateRange: DateRange{Oldest: "2022-01-15", Newest: "2025-03-27"},
	}
}

// AllProducts returns every product across vendors, sorted.
func (c *Catalog) AllProducts() []string {
	var out []string
	for _, products := range c.Products {
		out = append(out, products...)
	}
	sort.Strings(out)
	return out
}

// UnknownValues returns, per dimension, the filter values not present in the catalog.
// The result is empty when every value is recognised.
func (c *Catalog) UnknownValues(f FilterSet) map[string][]string {
	unknown := make(map[string][]string)
	check := func(dim string, values, known []string) {
		for _, v := range values {
			if !containsFold(known, strings.TrimSpace(v)) {
				unknown[dim] = append(unknown[dim], v)
			}
		}
	}
	check("document_types", f.DocumentTypes, c.DocumentTypes)
	check("vendors", f.Vendors, c.Vendors)
	check("products", f.Products, c.AllProducts())
	return unknown
}
