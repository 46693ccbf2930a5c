package models

import "strings"

// BusinessContext describes the business a research query is scoped to.
// It is built once per context submission and treated as immutable for the
// lifetime of a query; submitting a new context replaces the old one and
// resets any conversation history tied to it.
type BusinessContext struct {
	City         string  `json:"city"`
	State        string  `json:"state"`
	BusinessType string  `json:"business_type"`
	AreaOfLaw    string  `json:"area_of_law"`
	StatuteOfLaw *string `json:"statute_of_law,omitempty"`
}

// Location renders "City, State" for prompts, tolerating a missing half.
func (c BusinessContext) Location() string {
	parts := make([]string, 0, 2)
	if c.City != "" {
		parts = append(parts, c.City)
	}
	if c.State != "" {
		parts = append(parts, c.State)
	}
	return strings.Join(parts, ", ")
}
