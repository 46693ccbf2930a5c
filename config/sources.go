package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceRegistry defines which sites the research pipeline queries and which
// results it keeps. The zero value is unusable; construct one with
// DefaultRegistry or LoadRegistry.
type SourceRegistry struct {
	// FederalDomains are queried one by one during federal aggregation,
	// in this order.
	FederalDomains []string `yaml:"federal_domains"`

	// TrustedSuffixes is the allow-list a result host must end with to
	// survive filtering.
	TrustedSuffixes []string `yaml:"trusted_suffixes"`

	// LawCategories is the closed set of legal areas offered to callers.
	LawCategories []string `yaml:"law_categories"`
}

// DefaultRegistry returns the built-in registry covering the federal
// regulators most relevant to small-business compliance questions.
func DefaultRegistry() *SourceRegistry {
	return &SourceRegistry{
		FederalDomains: []string{
			"irs.gov",
			"osha.gov",
			"epa.gov",
			"dol.gov",
			"msha.gov",
			"eeoc.gov",
			"hhs.gov",
			"sba.gov",
			"ecfr.gov",
			"govinfo.gov",
		},
		TrustedSuffixes: []string{".gov", ".org"},
		LawCategories: []string{
			"Business Formation and Governance",
			"Taxation",
			"Employment and Labor",
			"Health and Safety",
			"Environmental Protection",
			"Intellectual Property",
			"Consumer Protection and Marketing",
			"Privacy and Data Protection",
			"Antitrust and Competition",
			"Licensing, Permits and Zoning",
			"Immigration and Workforce Eligibility",
			"Financial and Securities",
			"International Trade and Imports/Exports",
			"Industry-Specific Regulations",
			"OTHER",
		},
	}
}

// LoadRegistry returns the default registry, overridden section by section
// from a YAML file when path is non-empty. A section present in the file
// replaces the built-in list wholesale; absent sections keep their defaults.
func LoadRegistry(path string) (*SourceRegistry, error) {
	reg := DefaultRegistry()
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source registry: %w", err)
	}
	if err := yaml.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("parsing source registry %s: %w", path, err)
	}
	return reg, nil
}

// IsTrustedDomain reports whether a result URL belongs to a trusted
// publisher. The check runs on the parsed hostname, lower-cased, with a
// suffix match against the allow-list, so "evil-gov.com" does not pass for
// ".gov" and paths or query strings cannot smuggle a match.
func (r *SourceRegistry) IsTrustedDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, suffix := range r.TrustedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// IsKnownCategory reports whether a law category is one of the registry's
// closed set. Matching is exact.
func (r *SourceRegistry) IsKnownCategory(category string) bool {
	for _, c := range r.LawCategories {
		if c == category {
			return true
		}
	}
	return false
}
