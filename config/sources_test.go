package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTrustedDomain(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name    string
		url     string
		trusted bool
	}{
		{"gov host", "https://irs.gov/page", true},
		{"gov subdomain", "https://www.osha.gov/laws-regs", true},
		{"org host", "https://nolo.org/articles", true},
		{"commercial host", "https://example.com", false},
		{"gov in path only", "https://notgov.example/gov", false},
		{"suffix inside host name", "https://evil-gov.com", false},
		{"uppercase host", "https://WWW.EPA.GOV/rules", true},
		{"host with port", "https://city.gov:8443/code", true},
		{"empty url", "", false},
		{"garbage url", "://not a url", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.trusted, reg.IsTrustedDomain(tt.url))
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	assert.Len(t, reg.FederalDomains, 10)
	assert.Equal(t, "irs.gov", reg.FederalDomains[0])
	assert.Equal(t, "govinfo.gov", reg.FederalDomains[9])
	assert.Equal(t, []string{".gov", ".org"}, reg.TrustedSuffixes)
	assert.Len(t, reg.LawCategories, 15)
	assert.Equal(t, "OTHER", reg.LawCategories[14])
}

func TestLoadRegistryOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	content := []byte("federal_domains:\n  - ftc.gov\n  - fda.gov\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	// Listed section replaces the default wholesale.
	assert.Equal(t, []string{"ftc.gov", "fda.gov"}, reg.FederalDomains)

	// Unlisted sections keep their defaults.
	assert.Equal(t, []string{".gov", ".org"}, reg.TrustedSuffixes)
	assert.Len(t, reg.LawCategories, 15)
}

func TestLoadRegistryEmptyPath(t *testing.T) {
	reg, err := LoadRegistry("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRegistry(), reg)
}

func TestLoadRegistryMissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestIsKnownCategory(t *testing.T) {
	reg := DefaultRegistry()

	assert.True(t, reg.IsKnownCategory("Taxation"))
	assert.True(t, reg.IsKnownCategory("OTHER"))
	assert.False(t, reg.IsKnownCategory("taxation"))
	assert.False(t, reg.IsKnownCategory("Maritime Law"))
}
