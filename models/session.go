package models

import (
	"time"

	"github.com/google/uuid"
)

// ResearchSession ties a business context to its saved artifacts and query
// history. Replacing the context resets the session: prior analyses become
// invalid and the artifact paths are rewritten by the next context-defining
// search.
type ResearchSession struct {
	ID uuid.UUID `json:"id"`

	City         string  `json:"city"`
	State        string  `json:"state"`
	BusinessType string  `json:"business_type"`
	AreaOfLaw    string  `json:"area_of_law"`
	StatuteOfLaw *string `json:"statute_of_law,omitempty"`

	// Artifact locations, set once the context-defining search completes.
	ManifestPath *string `json:"manifest_path,omitempty"`
	LawsPath     *string `json:"laws_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Context assembles the session's business context for the pipeline.
func (s *ResearchSession) Context() BusinessContext {
	return BusinessContext{
		City:         s.City,
		State:        s.State,
		BusinessType: s.BusinessType,
		AreaOfLaw:    s.AreaOfLaw,
		StatuteOfLaw: s.StatuteOfLaw,
	}
}
