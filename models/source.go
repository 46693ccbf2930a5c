package models

// Jurisdiction identifies the governmental level a legal source or analysis
// section pertains to.
type Jurisdiction string

const (
	JurisdictionFederal Jurisdiction = "Federal"
	JurisdictionState   Jurisdiction = "State"
	JurisdictionLocal   Jurisdiction = "Local"
)

// JurisdictionOrder fixes the order jurisdictions appear in prompts, source
// concatenation, and the manifest. Ordering is a property of the data model,
// not of which search branch happened to finish first.
var JurisdictionOrder = []Jurisdiction{
	JurisdictionFederal,
	JurisdictionState,
	JurisdictionLocal,
}

// LegalSource is one discovered candidate legal reference. Content holds a
// serialized snapshot of the raw provider result for prompt context; it is
// not re-fetched page text.
type LegalSource struct {
	URL            string       `json:"url"`
	Jurisdiction   Jurisdiction `json:"jurisdiction"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	RelevanceScore float64      `json:"relevance_score"`
	Content        string       `json:"content,omitempty"`
}

// SourceManifest is the artifact written after a context-defining search,
// listing every source that fed the synthesis. It always serializes with
// exactly these three keys, each holding a list even when empty.
type SourceManifest struct {
	FederalLaws []LegalSource `json:"Federal Laws"`
	StateLaws   []LegalSource `json:"State Laws"`
	LocalLaws   []LegalSource `json:"Local Laws"`
}

// NewSourceManifest builds a manifest with non-nil lists so empty
// jurisdictions serialize as [] rather than null.
func NewSourceManifest(federal, state, local []LegalSource) *SourceManifest {
	if federal == nil {
		federal = []LegalSource{}
	}
	if state == nil {
		state = []LegalSource{}
	}
	if local == nil {
		local = []LegalSource{}
	}
	return &SourceManifest{
		FederalLaws: federal,
		StateLaws:   state,
		LocalLaws:   local,
	}
}
