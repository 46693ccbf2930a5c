package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnalysisSchemaVersion is bumped whenever the persisted analysis layout
// changes; documents carrying any other version are rejected on read.
const AnalysisSchemaVersion = 1

// RequiredAnalysisKeys are the fields the generative model must return for
// a synthesis to be accepted.
var RequiredAnalysisKeys = []string{
	"summary",
	"key_points",
	"jurisdiction_analysis",
	"compliance_steps",
	"overlapping_regulations",
}

// LegalAnalysis is the terminal artifact of one research query: the model's
// structured answer plus the provenance the pipeline attaches to it.
// Sources is always the Federal, then State, then Local URLs that fed the
// synthesis, in discovery order, without dedup. ResponseTime covers the
// model call through output parsing, in seconds.
type LegalAnalysis struct {
	Summary                string            `json:"summary"`
	KeyPoints              []string          `json:"key_points"`
	JurisdictionAnalysis   map[string]string `json:"jurisdiction_analysis"`
	ComplianceSteps        []string          `json:"compliance_steps"`
	OverlappingRegulations []string          `json:"overlapping_regulations"`
	Sources                []string          `json:"sources"`
	ResponseTime           float64           `json:"response_time"`
}

// AnalysisDocument is the persisted envelope around a LegalAnalysis. It is
// versioned and decoded strictly: unknown fields, missing fields, or a
// version mismatch all fail the read. Stored text is never evaluated, only
// parsed.
type AnalysisDocument struct {
	SchemaVersion int           `json:"schema_version"`
	SavedAt       time.Time     `json:"saved_at"`
	Query         string        `json:"query"`
	Analysis      LegalAnalysis `json:"analysis"`
}

// NewAnalysisDocument wraps an analysis for persistence under the current
// schema version.
func NewAnalysisDocument(query string, analysis LegalAnalysis) *AnalysisDocument {
	return &AnalysisDocument{
		SchemaVersion: AnalysisSchemaVersion,
		SavedAt:       time.Now().UTC(),
		Query:         query,
		Analysis:      analysis,
	}
}

// Encode serializes the document for artifact storage.
func (d *AnalysisDocument) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// DecodeAnalysisDocument parses a stored analysis document, failing closed.
// Every envelope field and every analysis field must be present, no extra
// fields may appear at any level, and the schema version must match.
func DecodeAnalysisDocument(data []byte) (*AnalysisDocument, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("analysis document is not valid JSON: %w", err)
	}
	for _, key := range []string{"schema_version", "saved_at", "query", "analysis"} {
		if _, ok := envelope[key]; !ok {
			return nil, fmt.Errorf("analysis document missing field %q", key)
		}
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(envelope["analysis"], &payload); err != nil {
		return nil, fmt.Errorf("analysis payload is not a JSON object: %w", err)
	}
	required := append(append([]string{}, RequiredAnalysisKeys...), "sources", "response_time")
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			return nil, fmt.Errorf("analysis payload missing field %q", key)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc AnalysisDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding analysis document: %w", err)
	}
	if doc.SchemaVersion != AnalysisSchemaVersion {
		return nil, fmt.Errorf("unsupported analysis schema version %d", doc.SchemaVersion)
	}
	return &doc, nil
}

// SavedAnalysis is one persisted analysis in a session's query history
type SavedAnalysis struct {
	ID        uuid.UUID        `json:"id"`
	SessionID uuid.UUID        `json:"session_id"`
	Query     string           `json:"query"`
	Document  AnalysisDocument `json:"document"`
	CreatedAt time.Time        `json:"created_at"`
}

// Value implements driver.Valuer for JSONB
func (d AnalysisDocument) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB. Unlike a permissive scan, a stored
// document that fails strict decoding is surfaced as an error rather than
// silently zeroed.
func (d *AnalysisDocument) Scan(value interface{}) error {
	if value == nil {
		return errors.New("analysis document column is null")
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported analysis document column type %T", value)
	}

	doc, err := DecodeAnalysisDocument(data)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}
