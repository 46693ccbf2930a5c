package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ResearchJobStatus represents the status of a background research job
type ResearchJobStatus string

const (
	JobStatusPending    ResearchJobStatus = "pending"
	JobStatusInProgress ResearchJobStatus = "in_progress"
	JobStatusCompleted  ResearchJobStatus = "completed"
	JobStatusFailed     ResearchJobStatus = "failed"
)

// Research step names, in pipeline order.
const (
	StepSearchingSources     = "Searching Legal Sources"
	StepSynthesizingAnalysis = "Synthesizing Analysis"
	StepSavingArtifacts      = "Saving Artifacts"
)

// ResearchStep represents one stage of a background research run
type ResearchStep struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // "pending", "in_progress", "completed", "failed"
	Description string `json:"description,omitempty"`
}

// ResearchSteps represents the ordered stages of a research job
type ResearchSteps []ResearchStep

// NewResearchSteps returns the standard step list for a context-defining
// search, all pending.
func NewResearchSteps() ResearchSteps {
	return ResearchSteps{
		{Name: StepSearchingSources, Status: "pending"},
		{Name: StepSynthesizingAnalysis, Status: "pending"},
		{Name: StepSavingArtifacts, Status: "pending"},
	}
}

// Value implements driver.Valuer for JSONB
func (r ResearchSteps) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB
func (r *ResearchSteps) Scan(value interface{}) error {
	if value == nil {
		*r = make(ResearchSteps, 0)
		return nil
	}

	// Handle different types that pgx might return for JSONB
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		*r = make(ResearchSteps, 0)
		return nil
	}

	if len(data) == 0 {
		*r = make(ResearchSteps, 0)
		return nil
	}

	return json.Unmarshal(data, r)
}

// ResearchJob tracks one background context-defining search from submission
// through artifact write.
type ResearchJob struct {
	ID           uuid.UUID         `json:"id"`
	SessionID    uuid.UUID         `json:"session_id"`
	Status       ResearchJobStatus `json:"status"`
	CurrentStep  *string           `json:"current_step,omitempty"`
	Steps        ResearchSteps     `json:"steps"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}
