package repository

import (
	"context"
	"time"

	"bizlaw-advisor-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResearchJobRepository handles database operations for research jobs
type ResearchJobRepository struct {
	db *pgxpool.Pool
}

// NewResearchJobRepository creates a new research job repository
func NewResearchJobRepository(db *pgxpool.Pool) *ResearchJobRepository {
	return &ResearchJobRepository{db: db}
}

// Create creates a new research job
func (r *ResearchJobRepository) Create(ctx context.Context, job *models.ResearchJob) error {
	query := `
		INSERT INTO research_jobs (
			session_id, status, current_step, steps, error_message
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		job.SessionID,
		job.Status,
		job.CurrentStep,
		job.Steps,
		job.ErrorMessage,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)

	return err
}

// GetByID retrieves a research job by ID
func (r *ResearchJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ResearchJob, error) {
	job := &models.ResearchJob{}
	query := `
		SELECT id, session_id, status, current_step, steps, error_message,
			created_at, updated_at, completed_at
		FROM research_jobs
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.SessionID,
		&job.Status,
		&job.CurrentStep,
		&job.Steps,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)

	if err != nil {
		return nil, err
	}

	// Ensure Steps is never nil (safeguard in case Scan didn't handle NULL properly)
	if job.Steps == nil {
		job.Steps = make(models.ResearchSteps, 0)
	}

	return job, nil
}

// GetBySessionID retrieves the latest research job for a session
func (r *ResearchJobRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.ResearchJob, error) {
	job := &models.ResearchJob{}
	query := `
		SELECT id, session_id, status, current_step, steps, error_message,
			created_at, updated_at, completed_at
		FROM research_jobs
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&job.ID,
		&job.SessionID,
		&job.Status,
		&job.CurrentStep,
		&job.Steps,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)

	if err != nil {
		return nil, err
	}

	// Ensure Steps is never nil (safeguard in case Scan didn't handle NULL properly)
	if job.Steps == nil {
		job.Steps = make(models.ResearchSteps, 0)
	}

	return job, nil
}

// UpdateStatus updates the status of a research job
func (r *ResearchJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ResearchJobStatus) error {
	query := `
		UPDATE research_jobs SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, status)
	return err
}

// UpdateProgress updates the progress of a research job
func (r *ResearchJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.ResearchSteps) error {
	query := `
		UPDATE research_jobs SET
			current_step = $2,
			steps = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, currentStep, steps)
	return err
}

// Complete marks a research job as completed
func (r *ResearchJobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	query := `
		UPDATE research_jobs SET
			status = $2,
			completed_at = $3,
			updated_at = $3
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.JobStatusCompleted, now)
	return err
}

// Fail marks a research job as failed
func (r *ResearchJobRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE research_jobs SET
			status = $2,
			error_message = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.JobStatusFailed, errorMessage)
	return err
}
