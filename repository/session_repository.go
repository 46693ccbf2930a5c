package repository

import (
	"context"

	"bizlaw-advisor-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles database operations for research sessions
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new research session
func (r *SessionRepository) Create(ctx context.Context, session *models.ResearchSession) error {
	query := `
		INSERT INTO research_sessions (
			city, state, business_type, area_of_law, statute_of_law
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		session.City,
		session.State,
		session.BusinessType,
		session.AreaOfLaw,
		session.StatuteOfLaw,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)

	return err
}

// GetByID retrieves a research session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ResearchSession, error) {
	session := &models.ResearchSession{}
	query := `
		SELECT id, city, state, business_type, area_of_law, statute_of_law,
			manifest_path, laws_path, created_at, updated_at
		FROM research_sessions
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.City,
		&session.State,
		&session.BusinessType,
		&session.AreaOfLaw,
		&session.StatuteOfLaw,
		&session.ManifestPath,
		&session.LawsPath,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return session, nil
}

// UpdateContext replaces the business context of a session and returns the
// updated row. The artifact paths are cleared: the stored manifest and laws
// document describe the old context and must not be served for the new one.
func (r *SessionRepository) UpdateContext(ctx context.Context, id uuid.UUID, bc models.BusinessContext) (*models.ResearchSession, error) {
	session := &models.ResearchSession{}
	query := `
		UPDATE research_sessions SET
			city = $2,
			state = $3,
			business_type = $4,
			area_of_law = $5,
			statute_of_law = $6,
			manifest_path = NULL,
			laws_path = NULL,
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, city, state, business_type, area_of_law, statute_of_law,
			manifest_path, laws_path, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		id,
		bc.City,
		bc.State,
		bc.BusinessType,
		bc.AreaOfLaw,
		bc.StatuteOfLaw,
	).Scan(
		&session.ID,
		&session.City,
		&session.State,
		&session.BusinessType,
		&session.AreaOfLaw,
		&session.StatuteOfLaw,
		&session.ManifestPath,
		&session.LawsPath,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return session, nil
}

// UpdateArtifactPaths records where the session's source manifest and
// applicable-laws document were stored.
func (r *SessionRepository) UpdateArtifactPaths(ctx context.Context, id uuid.UUID, manifestPath, lawsPath string) error {
	query := `
		UPDATE research_sessions SET
			manifest_path = $2,
			laws_path = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, manifestPath, lawsPath)
	return err
}

// Delete deletes a research session
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM research_sessions WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
