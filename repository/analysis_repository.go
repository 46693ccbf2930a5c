package repository

import (
	"context"

	"bizlaw-advisor-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnalysisRepository handles database operations for saved analyses
type AnalysisRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create stores an analysis document under a session
func (r *AnalysisRepository) Create(ctx context.Context, sessionID uuid.UUID, doc *models.AnalysisDocument) error {
	query := `
		INSERT INTO analyses (session_id, query, document)
		VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, query, sessionID, doc.Query, doc)
	return err
}

// ListBySession retrieves all analyses for a session, newest first
func (r *AnalysisRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.SavedAnalysis, error) {
	query := `
		SELECT id, session_id, query, document, created_at
		FROM analyses
		WHERE session_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*models.SavedAnalysis
	for rows.Next() {
		analysis := &models.SavedAnalysis{}
		err := rows.Scan(
			&analysis.ID,
			&analysis.SessionID,
			&analysis.Query,
			&analysis.Document,
			&analysis.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}

	return analyses, rows.Err()
}

// DeleteBySession removes every analysis stored under a session
func (r *AnalysisRepository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	query := `DELETE FROM analyses WHERE session_id = $1`
	_, err := r.db.Exec(ctx, query, sessionID)
	return err
}
