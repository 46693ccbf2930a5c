package service

import (
	"context"
	"errors"

	"bizlaw-advisor-backend/config"
	"bizlaw-advisor-backend/models"
	"bizlaw-advisor-backend/repository"

	"github.com/google/uuid"
)

var (
	ErrMissingContextFields = errors.New("city, state, business type, and area of law are required")
	ErrUnknownLawCategory   = errors.New("area of law is not a known category")
)

// SessionService handles research session lifecycle: creating a session
// around a business context, replacing that context, and reading the
// session's analysis history.
type SessionService struct {
	sessionRepo  *repository.SessionRepository
	analysisRepo *repository.AnalysisRepository
	registry     *config.SourceRegistry
}

// SessionServiceOption is a functional option for SessionService
type SessionServiceOption func(*SessionService)

// SessionWithSessionRepository sets the session repository
func SessionWithSessionRepository(repo *repository.SessionRepository) SessionServiceOption {
	return func(s *SessionService) {
		s.sessionRepo = repo
	}
}

// SessionWithAnalysisRepository sets the analysis repository
func SessionWithAnalysisRepository(repo *repository.AnalysisRepository) SessionServiceOption {
	return func(s *SessionService) {
		s.analysisRepo = repo
	}
}

// SessionWithRegistry sets the source registry used for category checks
func SessionWithRegistry(registry *config.SourceRegistry) SessionServiceOption {
	return func(s *SessionService) {
		s.registry = registry
	}
}

// NewSessionService creates a new session service
func NewSessionService(opts ...SessionServiceOption) *SessionService {
	s := &SessionService{
		registry: config.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSessionRequest carries the business context for a new session
type CreateSessionRequest struct {
	Context models.BusinessContext
}

// CreateSessionResult carries the created session
type CreateSessionResult struct {
	Session *models.ResearchSession
}

// CreateSession validates the business context and creates a session for it
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResult, error) {
	if err := s.validateContext(req.Context); err != nil {
		return nil, err
	}
	if s.sessionRepo == nil {
		return nil, errors.New("session repository not set")
	}

	session := &models.ResearchSession{
		City:         req.Context.City,
		State:        req.Context.State,
		BusinessType: req.Context.BusinessType,
		AreaOfLaw:    req.Context.AreaOfLaw,
		StatuteOfLaw: req.Context.StatuteOfLaw,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return &CreateSessionResult{Session: session}, nil
}

// GetSessionRequest identifies a session
type GetSessionRequest struct {
	ID uuid.UUID
}

// GetSessionResult carries the session
type GetSessionResult struct {
	Session *models.ResearchSession
}

// GetSession retrieves a session by ID
func (s *SessionService) GetSession(ctx context.Context, req GetSessionRequest) (*GetSessionResult, error) {
	if s.sessionRepo == nil {
		return nil, errors.New("session repository not set")
	}

	session, err := s.sessionRepo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	return &GetSessionResult{Session: session}, nil
}

// UpdateContextRequest carries a replacement business context for a session
type UpdateContextRequest struct {
	SessionID uuid.UUID
	Context   models.BusinessContext
}

// UpdateContextResult carries the updated session
type UpdateContextResult struct {
	Session *models.ResearchSession
}

// UpdateContext replaces a session's business context. The session's
// analysis history and artifact paths are cleared: analyses made under the
// old context do not apply to the new one.
func (s *SessionService) UpdateContext(ctx context.Context, req UpdateContextRequest) (*UpdateContextResult, error) {
	if err := s.validateContext(req.Context); err != nil {
		return nil, err
	}
	if s.sessionRepo == nil {
		return nil, errors.New("session repository not set")
	}

	if _, err := s.sessionRepo.GetByID(ctx, req.SessionID); err != nil {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessionRepo.UpdateContext(ctx, req.SessionID, req.Context)
	if err != nil {
		return nil, err
	}

	if s.analysisRepo != nil {
		if err := s.analysisRepo.DeleteBySession(ctx, req.SessionID); err != nil {
			return nil, err
		}
	}

	return &UpdateContextResult{Session: session}, nil
}

// ListAnalysesRequest identifies a session whose history to list
type ListAnalysesRequest struct {
	SessionID uuid.UUID
}

// ListAnalysesResult carries a session's analysis history, newest first
type ListAnalysesResult struct {
	Analyses []*models.SavedAnalysis
}

// ListAnalyses returns the session's persisted analyses, newest first.
func (s *SessionService) ListAnalyses(ctx context.Context, req ListAnalysesRequest) (*ListAnalysesResult, error) {
	if s.sessionRepo == nil {
		return nil, errors.New("session repository not set")
	}
	if s.analysisRepo == nil {
		return nil, errors.New("analysis repository not set")
	}

	if _, err := s.sessionRepo.GetByID(ctx, req.SessionID); err != nil {
		return nil, ErrSessionNotFound
	}

	analyses, err := s.analysisRepo.ListBySession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	return &ListAnalysesResult{Analyses: analyses}, nil
}

// validateContext enforces the required context fields and the closed law
// category set.
func (s *SessionService) validateContext(bctx models.BusinessContext) error {
	if bctx.City == "" || bctx.State == "" || bctx.BusinessType == "" || bctx.AreaOfLaw == "" {
		return ErrMissingContextFields
	}
	if !s.registry.IsKnownCategory(bctx.AreaOfLaw) {
		return ErrUnknownLawCategory
	}
	return nil
}
