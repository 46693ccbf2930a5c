package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"bizlaw-advisor-backend/config"
	"bizlaw-advisor-backend/metrics"
	"bizlaw-advisor-backend/models"
	"bizlaw-advisor-backend/repository"
	"bizlaw-advisor-backend/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultContextQuery seeds the context-defining search that runs when a
// session's business context is submitted.
const DefaultContextQuery = "Provide Summary of Laws/Rules applicable to the Business"

const (
	manifestFilename = "identified_sources.json"
	lawsFilename     = "applicable_laws.json"
)

var (
	ErrEmptyQuery        = errors.New("query must not be empty")
	ErrSessionNotFound   = errors.New("research session not found")
	ErrJobNotFound       = errors.New("research job not found")
	ErrJobCreationFailed = errors.New("failed to create research job")
	ErrArtifactNotReady  = errors.New("artifact not available for session")
)

// ResearchService drives research queries end to end: concurrent
// jurisdiction searches, a hard join, synthesis, and optionally persistence
// of the resulting analysis and artifacts.
type ResearchService struct {
	searchService   *SearchService
	analysisService *AnalysisService
	sessionRepo     *repository.SessionRepository
	analysisRepo    *repository.AnalysisRepository
	jobRepo         *repository.ResearchJobRepository
	store           storage.Storage
	softLimit       time.Duration
}

// ResearchServiceOption is a functional option for ResearchService
type ResearchServiceOption func(*ResearchService)

// ResearchWithSearchService sets the search service
func ResearchWithSearchService(s *SearchService) ResearchServiceOption {
	return func(r *ResearchService) {
		r.searchService = s
	}
}

// ResearchWithAnalysisService sets the analysis service
func ResearchWithAnalysisService(s *AnalysisService) ResearchServiceOption {
	return func(r *ResearchService) {
		r.analysisService = s
	}
}

// ResearchWithSessionRepository sets the session repository
func ResearchWithSessionRepository(repo *repository.SessionRepository) ResearchServiceOption {
	return func(r *ResearchService) {
		r.sessionRepo = repo
	}
}

// ResearchWithAnalysisRepository sets the analysis repository
func ResearchWithAnalysisRepository(repo *repository.AnalysisRepository) ResearchServiceOption {
	return func(r *ResearchService) {
		r.analysisRepo = repo
	}
}

// ResearchWithJobRepository sets the research job repository
func ResearchWithJobRepository(repo *repository.ResearchJobRepository) ResearchServiceOption {
	return func(r *ResearchService) {
		r.jobRepo = repo
	}
}

// ResearchWithStorage sets the artifact store
func ResearchWithStorage(store storage.Storage) ResearchServiceOption {
	return func(r *ResearchService) {
		r.store = store
	}
}

// ResearchWithSoftResponseLimit sets the soft latency target. Queries over
// the limit log a warning but are never aborted.
func ResearchWithSoftResponseLimit(limit time.Duration) ResearchServiceOption {
	return func(r *ResearchService) {
		r.softLimit = limit
	}
}

// NewResearchService creates a new research service
func NewResearchService(opts ...ResearchServiceOption) *ResearchService {
	r := &ResearchService{
		softLimit: config.DefaultSoftResponseLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResearchRequest carries one user query plus its business context
type ResearchRequest struct {
	Query   string
	Context models.BusinessContext
}

// ResearchResult is the outcome of one research query. The per-jurisdiction
// results let callers tell "nothing found" apart from "search degraded".
type ResearchResult struct {
	Analysis *models.LegalAnalysis
	Federal  JurisdictionResult
	State    JurisdictionResult
	Local    JurisdictionResult
}

// DegradedJurisdictions lists jurisdictions whose search failed, in
// Federal, State, Local order.
func (r *ResearchResult) DegradedJurisdictions() []models.Jurisdiction {
	degraded := make([]models.Jurisdiction, 0, 3)
	for _, jr := range []JurisdictionResult{r.Federal, r.State, r.Local} {
		if jr.Degraded {
			degraded = append(degraded, jr.Jurisdiction)
		}
	}
	return degraded
}

// Run drives one query end to end. The three jurisdiction searches run
// concurrently and are joined before synthesis; a degraded search reduces
// coverage but never fails the query. A synthesis parse failure does fail
// it, and propagates as a *ParseError.
func (s *ResearchService) Run(ctx context.Context, req ResearchRequest) (*ResearchResult, error) {
	if s.searchService == nil {
		return nil, errors.New("search service not set")
	}
	if s.analysisService == nil {
		return nil, errors.New("analysis service not set")
	}
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()

	federal, state, local := s.gatherSources(ctx, req.Query, req.Context)

	analysis, err := s.analysisService.Synthesize(ctx, SynthesizeRequest{
		Context: req.Context,
		Federal: federal.Sources,
		State:   state.Sources,
		Local:   local.Sources,
	})
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			metrics.ParseFailures.Inc()
		}
		metrics.QueriesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.QueriesTotal.WithLabelValues("completed").Inc()
	metrics.QueryDuration.Observe(elapsed.Seconds())
	if s.softLimit > 0 && elapsed > s.softLimit {
		log.Printf("Warning: research query took %.1fs, above the %.0fs target",
			elapsed.Seconds(), s.softLimit.Seconds())
	}

	return &ResearchResult{
		Analysis: analysis,
		Federal:  federal,
		State:    state,
		Local:    local,
	}, nil
}

// gatherSources fans the three jurisdiction searches out concurrently and
// joins them. Each branch recovers its own failures, so a slow or failing
// jurisdiction never cancels the others; the join is a hard barrier.
func (s *ResearchService) gatherSources(ctx context.Context, query string, bctx models.BusinessContext) (federal, state, local JurisdictionResult) {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		federal = s.searchService.GetFederalLaws(egCtx, query)
		return nil
	})
	eg.Go(func() error {
		state = s.searchService.GetStateLaws(egCtx, query, bctx.State)
		return nil
	})
	eg.Go(func() error {
		local = s.searchService.GetLocalLaws(egCtx, query, bctx.City, bctx.State)
		return nil
	})

	if err := eg.Wait(); err != nil {
		log.Printf("Warning: source gathering: %v", err)
	}

	for _, jr := range []JurisdictionResult{federal, state, local} {
		outcome := "ok"
		if jr.Degraded {
			outcome = "degraded"
			log.Printf("Warning: %s search degraded: %v", jr.Jurisdiction, jr.Err)
		}
		metrics.SearchesTotal.WithLabelValues(string(jr.Jurisdiction), outcome).Inc()
	}

	return federal, state, local
}

// RunSessionQuery runs one query under a stored session's context and
// persists the resulting analysis to the session's history.
func (s *ResearchService) RunSessionQuery(ctx context.Context, sessionID uuid.UUID, query string) (*ResearchResult, error) {
	if s.sessionRepo == nil {
		return nil, errors.New("session repository not set")
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	result, err := s.Run(ctx, ResearchRequest{Query: query, Context: session.Context()})
	if err != nil {
		return nil, err
	}

	if s.analysisRepo != nil {
		doc := models.NewAnalysisDocument(query, *result.Analysis)
		if err := s.analysisRepo.Create(ctx, sessionID, doc); err != nil {
			log.Printf("Warning: failed to persist analysis for session %s: %v", sessionID, err)
		}
	}

	return result, nil
}

// StartContextSearchResult reports the job created for a context-defining
// search
type StartContextSearchResult struct {
	JobID uuid.UUID
}

// StartContextSearch creates a research job for a session's context-defining
// search and returns immediately. The caller runs ProcessContextSearch in
// the background and polls the job for progress.
func (s *ResearchService) StartContextSearch(ctx context.Context, sessionID uuid.UUID) (*StartContextSearchResult, error) {
	if s.sessionRepo == nil {
		return nil, errors.New("session repository not set")
	}
	if s.jobRepo == nil {
		return nil, errors.New("research job repository not set")
	}

	if _, err := s.sessionRepo.GetByID(ctx, sessionID); err != nil {
		return nil, ErrSessionNotFound
	}

	job := &models.ResearchJob{
		SessionID: sessionID,
		Status:    models.JobStatusPending,
		Steps:     models.NewResearchSteps(),
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, ErrJobCreationFailed
	}

	return &StartContextSearchResult{JobID: job.ID}, nil
}

// ProcessContextSearch performs the context-defining search in the
// background: it gathers sources for the default query, synthesizes the
// applicable-laws analysis, and writes the manifest and laws artifacts.
// Progress and failure are recorded on the research job.
func (s *ResearchService) ProcessContextSearch(ctx context.Context, jobID uuid.UUID) error {
	if s.jobRepo == nil {
		return errors.New("research job repository not set")
	}
	if s.sessionRepo == nil {
		return errors.New("session repository not set")
	}
	if s.store == nil {
		return errors.New("artifact store not set")
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load research job: %w", err)
	}

	session, err := s.sessionRepo.GetByID(ctx, job.SessionID)
	if err != nil {
		s.markJobFailed(ctx, jobID, "failed to load session: "+err.Error())
		return err
	}

	if err := s.jobRepo.UpdateStatus(ctx, jobID, models.JobStatusInProgress); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	// 1. Gather sources across jurisdictions
	if err := s.updateStepStatus(ctx, jobID, models.StepSearchingSources, "in_progress"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	bctx := session.Context()
	federal, state, local := s.gatherSources(ctx, DefaultContextQuery, bctx)

	if err := s.updateStepStatus(ctx, jobID, models.StepSearchingSources, "completed"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	// 2. Synthesize the applicable-laws analysis
	if err := s.updateStepStatus(ctx, jobID, models.StepSynthesizingAnalysis, "in_progress"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	analysis, err := s.analysisService.Synthesize(ctx, SynthesizeRequest{
		Context: bctx,
		Federal: federal.Sources,
		State:   state.Sources,
		Local:   local.Sources,
	})
	if err != nil {
		s.markJobFailed(ctx, jobID, fmt.Sprintf("failed to synthesize analysis: %v", err))
		return fmt.Errorf("failed to synthesize analysis: %w", err)
	}

	if err := s.updateStepStatus(ctx, jobID, models.StepSynthesizingAnalysis, "completed"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	// 3. Write the manifest and laws artifacts, then record their paths
	if err := s.updateStepStatus(ctx, jobID, models.StepSavingArtifacts, "in_progress"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	manifest := models.NewSourceManifest(federal.Sources, state.Sources, local.Sources)
	manifestData, err := json.MarshalIndent(manifest, "", "    ")
	if err != nil {
		s.markJobFailed(ctx, jobID, "failed to encode source manifest: "+err.Error())
		return err
	}
	manifestPath, err := s.store.Upload(ctx, session.ID, manifestFilename, bytes.NewReader(manifestData))
	if err != nil {
		s.markJobFailed(ctx, jobID, "failed to save source manifest: "+err.Error())
		return err
	}

	doc := models.NewAnalysisDocument(DefaultContextQuery, *analysis)
	lawsData, err := doc.Encode()
	if err != nil {
		s.markJobFailed(ctx, jobID, "failed to encode applicable laws: "+err.Error())
		return err
	}
	lawsPath, err := s.store.Upload(ctx, session.ID, lawsFilename, bytes.NewReader(lawsData))
	if err != nil {
		s.markJobFailed(ctx, jobID, "failed to save applicable laws: "+err.Error())
		return err
	}

	if err := s.sessionRepo.UpdateArtifactPaths(ctx, session.ID, manifestPath, lawsPath); err != nil {
		s.markJobFailed(ctx, jobID, "failed to record artifact paths: "+err.Error())
		return err
	}

	if err := s.updateStepStatus(ctx, jobID, models.StepSavingArtifacts, "completed"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	return s.jobRepo.Complete(ctx, jobID)
}

// GetJobStatusRequest identifies a research job
type GetJobStatusRequest struct {
	JobID uuid.UUID
}

// GetJobStatusResult carries a research job's current state
type GetJobStatusResult struct {
	Job *models.ResearchJob
}

// GetJobStatus retrieves the status of a research job
func (s *ResearchService) GetJobStatus(ctx context.Context, req GetJobStatusRequest) (*GetJobStatusResult, error) {
	if s.jobRepo == nil {
		return nil, errors.New("research job repository not set")
	}

	job, err := s.jobRepo.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, ErrJobNotFound
	}

	return &GetJobStatusResult{Job: job}, nil
}

// GetManifest loads a session's source manifest artifact.
func (s *ResearchService) GetManifest(ctx context.Context, sessionID uuid.UUID) (*models.SourceManifest, error) {
	data, err := s.readArtifact(ctx, sessionID, func(session *models.ResearchSession) *string {
		return session.ManifestPath
	})
	if err != nil {
		return nil, err
	}

	var manifest models.SourceManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decoding source manifest: %w", err)
	}
	return &manifest, nil
}

// GetApplicableLaws loads a session's applicable-laws artifact, decoded
// strictly.
func (s *ResearchService) GetApplicableLaws(ctx context.Context, sessionID uuid.UUID) (*models.AnalysisDocument, error) {
	data, err := s.readArtifact(ctx, sessionID, func(session *models.ResearchSession) *string {
		return session.LawsPath
	})
	if err != nil {
		return nil, err
	}
	return models.DecodeAnalysisDocument(data)
}

// readArtifact resolves one of a session's artifact paths and downloads it.
func (s *ResearchService) readArtifact(ctx context.Context, sessionID uuid.UUID, pathOf func(*models.ResearchSession) *string) ([]byte, error) {
	if s.sessionRepo == nil {
		return nil, errors.New("session repository not set")
	}
	if s.store == nil {
		return nil, errors.New("artifact store not set")
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	path := pathOf(session)
	if path == nil || *path == "" {
		return nil, ErrArtifactNotReady
	}

	reader, err := s.store.Download(ctx, *path)
	if err != nil {
		return nil, fmt.Errorf("downloading artifact %s: %w", *path, err)
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// updateStepStatus updates one step of a research job and, when the step
// moves to in_progress, the job's current step.
func (s *ResearchService) updateStepStatus(ctx context.Context, jobID uuid.UUID, stepName, status string) error {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	steps := job.Steps
	var currentStep string
	if job.CurrentStep != nil {
		currentStep = *job.CurrentStep
	}

	for i := range steps {
		if steps[i].Name == stepName {
			steps[i].Status = status
			if status == "in_progress" {
				currentStep = stepName
			}
			break
		}
	}

	return s.jobRepo.UpdateProgress(ctx, jobID, currentStep, steps)
}

// markJobFailed marks a job as failed with an error message
func (s *ResearchService) markJobFailed(ctx context.Context, jobID uuid.UUID, errorMessage string) {
	if err := s.jobRepo.Fail(ctx, jobID, errorMessage); err != nil {
		log.Printf("Warning: failed to mark job %s failed: %v", jobID, err)
	}
}
