// internal/ranking/service.go

// Package ranking is the entry point for ranking runs: it derives run
// identity, hands execution to the background pool, and answers the read
// API. Starting a run never waits on the scoring service.
package ranking

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"recruiter-backend/internal/aggregation"
	"recruiter-backend/internal/common/errors"
	"recruiter-backend/internal/common/logger"
	"recruiter-backend/internal/common/metrics"
	"recruiter-backend/internal/common/storage"
	"recruiter-backend/internal/models"
	"recruiter-backend/internal/ranking/cache"
	"recruiter-backend/internal/ranking/executor"
	"recruiter-backend/internal/ranking/feedback"
	"recruiter-backend/internal/ranking/keys"
	"recruiter-backend/internal/ranking/orchestrator"
)

// StartRequest is the start-run input. Exactly one feedback form is used:
// Feedback when present, otherwise Comment is interpreted.
type StartRequest struct {
	JobID    string `validate:"required"`
	Comment  string `validate:"max=4000"`
	Feedback *models.StructuredFeedback
}

// StartResult acknowledges a submitted run. Job is a best-effort preview of
// the unranked snapshot and may be nil when the preview fetch fails; the run
// itself is unaffected.
type StartResult struct {
	RunID string              `json:"rankingJobId"`
	Job   *models.JobSnapshot `json:"job,omitempty"`
}

// ResumeLink is one application resume resolved to a signed URL.
type ResumeLink struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type Service struct {
	store          aggregation.Store
	orch           *orchestrator.Orchestrator
	cache          *cache.ResultCache
	resolver       storage.Resolver
	exec           *executor.Executor
	validate       *validator.Validate
	logger         logger.Logger
	previewTimeout time.Duration
}

func NewService(
	store aggregation.Store,
	orch *orchestrator.Orchestrator,
	resultCache *cache.ResultCache,
	resolver storage.Resolver,
	exec *executor.Executor,
	previewTimeout time.Duration,
	log logger.Logger,
) *Service {
	return &Service{
		store:          store,
		orch:           orch,
		cache:          resultCache,
		resolver:       resolver,
		exec:           exec,
		validate:       validator.New(),
		logger:         log.WithFields(map[string]interface{}{"component": "ranking-service"}),
		previewTimeout: previewTimeout,
	}
}

// StartRun validates the request, submits the run for background execution,
// and returns the run id with a preview snapshot. It returns before any
// scoring work happens; progress is observable through GetStatus.
func (s *Service) StartRun(ctx context.Context, req *StartRequest) (*StartResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	fb := req.Feedback
	if fb == nil && req.Comment != "" {
		fb = feedback.Interpret(req.Comment)
	}
	fingerprint, err := keys.Fingerprint(req.Comment, fb)
	if err != nil {
		return nil, err
	}
	runID := keys.NewRunID(req.JobID, fingerprint)

	input := &orchestrator.Input{
		RunID:       runID,
		JobID:       req.JobID,
		Fingerprint: fingerprint,
		Comment:     req.Comment,
		Feedback:    fb,
	}
	metrics.RankingRunsStarted.Inc()
	s.exec.Submit(func(runCtx context.Context) {
		s.orch.Run(runCtx, input)
	})

	s.logger.Info("ranking run submitted", map[string]interface{}{
		"jobId": req.JobID,
		"runId": runID,
	})

	return &StartResult{
		RunID: runID,
		Job:   s.preview(ctx, req.JobID),
	}, nil
}

// preview fetches the unranked snapshot for the acknowledgement payload,
// resolved to signed URLs like a finished run but carrying no scores. Any
// failure degrades to a nil preview.
func (s *Service) preview(ctx context.Context, jobID string) *models.JobSnapshot {
	ctx, cancel := context.WithTimeout(ctx, s.previewTimeout)
	defer cancel()

	snapshot, err := s.store.FetchJobWithApplications(ctx, jobID)
	if err != nil {
		s.logger.WithError(err).Warn("preview fetch failed", map[string]interface{}{
			"jobId": jobID,
		})
		return nil
	}
	orchestrator.ResolveSnapshotURLs(ctx, s.resolver, snapshot, s.logger)
	return snapshot
}

// GetStatus returns the status record for a run, or RUN_NOT_FOUND.
func (s *Service) GetStatus(ctx context.Context, runID string) (models.RunStatus, error) {
	status, ok, err := s.cache.GetStatus(ctx, runID)
	if err != nil {
		return models.RunStatus{}, err
	}
	if !ok {
		return models.RunStatus{}, errors.NewRunNotFoundError(runID)
	}
	return status, nil
}

// GetResult returns the run result once available. While the run is still in
// flight it returns a nil snapshot together with the current status. An id
// with no status record at all reads as pending rather than not found: the
// run may not have written its first status yet. Only the status read
// distinguishes unknown runs.
func (s *Service) GetResult(ctx context.Context, runID string) (*models.JobSnapshot, models.RunStatus, error) {
	result, ok, err := s.cache.GetResult(ctx, runID)
	if err != nil {
		return nil, models.RunStatus{}, err
	}
	if ok {
		return result, models.RunStatus{State: models.StateDone, Progress: 100}, nil
	}

	status, ok, err := s.cache.GetStatus(ctx, runID)
	if err != nil {
		return nil, models.RunStatus{}, err
	}
	if !ok {
		return nil, models.RunStatus{State: models.StatePending}, nil
	}
	return nil, status, nil
}

// GetRankedJob is the synchronous read: a stable-key hit returns the
// memoized snapshot immediately, a miss runs the pipeline inline and
// populates the same key a background run would.
func (s *Service) GetRankedJob(ctx context.Context, jobID, comment string, fb *models.StructuredFeedback) (*models.JobSnapshot, error) {
	if jobID == "" {
		return nil, errors.NewInvalidInputError("jobID is required")
	}

	if fb == nil && comment != "" {
		fb = feedback.Interpret(comment)
	}
	fingerprint, err := keys.Fingerprint(comment, fb)
	if err != nil {
		return nil, err
	}

	cached, ok, err := s.cache.GetStable(ctx, jobID, fingerprint)
	if err != nil {
		return nil, err
	}
	if ok {
		metrics.CacheHits.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.CacheHits.WithLabelValues("miss").Inc()

	return s.orch.RunSync(ctx, &orchestrator.Input{
		JobID:       jobID,
		Fingerprint: fingerprint,
		Comment:     comment,
		Feedback:    fb,
	})
}

// ListJobsByUser returns the user's postings newest-first with application
// counts.
func (s *Service) ListJobsByUser(ctx context.Context, userID string) ([]models.JobSummary, error) {
	if userID == "" {
		return nil, errors.NewInvalidInputError("userID is required")
	}
	return s.store.ListJobsByUser(ctx, userID)
}

// ListCVs returns signed URLs for the resumes submitted to a job. A resume
// that cannot be signed is skipped.
func (s *Service) ListCVs(ctx context.Context, jobID string) ([]ResumeLink, error) {
	if jobID == "" {
		return nil, errors.NewInvalidInputError("jobID is required")
	}
	resumeKeys, err := s.store.ListResumeKeys(ctx, jobID)
	if err != nil {
		return nil, err
	}

	links := make([]ResumeLink, 0, len(resumeKeys))
	for _, key := range resumeKeys {
		if key == "" {
			continue
		}
		url, err := s.resolver.SignedURL(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warn("failed to sign resume URL", map[string]interface{}{
				"jobId": jobID,
			})
			continue
		}
		links = append(links, ResumeLink{Filename: keys.BaseFilename(key), URL: url})
	}
	return links, nil
}
