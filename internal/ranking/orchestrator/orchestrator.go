// internal/ranking/orchestrator/orchestrator.go

// Package orchestrator drives a ranking run through its stages: aggregate the
// job with its applications, score the resumes, map scores back onto
// applications, and publish the merged snapshot. Status is written to the
// cache at every transition so pollers observe forward-only progress, and the
// result is durable under both its keys before the run reports done.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"recruiter-backend/internal/aggregation"
	"recruiter-backend/internal/common/errors"
	"recruiter-backend/internal/common/logger"
	"recruiter-backend/internal/common/metrics"
	"recruiter-backend/internal/common/observability"
	"recruiter-backend/internal/common/storage"
	"recruiter-backend/internal/models"
	"recruiter-backend/internal/ranking/cache"
	"recruiter-backend/internal/ranking/keys"
	"recruiter-backend/internal/scoring"
)

// Scorer ranks a job's resumes. Satisfied by *scoring.Client.
type Scorer interface {
	Rank(ctx context.Context, req *scoring.Request) ([]models.CandidateScore, error)
}

// Notifier is told when a run reaches a terminal state. Implementations must
// not fail the run; errors are theirs to swallow.
type Notifier interface {
	RunFinished(ctx context.Context, jobID, runID string, state models.RunState)
}

// Input carries everything a run needs. Feedback is the structured form sent
// to the scorer; Comment is the raw recruiter note included in the prompt.
type Input struct {
	RunID       string
	JobID       string
	Fingerprint string
	Comment     string
	Feedback    *models.StructuredFeedback
}

type Orchestrator struct {
	store        aggregation.Store
	scorer       Scorer
	cache        *cache.ResultCache
	resolver     storage.Resolver
	notifier     Notifier
	obs          *observability.Observability
	logger       logger.Logger
	stageTimeout time.Duration
}

func New(
	store aggregation.Store,
	scorer Scorer,
	resultCache *cache.ResultCache,
	resolver storage.Resolver,
	notifier Notifier,
	obs *observability.Observability,
	stageTimeout time.Duration,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:        store,
		scorer:       scorer,
		cache:        resultCache,
		resolver:     resolver,
		notifier:     notifier,
		obs:          obs,
		logger:       log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		stageTimeout: stageTimeout,
	}
}

// Run executes one ranking run to a terminal state. It never returns an
// error: every failure, including a panic in a stage, lands in the error
// status record for pollers to find.
func (o *Orchestrator) Run(ctx context.Context, input *Input) {
	log := o.logger.WithFields(map[string]interface{}{
		"jobId": input.JobID,
		"runId": input.RunID,
	})
	started := time.Now()
	stage := models.StateInitializing

	defer func() {
		if r := recover(); r != nil {
			log.Error("ranking run panicked", map[string]interface{}{
				"stage": string(stage),
				"panic": fmt.Sprintf("%v", r),
			})
			o.fail(ctx, input, stage, fmt.Errorf("panic: %v", r), started)
		}
	}()

	ctx, span := o.obs.StartSpan(ctx, "ranking.run",
		attribute.String("job.id", input.JobID),
		attribute.String("run.id", input.RunID),
	)
	defer span.End()

	if err := o.cache.SetStatus(ctx, input.RunID, models.RunStatus{
		State:    models.StateInitializing,
		Progress: 0,
	}); err != nil {
		log.WithError(err).Error("failed to write initial status", nil)
		return
	}

	stage = models.StateAggregating
	o.setStatus(ctx, input.RunID, models.StateAggregating, 10, log)

	snapshot, err := o.aggregate(ctx, input.JobID)
	if err != nil {
		o.fail(ctx, input, stage, err, started)
		log.WithError(err).Error("aggregation stage failed", nil)
		return
	}

	stage = models.StateRanking
	o.setStatus(ctx, input.RunID, models.StateRanking, 40, log)

	scores, err := o.rank(ctx, input, snapshot)
	if err != nil {
		o.fail(ctx, input, stage, err, started)
		log.WithError(err).Error("ranking stage failed", nil)
		return
	}

	stage = models.StateMapping
	o.setStatus(ctx, input.RunID, models.StateMapping, 70, log)

	ResolveSnapshotURLs(ctx, o.resolver, snapshot, log)
	mergeScores(snapshot, scores)
	sortApplications(snapshot)

	// Both result keys are written before the done status so a poller that
	// sees done can always read the result.
	if err := o.cache.SetStable(ctx, input.JobID, input.Fingerprint, snapshot); err != nil {
		o.fail(ctx, input, stage, err, started)
		log.WithError(err).Error("failed to write stable result", nil)
		return
	}
	if err := o.cache.SetResult(ctx, input.RunID, snapshot); err != nil {
		o.fail(ctx, input, stage, err, started)
		log.WithError(err).Error("failed to write run result", nil)
		return
	}
	if err := o.cache.SetStatus(ctx, input.RunID, models.RunStatus{
		State:    models.StateDone,
		Progress: 100,
	}); err != nil {
		log.WithError(err).Error("failed to write done status", nil)
		return
	}

	metrics.RankingRunsCompleted.Inc()
	metrics.RankingRunDuration.Observe(time.Since(started).Seconds())
	o.obs.RecordRunProcessed(ctx, "done")
	o.obs.RecordRunDuration(ctx, time.Since(started), "done")
	if o.notifier != nil {
		o.notifier.RunFinished(ctx, input.JobID, input.RunID, models.StateDone)
	}

	log.Info("ranking run completed", map[string]interface{}{
		"applications": len(snapshot.Applications),
		"scored":       len(scores),
		"durationMs":   time.Since(started).Milliseconds(),
	})
}

// RunSync executes the pipeline inline for the synchronous read path. It
// skips status tracking but writes the stable key with the same semantics as
// a background run, so the two paths memoize interchangeably.
func (o *Orchestrator) RunSync(ctx context.Context, input *Input) (*models.JobSnapshot, error) {
	ctx, span := o.obs.StartSpan(ctx, "ranking.run_sync",
		attribute.String("job.id", input.JobID),
	)
	defer span.End()

	snapshot, err := o.aggregate(ctx, input.JobID)
	if err != nil {
		return nil, err
	}
	scores, err := o.rank(ctx, input, snapshot)
	if err != nil {
		return nil, err
	}
	ResolveSnapshotURLs(ctx, o.resolver, snapshot, o.logger)
	mergeScores(snapshot, scores)
	sortApplications(snapshot)

	if err := o.cache.SetStable(ctx, input.JobID, input.Fingerprint, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (o *Orchestrator) aggregate(ctx context.Context, jobID string) (*models.JobSnapshot, error) {
	ctx, span := o.obs.StartSpan(ctx, "ranking.aggregate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	return o.store.FetchJobWithApplications(ctx, jobID)
}

func (o *Orchestrator) rank(ctx context.Context, input *Input, snapshot *models.JobSnapshot) ([]models.CandidateScore, error) {
	ctx, span := o.obs.StartSpan(ctx, "ranking.score")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	return o.scorer.Rank(ctx, &scoring.Request{
		JobID:          input.JobID,
		JobDescription: scoring.BuildJobPrompt(snapshot, input.Comment),
		HumanFeedback:  input.Feedback,
	})
}

// ResolveSnapshotURLs swaps storage keys for signed URLs in place. Failures
// are isolated per item: a reference that cannot be resolved is emptied and
// the rest of the snapshot is untouched. The start-run preview uses the same
// resolution a run does.
func ResolveSnapshotURLs(ctx context.Context, resolver storage.Resolver, snapshot *models.JobSnapshot, log logger.Logger) {
	if snapshot.Banner != "" {
		url, err := resolver.SignedURL(ctx, snapshot.Banner)
		if err != nil {
			log.WithError(err).Warn("failed to sign banner URL", nil)
			snapshot.Banner = ""
		} else {
			snapshot.Banner = url
		}
	}

	for i := range snapshot.Applications {
		app := &snapshot.Applications[i]
		if app.Resume != "" {
			url, err := resolver.SignedURL(ctx, app.Resume)
			if err != nil {
				log.WithError(err).Warn("failed to sign resume URL", map[string]interface{}{
					"applicationId": app.ID,
				})
				app.Resume = ""
			} else {
				app.Resume = url
			}
		}
		if app.ProfileImage != "" {
			url, err := resolver.SignedURL(ctx, app.ProfileImage)
			if err != nil {
				log.WithError(err).Warn("failed to sign profile image URL", map[string]interface{}{
					"applicationId": app.ID,
				})
				app.ProfileImage = ""
			} else {
				app.ProfileImage = url
			}
		}
	}
}

// mergeScores attaches scorer output to applications by resume filename.
// Applications the scorer did not mention stay unscored.
func mergeScores(snapshot *models.JobSnapshot, scores []models.CandidateScore) {
	byFile := make(map[string]models.CandidateScore, len(scores))
	for _, s := range scores {
		byFile[keys.BaseFilename(s.Filename)] = s
	}
	for i := range snapshot.Applications {
		app := &snapshot.Applications[i]
		s, ok := byFile[keys.BaseFilename(app.Resume)]
		if !ok {
			continue
		}
		score := s.Score
		entry := s
		app.Score = &score
		app.Explanation = &entry
	}
}

// sortApplications orders by score descending, treating unscored as zero.
// The stable sort keeps insertion order among ties.
func sortApplications(snapshot *models.JobSnapshot) {
	apps := snapshot.Applications
	sort.SliceStable(apps, func(i, j int) bool {
		return scoreOf(apps[i]) > scoreOf(apps[j])
	})
}

func scoreOf(app models.Application) float64 {
	if app.Score == nil {
		return 0
	}
	return *app.Score
}

func (o *Orchestrator) setStatus(ctx context.Context, runID string, state models.RunState, progress int, log logger.Logger) {
	if err := o.cache.SetStatus(ctx, runID, models.RunStatus{
		State:    state,
		Progress: progress,
	}); err != nil {
		// A missed intermediate update is tolerable; the next write catches
		// pollers up.
		log.WithError(err).Warn("failed to write status", map[string]interface{}{
			"state": string(state),
		})
	}
}

func (o *Orchestrator) fail(ctx context.Context, input *Input, stage models.RunState, err error, started time.Time) {
	msg := err.Error()
	if se, ok := err.(*errors.StandardError); ok {
		msg = se.Message
	}
	if err := o.cache.SetStatus(ctx, input.RunID, models.RunStatus{
		State:    models.StateError,
		Progress: 100,
		Message:  msg,
	}); err != nil {
		o.logger.WithError(err).Error("failed to write error status", map[string]interface{}{
			"runId": input.RunID,
		})
	}

	metrics.RankingRunsFailed.WithLabelValues(string(stage)).Inc()
	metrics.RankingRunDuration.Observe(time.Since(started).Seconds())
	o.obs.RecordRunProcessed(ctx, "error")
	o.obs.RecordRunDuration(ctx, time.Since(started), "error")
	if o.notifier != nil {
		o.notifier.RunFinished(ctx, input.JobID, input.RunID, models.StateError)
	}
}
