// internal/ranking/service_test.go
package ranking

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruiter-backend/internal/common/database"
	"recruiter-backend/internal/common/errors"
	"recruiter-backend/internal/common/logger"
	"recruiter-backend/internal/common/observability"
	"recruiter-backend/internal/models"
	"recruiter-backend/internal/ranking/cache"
	"recruiter-backend/internal/ranking/executor"
	"recruiter-backend/internal/ranking/keys"
	"recruiter-backend/internal/ranking/orchestrator"
	"recruiter-backend/internal/scoring"
)

// ==========================
// Test Fakes
// ==========================

type fakeStore struct {
	snapshot   *models.JobSnapshot
	summaries  []models.JobSummary
	resumeKeys []string
	err        error
}

func (f *fakeStore) FetchJobWithApplications(ctx context.Context, jobID string) (*models.JobSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	snap := *f.snapshot
	snap.Applications = append([]models.Application(nil), f.snapshot.Applications...)
	return &snap, nil
}

func (f *fakeStore) ListJobsByUser(ctx context.Context, userID string) ([]models.JobSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summaries, nil
}

func (f *fakeStore) ListResumeKeys(ctx context.Context, jobID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resumeKeys, nil
}

func (f *fakeStore) OwnerEmail(ctx context.Context, jobID string) (string, error) {
	return "owner@example.com", nil
}

type fakeScorer struct {
	scores []models.CandidateScore
	delay  time.Duration
	calls  int64
}

func (f *fakeScorer) Rank(ctx context.Context, req *scoring.Request) ([]models.CandidateScore, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.scores, nil
}

func (f *fakeScorer) callCount() int64 {
	return atomic.LoadInt64(&f.calls)
}

type fakeResolver struct {
	failKeys map[string]bool
}

func (f *fakeResolver) SignedURL(ctx context.Context, key string) (string, error) {
	if f.failKeys[key] {
		return "", fmt.Errorf("presign failed")
	}
	return "https://signed.example.com/" + key, nil
}

// ==========================
// Test Helpers
// ==========================

type testEnv struct {
	service *Service
	cache   *cache.ResultCache
	store   *fakeStore
	scorer  *fakeScorer
}

func newTestEnv(t *testing.T, store *fakeStore, scorer *fakeScorer) *testEnv {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	resultCache := cache.New(&database.RedisClient{Client: client})
	resolver := &fakeResolver{}
	log := logger.NewTestLogger(t)

	orch := orchestrator.New(store, scorer, resultCache, resolver, nil,
		observability.NewNoop(), 5*time.Second, log)

	exec := executor.New(2, 8, log)
	exec.Start()
	t.Cleanup(exec.Stop)

	service := NewService(store, orch, resultCache, resolver, exec, time.Second, log)
	return &testEnv{service: service, cache: resultCache, store: store, scorer: scorer}
}

func testSnapshot() *models.JobSnapshot {
	return &models.JobSnapshot{
		ID:          "job-1",
		Title:       "Backend Engineer",
		Location:    "Remote",
		JobType:     "full-time",
		Description: "Build things.",
		Applications: []models.Application{
			{ID: "app-a", UserID: "u1", Resume: "cvs/alice.pdf"},
			{ID: "app-b", UserID: "u2", Resume: "cvs/bob.pdf"},
		},
	}
}

func awaitTerminal(t *testing.T, env *testEnv, runID string) models.RunStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, ok, err := env.cache.GetStatus(context.Background(), runID)
		require.NoError(t, err)
		if ok && status.State.Terminal() {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run never reached a terminal state")
	return models.RunStatus{}
}

// ==========================
// StartRun Tests
// ==========================

func TestStartRun_ReturnsBeforeScoringFinishes(t *testing.T) {
	store := &fakeStore{snapshot: testSnapshot()}
	scorer := &fakeScorer{
		delay:  300 * time.Millisecond,
		scores: []models.CandidateScore{{Filename: "alice.pdf", Score: 90, Explanation: "ok"}},
	}
	env := newTestEnv(t, store, scorer)

	started := time.Now()
	result, err := env.service.StartRun(context.Background(), &StartRequest{
		JobID:   "job-1",
		Comment: "prefer react",
	})
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	require.NotNil(t, result.Job)
	assert.Equal(t, "Backend Engineer", result.Job.Title)
	assert.Less(t, elapsed, scorer.delay, "StartRun must not wait on the scorer")

	status := awaitTerminal(t, env, result.RunID)
	assert.Equal(t, models.StateDone, status.State)

	// With done observed, the result must already be readable.
	res, ok, err := env.cache.GetResult(context.Background(), result.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, res.Applications, 2)
}

func TestStartRun_ValidatesJobID(t *testing.T) {
	env := newTestEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	_, err := env.service.StartRun(context.Background(), &StartRequest{JobID: ""})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestStartRun_PreviewFailureDoesNotFailStart(t *testing.T) {
	store := &fakeStore{err: errors.NewAggregationFailedError(fmt.Errorf("db down"))}
	env := newTestEnv(t, store, &fakeScorer{})

	result, err := env.service.StartRun(context.Background(), &StartRequest{JobID: "job-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Nil(t, result.Job)

	// The run itself fails in the aggregating stage.
	status := awaitTerminal(t, env, result.RunID)
	assert.Equal(t, models.StateError, status.State)
}

// The acknowledgement preview is resolved to signed URLs like a finished
// run, but carries no scores.
func TestStartRun_PreviewIsResolvedButUnscored(t *testing.T) {
	env := newTestEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	result, err := env.service.StartRun(context.Background(), &StartRequest{JobID: "job-1"})
	require.NoError(t, err)
	require.NotNil(t, result.Job)
	require.Len(t, result.Job.Applications, 2)

	for _, app := range result.Job.Applications {
		assert.Contains(t, app.Resume, "https://signed.example.com/")
		assert.Nil(t, app.Score)
	}
	awaitTerminal(t, env, result.RunID)
}

func TestStartRun_RepeatedStartsGetDistinctRuns(t *testing.T) {
	env := newTestEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	a, err := env.service.StartRun(context.Background(), &StartRequest{JobID: "job-1", Comment: "x"})
	require.NoError(t, err)
	b, err := env.service.StartRun(context.Background(), &StartRequest{JobID: "job-1", Comment: "x"})
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	awaitTerminal(t, env, a.RunID)
	awaitTerminal(t, env, b.RunID)
}

// ==========================
// Read API Tests
// ==========================

func TestGetStatus_UnknownRun(t *testing.T) {
	env := newTestEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	_, err := env.service.GetStatus(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunNotFound, errors.CodeOf(err))
}

func TestGetResult_AbsentResultReadsAsPending(t *testing.T) {
	env := newTestEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})
	ctx := context.Background()

	// An id with no status record at all still reads as pending, not as
	// not found.
	result, status, err := env.service.GetResult(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.StatePending, status.State)

	// A run with a status but no result yet reports its live status.
	require.NoError(t, env.cache.SetStatus(ctx, "run-1", models.RunStatus{
		State:    models.StateRanking,
		Progress: 40,
	}))
	result, status, err = env.service.GetResult(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.StateRanking, status.State)
	assert.Equal(t, 40, status.Progress)
}

func TestGetResult_AfterCompletion(t *testing.T) {
	store := &fakeStore{snapshot: testSnapshot()}
	scorer := &fakeScorer{scores: []models.CandidateScore{
		{Filename: "bob.pdf", Score: 70, Explanation: "z"},
	}}
	env := newTestEnv(t, store, scorer)

	started, err := env.service.StartRun(context.Background(), &StartRequest{JobID: "job-1"})
	require.NoError(t, err)
	awaitTerminal(t, env, started.RunID)

	result, status, err := env.service.GetResult(context.Background(), started.RunID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.StateDone, status.State)
	assert.Equal(t, "app-b", result.Applications[0].ID)
}

// ==========================
// Synchronous Read Tests
// ==========================

func TestGetRankedJob_CacheHitSkipsScorer(t *testing.T) {
	store := &fakeStore{snapshot: testSnapshot()}
	scorer := &fakeScorer{}
	env := newTestEnv(t, store, scorer)
	ctx := context.Background()

	fp, err := keys.Fingerprint("prefer react", nil)
	require.NoError(t, err)
	cached := testSnapshot()
	require.NoError(t, env.cache.SetStable(ctx, "job-1", fp, cached))

	got, err := env.service.GetRankedJob(ctx, "job-1", "prefer react", nil)
	require.NoError(t, err)
	assert.Equal(t, cached.ID, got.ID)
	assert.Equal(t, int64(0), scorer.callCount())
}

func TestGetRankedJob_MissRunsInlineAndMemoizes(t *testing.T) {
	store := &fakeStore{snapshot: testSnapshot()}
	scorer := &fakeScorer{scores: []models.CandidateScore{
		{Filename: "alice.pdf", Score: 88, Explanation: "good"},
	}}
	env := newTestEnv(t, store, scorer)
	ctx := context.Background()

	got, err := env.service.GetRankedJob(ctx, "job-1", "prefer react", nil)
	require.NoError(t, err)
	require.NotNil(t, got.Applications[0].Score)
	assert.Equal(t, 88.0, *got.Applications[0].Score)
	assert.Equal(t, int64(1), scorer.callCount())

	// Second identical read is served from the stable key.
	_, err = env.service.GetRankedJob(ctx, "job-1", "prefer react", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), scorer.callCount())
}

func TestGetRankedJob_RequiresJobID(t *testing.T) {
	env := newTestEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	_, err := env.service.GetRankedJob(context.Background(), "", "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

// ==========================
// Listing Tests
// ==========================

func TestListJobsByUser(t *testing.T) {
	store := &fakeStore{summaries: []models.JobSummary{
		{Job: models.Job{ID: "job-2", Title: "Newer"}, ApplicationCount: 3},
		{Job: models.Job{ID: "job-1", Title: "Older"}, ApplicationCount: 7},
	}}
	env := newTestEnv(t, store, &fakeScorer{})

	jobs, err := env.service.ListJobsByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, 7, jobs[1].ApplicationCount)
}

func TestListCVs_SkipsUnresolvableResumes(t *testing.T) {
	store := &fakeStore{resumeKeys: []string{"cvs/alice.pdf", "cvs/bob.pdf", ""}}
	env := newTestEnv(t, store, &fakeScorer{})

	// Swap in a resolver that fails for bob.
	env.service.resolver = &fakeResolver{failKeys: map[string]bool{"cvs/bob.pdf": true}}

	links, err := env.service.ListCVs(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "alice.pdf", links[0].Filename)
	assert.Contains(t, links[0].URL, "https://signed.example.com/")
}
