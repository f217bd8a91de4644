// internal/server/handlers_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruiter-backend/internal/common/database"
	apperrors "recruiter-backend/internal/common/errors"
	"recruiter-backend/internal/common/logger"
	"recruiter-backend/internal/common/observability"
	"recruiter-backend/internal/models"
	"recruiter-backend/internal/ranking"
	"recruiter-backend/internal/ranking/cache"
	"recruiter-backend/internal/ranking/executor"
	"recruiter-backend/internal/ranking/orchestrator"
	"recruiter-backend/internal/scoring"
)

type fakeStore struct {
	snapshot  *models.JobSnapshot
	summaries []models.JobSummary
	err       error
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
	return f.summaries, f.err
}

func (f *fakeStore) ListResumeKeys(ctx context.Context, jobID string) ([]string, error) {
	return nil, f.err
}

func (f *fakeStore) OwnerEmail(ctx context.Context, jobID string) (string, error) {
	return "", nil
}

type fakeScorer struct {
	scores []models.CandidateScore
}

func (f *fakeScorer) Rank(ctx context.Context, req *scoring.Request) ([]models.CandidateScore, error) {
	return f.scores, nil
}

type fakeResolver struct{}

func (f *fakeResolver) SignedURL(ctx context.Context, key string) (string, error) {
	return "https://signed.example.com/" + key, nil
}

type serverEnv struct {
	handler http.Handler
	cache   *cache.ResultCache
}

func newServerEnv(t *testing.T, store *fakeStore, scorer *fakeScorer) *serverEnv {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rdb := &database.RedisClient{Client: client}
	resultCache := cache.New(rdb)
	log := logger.NewTestLogger(t)

	orch := orchestrator.New(store, scorer, resultCache, &fakeResolver{}, nil,
		observability.NewNoop(), 5*time.Second, log)

	exec := executor.New(2, 8, log)
	exec.Start()
	t.Cleanup(exec.Stop)

	service := ranking.NewService(store, orch, resultCache, &fakeResolver{}, exec,
		time.Second, log)

	srv := New(":0", service, nil, rdb, log)
	return &serverEnv{handler: srv.Handler(), cache: resultCache}
}

func testSnapshot() *models.JobSnapshot {
	return &models.JobSnapshot{
		ID:       "job-1",
		Title:    "Backend Engineer",
		Location: "Remote",
		JobType:  "full-time",
		Applications: []models.Application{
			{ID: "app-a", UserID: "u1", Resume: "cvs/alice.pdf"},
		},
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func awaitDone(t *testing.T, env *serverEnv, runID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, ok, err := env.cache.GetStatus(context.Background(), runID)
		require.NoError(t, err)
		if ok && status.State.Terminal() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run never finished")
}

func TestStartRankingEndpoint(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{
		scores: []models.CandidateScore{{Filename: "alice.pdf", Score: 85, Explanation: "good"}},
	})

	w := doJSON(t, env.handler, http.MethodPost, "/api/recruiter/jobs/job-1/rankings",
		map[string]string{"comment": "prefer react"})

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp ranking.StartResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	require.NotNil(t, resp.Job)
	assert.Equal(t, "Backend Engineer", resp.Job.Title)

	awaitDone(t, env, resp.RunID)
}

func TestStartRankingEndpoint_EmptyBody(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	w := doJSON(t, env.handler, http.MethodPost, "/api/recruiter/jobs/job-1/rankings", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})
	ctx := context.Background()

	require.NoError(t, env.cache.SetStatus(ctx, "run-1", models.RunStatus{
		State:    models.StateMapping,
		Progress: 70,
	}))

	w := doJSON(t, env.handler, http.MethodGet, "/api/recruiter/jobs/rankings/run-1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status models.RunStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.StateMapping, status.State)
	assert.Equal(t, 70, status.Progress)
}

func TestStatusEndpoint_UnknownRun(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	w := doJSON(t, env.handler, http.MethodGet, "/api/recruiter/jobs/rankings/nope/status", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RUN_NOT_FOUND", resp.Code)
}

func TestResultEndpoint_PendingReturns202(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})
	ctx := context.Background()

	require.NoError(t, env.cache.SetStatus(ctx, "run-1", models.RunStatus{
		State:    models.StateRanking,
		Progress: 40,
	}))

	w := doJSON(t, env.handler, http.MethodGet, "/api/recruiter/jobs/rankings/run-1/result", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var status models.RunStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.StateRanking, status.State)
}

func TestResultEndpoint_DoneReturnsSnapshot(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})
	ctx := context.Background()

	require.NoError(t, env.cache.SetResult(ctx, "run-1", testSnapshot()))
	require.NoError(t, env.cache.SetStatus(ctx, "run-1", models.RunStatus{
		State:    models.StateDone,
		Progress: 100,
	}))

	w := doJSON(t, env.handler, http.MethodGet, "/api/recruiter/jobs/rankings/run-1/result", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap models.JobSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "job-1", snap.ID)
}

// An id with no status record reads as pending on the result endpoint; only
// the status endpoint answers 404 for unknown runs.
func TestResultEndpoint_UnknownRunReadsAsPending(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	w := doJSON(t, env.handler, http.MethodGet, "/api/recruiter/jobs/rankings/nope/result", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var status models.RunStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.StatePending, status.State)
}

func TestRankedJobEndpoint(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{
		scores: []models.CandidateScore{{Filename: "alice.pdf", Score: 72, Explanation: "fit"}},
	})

	w := doJSON(t, env.handler, http.MethodPost, "/api/recruiter/jobs/job-1/ranked",
		map[string]string{"comment": "prefer react"})

	require.Equal(t, http.StatusOK, w.Code)

	var snap models.JobSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Applications, 1)
	require.NotNil(t, snap.Applications[0].Score)
	assert.Equal(t, 72.0, *snap.Applications[0].Score)
}

func TestRankedJobEndpoint_UnknownJob(t *testing.T) {
	env := newServerEnv(t, &fakeStore{err: jobNotFound()}, &fakeScorer{})

	w := doJSON(t, env.handler, http.MethodPost, "/api/recruiter/jobs/missing/ranked", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobsByUserEndpoint(t *testing.T) {
	env := newServerEnv(t, &fakeStore{
		snapshot: testSnapshot(),
		summaries: []models.JobSummary{
			{Job: models.Job{ID: "job-1", Title: "Backend Engineer"}, ApplicationCount: 4},
		},
	}, &fakeScorer{})

	w := doJSON(t, env.handler, http.MethodGet, "/api/recruiter/users/u1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var jobs []models.JobSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, 4, jobs[0].ApplicationCount)
}

// The user-jobs and job-CVs routes must register side by side and each
// resolve to its own handler.
func TestUserJobsAndJobCVsRoutesCoexist(t *testing.T) {
	env := newServerEnv(t, &fakeStore{
		snapshot: testSnapshot(),
		summaries: []models.JobSummary{
			{Job: models.Job{ID: "job-1", Title: "Backend Engineer"}, ApplicationCount: 1},
		},
	}, &fakeScorer{})

	w := doJSON(t, env.handler, http.MethodGet, "/api/recruiter/users/u1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []models.JobSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)

	w = doJSON(t, env.handler, http.MethodGet, "/api/recruiter/jobs/job-1/cvs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var links []ranking.ResumeLink
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	assert.Empty(t, links)
}

func TestHealthEndpoint(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	w := doJSON(t, env.handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newServerEnv(t, &fakeStore{snapshot: testSnapshot()}, &fakeScorer{})

	w := doJSON(t, env.handler, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func jobNotFound() error {
	return apperrors.NewJobNotFoundError("missing")
}
