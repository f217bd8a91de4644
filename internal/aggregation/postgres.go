// internal/aggregation/postgres.go
package aggregation

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/lib/pq"

	"recruiter-backend/internal/common/database"
	"recruiter-backend/internal/common/errors"
	"recruiter-backend/internal/common/logger"
	"recruiter-backend/internal/models"
)

// PostgresStore implements Store against the jobs/applications/profiles
// tables.
type PostgresStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewPostgresStore(db *database.PostgresClient, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "aggregation"}),
	}
}

func (s *PostgresStore) FetchJobWithApplications(ctx context.Context, jobID string) (*models.JobSnapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, location, job_type, created_at, banner, requirements, description, deadline
		FROM jobs WHERE id = $1`, jobID)

	var snap models.JobSnapshot
	var requirements pq.StringArray
	err := row.Scan(&snap.ID, &snap.Title, &snap.Location, &snap.JobType,
		&snap.CreatedAt, &snap.Banner, &requirements, &snap.Description, &snap.Deadline)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewJobNotFoundError(jobID)
		}
		return nil, errors.NewAggregationFailedError(err)
	}
	snap.Requirements = requirements

	// Insertion order matters downstream: the mapping stage's stable sort
	// breaks score ties by this order.
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.user_id, a.resume, a.created_at,
		       COALESCE(p.profile_image, ''), COALESCE(p.email, ''),
		       COALESCE(p.full_name, ''), COALESCE(p.headline, ''), COALESCE(p.about, '')
		FROM applications a
		LEFT JOIN profiles p ON p.user_id = a.user_id
		WHERE a.job_id = $1
		ORDER BY a.created_at, a.id`, jobID)
	if err != nil {
		return nil, errors.NewAggregationFailedError(err)
	}
	defer rows.Close()

	snap.Applications = []models.Application{}
	for rows.Next() {
		var app models.Application
		if err := rows.Scan(&app.ID, &app.UserID, &app.Resume, &app.AppliedAt,
			&app.ProfileImage, &app.Email, &app.FullName, &app.Headline, &app.About); err != nil {
			return nil, errors.NewAggregationFailedError(err)
		}
		snap.Applications = append(snap.Applications, app)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAggregationFailedError(err)
	}

	return &snap, nil
}

func (s *PostgresStore) ListJobsByUser(ctx context.Context, userID string) ([]models.JobSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT j.id, j.user_id, j.title, j.location, j.job_type, j.banner,
		       j.description, j.requirements, j.deadline, j.created_at,
		       COUNT(a.id) AS application_count
		FROM jobs j
		LEFT JOIN applications a ON a.job_id = j.id
		WHERE j.user_id = $1
		GROUP BY j.id
		ORDER BY j.created_at DESC`, userID)
	if err != nil {
		return nil, errors.NewAggregationFailedError(err)
	}
	defer rows.Close()

	jobs := []models.JobSummary{}
	for rows.Next() {
		var job models.JobSummary
		var requirements pq.StringArray
		if err := rows.Scan(&job.ID, &job.UserID, &job.Title, &job.Location,
			&job.JobType, &job.Banner, &job.Description, &requirements,
			&job.Deadline, &job.CreatedAt, &job.ApplicationCount); err != nil {
			return nil, errors.NewAggregationFailedError(err)
		}
		job.Requirements = requirements
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAggregationFailedError(err)
	}

	return jobs, nil
}

func (s *PostgresStore) ListResumeKeys(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT resume FROM applications
		WHERE job_id = $1
		ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, errors.NewAggregationFailedError(err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.NewAggregationFailedError(err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAggregationFailedError(err)
	}

	return keys, nil
}

func (s *PostgresStore) OwnerEmail(ctx context.Context, jobID string) (string, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(p.email, '')
		FROM jobs j
		LEFT JOIN profiles p ON p.user_id = j.user_id
		WHERE j.id = $1`, jobID)

	var email string
	if err := row.Scan(&email); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", errors.NewJobNotFoundError(jobID)
		}
		return "", errors.NewAggregationFailedError(err)
	}
	return email, nil
}
