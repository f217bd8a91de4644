// internal/aggregation/store.go

// Package aggregation is the read-side collaborator that assembles a job
// with its applications and applicant profiles. The ranking pipeline treats
// it as a pure read dependency.
package aggregation

import (
	"context"

	"recruiter-backend/internal/models"
)

// Store fetches aggregated job data.
type Store interface {
	// FetchJobWithApplications returns the job snapshot with applications in
	// insertion order, or a JOB_NOT_FOUND error for an unknown id.
	FetchJobWithApplications(ctx context.Context, jobID string) (*models.JobSnapshot, error)

	// ListJobsByUser returns the user's jobs newest-first, each with its
	// application count.
	ListJobsByUser(ctx context.Context, userID string) ([]models.JobSummary, error)

	// ListResumeKeys returns the stored resume keys for a job's applications.
	ListResumeKeys(ctx context.Context, jobID string) ([]string, error)

	// OwnerEmail returns the email address of the job's owner, or "" when
	// the owner has no email on file.
	OwnerEmail(ctx context.Context, jobID string) (string, error)
}
