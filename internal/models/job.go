// internal/models/job.go
package models

import "time"

// Job is a recruiter-posted position as stored in the jobs table.
type Job struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	Location     string    `json:"location"`
	JobType      string    `json:"jobType"`
	Banner       string    `json:"banner"`
	Description  string    `json:"description"`
	Requirements []string  `json:"requirements"`
	Deadline     time.Time `json:"deadline"`
	CreatedAt    time.Time `json:"createdAt"`
}

// JobSummary is the per-job row returned by the jobs-by-user listing,
// carrying an application count instead of the full application list.
type JobSummary struct {
	Job
	ApplicationCount int `json:"applicationCount"`
}

// Application is one candidate application joined with the applicant profile.
// Resume and ProfileImage start as storage keys and are replaced with signed
// URLs during snapshot resolution; a failed resolution leaves them empty.
type Application struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Resume       string    `json:"resume,omitempty"`
	AppliedAt    time.Time `json:"appliedAt"`
	ProfileImage string    `json:"profileImage,omitempty"`
	Email        string    `json:"email,omitempty"`
	FullName     string    `json:"fullName,omitempty"`
	Headline     string    `json:"headline,omitempty"`
	About        string    `json:"about,omitempty"`

	// Populated by the mapping stage for applications the scorer matched.
	// Explanation carries the scorer's full entry for the candidate.
	Score       *float64        `json:"score,omitempty"`
	Explanation *CandidateScore `json:"explanation,omitempty"`
}

// JobSnapshot is the aggregated view of a job with its applications, in
// insertion order. It doubles as the ranking result payload once scores are
// merged in.
type JobSnapshot struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Location     string        `json:"location"`
	JobType      string        `json:"jobType"`
	CreatedAt    time.Time     `json:"createdAt"`
	Banner       string        `json:"banner,omitempty"`
	Requirements []string      `json:"requirements"`
	Description  string        `json:"description"`
	Deadline     time.Time     `json:"deadline"`
	Applications []Application `json:"applications"`
}
