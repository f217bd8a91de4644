// internal/scoring/prompt.go
package scoring

import (
	"fmt"
	"strings"

	"recruiter-backend/internal/models"
)

const notSpecified = "Not specified"

// BuildJobPrompt renders the job description block submitted to the scoring
// service. The layout is part of the service contract; changing it changes
// what the model sees.
func BuildJobPrompt(job *models.JobSnapshot, comment string) string {
	requirementsLine := "Not explicitly specified"
	if len(job.Requirements) > 0 {
		requirementsLine = strings.Join(job.Requirements, "\n- ")
	}

	recruiterNotes := ""
	if comment != "" {
		recruiterNotes = fmt.Sprintf("\n### RECRUITER SPECIAL NOTES\n%s\n", comment)
	}

	deadlineText := notSpecified
	if !job.Deadline.IsZero() {
		deadlineText = job.Deadline.UTC().Format("2006-01-02")
	}

	description := job.Description
	if description == "" {
		description = "No detailed description provided."
	}

	return strings.TrimSpace(fmt.Sprintf(`
You are an AI assistant that ranks candidate resumes for a job posting.

Your task:
- Read the job details and job description.
- Compare them with candidate resumes.
- Return a JSON object with a "candidates" array.
- Each candidate item must have: "filename", "score" (0-100), and "explanation" (short reason).

### JOB META
- Job Title: %s
- Location: %s
- Employment Type: %s
- Application Deadline: %s
- Core Requirements:
- %s

### JOB DESCRIPTION (as provided by recruiter / job post)
"""
%s
"""

%s

### SCORING GUIDELINES
- 80-100: Very strong match (skills, experience, domain fit).
- 60-79: Good match (most key requirements met).
- 40-59: Partial match (some relevant skills/experience).
- 0-39: Weak match.

Use the job description plus the requirements to judge:
- Technical skill match (frameworks, languages, tools).
- Years of experience and seniority fit.
- Domain/industry relevance.
- Match to responsibilities implied by the description.
`,
		orDefault(job.Title), orDefault(job.Location), orDefault(job.JobType),
		deadlineText, requirementsLine, description, recruiterNotes))
}

func orDefault(v string) string {
	if v == "" {
		return notSpecified
	}
	return v
}
