// internal/models/ranking.go
package models

// RunState enumerates the ranking run lifecycle. External pollers key UI
// behavior off the state names, so they must not change.
type RunState string

const (
	StateInitializing RunState = "initializing"
	StateAggregating  RunState = "aggregating"
	StateRanking      RunState = "ranking"
	StateMapping      RunState = "mapping"
	StateDone         RunState = "done"
	StateError        RunState = "error"

	// StatePending is reported by the result read for a run with no result
	// and no status record yet. It is never stored.
	StatePending RunState = "pending"
)

// Terminal reports whether the state admits no further transitions.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateError
}

// RunStatus is the per-run status record stored under the run status key.
// Progress is 0-100 and never decreases within a run.
type RunStatus struct {
	State    RunState `json:"state"`
	Progress int      `json:"progress"`
	Message  string   `json:"message,omitempty"`
}

// CandidateScore is one scored resume as returned by the scoring service.
type CandidateScore struct {
	Filename    string  `json:"filename"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// StructuredFeedback captures recruiter steering for the scorer, either
// supplied directly by the caller or interpreted from a free-text comment.
type StructuredFeedback struct {
	BoostSkills           []string `json:"boost_skills"`
	PenalizeSkills        []string `json:"penalize_skills"`
	MinExperience         *int     `json:"min_experience,omitempty"`
	ExcludeEducationBelow *int     `json:"exclude_education_below,omitempty"`
}
