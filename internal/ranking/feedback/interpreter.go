// internal/ranking/feedback/interpreter.go

// Package feedback turns free-text recruiter comments into structured
// scoring hints. Interpretation is a fallback: a structured object supplied
// by the caller always wins over the interpreted comment.
package feedback

import (
	"regexp"
	"strconv"
	"strings"

	"recruiter-backend/internal/models"
)

// skillVocabulary is the fixed set of terms recognized in comments.
var skillVocabulary = []string{
	"java", "spring boot", "react", "angular", "node.js", "node", "express",
	"typescript", "python", "dotnet", "c#", "asp.net", "azure", "aws",
	"docker", "kubernetes", "terraform", "graphql", "kafka", "spark",
	"airflow", "postgresql", "mysql", "sql server",
}

var preferMarkers = []string{"prefer", "prioritize", "focus on", "emphasize", "highlight"}

var avoidMarkers = []string{"avoid", "penalize", "deprioritize", "not", "exclude"}

var experiencePattern = regexp.MustCompile(`(\d+)\s*\+?\s*(years?|yrs?)`)

// Interpret classifies vocabulary terms found in the comment as boosted or
// penalized. A term present while only prefer markers appear is boosted, only
// avoid markers penalized, neither boosted (mention alone implies relevance).
// A term seen alongside both marker kinds lands in neither set. Experience
// and education floors come from fixed patterns. Interpret never fails;
// missing signals leave the corresponding fields empty.
func Interpret(comment string) *models.StructuredFeedback {
	fb := &models.StructuredFeedback{
		BoostSkills:    []string{},
		PenalizeSkills: []string{},
	}
	if comment == "" {
		return fb
	}

	txt := strings.ToLower(comment)

	hasPrefer := containsAny(txt, preferMarkers)
	hasAvoid := containsAny(txt, avoidMarkers)

	for _, skill := range skillVocabulary {
		if !strings.Contains(txt, skill) {
			continue
		}
		switch {
		case hasPrefer && !hasAvoid:
			fb.BoostSkills = append(fb.BoostSkills, skill)
		case hasAvoid && !hasPrefer:
			fb.PenalizeSkills = append(fb.PenalizeSkills, skill)
		case !hasPrefer && !hasAvoid:
			fb.BoostSkills = append(fb.BoostSkills, skill)
		}
	}

	if m := experiencePattern.FindStringSubmatch(txt); m != nil {
		if years, err := strconv.Atoi(m[1]); err == nil {
			fb.MinExperience = &years
		}
	}

	if strings.Contains(txt, "exclude diploma") {
		fb.ExcludeEducationBelow = intPtr(2)
	}
	if strings.Contains(txt, "prefer bachelor's") || strings.Contains(txt, "prefer bachelors") {
		fb.ExcludeEducationBelow = intPtr(2)
	}
	if strings.Contains(txt, "prefer master's") || strings.Contains(txt, "prefer masters") {
		fb.ExcludeEducationBelow = intPtr(3)
	}

	return fb
}

func containsAny(txt string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(txt, m) {
			return true
		}
	}
	return false
}

func intPtr(v int) *int {
	return &v
}
