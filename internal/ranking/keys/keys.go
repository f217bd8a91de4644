// internal/ranking/keys/keys.go

// Package keys derives the cache and run identifiers used by the ranking
// pipeline. The stable key is shared by every run with identical job and
// feedback; run ids additionally carry a random token so repeated starts
// never collide.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"recruiter-backend/internal/common/errors"
	"recruiter-backend/internal/models"
)

// Fingerprint hashes the recruiter feedback into a fixed-length hex digest.
// The raw comment takes precedence over the structured object when both are
// present; with neither, the fingerprint is empty.
func Fingerprint(comment string, fb *models.StructuredFeedback) (string, error) {
	if comment != "" {
		if !utf8.ValidString(comment) {
			return "", errors.NewInvalidInputError("comment is not valid UTF-8 text")
		}
		return digest([]byte(comment)), nil
	}
	if fb != nil {
		raw, err := json.Marshal(fb)
		if err != nil {
			return "", errors.NewInvalidInputError(fmt.Sprintf("feedback not serializable: %v", err))
		}
		return digest(raw), nil
	}
	return "", nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// StableKey is the long-lived cache slot for a job's ranked result. The
// fingerprint segment is omitted entirely when empty.
func StableKey(jobID, fingerprint string) string {
	if fingerprint == "" {
		return fmt.Sprintf("job:%s:rankings", jobID)
	}
	return fmt.Sprintf("job:%s:rankings:%s", jobID, fingerprint)
}

// NewRunID mints the identifier for one ranking execution. The trailing
// uuid keeps concurrent starts with identical feedback on distinct runs.
func NewRunID(jobID, fingerprint string) string {
	return fmt.Sprintf("%s:%s:%s", jobID, fingerprint, uuid.NewString())
}

// StatusKey is the run-scoped cache slot for the status record.
func StatusKey(runID string) string {
	return fmt.Sprintf("ranking:%s:status", runID)
}

// ResultKey is the run-scoped cache slot for the merged result.
func ResultKey(runID string) string {
	return fmt.Sprintf("ranking:%s:result", runID)
}

// BaseFilename reduces a storage key or signed URL to its bare filename,
// dropping directories and any query string. Scorer output and stored resume
// keys compare equal under this form.
func BaseFilename(name string) string {
	base := path.Base(name)
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	return base
}
